package reload

import (
	"sync"
	"time"
)

// FileStatus tracks hot-reload attempt/success history for one watched
// configuration file, mirroring the shape the original gateway's
// diagnostic status dict exposes.
type FileStatus struct {
	LastAttempt  *time.Time
	LastSuccess  *time.Time
	LastError    string
	AttemptCount int
	SuccessCount int

	// LastWarnings holds cross-validation warnings from the most recent
	// successful reload. Cross-validation checks the rules file's server
	// references (pattern syntax is checked by LoadRules), so only the rules file's status ever
	// carries warnings here; the MCP config file's status leaves this nil.
	LastWarnings []string
}

// Status is an immutable snapshot of both watched files' reload history,
// safe to hand to a caller without further locking.
type Status struct {
	MCPConfig FileStatus
	Rules     FileStatus
}

// statusTracker guards the mutable FileStatus pair behind its own mutex, as
// required by spec: reload-status is guarded independently of the policy
// engine and connection manager locks it reports on.
type statusTracker struct {
	mu        sync.Mutex
	mcpConfig FileStatus
	rules     FileStatus
}

func newStatusTracker() *statusTracker {
	return &statusTracker{}
}

func (t *statusTracker) recordAttempt(target *FileStatus) {
	now := time.Now().UTC()
	target.LastAttempt = &now
	target.AttemptCount++
}

func (t *statusTracker) recordSuccess(target *FileStatus, warnings []string) {
	now := time.Now().UTC()
	target.LastSuccess = &now
	target.LastError = ""
	target.SuccessCount++
	target.LastWarnings = warnings
}

func (t *statusTracker) recordError(target *FileStatus, err string) {
	target.LastError = err
}

func (t *statusTracker) snapshot() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Status{MCPConfig: t.mcpConfig, Rules: t.rules}
}
