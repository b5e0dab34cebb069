// Package audit appends structured JSON-lines decision records to a file.
// A write failure is logged to the diagnostic stream and swallowed — audit
// logging must never be able to crash or block the gateway.
package audit

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/giantswarm/agent-mcp-gateway/pkg/logging"
)

// Decision is the outcome recorded for a completed operation.
type Decision string

const (
	DecisionAllow Decision = "ALLOW"
	DecisionDeny  Decision = "DENY"
	DecisionError Decision = "ERROR"
)

// record is the exact on-disk shape of one audit line.
type record struct {
	Timestamp string                 `json:"timestamp"`
	AgentID   string                 `json:"agent_id"`
	Operation string                 `json:"operation"`
	Decision  Decision               `json:"decision"`
	LatencyMs float64                `json:"latency_ms"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// Sink appends one JSON object per line to a configured file, creating its
// parent directory on first use. Concurrent writers are serialized by mu so
// lines are never interleaved.
type Sink struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// NewSink returns a Sink for the audit log at path without touching the
// file: it is opened (created if necessary) for append on the first Log
// call, so a bad path never fails
// gateway startup outright — the failure surfaces as a logged warning
// instead, per the gateway's non-fatal audit-failure policy.
func NewSink(path string) *Sink {
	return &Sink{path: path}
}

// Log appends one audit record. agent may be empty (unauthenticated call);
// metadata may be nil, in which case it is written as an empty object.
func (s *Sink) Log(agent, operation string, decision Decision, latencyMs float64, metadata map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	rec := record{
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000000Z"),
		AgentID:   agent,
		Operation: operation,
		Decision:  decision,
		LatencyMs: roundTo2(latencyMs),
		Metadata:  metadata,
	}

	if err := s.ensureOpenLocked(); err != nil {
		logging.Warn("audit", "failed to open audit log %s: %v", s.path, err)
		return
	}

	line, err := json.Marshal(rec)
	if err != nil {
		logging.Warn("audit", "failed to marshal audit record: %v", err)
		return
	}
	line = append(line, '\n')

	if _, err := s.file.Write(line); err != nil {
		logging.Warn("audit", "failed to write audit record: %v", err)
		return
	}
	if err := s.file.Sync(); err != nil {
		logging.Warn("audit", "failed to flush audit log: %v", err)
	}
}

func (s *Sink) ensureOpenLocked() error {
	if s.file != nil {
		return nil
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	s.file = f
	return nil
}

// Close releases the underlying file handle, if open.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}
