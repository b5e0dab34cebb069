package downstream

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/giantswarm/agent-mcp-gateway/internal/gatewayconfig"
	"github.com/giantswarm/agent-mcp-gateway/pkg/logging"
	"github.com/mark3labs/mcp-go/mcp"
)

// Status is a point-in-time connectivity snapshot for one server.
type Status struct {
	Connected   bool
	Error       string
	Initialized bool
}

// entry is the Manager's per-server tracking record: the descriptor that
// produced the current client, the client itself (nil until first
// successful connect), and the last error observed, if any.
type entry struct {
	descriptor gatewayconfig.ServerDescriptor
	client     *client
	lastError  string
	tokens     *cachingTokenSource
}

// Manager owns one connection-descriptor per downstream server, creating
// stdio or HTTP clients lazily on first use. Each server's client stays
// open and is shared by every later call to that server until a reload or
// CloseAllConnections closes it; there is no per-call session. It never
// retries inside CallTool — only TestConnection retries.
type Manager struct {
	mu      sync.RWMutex
	entries map[string]*entry
	config  *gatewayconfig.MCPConfig

	connectGroup singleflight.Group
}

// NewManager constructs an empty Manager. Call InitializeConnections (or
// Reload) to populate it from a loaded MCPConfig.
func NewManager() *Manager {
	return &Manager{entries: make(map[string]*entry)}
}

// InitializeConnections installs the first MCP configuration. Every
// descriptor gets a tracking entry; clients remain unconnected until first
// use (lazy connect) — this call never dials out.
func (m *Manager) InitializeConnections(config *gatewayconfig.MCPConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.config = config
	m.entries = make(map[string]*entry, len(config.Servers))
	for name, desc := range config.Servers {
		m.entries[name] = &entry{descriptor: desc, tokens: newCachingTokenSource()}
	}
}

// getOrConnect returns the entry's live client, dialing lazily on first use.
// Concurrent first-connect calls to the same server are collapsed via
// singleflight so only one dial happens; every caller observes the same
// resulting client or error.
func (m *Manager) getOrConnect(ctx context.Context, server string) (*client, error) {
	m.mu.RLock()
	e, ok := m.entries[server]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("server not found: %s", server)
	}

	m.mu.RLock()
	existing := e.client
	lastErr := e.lastError
	m.mu.RUnlock()
	if existing != nil {
		return existing, nil
	}
	if lastErr != "" {
		return nil, fmt.Errorf("server unavailable: %s", lastErr)
	}

	result, err, _ := m.connectGroup.Do(server, func() (interface{}, error) {
		m.mu.RLock()
		e := m.entries[server]
		m.mu.RUnlock()
		if e == nil {
			return nil, fmt.Errorf("server not found: %s", server)
		}
		if e.client != nil {
			return e.client, nil
		}

		c, connErr := connect(ctx, e.descriptor, e.tokens)

		m.mu.Lock()
		if connErr != nil {
			e.lastError = connErr.Error()
		} else {
			e.client = c
			e.lastError = ""
		}
		m.mu.Unlock()

		if connErr != nil {
			return nil, fmt.Errorf("server unavailable: %s", connErr.Error())
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*client), nil
}

func connect(ctx context.Context, desc gatewayconfig.ServerDescriptor, tokens *cachingTokenSource) (*client, error) {
	switch desc.Transport {
	case gatewayconfig.TransportStdio:
		return newStdioClient(ctx, desc)
	case gatewayconfig.TransportHTTP:
		_, hasAuth := caseInsensitiveLookup(desc.Headers, "Authorization")
		return newHTTPClient(ctx, desc, !hasAuth, tokens)
	default:
		return nil, fmt.Errorf("unknown transport %q", desc.Transport)
	}
}

func caseInsensitiveLookup(headers map[string]string, key string) (string, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// ListTools lists the downstream server's tools over the server's shared
// client, connecting it on first use. The connection stays open after the
// call returns.
func (m *Manager) ListTools(ctx context.Context, server string) ([]mcp.Tool, error) {
	c, err := m.getOrConnect(ctx, server)
	if err != nil {
		return nil, err
	}
	return c.listTools(ctx)
}

// CallTool invokes tool with args over the server's shared client,
// connecting it on first use; the connection stays open afterwards. When
// timeoutMs is positive the call is wrapped in a deadline of that duration;
// exceeding it is reported as a timeout rather than a generic failure.
func (m *Manager) CallTool(ctx context.Context, server, tool string, args map[string]interface{}, timeoutMs int) (*mcp.CallToolResult, error) {
	c, err := m.getOrConnect(ctx, server)
	if err != nil {
		return nil, err
	}

	callCtx := ctx
	if timeoutMs > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
		defer cancel()
	}

	result, err := c.callTool(callCtx, tool, args)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, &TimeoutError{Milliseconds: timeoutMs}
		}
		return nil, err
	}
	return result, nil
}

// TimeoutError reports that a downstream call exceeded its timeout.
type TimeoutError struct {
	Milliseconds int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("execution timed out after %dms", e.Milliseconds)
}

// TestConnection attempts ListTools up to maxRetries times with exponential
// backoff starting at 500ms and doubling, updating the entry's status on
// every attempt. It returns true on the first success. This is the only
// operation in the package that retries.
func (m *Manager) TestConnection(ctx context.Context, server string, timeoutMs, maxRetries int) bool {
	delay := 500 * time.Millisecond
	for attempt := 0; attempt < maxRetries; attempt++ {
		// Clear a previous connect failure so this attempt dials again
		// instead of returning the cached "server unavailable" error.
		m.mu.Lock()
		if e, ok := m.entries[server]; ok && e.client == nil {
			e.lastError = ""
		}
		m.mu.Unlock()

		callCtx := ctx
		var cancel context.CancelFunc
		if timeoutMs > 0 {
			callCtx, cancel = context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
		}
		_, err := m.ListTools(callCtx, server)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return true
		}
		logging.Debug("downstream", "test_connection attempt %d/%d for %s failed: %v", attempt+1, maxRetries, server, err)
		if attempt < maxRetries-1 {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return false
}

// GetClient reports connectivity state without dialing: "server not found"
// for an unknown name, "server unavailable: <reason>" when the last attempt
// failed, true when a live client exists, and (false, nil) for a known
// server that has not been connected yet.
func (m *Manager) GetClient(server string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[server]
	if !ok {
		return false, fmt.Errorf("server not found: %s", server)
	}
	if e.client == nil {
		if e.lastError != "" {
			return false, fmt.Errorf("server unavailable: %s", e.lastError)
		}
		return false, nil
	}
	return true, nil
}

// GetAllServers returns every configured server name.
func (m *Manager) GetAllServers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	return names
}

// GetServerStatus reports the connectivity snapshot for one server.
func (m *Manager) GetServerStatus(server string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[server]
	if !ok {
		return Status{}, false
	}
	return Status{
		Connected:   e.client != nil,
		Error:       e.lastError,
		Initialized: e.client != nil || e.lastError != "",
	}, true
}

// GetServersConfig returns the currently installed MCP configuration.
func (m *Manager) GetServersConfig() *gatewayconfig.MCPConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// ReloadResult summarizes a differential reload: which servers were added,
// removed, changed (descriptor differs, client rebuilt), or left untouched
// (descriptor identical, existing client and session preserved).
type ReloadResult struct {
	Added     []string
	Removed   []string
	Changed   []string
	Unchanged []string
}

// Reload installs newConfig, preserving the client for every server whose
// descriptor is unchanged (invariant: unchanged descriptors keep their
// existing connection rather than reconnecting), best-effort-closing
// clients for servers that were removed or whose descriptor changed, and
// lazily reconnecting added/changed servers on next use. It always installs
// the new config and returns a result — an individual close failure never
// aborts the reload, it is only logged.
func (m *Manager) Reload(newConfig *gatewayconfig.MCPConfig) ReloadResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result ReloadResult
	newEntries := make(map[string]*entry, len(newConfig.Servers))

	for name, desc := range newConfig.Servers {
		old, existed := m.entries[name]
		switch {
		case !existed:
			result.Added = append(result.Added, name)
			newEntries[name] = &entry{descriptor: desc, tokens: newCachingTokenSource()}
		case old.descriptor.Equal(desc):
			result.Unchanged = append(result.Unchanged, name)
			newEntries[name] = old
		default:
			result.Changed = append(result.Changed, name)
			if old.client != nil {
				old.client.close()
				logging.Debug("downstream", "closed changed connection to %s for reload", name)
			}
			newEntries[name] = &entry{descriptor: desc, tokens: newCachingTokenSource()}
		}
	}

	for name, old := range m.entries {
		if _, stillPresent := newConfig.Servers[name]; !stillPresent {
			result.Removed = append(result.Removed, name)
			if old.client != nil {
				old.client.close()
				logging.Debug("downstream", "closed removed connection to %s for reload", name)
			}
		}
	}

	m.entries = newEntries
	m.config = newConfig
	return result
}

// CloseAllConnections best-effort-closes every live client and clears all
// tracking state.
func (m *Manager) CloseAllConnections() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, e := range m.entries {
		if e.client != nil {
			e.client.close()
			logging.Debug("downstream", "closed connection to %s", name)
		}
	}
	m.entries = make(map[string]*entry)
}
