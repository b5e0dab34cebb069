package downstream

import (
	"context"
	"os"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/giantswarm/agent-mcp-gateway/pkg/logging"
)

// cachingTokenSource lazily negotiates an OAuth2 client-credentials token
// for one downstream HTTP server the first time it is challenged, then
// relies on oauth2.TokenSource's own expiry-aware caching and refresh.
// Negotiation happens only during a client's initial handshake; a 401 on a
// later call does not trigger a new negotiation. This realizes the Downstream Connection
// Manager's "OAuth auto-negotiation" behavior: a server descriptor with no
// Authorization header gets this handled transparently instead of the
// caller forwarding static headers.
type cachingTokenSource struct {
	mu     sync.Mutex
	source oauth2.TokenSource
}

func newCachingTokenSource() *cachingTokenSource {
	return &cachingTokenSource{}
}

// bearerHeader returns {"Authorization": "Bearer <token>"} once a token has
// been negotiated, or nil before the first challenge — the mcp-go
// transport then proceeds unauthenticated, the server answers 401, and the
// caller feeds that challenge to Negotiate.
func (c *cachingTokenSource) bearerHeader(context.Context) map[string]string {
	c.mu.Lock()
	src := c.source
	c.mu.Unlock()
	if src == nil {
		return nil
	}
	tok, err := src.Token()
	if err != nil {
		logging.Warn("downstream-oauth", "token refresh failed: %v", err)
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + tok.AccessToken}
}

// Negotiate parses a 401 response's WWW-Authenticate challenge, builds a
// client-credentials token source from the discovered token endpoint and
// the process's GATEWAY_OAUTH_CLIENT_ID/GATEWAY_OAUTH_CLIENT_SECRET
// credentials, and caches it for subsequent calls. Returns false when the
// challenge carries no usable endpoint or no client credentials are
// configured, in which case the caller surfaces the original 401.
func (c *cachingTokenSource) Negotiate(ctx context.Context, challenge string) bool {
	tokenURL, scope := parseWWWAuthenticate(challenge)
	if tokenURL == "" {
		return false
	}

	clientID := os.Getenv("GATEWAY_OAUTH_CLIENT_ID")
	if clientID == "" {
		logging.Debug("downstream-oauth", "no GATEWAY_OAUTH_CLIENT_ID set; cannot negotiate token for %s", tokenURL)
		return false
	}

	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: os.Getenv("GATEWAY_OAUTH_CLIENT_SECRET"),
		TokenURL:     tokenURL,
	}
	if scope != "" {
		cfg.Scopes = strings.Split(scope, " ")
	}

	c.mu.Lock()
	c.source = cfg.TokenSource(ctx)
	c.mu.Unlock()
	return true
}

var (
	wwwAuthenticateAuthURI      = regexp.MustCompile(`authorization_uri="([^"]+)"`)
	wwwAuthenticateScope        = regexp.MustCompile(`scope="([^"]+)"`)
	wwwAuthenticateResourceMeta = regexp.MustCompile(`resource_metadata="([^"]+)"`)
)

// parseWWWAuthenticate extracts a token endpoint hint and scope from a
// Bearer challenge. Real deployments discover the token endpoint from the
// resource_metadata document; this narrower parse covers the common case
// where the challenge names authorization_uri directly, falling back to
// treating resource_metadata itself as the endpoint hint.
func parseWWWAuthenticate(challenge string) (tokenURL, scope string) {
	if m := wwwAuthenticateAuthURI.FindStringSubmatch(challenge); m != nil {
		tokenURL = m[1]
	}
	if m := wwwAuthenticateScope.FindStringSubmatch(challenge); m != nil {
		scope = m[1]
	}
	if tokenURL == "" {
		if m := wwwAuthenticateResourceMeta.FindStringSubmatch(challenge); m != nil {
			tokenURL = m[1]
		}
	}
	return tokenURL, scope
}

// looksUnauthorized reports whether an mcp-go transport error text indicates
// a 401 challenge — mcp-go surfaces the HTTP failure as a wrapped error
// string rather than exposing the raw *http.Response, so detection is
// textual, matching the teacher's own checkForAuthRequiredError approach.
func looksUnauthorized(errText string) bool {
	return strings.Contains(errText, "401") || strings.Contains(errText, "Unauthorized")
}
