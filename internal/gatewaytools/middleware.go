package gatewaytools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// HandlerFunc is the mcp-go tool-call handler shape every virtual tool and
// the middleware wrapping it conforms to.
type HandlerFunc func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// WithAgentMiddleware wraps next so that every call first extracts
// agent_id from the arguments, enforces its presence when
// denyOnMissingAgent is true, stores it in the context under the
// well-known current_agent key, and strips it from the argument map before
// next ever sees it — gateway tools read the agent id from the context
// (AgentFromContext), not from the raw arguments map, and any accidental
// downstream handler sharing this namespace never observes it.
func WithAgentMiddleware(denyOnMissingAgent func() bool, next HandlerFunc) HandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := req.Params.Arguments.(map[string]interface{})
		if args == nil {
			args = map[string]interface{}{}
		}

		agent, _ := args["agent_id"].(string)
		if agent == "" {
			if denyOnMissingAgent() {
				return mcp.NewToolResultError("missing required parameter agent_id"), nil
			}
		}
		delete(args, "agent_id")
		req.Params.Arguments = args

		return next(withAgent(ctx, agent), req)
	}
}
