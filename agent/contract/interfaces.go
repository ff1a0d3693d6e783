package contract

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

type Router interface {
	Route(ctx context.Context, req RouteRequest) (RouteDecision, error)
}

// Workflow is a specialist language-model loop (discovery or support).
type Workflow interface {
	Run(ctx context.Context, req WorkflowRequest) (WorkflowResponse, error)
}

type Registry interface {
	Router() Router
	Discovery() Workflow
	Support() Workflow
}

// ToolGateway exposes the tools of one workflow. Recoverable failures are
// reported in ToolResult.Error; a returned error aborts the turn.
type ToolGateway interface {
	Infos(agentType AgentType) []*schema.ToolInfo
	Execute(ctx context.Context, agentType AgentType, sessionID string, req ToolRequest) (ToolResult, error)
}

// Checkpointer owns conversation history keyed by thread id.
type Checkpointer interface {
	Load(ctx context.Context, threadID string) ([]*schema.Message, error)
	Save(ctx context.Context, threadID string, msgs []*schema.Message) error
	Delete(ctx context.Context, threadID string) error
}
