package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/bitebot/agent/contract"
)

func RouteRequest(ctx context.Context, in *GraphState, router contractx.Router) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	decision, err := router.Route(ctx, contractx.RouteRequest{
		Message:     in.Message,
		RecentTurns: in.Input.Messages,
	})
	if err != nil {
		return nil, err
	}
	if !decision.Agent.Workflow() {
		decision = contractx.RouteDecision{
			Agent:     contractx.AgentTypeDiscovery,
			Reasoning: fmt.Sprintf("fallback: router returned agent=%q", decision.Agent),
			Fallback:  true,
		}
	}
	in.Route = decision
	return in, nil
}
