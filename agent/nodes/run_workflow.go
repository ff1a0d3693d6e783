package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/bitebot/agent/contract"
)

func RunWorkflow(ctx context.Context, in *GraphState, registry contractx.Registry) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	workflow, err := pickWorkflow(in.Route.Agent, registry)
	if err != nil {
		return nil, err
	}

	resp, err := workflow.Run(ctx, contractx.WorkflowRequest{
		SessionID: in.SessionID,
		Message:   in.Message,
		History:   in.History,
	})
	if err != nil {
		return nil, err
	}
	in.Response = resp
	return in, nil
}

func pickWorkflow(agent contractx.AgentType, registry contractx.Registry) (contractx.Workflow, error) {
	var w contractx.Workflow
	switch agent {
	case contractx.AgentTypeDiscovery:
		w = registry.Discovery()
	case contractx.AgentTypeSupport:
		w = registry.Support()
	default:
		return nil, fmt.Errorf("%w: no workflow for agent=%s", contractx.ErrValidation, agent)
	}
	if w == nil {
		return nil, fmt.Errorf("%w: workflow for agent=%s is not configured", contractx.ErrValidation, agent)
	}
	return w, nil
}
