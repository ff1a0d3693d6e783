package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/bitebot/agent/contract"
)

func LoadHistory(ctx context.Context, in *GraphState, memory contractx.Checkpointer) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	history, err := memory.Load(ctx, HistoryThread(in.ThreadID, in.Route.Agent))
	if err != nil {
		return nil, fmt.Errorf("load %s history: %w", in.Route.Agent, err)
	}
	in.History = history
	return in, nil
}
