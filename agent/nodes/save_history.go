package orchestratornode

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/bitebot/agent/contract"
)

func SaveHistory(ctx context.Context, in *GraphState, memory contractx.Checkpointer) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	msgs := make([]*schema.Message, 0, len(in.History)+len(in.Response.Messages))
	msgs = append(msgs, in.History...)
	msgs = append(msgs, in.Response.Messages...)
	if err := memory.Save(ctx, HistoryThread(in.ThreadID, in.Route.Agent), msgs); err != nil {
		return nil, fmt.Errorf("save %s history: %w", in.Route.Agent, err)
	}
	return in, nil
}
