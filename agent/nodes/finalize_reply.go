package orchestratornode

import (
	"fmt"
	"strings"
	"unicode/utf8"

	contractx "github.com/tanpawarit/bitebot/agent/contract"
)

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	reply := strings.TrimSpace(in.Response.Reply)
	if reply == "" {
		return GraphOutput{}, fmt.Errorf("%w: workflow returned empty reply", contractx.ErrValidation)
	}

	turns := append([]contractx.Turn(nil), in.Input.Messages...)
	turns = append(turns,
		contractx.Turn{Role: "user", Content: excerpt(in.Message)},
		contractx.Turn{Role: "assistant", Content: excerpt(reply)},
	)
	if len(turns) > SnapshotTurnLimit {
		turns = turns[len(turns)-SnapshotTurnLimit:]
	}

	return GraphOutput{
		Reply:     reply,
		Route:     in.Route,
		Committed: in.Committed,
		Snapshot: Snapshot{
			ThreadID:     in.ThreadID,
			Availability: in.Availability,
			Reservations: in.Reservations,
			Messages:     turns,
		},
	}, nil
}

func excerpt(s string) string {
	if utf8.RuneCountInString(s) <= SnapshotTurnExcerpt {
		return s
	}
	return string([]rune(s)[:SnapshotTurnExcerpt])
}
