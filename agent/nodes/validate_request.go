package orchestratornode

import (
	"strings"
	"time"

	contractx "github.com/tanpawarit/bitebot/agent/contract"
)

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, contractx.ErrInvalidSession
	}

	text := strings.TrimSpace(in.Message)
	if text == "" {
		return nil, contractx.ErrInvalidMessage
	}

	threadID := strings.TrimSpace(in.Snapshot.ThreadID)
	if threadID == "" {
		threadID = sessionID
	}

	return &GraphState{
		SessionID: sessionID,
		Message:   text,
		ThreadID:  threadID,
		Now:       nowFn(),
		Input:     in.Snapshot,
	}, nil
}
