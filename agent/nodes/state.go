package orchestratornode

import (
	"time"

	"github.com/cloudwego/eino/schema"

	bookingx "github.com/tanpawarit/bitebot/agent/booking"
	contractx "github.com/tanpawarit/bitebot/agent/contract"
)

const (
	// SnapshotTurnLimit is how many UI turns a snapshot carries.
	SnapshotTurnLimit = 6
	// SnapshotTurnExcerpt caps each carried turn in runes.
	SnapshotTurnExcerpt = 280
)

// Snapshot is the session state a stateless caller hands back on the next
// turn.
type Snapshot struct {
	ThreadID     string                      `json:"thread_id,omitempty"`
	Availability *bookingx.AvailabilityToken `json:"availability,omitempty"`
	Reservations []bookingx.Reservation      `json:"reservations,omitempty"`
	Messages     []contractx.Turn            `json:"messages,omitempty"`
}

type GraphInput struct {
	SessionID string
	Message   string
	Snapshot  Snapshot
}

type GraphOutput struct {
	Reply     string
	Route     contractx.RouteDecision
	Snapshot  Snapshot
	Committed []bookingx.Reservation
}

type GraphState struct {
	SessionID string
	Message   string
	ThreadID  string
	Now       time.Time
	Input     Snapshot

	Route    contractx.RouteDecision
	History  []*schema.Message
	Response contractx.WorkflowResponse

	Availability *bookingx.AvailabilityToken
	Reservations []bookingx.Reservation
	Committed    []bookingx.Reservation
}

// HistoryThread is the memory key of one workflow's history in a thread.
func HistoryThread(threadID string, agent contractx.AgentType) string {
	return threadID + ":" + string(agent)
}
