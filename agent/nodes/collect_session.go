package orchestratornode

import (
	"fmt"

	bookingx "github.com/tanpawarit/bitebot/agent/booking"
	contractx "github.com/tanpawarit/bitebot/agent/contract"
	sessionx "github.com/tanpawarit/bitebot/agent/session"
)

// CollectSession moves reservations committed during the turn into the held
// list and reads back what the next snapshot needs.
func CollectSession(in *GraphState, store *sessionx.Store) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	committed := bookingx.TakeCommitted(store, in.SessionID)
	held := bookingx.Held(store, in.SessionID)
	if len(committed) > 0 {
		held = bookingx.MergeReservations(held, committed...)
		bookingx.Hold(store, in.SessionID, held)
	}

	in.Committed = committed
	in.Reservations = held
	in.Availability = nil
	if tok, ok := bookingx.CurrentToken(store, in.SessionID); ok {
		in.Availability = &tok
	}
	return in, nil
}
