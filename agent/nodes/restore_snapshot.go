package orchestratornode

import (
	"fmt"

	"github.com/rs/zerolog/log"

	bookingx "github.com/tanpawarit/bitebot/agent/booking"
	contractx "github.com/tanpawarit/bitebot/agent/contract"
	sessionx "github.com/tanpawarit/bitebot/agent/session"
)

// RestoreSnapshot seeds the session bag from the caller's snapshot. A token
// already in the bag wins when it is newer, and a token a commit already used
// is dropped. Reservations are merged by id.
func RestoreSnapshot(in *GraphState, store *sessionx.Store) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	store.Bind(in.SessionID)
	if tok := in.Input.Availability; tok != nil {
		if !bookingx.RestoreToken(store, in.SessionID, *tok) {
			log.Debug().Str("session_id", in.SessionID).Time("checked_at", tok.CheckedAt).Msg("snapshot availability token not restored")
		}
	}
	if len(in.Input.Reservations) > 0 {
		held := bookingx.Held(store, in.SessionID)
		bookingx.Hold(store, in.SessionID, bookingx.MergeReservations(held, in.Input.Reservations...))
	}
	return in, nil
}
