package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	restaurantx "github.com/tanpawarit/bitebot/agent/restaurant"
	sessionx "github.com/tanpawarit/bitebot/agent/session"
)

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

type Reservation struct {
	ReservationID   string    `json:"reservation_id"`
	RestaurantID    string    `json:"restaurant_id"`
	RestaurantName  string    `json:"restaurant_name"`
	Address         string    `json:"address"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	PartySize       int       `json:"party_size"`
	CustomerName    string    `json:"customer_name"`
	CustomerPhone   string    `json:"customer_phone,omitempty"`
	SpecialRequests string    `json:"special_requests,omitempty"`
	Status          Status    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

// Summary is a one-line description used in listings.
func (r Reservation) Summary() string {
	return fmt.Sprintf("#%s: %s on %s at %s, party of %d (%s)",
		r.ReservationID, r.RestaurantName, FormatDate(r.Date), FormatClock(r.Time), r.PartySize, r.Status)
}

var placeholderNames = map[string]struct{}{
	"guest": {}, "user": {}, "customer": {}, "reservation": {},
	"table": {}, "name": {}, "person": {}, "client": {},
}

// ValidateCustomerName returns the trimmed name or a re-promptable error.
func ValidateCustomerName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", invalidName(NameEmpty, name)
	}
	if _, ok := placeholderNames[strings.ToLower(trimmed)]; ok {
		return "", invalidName(NamePlaceholder, trimmed)
	}
	if len([]rune(trimmed)) < 2 {
		return "", invalidName(NameTooShort, trimmed)
	}
	return trimmed, nil
}

type CommitRequest struct {
	CustomerName    string
	Restaurant      RestaurantRef
	CustomerPhone   string
	SpecialRequests string
}

type CommitResult struct {
	Reservation Reservation
	Message     string
}

type Committer struct {
	lookup restaurantx.Lookup
	store  *sessionx.Store
	ids    *IDIssuer
	now    Clock
}

func NewCommitter(lookup restaurantx.Lookup, store *sessionx.Store, ids *IDIssuer, now Clock) *Committer {
	if ids == nil {
		ids = NewIDIssuer()
	}
	if now == nil {
		now = time.Now
	}
	return &Committer{lookup: lookup, store: store, ids: ids, now: now}
}

// Commit books the slot held by the session's availability token. Date, time
// and party size are taken from the token only.
func (c *Committer) Commit(ctx context.Context, sessionID string, req CommitRequest) (*CommitResult, error) {
	name, err := ValidateCustomerName(req.CustomerName)
	if err != nil {
		return nil, err
	}

	ref := req.Restaurant
	if ref.IsZero() {
		tok, ok := CurrentToken(c.store, sessionID)
		if !ok {
			return nil, noAvailability("")
		}
		ref = RestaurantRef{BusinessID: tok.RestaurantID, Name: tok.RestaurantName}
	}

	r, err := Resolve(ctx, c.lookup, ref)
	if err != nil {
		return nil, err
	}
	if !r.AcceptsReservations() {
		return nil, reservationsNotAccepted(r.Name)
	}

	now := c.now()
	var res Reservation
	err = c.store.Update(sessionID, func(b sessionx.Bag) error {
		tok, ok := b[KeyAvailability].(AvailabilityToken)
		if !ok {
			return noAvailability(r.Name)
		}
		if tok.RestaurantID != "" && tok.RestaurantID != r.BusinessID {
			return &Error{
				Code:       CodeRestaurantMismatch,
				Restaurant: r.Name,
				Message: fmt.Sprintf("The availability I checked was for %s, not %s. Should I check %s first?",
					tok.RestaurantName, r.Name, r.Name),
			}
		}

		date, err := time.ParseInLocation(DateLayout, tok.Date, now.Location())
		if err != nil || date.Before(midnight(now)) {
			delete(b, KeyAvailability)
			return &Error{
				Code:       CodeStaleAvailability,
				Restaurant: r.Name,
				Input:      tok.Date,
				Message:    fmt.Sprintf("The availability check for %s has expired. Let me check availability again before booking.", FormatDate(tok.Date)),
			}
		}

		res = Reservation{
			ReservationID:   c.ids.Issue(),
			RestaurantID:    r.BusinessID,
			RestaurantName:  r.Name,
			Address:         r.FullAddress(),
			Date:            tok.Date,
			Time:            tok.Time,
			PartySize:       tok.PartySize,
			CustomerName:    name,
			CustomerPhone:   strings.TrimSpace(req.CustomerPhone),
			SpecialRequests: strings.TrimSpace(req.SpecialRequests),
			Status:          StatusConfirmed,
			CreatedAt:       now,
		}
		delete(b, KeyAvailability)
		b[KeyConsumedAt] = tok.CheckedAt
		committed, _ := b[KeyCommitted].([]Reservation)
		b[KeyCommitted] = append(append([]Reservation(nil), committed...), res)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("session_id", sessionID).
		Str("reservation_id", res.ReservationID).
		Str("restaurant_id", res.RestaurantID).
		Msg("reservation committed")

	return &CommitResult{
		Reservation: res,
		Message: fmt.Sprintf(
			"Your table is booked! Confirmation number %s: %s on %s at %s for a party of %d under the name %s.",
			res.ReservationID, res.RestaurantName, FormatDate(res.Date), FormatClock(res.Time), res.PartySize, res.CustomerName,
		),
	}, nil
}

// TakeCommitted drains the reservations committed in the session since the
// last call.
func TakeCommitted(store *sessionx.Store, sessionID string) []Reservation {
	var out []Reservation
	_ = store.Update(sessionID, func(b sessionx.Bag) error {
		out, _ = b[KeyCommitted].([]Reservation)
		delete(b, KeyCommitted)
		return nil
	})
	return out
}

func noAvailability(name string) *Error {
	msg := "I need to check availability before I can book. Which date, time and party size would you like?"
	if name != "" {
		msg = fmt.Sprintf("I need to check availability at %s before I can book. Which date, time and party size would you like?", name)
	}
	return &Error{Code: CodeNoAvailabilityChecked, Restaurant: name, Message: msg}
}
