package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	hoursx "github.com/tanpawarit/bitebot/agent/hours"
	restaurantx "github.com/tanpawarit/bitebot/agent/restaurant"
	sessionx "github.com/tanpawarit/bitebot/agent/session"
)

// Ledger applies support operations to the reservation list the caller
// holds. It never mutates its input; updated lists are returned.
type Ledger struct {
	lookup restaurantx.Lookup
	now    Clock
}

func NewLedger(lookup restaurantx.Lookup, now Clock) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{lookup: lookup, now: now}
}

// Select picks the reservation a support request refers to. Without a
// confirmation number it needs exactly one confirmed reservation.
func (l *Ledger) Select(list []Reservation, confirmation string) (Reservation, error) {
	if id := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(confirmation)), "#"); id != "" {
		for _, r := range list {
			if strings.EqualFold(r.ReservationID, id) {
				return r, nil
			}
		}
		return Reservation{}, &Error{
			Code:    CodeReservationNotFound,
			Input:   confirmation,
			Message: fmt.Sprintf("I couldn't find a reservation with confirmation number %q in this conversation.", confirmation),
		}
	}

	active := Active(list)
	switch len(active) {
	case 0:
		return Reservation{}, &Error{
			Code:    CodeNoReservations,
			Message: "I don't see any reservations in this conversation yet. Would you like to make one?",
		}
	case 1:
		return active[0], nil
	}

	lines := make([]string, 0, len(active))
	for _, r := range active {
		lines = append(lines, "- "+r.Summary())
	}
	return Reservation{}, &Error{
		Code:    CodeAmbiguousReservation,
		Choices: active,
		Message: "You have several reservations. Which one do you mean?\n" + strings.Join(lines, "\n"),
	}
}

// Active returns the confirmed reservations in list order.
func Active(list []Reservation) []Reservation {
	out := make([]Reservation, 0, len(list))
	for _, r := range list {
		if r.Status != StatusCancelled {
			out = append(out, r)
		}
	}
	return out
}

type ModifyRequest struct {
	ConfirmationNumber string
	Date               string
	Time               string
	PartySize          int
}

// Modify changes date, time or party size. The new slot is validated against
// the restaurant's hours the same way an availability check is.
func (l *Ledger) Modify(ctx context.Context, list []Reservation, req ModifyRequest) ([]Reservation, Reservation, error) {
	target, err := l.Select(list, req.ConfirmationNumber)
	if err != nil {
		return list, Reservation{}, err
	}
	if target.Status == StatusCancelled {
		return list, Reservation{}, alreadyCancelled(target)
	}

	dateExpr := strings.TrimSpace(req.Date)
	timeExpr := strings.TrimSpace(req.Time)
	if dateExpr == "" && timeExpr == "" && req.PartySize == 0 {
		return list, Reservation{}, &Error{
			Code:    CodeNothingToChange,
			Message: fmt.Sprintf("What would you like to change about reservation %s: the date, the time or the party size?", target.ReservationID),
		}
	}
	if req.PartySize < 0 {
		return list, Reservation{}, &Error{
			Code:    CodeInvalidPartySize,
			Input:   fmt.Sprint(req.PartySize),
			Message: "The party size must be at least 1. How many people will be dining?",
		}
	}

	now := l.now()
	updated := target
	if dateExpr != "" {
		d, ok := ParseDate(dateExpr, now)
		if !ok {
			return list, Reservation{}, unparseableDate(dateExpr)
		}
		updated.Date = d.Format(DateLayout)
	}
	if timeExpr != "" {
		c, ok := ParseClock(timeExpr)
		if !ok {
			return list, Reservation{}, unparseableTime(timeExpr)
		}
		updated.Time = c.String()
	}
	if req.PartySize > 0 {
		updated.PartySize = req.PartySize
	}

	date, err := time.ParseInLocation(DateLayout, updated.Date, now.Location())
	if err != nil || date.Before(midnight(now)) {
		return list, Reservation{}, &Error{
			Code:       CodeStaleAvailability,
			Restaurant: target.RestaurantName,
			Input:      updated.Date,
			Message:    fmt.Sprintf("%s has already passed. Which upcoming date would you like?", FormatDate(updated.Date)),
		}
	}

	if dateExpr != "" || timeExpr != "" {
		r, err := Resolve(ctx, l.lookup, RestaurantRef{BusinessID: target.RestaurantID, Name: target.RestaurantName})
		if err != nil {
			return list, Reservation{}, err
		}
		clock, _ := ParseClock(updated.Time)
		if !hoursx.IsWithinHours(r.Hours, date.Weekday(), clock) {
			when := fmt.Sprintf("%s on %s", FormatClock(updated.Time), date.Format("Monday, January 2"))
			return list, Reservation{}, outsideHours(r.Name, date.Weekday().String(), hoursx.Describe(r.Hours, date.Weekday()), when)
		}
	}

	return replace(list, updated), updated, nil
}

// Cancel marks a reservation cancelled.
func (l *Ledger) Cancel(list []Reservation, confirmation string) ([]Reservation, Reservation, error) {
	target, err := l.Select(list, confirmation)
	if err != nil {
		return list, Reservation{}, err
	}
	if target.Status == StatusCancelled {
		return list, Reservation{}, alreadyCancelled(target)
	}
	target.Status = StatusCancelled
	return replace(list, target), target, nil
}

// Held returns the caller-held reservation list stored in the session.
func Held(store *sessionx.Store, sessionID string) []Reservation {
	v, ok := store.Get(sessionID, KeyReservations)
	if !ok {
		return nil
	}
	list, _ := v.([]Reservation)
	return append([]Reservation(nil), list...)
}

// Hold replaces the session's reservation list.
func Hold(store *sessionx.Store, sessionID string, list []Reservation) {
	store.Set(sessionID, KeyReservations, append([]Reservation(nil), list...))
}

// MergeReservations appends incoming reservations to list, replacing entries
// that share a reservation id.
func MergeReservations(list []Reservation, incoming ...Reservation) []Reservation {
	out := append([]Reservation(nil), list...)
	for _, r := range incoming {
		out = replace(out, r)
	}
	return out
}

func replace(list []Reservation, r Reservation) []Reservation {
	out := append([]Reservation(nil), list...)
	for i := range out {
		if out[i].ReservationID == r.ReservationID {
			out[i] = r
			return out
		}
	}
	return append(out, r)
}

func alreadyCancelled(r Reservation) *Error {
	return &Error{
		Code:       CodeAlreadyCancelled,
		Restaurant: r.RestaurantName,
		Input:      r.ReservationID,
		Message:    fmt.Sprintf("Reservation %s at %s is already cancelled.", r.ReservationID, r.RestaurantName),
	}
}
