// Package booking turns availability checks into confirmed reservations.
//
// A successful availability check leaves a single-use token in the session
// store. Committing a reservation consumes that token, so the date, time and
// party size of a booking always come from a check that was validated
// against the restaurant's opening hours.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	hoursx "github.com/tanpawarit/bitebot/agent/hours"
	restaurantx "github.com/tanpawarit/bitebot/agent/restaurant"
	sessionx "github.com/tanpawarit/bitebot/agent/session"
)

const (
	KeyAvailability = "availability"
	KeyReservations = "reservations"
	KeyCommitted    = "committed"
	// KeyConsumedAt holds the CheckedAt of the last token a commit used up.
	KeyConsumedAt = "availability_consumed_at"

	DefaultPartySize = 2
)

// Clock returns the current time. Tests pin it.
type Clock func() time.Time

// RestaurantRef identifies a restaurant by id, or by fuzzy name and optional
// city.
type RestaurantRef struct {
	BusinessID string `json:"business_id,omitempty"`
	Name       string `json:"name,omitempty"`
	City       string `json:"city,omitempty"`
}

func (r RestaurantRef) IsZero() bool {
	return strings.TrimSpace(r.BusinessID) == "" && strings.TrimSpace(r.Name) == ""
}

func (r RestaurantRef) label() string {
	if n := strings.TrimSpace(r.Name); n != "" {
		return n
	}
	return strings.TrimSpace(r.BusinessID)
}

// AvailabilityToken is the proof that a date, time and party size were
// checked against a restaurant's hours.
type AvailabilityToken struct {
	RestaurantID   string    `json:"restaurant_id"`
	RestaurantName string    `json:"restaurant_name"`
	Date           string    `json:"date"`
	Time           string    `json:"time"`
	PartySize      int       `json:"party_size"`
	CheckedAt      time.Time `json:"checked_at"`
}

type AvailabilityRequest struct {
	Restaurant RestaurantRef
	Date       string
	Time       string
	PartySize  int
}

type AvailabilityResult struct {
	Restaurant          *restaurantx.Restaurant
	OpenNow             bool
	Status              string
	AcceptsReservations bool
	Token               *AvailabilityToken
	Message             string
}

type Checker struct {
	lookup restaurantx.Lookup
	store  *sessionx.Store
	now    Clock
}

func NewChecker(lookup restaurantx.Lookup, store *sessionx.Store, now Clock) *Checker {
	if now == nil {
		now = time.Now
	}
	return &Checker{lookup: lookup, store: store, now: now}
}

// Check validates a requested slot. With neither date nor time it reports
// whether the restaurant is open right now and leaves the session untouched.
func (c *Checker) Check(ctx context.Context, sessionID string, req AvailabilityRequest) (*AvailabilityResult, error) {
	r, err := Resolve(ctx, c.lookup, req.Restaurant)
	if err != nil {
		return nil, err
	}

	partySize := req.PartySize
	if partySize == 0 {
		partySize = DefaultPartySize
	}
	if partySize < 0 {
		return nil, &Error{
			Code:       CodeInvalidPartySize,
			Restaurant: r.Name,
			Input:      fmt.Sprint(req.PartySize),
			Message:    "The party size must be at least 1. How many people will be dining?",
		}
	}

	now := c.now()
	dateExpr := strings.TrimSpace(req.Date)
	timeExpr := strings.TrimSpace(req.Time)

	if dateExpr == "" && timeExpr == "" {
		open, status := hoursx.IsOpenAt(r.Hours, now)
		msg := fmt.Sprintf("%s: %s.", r.Name, status)
		if !r.AcceptsReservations() {
			msg += " Walk-ins only, no reservations."
		}
		return &AvailabilityResult{
			Restaurant:          r,
			OpenNow:             open,
			Status:              status,
			AcceptsReservations: r.AcceptsReservations(),
			Message:             msg,
		}, nil
	}

	if !r.AcceptsReservations() {
		return nil, reservationsNotAccepted(r.Name)
	}

	date := midnight(now)
	if dateExpr != "" {
		parsed, ok := ParseDate(dateExpr, now)
		if !ok {
			return nil, unparseableDate(dateExpr)
		}
		date = parsed
	}

	clock := hoursx.ClockOf(now)
	if timeExpr != "" {
		parsed, ok := ParseClock(timeExpr)
		if !ok {
			return nil, unparseableTime(timeExpr)
		}
		clock = parsed
	}

	if date.Before(midnight(now)) {
		return nil, &Error{
			Code:       CodeStaleAvailability,
			Restaurant: r.Name,
			Input:      dateExpr,
			Message:    fmt.Sprintf("%s has already passed. Which upcoming date would you like?", date.Format("Monday, January 2, 2006")),
		}
	}

	if !hoursx.IsWithinHours(r.Hours, date.Weekday(), clock) {
		when := fmt.Sprintf("%s on %s", FormatClock(clock.String()), date.Format("Monday, January 2"))
		return nil, outsideHours(r.Name, date.Weekday().String(), hoursx.Describe(r.Hours, date.Weekday()), when)
	}

	token := AvailabilityToken{
		RestaurantID:   r.BusinessID,
		RestaurantName: r.Name,
		Date:           date.Format(DateLayout),
		Time:           clock.String(),
		PartySize:      partySize,
		CheckedAt:      now,
	}
	_ = c.store.Update(sessionID, func(b sessionx.Bag) error {
		if consumed, ok := b[KeyConsumedAt].(time.Time); ok && !token.CheckedAt.After(consumed) {
			token.CheckedAt = consumed.Add(time.Nanosecond)
		}
		if prev, ok := b[KeyAvailability].(AvailabilityToken); ok && prev.CheckedAt.After(token.CheckedAt) {
			log.Debug().Str("session_id", sessionID).Msg("kept newer availability token")
			return nil
		}
		b[KeyAvailability] = token
		return nil
	})

	return &AvailabilityResult{
		Restaurant:          r,
		OpenNow:             true,
		Status:              "available",
		AcceptsReservations: true,
		Token:               &token,
		Message: fmt.Sprintf(
			"%s is open on %s at %s for a party of %d. Shall I book it? I'll need a name for the reservation.",
			r.Name, FormatDate(token.Date), FormatClock(token.Time), token.PartySize,
		),
	}, nil
}

// CurrentToken returns the session's availability token, if any.
func CurrentToken(store *sessionx.Store, sessionID string) (AvailabilityToken, bool) {
	v, ok := store.Get(sessionID, KeyAvailability)
	if !ok {
		return AvailabilityToken{}, false
	}
	tok, ok := v.(AvailabilityToken)
	return tok, ok
}

// RestoreToken puts tok back into the session unless a newer one is there
// or a commit already used a token at least as new. It reports whether tok
// was kept.
func RestoreToken(store *sessionx.Store, sessionID string, tok AvailabilityToken) bool {
	kept := false
	_ = store.Update(sessionID, func(b sessionx.Bag) error {
		if consumed, ok := b[KeyConsumedAt].(time.Time); ok && !tok.CheckedAt.After(consumed) {
			return nil
		}
		if prev, ok := b[KeyAvailability].(AvailabilityToken); ok && !tok.CheckedAt.After(prev.CheckedAt) {
			return nil
		}
		b[KeyAvailability] = tok
		kept = true
		return nil
	})
	return kept
}

// Resolve looks a restaurant up by id, or by name and optional city. An
// unknown restaurant yields a NotFound *Error.
func Resolve(ctx context.Context, lookup restaurantx.Lookup, ref RestaurantRef) (*restaurantx.Restaurant, error) {
	if ref.IsZero() {
		return nil, notFound("")
	}

	var (
		r   *restaurantx.Restaurant
		err error
	)
	if id := strings.TrimSpace(ref.BusinessID); id != "" {
		r, err = lookup.GetByID(ctx, id)
	} else {
		r, err = lookup.GetByName(ctx, strings.TrimSpace(ref.Name), strings.TrimSpace(ref.City))
	}
	if errors.Is(err, restaurantx.ErrNotFound) {
		return nil, notFound(ref.label()).WithCause(err)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve restaurant %q: %w", ref.label(), err)
	}
	return r, nil
}
