package booking

import (
	"fmt"
)

// Code identifies a recoverable booking failure.
type Code string

const (
	CodeNotFound                Code = "NOT_FOUND"
	CodeReservationsNotAccepted Code = "RESERVATIONS_NOT_ACCEPTED"
	CodeUnparseableDate         Code = "UNPARSEABLE_DATE"
	CodeUnparseableTime         Code = "UNPARSEABLE_TIME"
	CodeOutsideOperatingHours   Code = "OUTSIDE_OPERATING_HOURS"
	CodeNoAvailabilityChecked   Code = "NO_AVAILABILITY_CHECKED"
	CodeStaleAvailability       Code = "STALE_AVAILABILITY"
	CodeInvalidCustomerName     Code = "INVALID_CUSTOMER_NAME"
	CodeInvalidPartySize        Code = "INVALID_PARTY_SIZE"
	CodeRestaurantMismatch      Code = "RESTAURANT_MISMATCH"
	CodeNoReservations          Code = "NO_RESERVATIONS"
	CodeAmbiguousReservation    Code = "AMBIGUOUS_RESERVATION"
	CodeReservationNotFound     Code = "RESERVATION_NOT_FOUND"
	CodeAlreadyCancelled        Code = "ALREADY_CANCELLED"
	CodeNothingToChange         Code = "NOTHING_TO_CHANGE"
)

// NameReason subtypes CodeInvalidCustomerName.
type NameReason string

const (
	NameEmpty       NameReason = "empty"
	NamePlaceholder NameReason = "placeholder"
	NameTooShort    NameReason = "too_short"
)

// Error is a booking failure the conversation can recover from. Message is
// written for the end user and carries enough context to retry.
type Error struct {
	Code       Code          `json:"code"`
	Message    string        `json:"message"`
	Restaurant string        `json:"restaurant,omitempty"`
	Input      string        `json:"input,omitempty"`
	Hours      string        `json:"hours,omitempty"`
	Reason     NameReason    `json:"reason,omitempty"`
	Choices    []Reservation `json:"choices,omitempty"`
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches on code, and on name reason when the target sets one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

var (
	ErrNotFound                = &Error{Code: CodeNotFound}
	ErrReservationsNotAccepted = &Error{Code: CodeReservationsNotAccepted}
	ErrUnparseableDate         = &Error{Code: CodeUnparseableDate}
	ErrUnparseableTime         = &Error{Code: CodeUnparseableTime}
	ErrOutsideOperatingHours   = &Error{Code: CodeOutsideOperatingHours}
	ErrNoAvailabilityChecked   = &Error{Code: CodeNoAvailabilityChecked}
	ErrStaleAvailability       = &Error{Code: CodeStaleAvailability}
	ErrInvalidCustomerName     = &Error{Code: CodeInvalidCustomerName}
	ErrInvalidPartySize        = &Error{Code: CodeInvalidPartySize}
	ErrRestaurantMismatch      = &Error{Code: CodeRestaurantMismatch}
	ErrNoReservations          = &Error{Code: CodeNoReservations}
	ErrAmbiguousReservation    = &Error{Code: CodeAmbiguousReservation}
	ErrReservationNotFound     = &Error{Code: CodeReservationNotFound}
	ErrAlreadyCancelled        = &Error{Code: CodeAlreadyCancelled}
	ErrNothingToChange         = &Error{Code: CodeNothingToChange}

	ErrNameEmpty       = &Error{Code: CodeInvalidCustomerName, Reason: NameEmpty}
	ErrNamePlaceholder = &Error{Code: CodeInvalidCustomerName, Reason: NamePlaceholder}
	ErrNameTooShort    = &Error{Code: CodeInvalidCustomerName, Reason: NameTooShort}
)

func notFound(name string) *Error {
	if name == "" {
		return &Error{Code: CodeNotFound, Message: "I need the restaurant name to look that up. Which restaurant did you mean?"}
	}
	return &Error{
		Code:       CodeNotFound,
		Restaurant: name,
		Message:    fmt.Sprintf("I couldn't find a restaurant called %q. Could you check the name or tell me the city?", name),
	}
}

func reservationsNotAccepted(name string) *Error {
	return &Error{
		Code:       CodeReservationsNotAccepted,
		Restaurant: name,
		Message:    fmt.Sprintf("%s does not accept reservations. It serves walk-in guests only.", name),
	}
}

func unparseableDate(input string) *Error {
	return &Error{
		Code:    CodeUnparseableDate,
		Input:   input,
		Message: fmt.Sprintf("I couldn't understand the date %q. Could you say it another way, like \"tomorrow\", \"next Friday\" or \"2026-03-14\"?", input),
	}
}

func unparseableTime(input string) *Error {
	return &Error{
		Code:    CodeUnparseableTime,
		Input:   input,
		Message: fmt.Sprintf("I couldn't understand the time %q. Could you say it like \"7pm\" or \"19:00\"?", input),
	}
}

func outsideHours(name, weekday, hoursRaw, when string) *Error {
	return &Error{
		Code:       CodeOutsideOperatingHours,
		Restaurant: name,
		Hours:      hoursRaw,
		Message:    fmt.Sprintf("%s is not open at %s. Its hours on %s are %s.", name, when, weekday, hoursRaw),
	}
}

func invalidName(reason NameReason, input string) *Error {
	var msg string
	switch reason {
	case NameEmpty:
		msg = "I need a name for the reservation. What name should I put it under?"
	case NamePlaceholder:
		msg = fmt.Sprintf("%q looks like a placeholder rather than a real name. What name should I put the reservation under?", input)
	default:
		msg = fmt.Sprintf("%q is too short for a reservation name. Could you give me the full name?", input)
	}
	return &Error{Code: CodeInvalidCustomerName, Reason: reason, Input: input, Message: msg}
}
