// Package hours evaluates restaurant weekly opening hours.
//
// Hours are stored per weekday name as "H:MM-H:MM". An interval whose close
// is earlier than its open crosses midnight. "0:00-0:00" means closed all day.
package hours

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidInterval = errors.New("invalid hours interval")

// Week maps a weekday name ("Monday") to its hours string.
type Week map[string]string

// Clock is a time of day in 24-hour form.
type Clock struct {
	Hour   int
	Minute int
}

func ClockOf(t time.Time) Clock {
	return Clock{Hour: t.Hour(), Minute: t.Minute()}
}

func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

// String renders the clock as zero-padded "HH:MM".
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c Clock) Valid() bool {
	return c.Hour >= 0 && c.Hour < 24 && c.Minute >= 0 && c.Minute < 60
}

// Interval holds open and close as minutes since midnight.
type Interval struct {
	Open  int
	Close int
}

func ParseInterval(raw string) (Interval, error) {
	openRaw, closeRaw, ok := strings.Cut(strings.TrimSpace(raw), "-")
	if !ok {
		return Interval{}, fmt.Errorf("%w: %q", ErrInvalidInterval, raw)
	}
	open, err := parseMinutes(openRaw)
	if err != nil {
		return Interval{}, fmt.Errorf("%w: %q: %v", ErrInvalidInterval, raw, err)
	}
	closeAt, err := parseMinutes(closeRaw)
	if err != nil {
		return Interval{}, fmt.Errorf("%w: %q: %v", ErrInvalidInterval, raw, err)
	}
	return Interval{Open: open, Close: closeAt}, nil
}

func (iv Interval) ClosedAllDay() bool {
	return iv.Open == 0 && iv.Close == 0
}

func (iv Interval) CrossesMidnight() bool {
	return iv.Close < iv.Open
}

// Contains reports whether minute t falls inside the interval. The close
// boundary is exclusive.
func (iv Interval) Contains(t int) bool {
	if iv.ClosedAllDay() {
		return false
	}
	if iv.CrossesMidnight() {
		return t >= iv.Open || t < iv.Close
	}
	return iv.Open <= t && t < iv.Close
}

// IsWithinHours reports whether clock falls inside the hours listed for
// weekday. Missing or unparseable entries count as closed.
func IsWithinHours(week Week, weekday time.Weekday, clock Clock) bool {
	raw, ok := week[weekday.String()]
	if !ok {
		return false
	}
	iv, err := ParseInterval(raw)
	if err != nil {
		return false
	}
	return iv.Contains(clock.Minutes())
}

// IsOpenAt evaluates the hours for t's weekday and returns a human readable
// status message alongside the open flag.
func IsOpenAt(week Week, t time.Time) (bool, string) {
	if len(week) == 0 {
		return false, "Hours not available"
	}

	day := t.Weekday().String()
	raw, ok := week[day]
	if !ok || strings.TrimSpace(raw) == "" {
		return false, fmt.Sprintf("No hours listed for %s", day)
	}

	iv, err := ParseInterval(raw)
	if err != nil {
		return false, fmt.Sprintf("Unable to parse hours: %s", raw)
	}
	if iv.ClosedAllDay() {
		return false, fmt.Sprintf("Closed all day on %s", day)
	}

	if iv.Contains(ClockOf(t).Minutes()) {
		return true, fmt.Sprintf("Open now (closes at %s)", formatMinutes(iv.Close))
	}
	return false, fmt.Sprintf("Closed (opens at %s)", formatMinutes(iv.Open))
}

// Describe returns the raw hours for weekday, or "not listed".
func Describe(week Week, weekday time.Weekday) string {
	raw, ok := week[weekday.String()]
	if !ok || strings.TrimSpace(raw) == "" {
		return "not listed"
	}
	if iv, err := ParseInterval(raw); err == nil && iv.ClosedAllDay() {
		return "closed"
	}
	return raw
}

func parseMinutes(raw string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return 0, fmt.Errorf("missing ':' in %q", raw)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, err
	}
	// 24:00 is accepted as an end-of-day close.
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("out of range %q", raw)
	}
	return h*60 + m, nil
}

func formatMinutes(m int) string {
	m %= 24 * 60
	return fmt.Sprintf("%d:%02d", m/60, m%60)
}
