package booking

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	hoursx "github.com/tanpawarit/bitebot/agent/hours"
)

const DateLayout = "2006-01-02"

var (
	weekdayRe  = regexp.MustCompile(`^(?:(this|next|on|coming|this coming)\s+)?([a-z]+)$`)
	inDaysRe   = regexp.MustCompile(`^in\s+(\d+|a|an|one|two|three)\s+(day|days|week|weeks)$`)
	clockRe    = regexp.MustCompile(`^(\d{1,2})(?:[:.](\d{2}))?\s*(a\.?m\.?|p\.?m\.?)?$`)
	trimSuffix = ".,!?"

	weekdays = map[string]time.Weekday{
		"sunday": time.Sunday, "sun": time.Sunday,
		"monday": time.Monday, "mon": time.Monday,
		"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
		"wednesday": time.Wednesday, "wed": time.Wednesday,
		"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday,
		"friday": time.Friday, "fri": time.Friday,
		"saturday": time.Saturday, "sat": time.Saturday,
	}

	smallNumbers = map[string]int{"a": 1, "an": 1, "one": 1, "two": 2, "three": 3}

	fullDateLayouts = []string{
		DateLayout,
		"2006/01/02",
		"01/02/2006",
		"1/2/2006",
		"January 2, 2006",
		"January 2 2006",
		"Jan 2, 2006",
		"Jan 2 2006",
		"2 January 2006",
		"Monday, January 2, 2006",
	}
	yearlessLayouts = []string{
		"January 2",
		"Jan 2",
		"2 January",
		"2 Jan",
		"1/2",
	}

	fallbackParser = newFallbackParser()
)

func newFallbackParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// ParseDate resolves a natural language date relative to now. Ambiguous
// references resolve to the nearest future occurrence. The result is
// midnight in now's location.
func ParseDate(expr string, now time.Time) (time.Time, bool) {
	text := normalize(expr)
	if text == "" {
		return time.Time{}, false
	}
	today := midnight(now)

	switch text {
	case "today", "tonight", "this evening", "this afternoon", "now":
		return today, true
	case "tomorrow", "tmrw", "tomorrow night", "tomorrow evening":
		return today.AddDate(0, 0, 1), true
	case "day after tomorrow", "the day after tomorrow":
		return today.AddDate(0, 0, 2), true
	case "next week":
		return today.AddDate(0, 0, 7), true
	}

	if m := inDaysRe.FindStringSubmatch(text); m != nil {
		n, ok := smallNumbers[m[1]]
		if !ok {
			v, err := strconv.Atoi(m[1])
			if err != nil {
				return time.Time{}, false
			}
			n = v
		}
		if strings.HasPrefix(m[2], "week") {
			n *= 7
		}
		return today.AddDate(0, 0, n), true
	}

	for _, suffix := range []string{" night", " evening", " afternoon", " lunch", " dinner"} {
		text = strings.TrimSuffix(text, suffix)
	}
	if m := weekdayRe.FindStringSubmatch(text); m != nil {
		if wd, ok := weekdays[m[2]]; ok {
			delta := (int(wd) - int(today.Weekday()) + 7) % 7
			if m[1] == "next" && delta == 0 {
				delta = 7
			}
			return today.AddDate(0, 0, delta), true
		}
	}

	raw := titleCase(text)
	for _, layout := range fullDateLayouts {
		if t, err := time.ParseInLocation(layout, raw, now.Location()); err == nil {
			return t, true
		}
	}
	for _, layout := range yearlessLayouts {
		t, err := time.ParseInLocation(layout, raw, now.Location())
		if err != nil {
			continue
		}
		t = time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location())
		if t.Before(today) {
			t = t.AddDate(1, 0, 0)
		}
		return t, true
	}

	r, err := fallbackParser.Parse(text, now)
	if err != nil || r == nil {
		return time.Time{}, false
	}
	return midnight(r.Time.In(now.Location())), true
}

// ParseClock reads a time of day such as "7pm", "7:30 p.m.", "19:00",
// "noon" or "midnight".
func ParseClock(expr string) (hoursx.Clock, bool) {
	text := normalize(expr)
	switch text {
	case "":
		return hoursx.Clock{}, false
	case "noon", "midday", "12 noon":
		return hoursx.Clock{Hour: 12}, true
	case "midnight":
		return hoursx.Clock{}, true
	}

	m := clockRe.FindStringSubmatch(text)
	if m == nil {
		return hoursx.Clock{}, false
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return hoursx.Clock{}, false
	}
	minute := 0
	if m[2] != "" {
		if minute, err = strconv.Atoi(m[2]); err != nil {
			return hoursx.Clock{}, false
		}
	}

	meridiem := strings.ReplaceAll(m[3], ".", "")
	switch meridiem {
	case "am", "pm":
		if hour < 1 || hour > 12 {
			return hoursx.Clock{}, false
		}
		if hour == 12 {
			hour = 0
		}
		if meridiem == "pm" {
			hour += 12
		}
	}

	c := hoursx.Clock{Hour: hour, Minute: minute}
	if !c.Valid() {
		return hoursx.Clock{}, false
	}
	return c, true
}

// FormatDate renders "2006-01-02" as "Friday, October 16, 2026".
func FormatDate(date string) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("Monday, January 2, 2006")
}

// FormatClock renders "19:00" as "7:00 PM".
func FormatClock(clock string) string {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return clock
	}
	return t.Format("3:04 PM")
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func normalize(expr string) string {
	text := strings.ToLower(strings.TrimSpace(expr))
	text = strings.TrimRight(text, trimSuffix)
	text = strings.TrimPrefix(text, "at ")
	return strings.Join(strings.Fields(text), " ")
}

func titleCase(text string) string {
	words := strings.Fields(text)
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
