package rules

import (
	"encoding/json"
	"fmt"
	"time"
)

// RecurrenceKind defines how often an obligation repeats.
type RecurrenceKind string

const (
	RecurrenceMonthly     RecurrenceKind = "monthly"
	RecurrenceSemiMonthly RecurrenceKind = "semi_monthly"
	RecurrenceQuarterly   RecurrenceKind = "quarterly"
	RecurrenceAnnual      RecurrenceKind = "annual"
)

// Recurrence describes how often a rule's obligation recurs. Semi-monthly obligations occur
// twice per month; the event tag (e.g. "advance", "salary") distinguishes
// the two occurrences and is part of the period key.
type Recurrence struct {
	Kind  RecurrenceKind `json:"kind"`
	Event string         `json:"event,omitempty"`
}

// ParseRecurrence parses and validates a stored recurrence shape.
func ParseRecurrence(raw json.RawMessage) (Recurrence, error) {
	var r Recurrence
	if len(raw) == 0 {
		return r, fmt.Errorf("recurrence is empty")
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return r, fmt.Errorf("recurrence is not valid: %w", err)
	}

	switch r.Kind {
	case RecurrenceMonthly, RecurrenceQuarterly, RecurrenceAnnual:
		return r, nil
	case RecurrenceSemiMonthly:
		if r.Event == "" {
			return r, fmt.Errorf("semi_monthly recurrence requires an event tag")
		}
		return r, nil
	default:
		return r, fmt.Errorf("unknown recurrence kind %q", r.Kind)
	}
}

// Label returns the human-readable recurrence label copied onto generated
// tasks.
func (r Recurrence) Label() string {
	if r.Kind == RecurrenceSemiMonthly {
		return string(r.Kind) + ":" + r.Event
	}
	return string(r.Kind)
}

// Period is one occurrence window of a recurrence. The key is a stable
// string (2026-01, 2026-01-advance, 2026-Q1, 2026) that forms part of the
// generation idempotency key.
type Period struct {
	Key   string
	Start time.Time
	End   time.Time
}

// Enumerate returns the ordered, deduplicated periods of the recurrence
// that intersect the closed date range [from, to]. All dates are UTC
// calendar dates; the result is deterministic.
func (r Recurrence) Enumerate(from, to time.Time) []Period {
	from = toUTCDate(from)
	to = toUTCDate(to)
	if to.Before(from) {
		return nil
	}

	switch r.Kind {
	case RecurrenceMonthly, RecurrenceSemiMonthly:
		return r.enumerateMonths(from, to)
	case RecurrenceQuarterly:
		return r.enumerateQuarters(from, to)
	case RecurrenceAnnual:
		return r.enumerateYears(from, to)
	default:
		return nil
	}
}

func (r Recurrence) enumerateMonths(from, to time.Time) []Period {
	var periods []Period
	cursor := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cursor.After(to) {
		start := cursor
		end := cursor.AddDate(0, 1, -1)
		key := fmt.Sprintf("%04d-%02d", start.Year(), int(start.Month()))
		if r.Kind == RecurrenceSemiMonthly {
			key = key + "-" + r.Event
		}
		periods = append(periods, Period{Key: key, Start: start, End: end})
		cursor = cursor.AddDate(0, 1, 0)
	}
	return periods
}

func (r Recurrence) enumerateQuarters(from, to time.Time) []Period {
	var periods []Period
	startMonth := time.Month(((int(from.Month())-1)/3)*3 + 1)
	cursor := time.Date(from.Year(), startMonth, 1, 0, 0, 0, 0, time.UTC)
	for !cursor.After(to) {
		start := cursor
		end := cursor.AddDate(0, 3, -1)
		quarter := (int(start.Month())-1)/3 + 1
		key := fmt.Sprintf("%04d-Q%d", start.Year(), quarter)
		periods = append(periods, Period{Key: key, Start: start, End: end})
		cursor = cursor.AddDate(0, 3, 0)
	}
	return periods
}

func (r Recurrence) enumerateYears(from, to time.Time) []Period {
	var periods []Period
	cursor := time.Date(from.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	for !cursor.After(to) {
		start := cursor
		end := cursor.AddDate(1, 0, -1)
		key := fmt.Sprintf("%04d", start.Year())
		periods = append(periods, Period{Key: key, Start: start, End: end})
		cursor = cursor.AddDate(1, 0, 0)
	}
	return periods
}

// toUTCDate strips the time-of-day and timezone so all period arithmetic
// happens on UTC calendar dates, avoiding drift across tenant timezones.
func toUTCDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
