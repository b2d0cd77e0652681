package rules

import (
	"encoding/json"
	"fmt"
	"time"
)

// DueKind selects the calculation that turns a period into a due date.
type DueKind string

const (
	DueDayOfMonth         DueKind = "day_of_month"
	DueBusinessDayOfMonth DueKind = "business_day_of_month"
	DueProfileDayOfMonth  DueKind = "profile_day_of_month"
	DueDaysAfterPeriodEnd DueKind = "days_after_period_end"
	DueFixedDate          DueKind = "fixed_date"
)

// ShiftStrategy adjusts a nominal date off weekends and holidays.
type ShiftStrategy string

const (
	ShiftNone ShiftStrategy = "none"
	ShiftPrev ShiftStrategy = "prev_business_day"
	ShiftNext ShiftStrategy = "next_business_day"
)

// Profile day selectors for profile_day_of_month policies.
const (
	ProfileDayAdvance = "advance"
	ProfileDayFinal   = "final"
)

// DuePolicy is a rule's due-date calculation.
type DuePolicy struct {
	Kind        DueKind       `json:"kind"`
	Day         int           `json:"day,omitempty"`          // day_of_month, business_day_of_month, fixed_date
	MonthOffset int           `json:"month_offset,omitempty"` // signed offset from the period's start month
	ProfileDay  string        `json:"profile_day,omitempty"`  // "advance" or "final"
	Days        int           `json:"days,omitempty"`         // days_after_period_end
	Month       time.Month    `json:"month,omitempty"`        // fixed_date
	Shift       ShiftStrategy `json:"shift,omitempty"`
}

// ParseDuePolicy parses and validates a stored due-date policy. All shape
// validation happens here so Resolve stays total.
func ParseDuePolicy(raw json.RawMessage) (DuePolicy, error) {
	var p DuePolicy
	if len(raw) == 0 {
		return p, fmt.Errorf("due policy is empty")
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("due policy is not valid: %w", err)
	}

	if p.Shift == "" {
		p.Shift = ShiftNone
	}
	switch p.Shift {
	case ShiftNone, ShiftPrev, ShiftNext:
	default:
		return p, fmt.Errorf("unknown shift strategy %q", p.Shift)
	}

	switch p.Kind {
	case DueDayOfMonth, DueBusinessDayOfMonth:
		if p.Day < 1 || p.Day > 31 {
			return p, fmt.Errorf("%s requires day in 1..31, got %d", p.Kind, p.Day)
		}
	case DueProfileDayOfMonth:
		if p.ProfileDay != ProfileDayAdvance && p.ProfileDay != ProfileDayFinal {
			return p, fmt.Errorf("profile_day_of_month requires profile_day advance|final, got %q", p.ProfileDay)
		}
	case DueDaysAfterPeriodEnd:
		if p.Days < 0 {
			return p, fmt.Errorf("days_after_period_end requires days >= 0, got %d", p.Days)
		}
	case DueFixedDate:
		if p.Month < time.January || p.Month > time.December {
			return p, fmt.Errorf("fixed_date requires month in 1..12, got %d", p.Month)
		}
		if p.Day < 1 || p.Day > 31 {
			return p, fmt.Errorf("fixed_date requires day in 1..31, got %d", p.Day)
		}
	default:
		return p, fmt.Errorf("unknown due policy kind %q", p.Kind)
	}

	return p, nil
}

// DueContext carries the client- and tenant-specific inputs the resolver
// needs: the holiday calendar and the client's payroll days.
type DueContext struct {
	Holidays          HolidaySet
	PayrollAdvanceDay int
	PayrollFinalDay   int
}

// Resolve computes the concrete due date for one period. The nominal date
// is clamped to the last valid day of its month, then shifted off weekends
// and holidays per the policy's strategy. An error means the policy cannot
// produce a date for this client (e.g. a profile day the client never set)
// and the caller treats the rule as not actionable for the period.
func (p DuePolicy) Resolve(period Period, ctx DueContext) (time.Time, error) {
	var nominal time.Time

	switch p.Kind {
	case DueDayOfMonth, DueBusinessDayOfMonth:
		nominal = dayOfMonth(period.Start, p.MonthOffset, p.Day)

	case DueProfileDayOfMonth:
		day := ctx.PayrollAdvanceDay
		if p.ProfileDay == ProfileDayFinal {
			day = ctx.PayrollFinalDay
		}
		if day < 1 {
			return time.Time{}, fmt.Errorf("client has no payroll %s day configured", p.ProfileDay)
		}
		nominal = dayOfMonth(period.Start, p.MonthOffset, day)

	case DueDaysAfterPeriodEnd:
		nominal = period.End.AddDate(0, 0, p.Days)

	case DueFixedDate:
		nominal = clampedDate(period.Start.Year(), p.Month, p.Day)

	default:
		return time.Time{}, fmt.Errorf("unknown due policy kind %q", p.Kind)
	}

	return p.shift(nominal, ctx.Holidays), nil
}

func (p DuePolicy) shift(date time.Time, holidays HolidaySet) time.Time {
	if p.Shift == ShiftNone {
		return date
	}

	step := 1
	if p.Shift == ShiftPrev {
		step = -1
	}
	for !isBusinessDay(date, holidays) {
		date = date.AddDate(0, 0, step)
	}
	return date
}

func isBusinessDay(date time.Time, holidays HolidaySet) bool {
	wd := date.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !holidays.Contains(date)
}

// dayOfMonth builds the date at the given day of (period start month +
// offset), clamping to the month's last valid day rather than overflowing
// into the next month.
func dayOfMonth(periodStart time.Time, monthOffset, day int) time.Time {
	anchor := periodStart.AddDate(0, monthOffset, 0)
	return clampedDate(anchor.Year(), anchor.Month(), day)
}

func clampedDate(year int, month time.Month, day int) time.Time {
	last := daysInMonth(year, month)
	if day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func daysInMonth(year int, month time.Month) int {
	// day 0 of the next month is the last day of this month
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// HolidaySet is a set of public-holiday calendar dates, compared by
// year/month/day only.
type HolidaySet map[string]struct{}

// NewHolidaySet builds a holiday set from a list of dates.
func NewHolidaySet(dates []time.Time) HolidaySet {
	set := make(HolidaySet, len(dates))
	for _, d := range dates {
		set[d.UTC().Format("2006-01-02")] = struct{}{}
	}
	return set
}

// Contains reports whether the date's calendar day is a listed holiday.
func (s HolidaySet) Contains(date time.Time) bool {
	if len(s) == 0 {
		return false
	}
	_, ok := s[date.UTC().Format("2006-01-02")]
	return ok
}
