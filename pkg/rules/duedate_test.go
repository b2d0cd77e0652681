package rules

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParseDuePolicy(t *testing.T, raw string) DuePolicy {
	t.Helper()
	p, err := ParseDuePolicy(json.RawMessage(raw))
	require.NoError(t, err)
	return p
}

func monthPeriod(year int, month time.Month) Period {
	start := date(year, month, 1)
	return Period{
		Key:   start.Format("2006-01"),
		Start: start,
		End:   start.AddDate(0, 1, -1),
	}
}

func TestParseDuePolicy(t *testing.T) {
	t.Run("rejects unknown kind", func(t *testing.T) {
		_, err := ParseDuePolicy(json.RawMessage(`{"kind": "lunar"}`))
		assert.Error(t, err)
	})

	t.Run("rejects day out of range", func(t *testing.T) {
		_, err := ParseDuePolicy(json.RawMessage(`{"kind": "day_of_month", "day": 0}`))
		assert.Error(t, err)
		_, err = ParseDuePolicy(json.RawMessage(`{"kind": "day_of_month", "day": 32}`))
		assert.Error(t, err)
	})

	t.Run("rejects unknown shift", func(t *testing.T) {
		_, err := ParseDuePolicy(json.RawMessage(`{"kind": "day_of_month", "day": 15, "shift": "nearest"}`))
		assert.Error(t, err)
	})

	t.Run("shift defaults to none", func(t *testing.T) {
		p := mustParseDuePolicy(t, `{"kind": "day_of_month", "day": 15}`)
		assert.Equal(t, ShiftNone, p.Shift)
	})

	t.Run("profile day must be advance or final", func(t *testing.T) {
		_, err := ParseDuePolicy(json.RawMessage(`{"kind": "profile_day_of_month", "profile_day": "middle"}`))
		assert.Error(t, err)
	})

	t.Run("fixed date needs month and day", func(t *testing.T) {
		_, err := ParseDuePolicy(json.RawMessage(`{"kind": "fixed_date", "day": 30}`))
		assert.Error(t, err)
	})
}

func TestDuePolicy_Resolve(t *testing.T) {
	t.Run("day of month", func(t *testing.T) {
		p := mustParseDuePolicy(t, `{"kind": "day_of_month", "day": 20}`)
		due, err := p.Resolve(monthPeriod(2026, time.January), DueContext{})
		require.NoError(t, err)
		assert.Equal(t, date(2026, time.January, 20), due)
	})

	t.Run("month offset moves the anchor month", func(t *testing.T) {
		p := mustParseDuePolicy(t, `{"kind": "day_of_month", "day": 20, "month_offset": 1}`)
		due, err := p.Resolve(monthPeriod(2026, time.January), DueContext{})
		require.NoError(t, err)
		assert.Equal(t, date(2026, time.February, 20), due)
	})

	t.Run("day 31 clamps to the last day of february", func(t *testing.T) {
		p := mustParseDuePolicy(t, `{"kind": "day_of_month", "day": 31}`)
		due, err := p.Resolve(monthPeriod(2026, time.February), DueContext{})
		require.NoError(t, err)
		assert.Equal(t, date(2026, time.February, 28), due)

		due, err = p.Resolve(monthPeriod(2028, time.February), DueContext{})
		require.NoError(t, err)
		assert.Equal(t, date(2028, time.February, 29), due)
	})

	t.Run("prev business day walks weekend backwards", func(t *testing.T) {
		// 2026-03-15 is a Sunday.
		p := mustParseDuePolicy(t, `{"kind": "day_of_month", "day": 15, "shift": "prev_business_day"}`)
		due, err := p.Resolve(monthPeriod(2026, time.March), DueContext{})
		require.NoError(t, err)
		assert.Equal(t, date(2026, time.March, 13), due)
	})

	t.Run("next business day walks weekend forwards", func(t *testing.T) {
		p := mustParseDuePolicy(t, `{"kind": "day_of_month", "day": 15, "shift": "next_business_day"}`)
		due, err := p.Resolve(monthPeriod(2026, time.March), DueContext{})
		require.NoError(t, err)
		assert.Equal(t, date(2026, time.March, 16), due)
	})

	t.Run("shift skips holidays too", func(t *testing.T) {
		// 2026-03-13 is a Friday; declaring it a holiday pushes the
		// prev shift back to Thursday the 12th.
		p := mustParseDuePolicy(t, `{"kind": "day_of_month", "day": 15, "shift": "prev_business_day"}`)
		ctx := DueContext{Holidays: NewHolidaySet([]time.Time{date(2026, time.March, 13)})}
		due, err := p.Resolve(monthPeriod(2026, time.March), ctx)
		require.NoError(t, err)
		assert.Equal(t, date(2026, time.March, 12), due)
	})

	t.Run("no shift keeps the nominal date even on weekends", func(t *testing.T) {
		p := mustParseDuePolicy(t, `{"kind": "day_of_month", "day": 15}`)
		due, err := p.Resolve(monthPeriod(2026, time.March), DueContext{})
		require.NoError(t, err)
		assert.Equal(t, date(2026, time.March, 15), due)
	})

	t.Run("days after period end crosses month boundaries", func(t *testing.T) {
		p := mustParseDuePolicy(t, `{"kind": "days_after_period_end", "days": 40}`)
		q1 := Period{Key: "2026-Q1", Start: date(2026, time.January, 1), End: date(2026, time.March, 31)}
		due, err := p.Resolve(q1, DueContext{})
		require.NoError(t, err)
		assert.Equal(t, date(2026, time.May, 10), due)
	})

	t.Run("fixed date uses the period start year", func(t *testing.T) {
		p := mustParseDuePolicy(t, `{"kind": "fixed_date", "month": 4, "day": 30}`)
		annual := Period{Key: "2026", Start: date(2026, time.January, 1), End: date(2026, time.December, 31)}
		due, err := p.Resolve(annual, DueContext{})
		require.NoError(t, err)
		assert.Equal(t, date(2026, time.April, 30), due)
	})

	t.Run("profile day reads the client payroll days", func(t *testing.T) {
		ctx := DueContext{PayrollAdvanceDay: 7, PayrollFinalDay: 22}

		p := mustParseDuePolicy(t, `{"kind": "profile_day_of_month", "profile_day": "advance"}`)
		due, err := p.Resolve(monthPeriod(2026, time.January), ctx)
		require.NoError(t, err)
		assert.Equal(t, date(2026, time.January, 7), due)

		p = mustParseDuePolicy(t, `{"kind": "profile_day_of_month", "profile_day": "final"}`)
		due, err = p.Resolve(monthPeriod(2026, time.January), ctx)
		require.NoError(t, err)
		assert.Equal(t, date(2026, time.January, 22), due)
	})

	t.Run("profile day unset is an error", func(t *testing.T) {
		p := mustParseDuePolicy(t, `{"kind": "profile_day_of_month", "profile_day": "advance"}`)
		_, err := p.Resolve(monthPeriod(2026, time.January), DueContext{})
		assert.Error(t, err)
	})
}

func TestHolidaySet(t *testing.T) {
	set := NewHolidaySet([]time.Time{date(2026, time.June, 23), date(2026, time.June, 24)})

	assert.True(t, set.Contains(date(2026, time.June, 23)))
	assert.True(t, set.Contains(time.Date(2026, time.June, 24, 15, 30, 0, 0, time.UTC)))
	assert.False(t, set.Contains(date(2026, time.June, 25)))
	assert.False(t, HolidaySet(nil).Contains(date(2026, time.June, 23)))
}
