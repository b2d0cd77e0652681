package rules

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func periodKeys(periods []Period) []string {
	keys := make([]string, 0, len(periods))
	for _, p := range periods {
		keys = append(keys, p.Key)
	}
	return keys
}

func TestParseRecurrence(t *testing.T) {
	t.Run("monthly", func(t *testing.T) {
		r, err := ParseRecurrence(json.RawMessage(`{"kind": "monthly"}`))
		require.NoError(t, err)
		assert.Equal(t, RecurrenceMonthly, r.Kind)
		assert.Equal(t, "monthly", r.Label())
	})

	t.Run("semi monthly requires event", func(t *testing.T) {
		_, err := ParseRecurrence(json.RawMessage(`{"kind": "semi_monthly"}`))
		assert.Error(t, err)

		r, err := ParseRecurrence(json.RawMessage(`{"kind": "semi_monthly", "event": "advance"}`))
		require.NoError(t, err)
		assert.Equal(t, "semi_monthly:advance", r.Label())
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := ParseRecurrence(json.RawMessage(`{"kind": "weekly"}`))
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ParseRecurrence(nil)
		assert.Error(t, err)
	})
}

func TestRecurrence_Enumerate(t *testing.T) {
	t.Run("monthly covers every month the range touches", func(t *testing.T) {
		r := Recurrence{Kind: RecurrenceMonthly}
		periods := r.Enumerate(date(2026, time.January, 10), date(2026, time.March, 5))

		require.Len(t, periods, 3)
		assert.Equal(t, []string{"2026-01", "2026-02", "2026-03"}, periodKeys(periods))
		assert.Equal(t, date(2026, time.January, 1), periods[0].Start)
		assert.Equal(t, date(2026, time.January, 31), periods[0].End)
		assert.Equal(t, date(2026, time.February, 28), periods[1].End)
	})

	t.Run("semi monthly keys carry the event", func(t *testing.T) {
		r := Recurrence{Kind: RecurrenceSemiMonthly, Event: "advance"}
		periods := r.Enumerate(date(2026, time.January, 1), date(2026, time.January, 31))

		require.Len(t, periods, 1)
		assert.Equal(t, "2026-01-advance", periods[0].Key)
	})

	t.Run("two events of one month are distinct periods", func(t *testing.T) {
		advance := Recurrence{Kind: RecurrenceSemiMonthly, Event: "advance"}
		final := Recurrence{Kind: RecurrenceSemiMonthly, Event: "final"}

		a := advance.Enumerate(date(2026, time.January, 1), date(2026, time.January, 31))
		f := final.Enumerate(date(2026, time.January, 1), date(2026, time.January, 31))
		require.Len(t, a, 1)
		require.Len(t, f, 1)
		assert.NotEqual(t, a[0].Key, f[0].Key)
	})

	t.Run("quarterly", func(t *testing.T) {
		r := Recurrence{Kind: RecurrenceQuarterly}
		periods := r.Enumerate(date(2025, time.November, 20), date(2026, time.April, 2))

		assert.Equal(t, []string{"2025-Q4", "2026-Q1", "2026-Q2"}, periodKeys(periods))
		assert.Equal(t, date(2026, time.January, 1), periods[1].Start)
		assert.Equal(t, date(2026, time.March, 31), periods[1].End)
	})

	t.Run("annual", func(t *testing.T) {
		r := Recurrence{Kind: RecurrenceAnnual}
		periods := r.Enumerate(date(2025, time.June, 1), date(2026, time.February, 1))

		assert.Equal(t, []string{"2025", "2026"}, periodKeys(periods))
		assert.Equal(t, date(2026, time.December, 31), periods[1].End)
	})

	t.Run("inverted range yields nothing", func(t *testing.T) {
		r := Recurrence{Kind: RecurrenceMonthly}
		assert.Empty(t, r.Enumerate(date(2026, time.March, 1), date(2026, time.January, 1)))
	})

	t.Run("timezones and clock times are ignored", func(t *testing.T) {
		r := Recurrence{Kind: RecurrenceMonthly}
		riga, err := time.LoadLocation("Europe/Riga")
		require.NoError(t, err)

		periods := r.Enumerate(
			time.Date(2026, time.January, 10, 23, 45, 0, 0, riga),
			time.Date(2026, time.March, 5, 1, 0, 0, 0, riga),
		)
		assert.Equal(t, []string{"2026-01", "2026-02", "2026-03"}, periodKeys(periods))
	})

	t.Run("enumeration is deterministic", func(t *testing.T) {
		r := Recurrence{Kind: RecurrenceQuarterly}
		first := r.Enumerate(date(2025, time.January, 1), date(2026, time.December, 31))
		second := r.Enumerate(date(2025, time.January, 1), date(2026, time.December, 31))
		assert.Equal(t, first, second)
	})
}
