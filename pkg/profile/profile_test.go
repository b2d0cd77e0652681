package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/models"
)

func TestNormalize(t *testing.T) {
	t.Run("lowercases and dedupes", func(t *testing.T) {
		client := models.Client{
			ID:         "client-1",
			ClientType: "Company",
			Status:     " Active ",
			TaxRegime:  "STANDARD",
			Tags:       database.JSONB[[]string]{Data: []string{"Construction", "construction", "  "}},
		}

		p := Normalize(client)
		assert.Equal(t, "company", p.ClientType)
		assert.Equal(t, "active", p.Status)
		assert.Equal(t, "standard", p.TaxRegime)
		assert.Equal(t, []string{"construction"}, p.Tags)
	})

	t.Run("derives vat and employees tags", func(t *testing.T) {
		client := models.Client{
			ID:            "client-2",
			VATRegistered: true,
			EmployeeCount: 3,
		}

		p := Normalize(client)
		assert.True(t, p.HasEmployees)
		assert.Equal(t, []string{"employees", "vat"}, p.Tags)
	})

	t.Run("no employees means no employees tag", func(t *testing.T) {
		p := Normalize(models.Client{ID: "client-3"})
		assert.False(t, p.HasEmployees)
		assert.Empty(t, p.Tags)
	})

	t.Run("payroll days carry through", func(t *testing.T) {
		p := Normalize(models.Client{ID: "client-4", PayrollAdvanceDay: 7, PayrollFinalDay: 22})
		assert.Equal(t, 7, p.PayrollAdvanceDay)
		assert.Equal(t, 22, p.PayrollFinalDay)
	})

	t.Run("tag ordering is stable", func(t *testing.T) {
		client := models.Client{
			ID:   "client-5",
			Tags: database.JSONB[[]string]{Data: []string{"zeta", "alpha", "mid"}},
		}
		assert.Equal(t, []string{"alpha", "mid", "zeta"}, Normalize(client).Tags)
	})
}
