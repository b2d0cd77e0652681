package models

import (
	"time"

	"github.com/Ramsey-B/sage/pkg/database"
)

// Client is the engine's read view of a practice client. The registry
// connectors that populate these attributes are external to sage; the
// engine only ever reads them.
type Client struct {
	ID                string                   `json:"id" db:"id"`
	TenantID          string                   `json:"tenant_id" db:"tenant_id"`
	Name              string                   `json:"name" db:"name"`
	ClientType        string                   `json:"client_type" db:"client_type"`
	Status            string                   `json:"status" db:"status"`
	TaxRegime         string                   `json:"tax_regime" db:"tax_regime"`
	VATRegistered     bool                     `json:"vat_registered" db:"vat_registered"`
	EmployeeCount     int                      `json:"employee_count" db:"employee_count"`
	Tags              database.JSONB[[]string] `json:"tags" db:"tags"`
	Timezone          string                   `json:"timezone" db:"timezone"`
	PayrollAdvanceDay int                      `json:"payroll_advance_day" db:"payroll_advance_day"`
	PayrollFinalDay   int                      `json:"payroll_final_day" db:"payroll_final_day"`
	ArchivedAt        *time.Time               `json:"archived_at,omitempty" db:"archived_at"`
	CreatedAt         time.Time                `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time                `json:"updated_at" db:"updated_at"`
}

// ClientAssignment links a staff member to a client, optionally as the
// primary accountant.
type ClientAssignment struct {
	TenantID  string `json:"tenant_id" db:"tenant_id"`
	ClientID  string `json:"client_id" db:"client_id"`
	StaffID   string `json:"staff_id" db:"staff_id"`
	IsPrimary bool   `json:"is_primary" db:"is_primary"`
}

// ClientProfile is the normalized, derived view of a client that condition
// evaluation and due-date resolution understand. It is never stored.
type ClientProfile struct {
	ClientID          string
	ClientType        string
	Status            string
	TaxRegime         string
	VATRegistered     bool
	EmployeeCount     int
	HasEmployees      bool
	Tags              []string
	Timezone          string
	PayrollAdvanceDay int
	PayrollFinalDay   int
}

// Field resolves a canonical attribute name to its value for condition
// evaluation. Unknown names report not-found so the evaluator can fail
// closed.
func (p ClientProfile) Field(name string) (any, bool) {
	switch name {
	case "client_type":
		return p.ClientType, true
	case "status":
		return p.Status, true
	case "tax_regime":
		return p.TaxRegime, true
	case "vat_registered":
		return p.VATRegistered, true
	case "employee_count":
		return p.EmployeeCount, true
	case "has_employees":
		return p.HasEmployees, true
	case "tags":
		return p.Tags, true
	case "timezone":
		return p.Timezone, true
	case "payroll_advance_day":
		return p.PayrollAdvanceDay, true
	case "payroll_final_day":
		return p.PayrollFinalDay, true
	default:
		return nil, false
	}
}
