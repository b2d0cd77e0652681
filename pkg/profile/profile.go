// Package profile normalizes raw client records into the derived view the
// rule engine evaluates conditions against.
package profile

import (
	"sort"
	"strings"

	"github.com/Ramsey-B/sage/pkg/models"
)

// Normalize builds the evaluation profile for a client. String attributes
// are lowercased, tags are deduplicated, and the derived attributes
// (has_employees plus the vat/employees tags) are computed here so rules
// can match on them without re-deriving.
func Normalize(client models.Client) models.ClientProfile {
	profile := models.ClientProfile{
		ClientID:          client.ID,
		ClientType:        strings.ToLower(strings.TrimSpace(client.ClientType)),
		Status:            strings.ToLower(strings.TrimSpace(client.Status)),
		TaxRegime:         strings.ToLower(strings.TrimSpace(client.TaxRegime)),
		VATRegistered:     client.VATRegistered,
		EmployeeCount:     client.EmployeeCount,
		HasEmployees:      client.EmployeeCount > 0,
		Timezone:          client.Timezone,
		PayrollAdvanceDay: client.PayrollAdvanceDay,
		PayrollFinalDay:   client.PayrollFinalDay,
	}

	seen := make(map[string]struct{})
	for _, tag := range client.Tags.GetValue() {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		seen[tag] = struct{}{}
	}
	if client.VATRegistered {
		seen["vat"] = struct{}{}
	}
	if profile.HasEmployees {
		seen["employees"] = struct{}{}
	}

	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	profile.Tags = tags

	return profile
}
