package generation

import (
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/rules"
)

// assigneeIndex resolves task owners from the tenant's assignments and
// staff directory, loaded once per run.
type assigneeIndex struct {
	primaryByClient map[string]string
	byClient        map[string][]string
	firstAdmin      string
	firstAccountant string
	activeStaff     map[string]struct{}
	accountants     map[string]struct{}
}

func newAssigneeIndex(assignments []models.ClientAssignment, staff []models.StaffProfile) *assigneeIndex {
	idx := &assigneeIndex{
		primaryByClient: make(map[string]string),
		byClient:        make(map[string][]string),
		activeStaff:     make(map[string]struct{}),
		accountants:     make(map[string]struct{}),
	}

	for _, s := range staff {
		if !s.IsActive {
			continue
		}
		idx.activeStaff[s.ID] = struct{}{}
		switch s.Role {
		case models.StaffRoleAccountant:
			idx.accountants[s.ID] = struct{}{}
			if idx.firstAccountant == "" {
				idx.firstAccountant = s.ID
			}
		case models.StaffRoleAdmin:
			if idx.firstAdmin == "" {
				idx.firstAdmin = s.ID
			}
		}
	}

	for _, a := range assignments {
		if _, ok := idx.accountants[a.StaffID]; !ok {
			continue
		}
		if a.IsPrimary {
			if _, taken := idx.primaryByClient[a.ClientID]; !taken {
				idx.primaryByClient[a.ClientID] = a.StaffID
			}
		}
		idx.byClient[a.ClientID] = append(idx.byClient[a.ClientID], a.StaffID)
	}

	return idx
}

// Resolve picks the task owner for one candidate. Resolution order:
// explicit template assignee, the client's primary accountant, any
// accountant assigned to the client, the template's fallback id, a tenant
// admin, any active accountant. The returned bool is false when nothing
// resolves and the candidate must be skipped.
func (idx *assigneeIndex) Resolve(template rules.TaskTemplate, clientID string) (string, bool) {
	if template.AssigneeMode == rules.AssigneeModeExplicit && template.AssigneeID != "" {
		return template.AssigneeID, true
	}

	if primary, ok := idx.primaryByClient[clientID]; ok {
		return primary, true
	}
	if assigned := idx.byClient[clientID]; len(assigned) > 0 {
		return assigned[0], true
	}
	if template.FallbackAssigneeID != "" {
		return template.FallbackAssigneeID, true
	}
	if idx.firstAdmin != "" {
		return idx.firstAdmin, true
	}
	if idx.firstAccountant != "" {
		return idx.firstAccountant, true
	}

	return "", false
}
