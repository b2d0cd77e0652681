package rules

import (
	"encoding/json"
	"fmt"
)

// AssigneeMode controls how the generated task's owner is chosen.
type AssigneeMode string

const (
	// AssigneeModeClientAccountant (the default) resolves the client's
	// primary accountant, then any assigned accountant, then fallbacks.
	AssigneeModeClientAccountant AssigneeMode = "client_accountant"
	// AssigneeModeExplicit pins the task to the template's assignee_id.
	AssigneeModeExplicit AssigneeMode = "explicit"
)

// TaskTemplate describes the task a rule materializes for each occurrence.
type TaskTemplate struct {
	Title              string       `json:"title"`
	Description        string       `json:"description,omitempty"`
	TaskType           string       `json:"task_type,omitempty"`
	Priority           string       `json:"priority,omitempty"`
	AssigneeMode       AssigneeMode `json:"assignee_mode,omitempty"`
	AssigneeID         string       `json:"assignee_id,omitempty"`
	FallbackAssigneeID string       `json:"fallback_assignee_id,omitempty"`
	RequiresProof      bool         `json:"requires_proof,omitempty"`
}

// ParseTemplate parses and validates a stored task template.
func ParseTemplate(raw json.RawMessage) (TaskTemplate, error) {
	var t TaskTemplate
	if len(raw) == 0 {
		return t, fmt.Errorf("task template is empty")
	}
	if err := json.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("task template is not valid: %w", err)
	}

	if t.Title == "" {
		return t, fmt.Errorf("task template requires a title")
	}

	if t.AssigneeMode == "" {
		t.AssigneeMode = AssigneeModeClientAccountant
	}
	switch t.AssigneeMode {
	case AssigneeModeClientAccountant:
	case AssigneeModeExplicit:
		if t.AssigneeID == "" {
			return t, fmt.Errorf("explicit assignee mode requires assignee_id")
		}
	default:
		return t, fmt.Errorf("unknown assignee mode %q", t.AssigneeMode)
	}

	if t.Priority == "" {
		t.Priority = "medium"
	}
	if t.TaskType == "" {
		t.TaskType = "compliance"
	}

	return t, nil
}
