package rules

import (
	"github.com/Ramsey-B/sage/pkg/models"
)

// EffectiveRule is the result of merging a base rule with an optional
// per-client override: the parsed, actionable shapes generation runs with.
type EffectiveRule struct {
	Rule       models.Rule
	Enabled    bool
	Condition  ConditionNode
	Recurrence Recurrence
	DuePolicy  DuePolicy
	Template   TaskTemplate
}

// MergeOverride combines a rule with a client's override, if any. The
// returned bool reports whether the rule is actionable for this client:
// false means one of the effective shapes did not parse and the rule is
// silently excluded from generation (a configuration miss, not an error).
//
// Merge semantics: with no override the rule is enabled as authored. With
// an override, is_enabled wins outright; the override's due rule and task
// template replace the base ones only when present and well-formed,
// otherwise the base values are kept. An override can never fabricate a
// due policy or template where the base rule defines none; the base
// shapes must parse regardless.
func MergeOverride(rule models.Rule, override *models.RuleOverride) (EffectiveRule, bool) {
	condition, err := ParseCondition(rule.MatchCondition)
	if err != nil {
		return EffectiveRule{}, false
	}
	recurrence, err := ParseRecurrence(rule.Recurrence)
	if err != nil {
		return EffectiveRule{}, false
	}
	duePolicy, err := ParseDuePolicy(rule.DueRule)
	if err != nil {
		return EffectiveRule{}, false
	}
	template, err := ParseTemplate(rule.TaskTemplate)
	if err != nil {
		return EffectiveRule{}, false
	}

	effective := EffectiveRule{
		Rule:       rule,
		Enabled:    true,
		Condition:  condition,
		Recurrence: recurrence,
		DuePolicy:  duePolicy,
		Template:   template,
	}

	if override == nil {
		return effective, true
	}

	effective.Enabled = override.IsEnabled

	if len(override.DueRule) > 0 {
		if p, err := ParseDuePolicy(override.DueRule); err == nil {
			effective.DuePolicy = p
		}
	}
	if len(override.TaskTemplate) > 0 {
		if t, err := ParseTemplate(override.TaskTemplate); err == nil {
			effective.Template = t
		}
	}

	return effective, true
}
