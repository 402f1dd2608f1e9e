package domain

import "time"

// AlertRule is a CEL expression evaluated against detected anomalies.
// The expression must return bool; a true result raises an alert.
type AlertRule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Severity is advisory metadata carried into raised alerts:
	// "info", "warning", or "critical".
	Severity string `json:"severity"`

	Expression string `json:"expression"`
	Enabled    bool   `json:"enabled"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// AlertMatch records one rule that fired for an anomaly.
type AlertMatch struct {
	RuleID   string `json:"ruleId"`
	RuleName string `json:"ruleName"`
	Severity string `json:"severity"`

	// EvalError carries a per-rule evaluation failure; the rule counts as
	// not matched.
	EvalError string `json:"evalError,omitempty"`
}

// Alert rule severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)
