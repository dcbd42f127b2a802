package model

// CompanionTemplate is a catalog item a rule proposes when it fires.
type CompanionTemplate struct {
	Code   string `json:"code" yaml:"code"`
	Name   string `json:"name" yaml:"name"`
	Unit   string `json:"unit" yaml:"unit"`
	Reason string `json:"reason" yaml:"reason"`
}

// CompanionRule emits technologically required items for matching confirmed items.
type CompanionRule struct {
	ID        string              `json:"id" yaml:"id"`
	Name      string              `json:"name" yaml:"name"`
	Trigger   string              `json:"trigger" yaml:"trigger"`
	Generates []CompanionTemplate `json:"generates" yaml:"generates"`
}

// ConfirmedItem is an accepted match the rule engine looks at.
type ConfirmedItem struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CompanionItem is a companion proposal with traceability back to its rule.
type CompanionItem struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Unit       string `json:"unit"`
	Reason     string `json:"reason"`
	RuleID     string `json:"rule_id"`
	SourceCode string `json:"source_code"`
}
