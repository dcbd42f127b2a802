// Package pattern proposes companion items that a confirmed catalog item
// technologically requires, such as formwork for poured concrete.
package pattern

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Veraticus/katalog/internal/model"
)

// CompiledRule holds a compiled trigger with its rule.
type CompiledRule struct {
	trigger *regexp.Regexp
	model.CompanionRule
}

// Matches reports whether the rule fires for the text.
func (r CompiledRule) Matches(text string) bool {
	return r.trigger.MatchString(text)
}

// RuleEngine applies an ordered list of companion rules. It is read-only
// after construction and safe for concurrent use.
type RuleEngine struct {
	rules []CompiledRule
}

// NewRuleEngine compiles the rules. Triggers are matched case-insensitively.
func NewRuleEngine(rules []model.CompanionRule) (*RuleEngine, error) {
	compiled := make([]CompiledRule, 0, len(rules))
	seen := make(map[string]bool, len(rules))

	for i, rule := range rules {
		if rule.ID == "" {
			rule.ID = fmt.Sprintf("rule-%d", i+1)
		}
		if seen[rule.ID] {
			return nil, fmt.Errorf("duplicate rule id %q", rule.ID)
		}
		seen[rule.ID] = true

		if strings.TrimSpace(rule.Trigger) == "" {
			return nil, fmt.Errorf("rule %s has an empty trigger", rule.ID)
		}
		pattern := rule.Trigger
		if !strings.HasPrefix(pattern, "(?i)") {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to compile trigger of rule %s: %w", rule.ID, err)
		}

		for _, g := range rule.Generates {
			if strings.TrimSpace(g.Code) == "" {
				return nil, fmt.Errorf("rule %s generates an item without a code", rule.ID)
			}
		}

		compiled = append(compiled, CompiledRule{CompanionRule: rule, trigger: re})
	}

	return &RuleEngine{rules: compiled}, nil
}

// MustDefault returns an engine over DefaultRules.
func MustDefault() *RuleEngine {
	engine, err := NewRuleEngine(DefaultRules())
	if err != nil {
		panic(err)
	}
	return engine
}

// Rules returns the compiled rules in evaluation order.
func (e *RuleEngine) Rules() []CompiledRule {
	return append([]CompiledRule(nil), e.rules...)
}

// Apply proposes companion items for the confirmed items. A code is emitted
// at most once and never when it is already confirmed. When knownCodes is
// non-empty, codes outside it are dropped so no code is invented.
func (e *RuleEngine) Apply(confirmed []model.ConfirmedItem, knownCodes []string) []model.CompanionItem {
	seen := make(map[string]struct{}, len(confirmed))
	for _, item := range confirmed {
		seen[item.Code] = struct{}{}
	}

	var known map[string]struct{}
	if len(knownCodes) > 0 {
		known = make(map[string]struct{}, len(knownCodes))
		for _, code := range knownCodes {
			known[code] = struct{}{}
		}
	}

	var out []model.CompanionItem
	for _, item := range confirmed {
		text := strings.TrimSpace(item.Name + " " + item.Description)
		if text == "" {
			continue
		}

		for _, rule := range e.rules {
			if !rule.Matches(text) {
				continue
			}
			for _, g := range rule.Generates {
				if _, dup := seen[g.Code]; dup {
					continue
				}
				if known != nil {
					if _, ok := known[g.Code]; !ok {
						slog.Debug("dropped companion code missing from catalog",
							"rule", rule.ID,
							"code", g.Code,
							"source", item.Code)
						continue
					}
				}
				seen[g.Code] = struct{}{}
				out = append(out, model.CompanionItem{
					Code:       g.Code,
					Name:       g.Name,
					Unit:       g.Unit,
					Reason:     g.Reason,
					RuleID:     rule.ID,
					SourceCode: item.Code,
				})
			}
		}
	}

	return out
}
