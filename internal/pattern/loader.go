package pattern

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Veraticus/katalog/internal/model"
)

// ruleFile is the YAML layout of a companion rule set.
type ruleFile struct {
	Rules []model.CompanionRule `yaml:"rules"`
}

// LoadRules reads companion rules from a YAML file.
func LoadRules(path string) ([]model.CompanionRule, error) {
	// #nosec G304 - path comes from user configuration
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rules file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return DecodeRules(f)
}

// DecodeRules parses a YAML rule set and checks that it compiles.
func DecodeRules(r io.Reader) ([]model.CompanionRule, error) {
	var file ruleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode rules: %w", err)
	}
	if _, err := NewRuleEngine(file.Rules); err != nil {
		return nil, err
	}
	return file.Rules, nil
}

// NewFromFile builds an engine from a YAML file, or from DefaultRules when
// path is empty.
func NewFromFile(path string) (*RuleEngine, error) {
	if path == "" {
		return NewRuleEngine(DefaultRules())
	}
	rules, err := LoadRules(path)
	if err != nil {
		return nil, err
	}
	return NewRuleEngine(rules)
}
