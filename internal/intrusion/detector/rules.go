package detector

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"bulwark/internal/intrusion/models"
)

// rulesFile is the YAML layout of an additional signatures file:
//
//	rules:
//	  - name: sqli_hex_literal
//	    category: sql_injection
//	    pattern: '(?i)0x[0-9a-f]{16,}'
type rulesFile struct {
	Rules []struct {
		Name     string `yaml:"name"`
		Category string `yaml:"category"`
		Pattern  string `yaml:"pattern"`
	} `yaml:"rules"`
}

// LoadRules reads and compiles a YAML rules file.
func LoadRules(path string) ([]Signature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules compiles rules from YAML. A rule without a name, category or a
// valid pattern fails the whole file.
func ParseRules(data []byte) ([]Signature, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	out := make([]Signature, 0, len(f.Rules))
	for i, r := range f.Rules {
		if r.Name == "" || r.Category == "" || r.Pattern == "" {
			return nil, fmt.Errorf("rule %d: name, category and pattern are required", i)
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Name, err)
		}
		out = append(out, Signature{Name: r.Name, Category: models.ParseCategory(r.Category), Pattern: re})
	}
	return out, nil
}
