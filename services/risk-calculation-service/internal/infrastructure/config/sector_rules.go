package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/service"
)

type sectorRulesFile struct {
	Rules []struct {
		Pattern string `yaml:"pattern"`
		Sector  string `yaml:"sector"`
	} `yaml:"rules"`
}

// LoadSectorRules reads an ordered rule table from a YAML file. An empty path
// returns the built-in rules.
func LoadSectorRules(path string) ([]service.SectorRule, error) {
	if path == "" {
		return service.DefaultSectorRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sector rules: %w", err)
	}
	return ParseSectorRules(data)
}

// ParseSectorRules decodes a rule table. Unknown keys are rejected.
func ParseSectorRules(data []byte) ([]service.SectorRule, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file sectorRulesFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse sector rules: %w", err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("sector rules file has no rules")
	}

	rules := make([]service.SectorRule, 0, len(file.Rules))
	for i, r := range file.Rules {
		if r.Pattern == "" || r.Sector == "" {
			return nil, fmt.Errorf("sector rule %d: pattern and sector are required", i)
		}
		rules = append(rules, service.SectorRule{Pattern: r.Pattern, Sector: r.Sector})
	}

	// Reject bad patterns and unknown sectors at load time.
	if _, err := service.NewSectorClassifier(rules); err != nil {
		return nil, err
	}
	return rules, nil
}
