package rules

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jwtly10/tradedsl/internal/backtest"
)

// Strategy is one entry of a strategy file. Exactly one of Rules or Conditions is set.
// Backtest settings left out of the file fall back to the caller's defaults.
type Strategy struct {
	ID         string  `yaml:"id" json:"id"`
	Name       string  `yaml:"name" json:"name"`
	Rules      string  `yaml:"rules" json:"rules,omitempty"`
	Conditions *Object `yaml:"conditions" json:"conditions,omitempty"`

	backtest.Overrides `yaml:",inline"`
}

// Text returns the strategy's rule text, formatting Conditions when Rules is empty.
func (s Strategy) Text() string {
	if s.Rules != "" {
		return s.Rules
	}
	if s.Conditions != nil {
		return Format(*s.Conditions)
	}
	return ""
}

func (s Strategy) Validate() error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	hasRules, hasConditions := s.Rules != "", s.Conditions != nil && !s.Conditions.Empty()
	if hasRules == hasConditions {
		return fmt.Errorf("strategy %q: exactly one of rules or conditions is required", s.Name)
	}
	return nil
}

// File is the top-level YAML structure.
type File struct {
	Strategies []Strategy `yaml:"strategies"`
}

// LoadFile reads strategies from a YAML file. A missing id defaults to the name.
func LoadFile(path string) ([]Strategy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

func Decode(data []byte) ([]Strategy, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode strategy file: %w", err)
	}

	for i := range file.Strategies {
		s := &file.Strategies[i]
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("strategy %d: %w", i, err)
		}
		if s.ID == "" {
			s.ID = s.Name
		}
	}
	return file.Strategies, nil
}
