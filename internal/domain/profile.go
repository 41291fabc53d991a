package domain

import (
	"fmt"
	"strings"
)

// Profile is the desired combination of marks, difficulty and cognitive level for one search.
type Profile struct {
	Query      string         `json:"query"`
	Marks      Marks          `json:"marks"`
	Difficulty Difficulty     `json:"difficulty"`
	Cognitive  CognitiveLevel `json:"cognitive_level"`
}

// Validate checks that the profile names a query and known target values.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Query) == "" {
		return fmt.Errorf("%w: empty query", ErrInvalidProfile)
	}
	if p.Marks <= 0 {
		return fmt.Errorf("%w: marks must be positive", ErrInvalidProfile)
	}
	if _, err := ParseDifficulty(string(p.Difficulty)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	if _, err := ParseCognitiveLevel(string(p.Cognitive)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	return nil
}
