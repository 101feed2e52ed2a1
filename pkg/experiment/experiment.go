// Package experiment assigns sessions to A/B test variants by deterministic hashing.
package experiment

import (
	"fmt"
	"unicode/utf16"
)

// Variant is one arm of a test.
type Variant struct {
	ID     string                 `yaml:"id" json:"id"`
	Name   string                 `yaml:"name" json:"name"`
	Weight int                    `yaml:"weight" json:"weight"`
	Config map[string]interface{} `yaml:"config,omitempty" json:"config,omitempty"`
}

// Test is an experiment definition. Variants are bucketed in declaration order.
type Test struct {
	ID       string    `yaml:"id" json:"id"`
	Name     string    `yaml:"name" json:"name"`
	Active   bool      `yaml:"active" json:"active"`
	Variants []Variant `yaml:"variants" json:"variants"`
}

// TotalWeight sums the variant weights.
func (t Test) TotalWeight() int {
	total := 0
	for _, v := range t.Variants {
		total += v.Weight
	}
	return total
}

// Validate checks that the test can be bucketed.
func (t Test) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("test id is required")
	}
	if len(t.Variants) == 0 {
		return fmt.Errorf("test %s: at least one variant is required", t.ID)
	}
	seen := make(map[string]bool, len(t.Variants))
	for _, v := range t.Variants {
		if v.ID == "" {
			return fmt.Errorf("test %s: variant id is required", t.ID)
		}
		if seen[v.ID] {
			return fmt.Errorf("test %s: duplicate variant %s", t.ID, v.ID)
		}
		seen[v.ID] = true
		if v.Weight < 0 {
			return fmt.Errorf("test %s: variant %s has negative weight", t.ID, v.ID)
		}
	}
	if t.TotalWeight() <= 0 {
		return fmt.Errorf("test %s: total weight must be positive", t.ID)
	}
	return nil
}

// Hash folds seed+testID into a signed 32-bit value, iterating UTF-16 code
// units with hash = (hash << 5) - hash + unit.
func Hash(seed, testID string) int32 {
	var h int32
	for _, unit := range utf16.Encode([]rune(seed + testID)) {
		h = (h << 5) - h + int32(unit)
	}
	return h
}

// Position returns abs(Hash) mod totalWeight.
func Position(seed, testID string, totalWeight int) int {
	if totalWeight <= 0 {
		return 0
	}
	h := int64(Hash(seed, testID))
	if h < 0 {
		h = -h
	}
	return int(h % int64(totalWeight))
}

// Bucket picks the variant for seed. The first variant whose cumulative weight
// exceeds the hashed position wins; the first declared variant is the fallback.
func Bucket(seed string, test Test) (Variant, bool) {
	if len(test.Variants) == 0 {
		return Variant{}, false
	}

	pos := Position(seed, test.ID, test.TotalWeight())
	cumulative := 0
	for _, v := range test.Variants {
		cumulative += v.Weight
		if pos < cumulative {
			return v, true
		}
	}
	return test.Variants[0], true
}

// DefaultTests returns the built-in experiments.
func DefaultTests() []Test {
	return []Test{
		{
			ID:     "banner_copy_v1",
			Name:   "Restriction banner copy",
			Active: true,
			Variants: []Variant{
				{ID: "control", Name: "Control", Weight: 25},
				{ID: "urgency", Name: "Urgency", Weight: 25, Config: map[string]interface{}{
					"title": "Don't lose your budget",
					"cta":   "Save It Now",
				}},
				{ID: "social_proof", Name: "Social proof", Weight: 25, Config: map[string]interface{}{
					"title":   "Join thousands of budgeters",
					"message": "People who create an account track twice as many expenses.",
				}},
				{ID: "benefit", Name: "Benefit", Weight: 25, Config: map[string]interface{}{
					"title":   "Unlock more categories",
					"message": "A free account gives you more categories, more transactions and backups.",
				}},
			},
		},
		{
			ID:     "paywall_timing",
			Name:   "Paywall timing",
			Active: true,
			Variants: []Variant{
				{ID: "control", Name: "Control", Weight: 50},
				{ID: "early", Name: "Early prompt", Weight: 50, Config: map[string]interface{}{
					"prompt_after_seconds": 60,
				}},
			},
		},
	}
}
