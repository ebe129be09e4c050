package extract

import (
	"fmt"
	"strings"
)

// Matcher counts how often a category label occurs in a decoded region.
type Matcher interface {
	Count(region, label string) int
	Name() string
}

// SubstringMatcher counts non-overlapping occurrences of the label anywhere
// in the region. A label contained in another label, or in a rater name,
// is counted for both.
type SubstringMatcher struct{}

func (SubstringMatcher) Count(region, label string) int {
	if label == "" {
		return 0
	}
	return strings.Count(region, label)
}

func (SubstringMatcher) Name() string { return "substring" }

// ExactMatcher counts assessments whose category text equals the label.
type ExactMatcher struct{}

func (ExactMatcher) Count(region, label string) int {
	var n int
	for _, f := range splitFragments(region) {
		if cat, ok := categoryOf(f); ok && cat == label {
			n++
		}
	}
	return n
}

func (ExactMatcher) Name() string { return "exact" }

// ParseMatcher maps a config name to a Matcher. The empty string selects
// substring counting.
func ParseMatcher(name string) (Matcher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "substring":
		return SubstringMatcher{}, nil
	case "exact":
		return ExactMatcher{}, nil
	default:
		return nil, fmt.Errorf("unknown matcher %q (want substring or exact)", name)
	}
}
