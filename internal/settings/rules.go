package settings

import (
	"fmt"
	"slices"
	"strings"
)

// NormalizeRule trims the rule fields and lowercases the pattern.
// It returns ErrRequired when pattern or name ends up empty.
func NormalizeRule(r Rule) (Rule, error) {
	r.Pattern = strings.ToLower(strings.TrimSpace(r.Pattern))
	r.Name = strings.TrimSpace(r.Name)
	r.Color = strings.TrimSpace(r.Color)
	if r.Pattern == "" || r.Name == "" {
		return Rule{}, ErrRequired
	}
	if r.Color != "" && !ValidColor(r.Color) {
		return Rule{}, fmt.Errorf("unknown color %q (want one of %s)", r.Color, strings.Join(Colors, ", "))
	}
	return r, nil
}

// AddRule appends a rule after normalizing it.
func (s *Settings) AddRule(r Rule) error {
	r, err := NormalizeRule(r)
	if err != nil {
		return err
	}
	s.CustomRules = append(s.CustomRules, r)
	return nil
}

// UpdateRule replaces the rule at index i.
func (s *Settings) UpdateRule(i int, r Rule) error {
	if i < 0 || i >= len(s.CustomRules) {
		return fmt.Errorf("%w: %d", ErrIndex, i)
	}
	r, err := NormalizeRule(r)
	if err != nil {
		return err
	}
	s.CustomRules[i] = r
	return nil
}

// RemoveRule deletes the rule at index i.
func (s *Settings) RemoveRule(i int) error {
	if i < 0 || i >= len(s.CustomRules) {
		return fmt.Errorf("%w: %d", ErrIndex, i)
	}
	s.CustomRules = slices.Delete(s.CustomRules, i, i+1)
	return nil
}

// MoveRule moves the rule at from so it ends up at index to.
// Display order only; matching order is by pattern length.
func (s *Settings) MoveRule(from, to int) error {
	n := len(s.CustomRules)
	if from < 0 || from >= n {
		return fmt.Errorf("%w: %d", ErrIndex, from)
	}
	if to < 0 || to >= n {
		return fmt.Errorf("%w: %d", ErrIndex, to)
	}
	if from == to {
		return nil
	}
	r := s.CustomRules[from]
	s.CustomRules = slices.Delete(s.CustomRules, from, from+1)
	s.CustomRules = slices.Insert(s.CustomRules, to, r)
	return nil
}

// AddExcluded adds a domain to the exclusion list. The domain is trimmed
// and lowercased; empty or already-present domains are ignored.
// It reports whether the list changed.
func (s *Settings) AddExcluded(domain string) bool {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" || slices.Contains(s.ExcludedDomains, domain) {
		return false
	}
	s.ExcludedDomains = append(s.ExcludedDomains, domain)
	return true
}

// RemoveExcluded drops a domain from the exclusion list.
func (s *Settings) RemoveExcluded(domain string) bool {
	before := len(s.ExcludedDomains)
	s.ExcludedDomains = slices.DeleteFunc(s.ExcludedDomains, func(d string) bool { return d == domain })
	return len(s.ExcludedDomains) != before
}
