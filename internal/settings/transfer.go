package settings

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ExportFileName is the default name for exported rule files.
const ExportFileName = "tab-grouper-rules.json"

// ExportRules serializes rules as an indented JSON array.
func ExportRules(rules []Rule) ([]byte, error) {
	if rules == nil {
		rules = []Rule{}
	}
	b, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// ParseRules decodes an exported rules file. The root must be a JSON
// array; folder entries are flattened and entries without a non-empty
// string pattern and name are skipped. Unknown colors are dropped so the
// browser picks one.
func ParseRules(data []byte) ([]Rule, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, ErrNotArray
		}
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if items == nil {
		// JSON null
		return nil, ErrNotArray
	}

	var rules []Rule
	for _, e := range flatten(items) {
		if !e.valid {
			continue
		}
		r := Rule{Pattern: e.pattern, Name: e.name, Color: e.color}
		if !ValidColor(r.Color) {
			r.Color = ""
		}
		rules = append(rules, r)
	}
	if len(rules) == 0 {
		return nil, ErrNoRules
	}
	return rules, nil
}

// ImportRules appends the rules in data to the settings and returns how
// many were accepted. On error the settings are left untouched.
func (s *Settings) ImportRules(data []byte) (int, error) {
	rules, err := ParseRules(data)
	if err != nil {
		return 0, err
	}
	s.CustomRules = append(s.CustomRules, rules...)
	return len(rules), nil
}
