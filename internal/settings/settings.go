package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// Key is the storage key the settings record lives under.
const Key = "settings"

// Colors is the tab group color palette accepted by the browser.
var Colors = []string{"grey", "blue", "red", "yellow", "green", "pink", "purple", "cyan", "orange"}

// ValidColor reports whether c is a palette color.
func ValidColor(c string) bool {
	return slices.Contains(Colors, c)
}

var (
	ErrNotArray = errors.New("rules file root is not a JSON array")
	ErrNoRules  = errors.New("no valid rules found")
	ErrIndex    = errors.New("rule index out of range")
	ErrRequired = errors.New("pattern and name are required")
)

// Rule maps a URL pattern to a group title and color.
type Rule struct {
	Pattern string `json:"pattern"`
	Name    string `json:"name"`
	Color   string `json:"color"`
}

// Settings is the single persisted settings record. It is replaced
// wholesale on every write.
type Settings struct {
	AutoGroup        bool     `json:"autoGroup"`
	ExcludedDomains  []string `json:"excludedDomains"`
	AutoCollapse     bool     `json:"autoCollapse"`
	RemoveDuplicates bool     `json:"removeDuplicates"`
	CustomRules      []Rule   `json:"customRules"`
}

// Default returns the settings used when nothing has been stored yet.
func Default() Settings {
	return Settings{
		AutoGroup:       true,
		ExcludedDomains: []string{},
		CustomRules:     []Rule{},
	}
}

// Clone returns a deep copy so callers can mutate without touching a
// shared snapshot.
func (s Settings) Clone() Settings {
	s.ExcludedDomains = slices.Clone(s.ExcludedDomains)
	s.CustomRules = slices.Clone(s.CustomRules)
	if s.ExcludedDomains == nil {
		s.ExcludedDomains = []string{}
	}
	if s.CustomRules == nil {
		s.CustomRules = []Rule{}
	}
	return s
}

// IsExcluded reports whether host is on the exclusion list.
func (s *Settings) IsExcluded(host string) bool {
	return slices.Contains(s.ExcludedDomains, host)
}

type wireSettings struct {
	AutoGroup        *bool             `json:"autoGroup"`
	ExcludedDomains  []string          `json:"excludedDomains"`
	AutoCollapse     bool              `json:"autoCollapse"`
	RemoveDuplicates bool              `json:"removeDuplicates"`
	CustomRules      []json.RawMessage `json:"customRules"`
}

// UnmarshalJSON decodes a stored record, filling optional fields with
// defaults and flattening legacy folder entries in customRules.
func (s *Settings) UnmarshalJSON(data []byte) error {
	var w wireSettings
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := Default()
	if w.AutoGroup != nil {
		out.AutoGroup = *w.AutoGroup
	}
	if w.ExcludedDomains != nil {
		out.ExcludedDomains = w.ExcludedDomains
	}
	out.AutoCollapse = w.AutoCollapse
	out.RemoveDuplicates = w.RemoveDuplicates

	for _, e := range flatten(w.CustomRules) {
		out.CustomRules = append(out.CustomRules, Rule{Pattern: e.pattern, Name: e.name, Color: e.color})
	}
	*s = out
	return nil
}

// MarshalJSON writes empty lists as [] rather than null, matching what
// the extension itself stores.
func (s Settings) MarshalJSON() ([]byte, error) {
	type plain Settings
	return json.Marshal(plain(s.Clone()))
}

// Decode parses a stored settings record.
func Decode(data []byte) (Settings, error) {
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}

// Encode serializes settings for storage.
func Encode(s Settings) ([]byte, error) {
	return json.Marshal(s)
}
