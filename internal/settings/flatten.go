package settings

import "encoding/json"

// ruleEntry is one decoded element of a rule list. Older versions of the
// extension stored rules nested in folders:
//
//	{"type":"folder","name":"Work","children":[{"pattern":...}, ...]}
//
// Folders are no longer a feature; their rules are lifted out in order.
type ruleEntry struct {
	pattern, name, color string
	valid                bool // pattern and name are non-empty strings
}

func flatten(items []json.RawMessage) []ruleEntry {
	var out []ruleEntry
	for _, raw := range items {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			// Not an object; nothing usable.
			continue
		}
		if stringField(fields, "type") == "folder" {
			var children []json.RawMessage
			if c, ok := fields["children"]; ok {
				if err := json.Unmarshal(c, &children); err != nil {
					continue
				}
			}
			out = append(out, flatten(children)...)
			continue
		}
		e := ruleEntry{
			pattern: stringField(fields, "pattern"),
			name:    stringField(fields, "name"),
			color:   stringField(fields, "color"),
		}
		e.valid = e.pattern != "" && e.name != ""
		out = append(out, e)
	}
	return out
}

// stringField returns the string value at key, or "" when missing or not
// a string.
func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
