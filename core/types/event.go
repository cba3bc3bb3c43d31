package types

import "sort"

// Event represents a typed event emitted after a ledger call commits.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Keys returns the attribute names in sorted order so log output and
// subscribers see a stable layout.
func (e *Event) Keys() []string {
	if e == nil || len(e.Attributes) == 0 {
		return nil
	}
	keys := make([]string, 0, len(e.Attributes))
	for k := range e.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
