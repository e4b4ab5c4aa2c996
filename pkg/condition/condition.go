// Package condition implements the gating predicates that decide which
// choices and starts a player may take. A condition is a closed tagged
// union: one clause, or an ordered list of clauses combined with
// logical AND. There is no OR and no NOT, which keeps authored content
// easy to reason about.
package condition

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind discriminates clause variants.
type Kind string

const (
	KindHasItem            Kind = "has_item"
	KindMissingItem        Kind = "missing_item"
	KindFlagEq             Kind = "flag_eq"
	KindHasTag             Kind = "has_tag"
	KindHasAdvancedTag     Kind = "has_advanced_tag"
	KindHasTrait           Kind = "has_trait"
	KindRepAtLeast         Kind = "rep_at_least"
	KindRepAtLeastCount    Kind = "rep_at_least_count"
	KindProfileFlagEq      Kind = "profile_flag_eq"
	KindProfileFlagIsTrue  Kind = "profile_flag_is_true"
	KindProfileFlagIsFalse Kind = "profile_flag_is_false"
)

// Clause is a single predicate over player, profile, and world state.
// Only the fields relevant to its Kind are populated.
type Clause struct {
	Kind Kind

	Item string // has_item, missing_item
	Flag string // flag_eq, profile_flag_*
	Want any    // flag_eq, profile_flag_eq expected value

	// Tags holds the required tags for has_tag (all required), the
	// accepted tags for has_advanced_tag (any of; nil means "use the
	// world's full advanced-tag set"), or the required traits for
	// has_trait (all required).
	Tags         []string
	tagsExplicit bool

	Faction   string // rep_at_least
	Threshold int    // rep_at_least, rep_at_least_count

	// Count and Factions apply to rep_at_least_count: at least Count of
	// Factions must each have reputation >= Threshold. A missing or
	// empty Factions list defaults to the world's full roster at
	// evaluation time, so editing the roster can change what a saved
	// condition means. That is a content-versioning concern for authors,
	// not an evaluator bug.
	Count    int
	Factions []string
}

// clauseWire is the authored document form of a Clause.
type clauseWire struct {
	Type     string          `json:"type"`
	Value    json.RawMessage `json:"value,omitempty"`
	Flag     string          `json:"flag,omitempty"`
	Faction  string          `json:"faction,omitempty"`
	Count    *int            `json:"count,omitempty"`
	Factions json.RawMessage `json:"factions,omitempty"`
}

// UnmarshalJSON decodes the authored wire form. Unknown types are kept
// as-is; the evaluator fails closed on them rather than erroring here,
// so stale content degrades to a locked choice instead of a crash.
func (c *Clause) UnmarshalJSON(data []byte) error {
	var w clauseWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	c.Kind = Kind(w.Type)

	switch c.Kind {
	case KindHasItem, KindMissingItem:
		if err := json.Unmarshal(w.Value, &c.Item); err != nil {
			return fmt.Errorf("condition %s: %w", w.Type, err)
		}
	case KindFlagEq, KindProfileFlagEq:
		c.Flag = w.Flag
		if len(w.Value) > 0 {
			if err := json.Unmarshal(w.Value, &c.Want); err != nil {
				return fmt.Errorf("condition %s: %w", w.Type, err)
			}
		}
	case KindProfileFlagIsTrue, KindProfileFlagIsFalse:
		c.Flag = w.Flag
	case KindHasTag, KindHasTrait:
		list, _, err := stringList(w.Value)
		if err != nil {
			return fmt.Errorf("condition %s: %w", w.Type, err)
		}
		c.Tags = list
	case KindHasAdvancedTag:
		list, present, err := stringList(w.Value)
		if err != nil {
			return fmt.Errorf("condition %s: %w", w.Type, err)
		}
		if present {
			c.Tags = list
			c.tagsExplicit = true
		}
	case KindRepAtLeast:
		c.Faction = w.Faction
		n, err := intValue(w.Value)
		if err != nil {
			return fmt.Errorf("condition %s: %w", w.Type, err)
		}
		c.Threshold = n
	case KindRepAtLeastCount:
		if len(w.Value) > 0 {
			n, err := intValue(w.Value)
			if err != nil {
				return fmt.Errorf("condition %s: %w", w.Type, err)
			}
			c.Threshold = n
		}
		c.Count = 1
		if w.Count != nil {
			c.Count = *w.Count
		}
		if len(w.Factions) > 0 {
			list, _, err := stringList(w.Factions)
			if err != nil {
				return fmt.Errorf("condition %s: %w", w.Type, err)
			}
			c.Factions = list
		}
	}
	return nil
}

// Condition is a gate: nil or empty is vacuously true, otherwise every
// clause must hold.
type Condition struct {
	All []Clause
}

// UnmarshalJSON accepts either a single clause object or an array of
// clause objects.
func (c *Condition) UnmarshalJSON(data []byte) error {
	trimmed := firstByte(data)
	switch trimmed {
	case 0, 'n': // empty or null
		c.All = nil
		return nil
	case '[':
		return json.Unmarshal(data, &c.All)
	default:
		var single Clause
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		c.All = []Clause{single}
		return nil
	}
}

// Empty reports whether the condition has no clauses.
func (c *Condition) Empty() bool {
	return c == nil || len(c.All) == 0
}

func firstByte(data []byte) byte {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return b
	}
	return 0
}

// stringList decodes a value that may be a single string or a list of
// strings. The second return reports whether the value was present.
func stringList(raw json.RawMessage) ([]string, bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, false, nil
	}
	if firstByte(raw) == '[' {
		var list []string
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, true, err
		}
		if list == nil {
			list = []string{}
		}
		return list, true, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, true, err
	}
	return []string{single}, true, nil
}

// intValue decodes a number that authors may write as an integer or a
// numeric string.
func intValue(raw json.RawMessage) (int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int(n), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("expected number or numeric string, got %s", raw)
	}
	parsed, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("numeric string %q: %w", s, err)
	}
	return int(parsed), nil
}
