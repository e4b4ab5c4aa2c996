// Package effect implements the state-mutating side of the content
// language. An Effect is a closed tagged union; Applier.Apply mutates
// the in-memory player, session, and profile state and reports what it
// did as messages plus persistence intents. It never writes to disk
// itself: the engine performs the flushes the intents ask for, which
// keeps the transform testable without a filesystem.
package effect

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind discriminates effect variants.
type Kind string

const (
	KindAddItem        Kind = "add_item"
	KindRemoveItem     Kind = "remove_item"
	KindSetFlag        Kind = "set_flag"
	KindAddTag         Kind = "add_tag"
	KindAddTrait       Kind = "add_trait"
	KindRepDelta       Kind = "rep_delta"
	KindHPDelta        Kind = "hp_delta"
	KindTeleport       Kind = "teleport"
	KindEndGame        Kind = "end_game"
	KindUnlockStart    Kind = "unlock_start"
	KindSetProfileFlag Kind = "set_profile_flag"
	KindGrantLegacyTag Kind = "grant_legacy_tag"
)

// Effect is a single state mutation instruction. Only the fields
// relevant to its Kind are populated.
type Effect struct {
	Kind Kind

	// Value carries the item name, tag, trait, start id, legacy tag, or
	// ending name, depending on Kind.
	Value string

	Flag      string // set_flag, set_profile_flag
	FlagValue any    // set_flag, set_profile_flag; defaults to true

	Faction string // rep_delta
	Delta   int    // rep_delta, hp_delta

	Target string // teleport
}

type effectWire struct {
	Type    string          `json:"type"`
	Value   json.RawMessage `json:"value,omitempty"`
	Flag    string          `json:"flag,omitempty"`
	Faction string          `json:"faction,omitempty"`
	Target  string          `json:"target,omitempty"`
}

// UnmarshalJSON decodes the authored wire form. Malformed field types
// are surfaced as errors at load time; a world document that decodes
// cleanly yields only well-formed effects.
func (e *Effect) UnmarshalJSON(data []byte) error {
	var w effectWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.Kind = Kind(w.Type)

	switch e.Kind {
	case KindAddItem, KindRemoveItem, KindAddTag, KindAddTrait,
		KindEndGame, KindUnlockStart, KindGrantLegacyTag:
		if len(w.Value) > 0 {
			if err := json.Unmarshal(w.Value, &e.Value); err != nil {
				return fmt.Errorf("effect %s: %w", w.Type, err)
			}
		}
	case KindSetFlag, KindSetProfileFlag:
		e.Flag = w.Flag
		e.FlagValue = true
		if len(w.Value) > 0 && string(w.Value) != "null" {
			if err := json.Unmarshal(w.Value, &e.FlagValue); err != nil {
				return fmt.Errorf("effect %s: %w", w.Type, err)
			}
		}
	case KindRepDelta:
		e.Faction = w.Faction
		n, err := deltaValue(w.Value)
		if err != nil {
			return fmt.Errorf("effect %s: %w", w.Type, err)
		}
		e.Delta = n
	case KindHPDelta:
		n, err := deltaValue(w.Value)
		if err != nil {
			return fmt.Errorf("effect %s: %w", w.Type, err)
		}
		e.Delta = n
	case KindTeleport:
		e.Target = w.Target
	}
	return nil
}

func deltaValue(raw json.RawMessage) (int, error) {
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
