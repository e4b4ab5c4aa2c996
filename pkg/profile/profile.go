// Package profile owns the only state that outlives a playthrough:
// unlocked starts, legacy tags, seen endings, and profile flags. Every
// mutation is expected to be flushed to disk immediately by the caller;
// Save writes the whole document atomically, pretty-printed with a
// trailing newline.
package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/patchworkisles/engine/pkg/tags"
)

// Profile is the cross-playthrough persistent record.
type Profile struct {
	UnlockedStarts []string       `json:"unlocked_starts"`
	LegacyTags     []string       `json:"legacy_tags"`
	SeenEndings    []string       `json:"seen_endings"`
	Flags          map[string]any `json:"flags"`
}

// Default returns a profile with empty collections.
func Default() *Profile {
	return &Profile{
		UnlockedStarts: []string{},
		LegacyTags:     []string{},
		SeenEndings:    []string{},
		Flags:          map[string]any{},
	}
}

// Load reads a profile from path, creating it with defaults if absent.
// Loaded data is normalized (deduplicated, tags canonicalized) and the
// normalized form is written back, so a hand-edited file converges to
// canonical form on first use.
func Load(path string, canon *tags.Canonicalizer) (*Profile, error) {
	if canon == nil {
		canon = tags.NewCanonicalizer(nil)
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		p := Default()
		if err := p.Save(path); err != nil {
			return nil, err
		}
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	p := Default()
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	p.Normalize(canon)
	if err := p.Save(path); err != nil {
		return nil, err
	}
	return p, nil
}

// Normalize deduplicates collections and canonicalizes legacy tags.
func (p *Profile) Normalize(canon *tags.Canonicalizer) {
	p.UnlockedStarts = dedupe(p.UnlockedStarts)
	p.LegacyTags = canon.CanonicalizeList(p.LegacyTags)
	p.SeenEndings = dedupe(p.SeenEndings)
	if p.Flags == nil {
		p.Flags = map[string]any{}
	}
}

// Save writes the full profile document: pretty-printed JSON, trailing
// newline, atomic replace via temp file and rename.
func (p *Profile) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create profile directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "profile-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp profile file: %w", err)
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write profile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close profile: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace profile: %w", err)
	}
	return nil
}

// IsUnlocked reports whether a start id is in the unlocked set.
func (p *Profile) IsUnlocked(startID string) bool {
	for _, id := range p.UnlockedStarts {
		if id == startID {
			return true
		}
	}
	return false
}

// UnlockStart adds a start id to the unlocked set. Returns true if the
// profile changed.
func (p *Profile) UnlockStart(startID string) bool {
	if startID == "" || p.IsUnlocked(startID) {
		return false
	}
	p.UnlockedStarts = append(p.UnlockedStarts, startID)
	return true
}

// AddLegacyTag grants a legacy tag, canonicalized. Legacy tags
// accumulate forever and are never removed. Returns true if the
// profile changed.
func (p *Profile) AddLegacyTag(tag string, canon *tags.Canonicalizer) bool {
	canonical := canon.Canonical(tag)
	if canonical == "" {
		return false
	}
	for _, t := range p.LegacyTags {
		if t == canonical {
			return false
		}
	}
	p.LegacyTags = append(p.LegacyTags, canonical)
	return true
}

// RecordEnding marks an ending name as seen. Returns true if the
// profile changed.
func (p *Profile) RecordEnding(name string) bool {
	if name == "" {
		return false
	}
	for _, seen := range p.SeenEndings {
		if seen == name {
			return false
		}
	}
	p.SeenEndings = append(p.SeenEndings, name)
	return true
}

// SetFlag sets a profile flag. Returns true if the value changed.
func (p *Profile) SetFlag(name string, value any) bool {
	if name == "" {
		return false
	}
	if prev, ok := p.Flags[name]; ok && reflect.DeepEqual(prev, value) {
		return false
	}
	p.Flags[name] = value
	return true
}

// Flag returns a profile flag value.
func (p *Profile) Flag(name string) (any, bool) {
	v, ok := p.Flags[name]
	return v, ok
}

func dedupe(list []string) []string {
	out := make([]string, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for _, s := range list {
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
