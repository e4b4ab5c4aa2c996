package condition

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/patchworkisles/engine/pkg/tags"
)

// StateView is the minimal view of player and profile state the
// evaluator needs. The engine supplies an adapter over its state
// aggregate; tests can supply a stub.
type StateView interface {
	HasItem(item string) bool
	Flag(name string) (any, bool)
	PlayerTags() []string
	PlayerTraits() []string
	Reputation(faction string) int
	ProfileFlag(name string) (any, bool)
}

// WorldInfo supplies the world metadata some clauses resolve against.
type WorldInfo interface {
	Factions() []string
	AdvancedTags() []string
}

// Evaluator evaluates conditions and explains unmet ones. Met and
// Explain share every resolution rule (tag canonicalization, advanced
// tag defaulting, faction roster defaulting) so a locked-choice tooltip
// can never disagree with the gate that locked it.
type Evaluator struct {
	tags *tags.Canonicalizer
}

func NewEvaluator(c *tags.Canonicalizer) *Evaluator {
	if c == nil {
		c = tags.NewCanonicalizer(nil)
	}
	return &Evaluator{tags: c}
}

// Met reports whether every clause of cond holds. A nil or empty
// condition is vacuously true. Unknown clause kinds fail closed.
func (e *Evaluator) Met(cond *Condition, view StateView, world WorldInfo) bool {
	if cond.Empty() {
		return true
	}
	for i := range cond.All {
		if !e.clauseMet(&cond.All[i], view, world) {
			return false
		}
	}
	return true
}

// Explain returns a human-readable description of the unmet clauses,
// or the empty string when the condition is met. The result is
// non-empty exactly when Met returns false.
func (e *Evaluator) Explain(cond *Condition, view StateView, world WorldInfo) string {
	if cond.Empty() {
		return ""
	}
	var unmet []string
	for i := range cond.All {
		c := &cond.All[i]
		if e.clauseMet(c, view, world) {
			continue
		}
		unmet = append(unmet, e.requirement(c, world))
	}
	return strings.Join(unmet, " and ")
}

func (e *Evaluator) clauseMet(c *Clause, view StateView, world WorldInfo) bool {
	switch c.Kind {
	case KindHasItem:
		return view.HasItem(c.Item)
	case KindMissingItem:
		return !view.HasItem(c.Item)
	case KindFlagEq:
		got, _ := view.Flag(c.Flag)
		return looseEqual(got, c.Want)
	case KindHasTag:
		held := toSet(e.tags.CanonicalizeList(view.PlayerTags()))
		for _, want := range e.tags.CanonicalizeList(c.Tags) {
			if _, ok := held[want]; !ok {
				return false
			}
		}
		return true
	case KindHasAdvancedTag:
		accepted := e.advancedSet(c, world)
		if len(accepted) == 0 {
			return false
		}
		held := toSet(e.tags.CanonicalizeList(view.PlayerTags()))
		for _, want := range accepted {
			if _, ok := held[want]; ok {
				return true
			}
		}
		return false
	case KindHasTrait:
		held := toSet(view.PlayerTraits())
		for _, want := range c.Tags {
			if _, ok := held[want]; !ok {
				return false
			}
		}
		return true
	case KindRepAtLeast:
		return view.Reputation(c.Faction) >= c.Threshold
	case KindRepAtLeastCount:
		met := 0
		for _, faction := range e.rosterFor(c, world) {
			if view.Reputation(faction) >= c.Threshold {
				met++
			}
		}
		return met >= c.Count
	case KindProfileFlagEq:
		got, _ := view.ProfileFlag(c.Flag)
		return looseEqual(got, c.Want)
	case KindProfileFlagIsTrue:
		got, _ := view.ProfileFlag(c.Flag)
		return truthy(got)
	case KindProfileFlagIsFalse:
		got, _ := view.ProfileFlag(c.Flag)
		return !truthy(got)
	default:
		// Fail closed: stale or misauthored content locks the choice
		// rather than opening it.
		return false
	}
}

// requirement formats a single unmet clause. It must never return the
// empty string, or Explain would break its symmetry with Met.
func (e *Evaluator) requirement(c *Clause, world WorldInfo) string {
	switch c.Kind {
	case KindHasItem:
		return fmt.Sprintf("Need: %s", c.Item)
	case KindMissingItem:
		return fmt.Sprintf("Must not have: %s", c.Item)
	case KindFlagEq:
		return fmt.Sprintf("Flag %s must be %v", c.Flag, c.Want)
	case KindHasTag:
		required := e.tags.CanonicalizeList(c.Tags)
		if len(required) == 1 {
			return fmt.Sprintf("Tag needed: %s", required[0])
		}
		return fmt.Sprintf("Tags needed: %s", strings.Join(required, ", "))
	case KindHasAdvancedTag:
		accepted := e.advancedSet(c, world)
		if len(accepted) == 0 {
			return "Advanced tag needed"
		}
		return fmt.Sprintf("Advanced tag needed: one of %s", strings.Join(accepted, ", "))
	case KindHasTrait:
		if len(c.Tags) == 1 {
			return fmt.Sprintf("Trait needed: %s", c.Tags[0])
		}
		return fmt.Sprintf("Traits needed: %s", strings.Join(c.Tags, ", "))
	case KindRepAtLeast:
		return fmt.Sprintf("Need %s reputation >= %d", c.Faction, c.Threshold)
	case KindRepAtLeastCount:
		roster := e.rosterFor(c, world)
		return fmt.Sprintf("Need reputation >= %d with %d of: %s",
			c.Threshold, c.Count, strings.Join(roster, ", "))
	case KindProfileFlagEq:
		return fmt.Sprintf("Profile flag %s must be %v", c.Flag, c.Want)
	case KindProfileFlagIsTrue:
		return fmt.Sprintf("Profile flag %s must be true", c.Flag)
	case KindProfileFlagIsFalse:
		return fmt.Sprintf("Profile flag %s must be false", c.Flag)
	default:
		return "Unknown requirement"
	}
}

// advancedSet resolves the accepted tags for has_advanced_tag: the
// authored list when present, otherwise the world's advanced-tag set.
func (e *Evaluator) advancedSet(c *Clause, world WorldInfo) []string {
	if c.tagsExplicit {
		return e.tags.CanonicalizeList(c.Tags)
	}
	if world == nil {
		return nil
	}
	return e.tags.CanonicalizeList(world.AdvancedTags())
}

// rosterFor resolves the faction list for rep_at_least_count. An
// absent or empty authored list falls back to the world's full roster;
// only a non-empty list narrows the check.
func (e *Evaluator) rosterFor(c *Clause, world WorldInfo) []string {
	if len(c.Factions) > 0 {
		return c.Factions
	}
	if world == nil {
		return nil
	}
	return world.Factions()
}

func toSet(list []string) map[string]struct{} {
	set := make(map[string]struct{}, len(list))
	for _, s := range list {
		set[s] = struct{}{}
	}
	return set
}

// truthy mirrors the loose flag semantics of the content format, where
// flag values are arbitrary JSON values.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0
	case int:
		return val != 0
	case int64:
		return val != 0
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}

// looseEqual compares flag values across the numeric representations
// JSON and YAML decoding produce.
func looseEqual(a, b any) bool {
	if af, ok := asFloat(a); ok {
		if bf, okb := asFloat(b); okb {
			return af == bf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
