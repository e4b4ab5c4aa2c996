package effect

import (
	"fmt"

	"github.com/patchworkisles/engine/pkg/profile"
	"github.com/patchworkisles/engine/pkg/state"
	"github.com/patchworkisles/engine/pkg/tags"
)

// Reputation bounds. rep_delta always clamps into this range; hp_delta
// never clamps, because death detection belongs to the navigation
// layer, not here.
const (
	RepMin = -2
	RepMax = 2
)

// Intent is a persistence action the applier wants performed. The
// applier mutates in-memory state only; the engine executes intents so
// the transform stays free of I/O.
type Intent string

// IntentFlushProfile asks the orchestrator to write the profile to disk
// immediately. Profile durability must never depend on the caller
// remembering to save later.
const IntentFlushProfile Intent = "flush_profile"

// Outcome reports the observable results of applying one or more
// effects.
type Outcome struct {
	Messages   []string
	Intents    []Intent
	Teleported bool // a teleport ran; the traversal must skip history
	Ended      bool // the ending sentinel was set
}

func (o *Outcome) merge(other Outcome) {
	o.Messages = append(o.Messages, other.Messages...)
	o.Intents = append(o.Intents, other.Intents...)
	o.Teleported = o.Teleported || other.Teleported
	o.Ended = o.Ended || other.Ended
}

// WantsProfileFlush reports whether any applied effect requires an
// immediate profile write.
func (o *Outcome) WantsProfileFlush() bool {
	for _, intent := range o.Intents {
		if intent == IntentFlushProfile {
			return true
		}
	}
	return false
}

// Applier applies effects to the state aggregate.
type Applier struct {
	tags *tags.Canonicalizer

	// StartTitle resolves a start id to its display title for unlock
	// messages. Optional; the id is used when nil.
	StartTitle func(startID string) string
}

func NewApplier(c *tags.Canonicalizer) *Applier {
	if c == nil {
		c = tags.NewCanonicalizer(nil)
	}
	return &Applier{tags: c}
}

// ApplyAll applies effects in declared order and merges their outcomes.
func (a *Applier) ApplyAll(effects []Effect, p *state.Player, s *state.Session, prof *profile.Profile) Outcome {
	var out Outcome
	for i := range effects {
		out.merge(a.Apply(effects[i], p, s, prof))
	}
	return out
}

// Apply executes one effect. Item and tag effects are idempotent:
// adding something already held, or removing something absent, is a
// quiet no-op rather than an error.
func (a *Applier) Apply(e Effect, p *state.Player, s *state.Session, prof *profile.Profile) Outcome {
	var out Outcome

	switch e.Kind {
	case KindAddItem:
		if !p.HasItem(e.Value) {
			p.Inventory = append(p.Inventory, e.Value)
			out.Messages = append(out.Messages, fmt.Sprintf("[+] You gain '%s'.", e.Value))
		}
	case KindRemoveItem:
		for i, held := range p.Inventory {
			if held == e.Value {
				p.Inventory = append(p.Inventory[:i], p.Inventory[i+1:]...)
				out.Messages = append(out.Messages, fmt.Sprintf("[-] '%s' removed.", e.Value))
				break
			}
		}
	case KindSetFlag:
		p.Flags[e.Flag] = e.FlagValue
		out.Messages = append(out.Messages, fmt.Sprintf("[*] Flag %s set to %v", e.Flag, e.FlagValue))
	case KindAddTag:
		tag := a.tags.Canonical(e.Value)
		if !a.tags.Contains(p.Tags, tag) {
			p.Tags = append(p.Tags, tag)
			out.Messages = append(out.Messages, fmt.Sprintf("[#] New Tag unlocked: %s", tag))
		}
		p.Tags = a.tags.CanonicalizeList(p.Tags)
	case KindAddTrait:
		if !contains(p.Traits, e.Value) {
			p.Traits = append(p.Traits, e.Value)
			out.Messages = append(out.Messages, fmt.Sprintf("[#] New Trait gained: %s", e.Value))
		}
	case KindRepDelta:
		next := clamp(p.Rep[e.Faction]+e.Delta, RepMin, RepMax)
		p.Rep[e.Faction] = next
		out.Messages = append(out.Messages, fmt.Sprintf("[~] Rep %s %+d -> %d", e.Faction, e.Delta, next))
	case KindHPDelta:
		p.HP += e.Delta
		out.Messages = append(out.Messages, fmt.Sprintf("[HP] %+d -> %d", e.Delta, p.HP))
	case KindTeleport:
		s.CurrentNode = e.Target
		out.Teleported = true
		out.Messages = append(out.Messages, fmt.Sprintf("[~] You are moved to '%s'.", e.Target))
	case KindEndGame:
		name := e.Value
		if name == "" {
			name = "Unnamed Ending"
		}
		p.Flags[state.EndingFlag] = name
		out.Ended = true
		if prof.RecordEnding(name) {
			out.Intents = append(out.Intents, IntentFlushProfile)
		}
	case KindUnlockStart:
		if e.Value == "" {
			break
		}
		if prof.UnlockStart(e.Value) {
			out.Intents = append(out.Intents, IntentFlushProfile)
			title := e.Value
			if a.StartTitle != nil {
				title = a.StartTitle(e.Value)
			}
			out.Messages = append(out.Messages, fmt.Sprintf("[#] Origin unlocked: %s", title))
		}
	case KindSetProfileFlag:
		if e.Flag == "" {
			break
		}
		if prof.SetFlag(e.Flag, e.FlagValue) {
			out.Intents = append(out.Intents, IntentFlushProfile)
			out.Messages = append(out.Messages, fmt.Sprintf("[Profile] %s set to %v.", e.Flag, e.FlagValue))
		}
	case KindGrantLegacyTag:
		if e.Value == "" {
			break
		}
		if prof.AddLegacyTag(e.Value, a.tags) {
			out.Intents = append(out.Intents, IntentFlushProfile)
			out.Messages = append(out.Messages, fmt.Sprintf("[#] Legacy Tag granted: %s", a.tags.Canonical(e.Value)))
		}
	}
	return out
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
