// Package state holds the mutable per-playthrough state: the player
// aggregate and the session record. There is exactly one of each per
// run, owned by the engine and passed explicitly; nothing in this
// package touches the filesystem.
package state

// StartingHP is the hit point total every new playthrough begins with.
const StartingHP = 10

// EndingFlag is the sentinel flag an end_game effect sets. Its value is
// the ending's display name.
const EndingFlag = "__ending__"

// Player is the per-playthrough player state. It is created when a
// start is chosen, mutated only by effect application, and discarded
// when a new playthrough begins.
type Player struct {
	Name      string         `json:"name"`
	HP        int            `json:"hp"`
	Tags      []string       `json:"tags"`
	Traits    []string       `json:"traits"`
	Inventory []string       `json:"inventory"`
	Resources map[string]int `json:"resources"`
	Flags     map[string]any `json:"flags"`
	Rep       map[string]int `json:"rep"` // faction -> reputation in [-2, +2]
}

// NewPlayer returns a fresh player with starting HP and empty
// collections.
func NewPlayer(name string) *Player {
	return &Player{
		Name:      name,
		HP:        StartingHP,
		Tags:      []string{},
		Traits:    []string{},
		Inventory: []string{},
		Resources: map[string]int{},
		Flags:     map[string]any{},
		Rep:       map[string]int{},
	}
}

// Normalize repairs nil collections after deserialization so the rest
// of the engine never has to nil-check them.
func (p *Player) Normalize() {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Traits == nil {
		p.Traits = []string{}
	}
	if p.Inventory == nil {
		p.Inventory = []string{}
	}
	if p.Resources == nil {
		p.Resources = map[string]int{}
	}
	if p.Flags == nil {
		p.Flags = map[string]any{}
	}
	if p.Rep == nil {
		p.Rep = map[string]int{}
	}
}

// HasItem reports whether item is in the inventory.
func (p *Player) HasItem(item string) bool {
	for _, held := range p.Inventory {
		if held == item {
			return true
		}
	}
	return false
}

// Ending returns the ending name set by an end_game effect, if any.
func (p *Player) Ending() (string, bool) {
	v, ok := p.Flags[EndingFlag]
	if !ok {
		return "", false
	}
	name, _ := v.(string)
	return name, true
}
