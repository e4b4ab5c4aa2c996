// Package world holds the read-only content graph: story nodes, entry
// points, endings, and the faction and advanced-tag rosters. Documents
// are authored as JSON or YAML; an external authoring tool validates
// them, so this package assumes referential integrity and only surfaces
// typed errors for what it can observe at runtime.
package world

import (
	"fmt"

	"github.com/patchworkisles/engine/pkg/condition"
	"github.com/patchworkisles/engine/pkg/effect"
)

// Choice is one option offered by a node. Target names the node the
// choice leads to; a missing target is a recoverable authoring defect
// handled by the navigation layer, not a crash.
type Choice struct {
	Text      string               `json:"text"`
	Condition *condition.Condition `json:"condition,omitempty"`
	Effects   []effect.Effect      `json:"effects,omitempty"`
	Target    string               `json:"target,omitempty"`
}

// Node is a single story beat.
type Node struct {
	Title   string          `json:"title,omitempty"`
	Text    string          `json:"text"`
	OnEnter []effect.Effect `json:"on_enter,omitempty"`
	Choices []Choice        `json:"choices,omitempty"`
}

// Start is a playthrough entry point. A locked start is hidden until
// its id appears in the profile's unlocked set.
type Start struct {
	ID     string   `json:"id,omitempty"`
	Node   string   `json:"node"`
	Title  string   `json:"title,omitempty"`
	Tags   []string `json:"tags,omitempty"`
	Locked bool     `json:"locked,omitempty"`
}

// StartID returns the start's identifier, falling back to its node id
// for content that predates explicit start ids.
func (s *Start) StartID() string {
	if s.ID != "" {
		return s.ID
	}
	return s.Node
}

// World is the content graph. It is read-only at runtime: the one
// exception is the Locked flag on starts, which the profile merge
// clears on this in-memory copy only, never on disk.
type World struct {
	Title           string            `json:"title"`
	Seed            *Seed             `json:"seed,omitempty"`
	Nodes           map[string]*Node  `json:"nodes"`
	Starts          []Start           `json:"starts"`
	Endings         map[string]string `json:"endings"`
	FactionList     []string          `json:"factions"`
	AdvancedTagList []string          `json:"advanced_tags"`
}

// Factions returns the recognized faction roster.
func (w *World) Factions() []string { return w.FactionList }

// AdvancedTags returns the advanced-tag roster.
func (w *World) AdvancedTags() []string { return w.AdvancedTagList }

// Node returns the node for id, or a NodeNotFoundError. A dangling
// node reference is fatal to the session; the runtime reports it and
// never attempts silent content repair.
func (w *World) Node(id string) (*Node, error) {
	node, ok := w.Nodes[id]
	if !ok || node == nil {
		return nil, &NodeNotFoundError{NodeID: id}
	}
	return node, nil
}

// EndingName returns the display name if id is an ending node.
func (w *World) EndingName(id string) (string, bool) {
	name, ok := w.Endings[id]
	return name, ok
}

// StartByID returns the start descriptor for id.
func (w *World) StartByID(id string) (*Start, bool) {
	for i := range w.Starts {
		if w.Starts[i].StartID() == id {
			return &w.Starts[i], true
		}
	}
	return nil, false
}

// StartTitle returns the display title for a start id, falling back to
// the id itself.
func (w *World) StartTitle(id string) string {
	if s, ok := w.StartByID(id); ok && s.Title != "" {
		return s.Title
	}
	return id
}

// UnlockStarts clears the lock flag on every start whose id is in
// unlocked. Mutates the in-memory copy only.
func (w *World) UnlockStarts(unlocked []string) {
	set := make(map[string]struct{}, len(unlocked))
	for _, id := range unlocked {
		set[id] = struct{}{}
	}
	for i := range w.Starts {
		if _, ok := set[w.Starts[i].StartID()]; ok {
			w.Starts[i].Locked = false
		}
	}
}

// NodeNotFoundError reports a reference to a node missing from the
// graph.
type NodeNotFoundError struct {
	NodeID string
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("world: node %q not found", e.NodeID)
}
