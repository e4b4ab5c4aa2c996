package engine

import (
	"fmt"

	"github.com/patchworkisles/engine/internal/save"
)

// SaveSlot writes the current player and session to a named slot.
func (e *Engine) SaveSlot(slot string) (string, error) {
	if e.saves == nil {
		return "", fmt.Errorf("engine: no save manager configured")
	}
	if e.player == nil {
		return "", ErrNotInNode
	}
	return e.saves.Save(slot, e.player, e.session)
}

// QuickSave writes the reserved quick slot.
func (e *Engine) QuickSave() (string, error) {
	return e.SaveSlot(save.QuickSlot)
}

// LoadSlot replaces the current player and session with a slot's
// snapshot and resumes in its node. Tags are re-canonicalized on the
// way in, like any other trust boundary. A snapshot holding a finished
// run (ending sentinel set, or HP at or below zero) resumes in its
// terminal state, never as a live node.
func (e *Engine) LoadSlot(slot string) error {
	if e.saves == nil {
		return fmt.Errorf("engine: no save manager configured")
	}
	p, s, err := e.saves.Load(slot)
	if err != nil {
		return err
	}
	p.Tags = e.canon.CanonicalizeList(p.Tags)
	e.player = p
	e.session = s
	e.status = InNode
	e.ending = ""
	if name, ok := p.Ending(); ok {
		e.status = Ended
		e.ending = name
	} else if p.HP <= 0 {
		e.status = Perished
		e.ending = PerishedEnding
	}
	return nil
}

// Slots lists saved slots, excluding the autosave slot unless asked.
func (e *Engine) Slots(includeAutosave bool) []save.SlotMetadata {
	if e.saves == nil {
		return nil
	}
	return e.saves.ListSlots(includeAutosave)
}
