package engine

import "github.com/patchworkisles/engine/pkg/condition"

// stateView adapts the engine's state aggregate to the evaluator's
// narrow view interface.
type stateView struct {
	e *Engine
}

func (e *Engine) stateView() condition.StateView {
	return stateView{e: e}
}

func (v stateView) HasItem(item string) bool {
	return v.e.player.HasItem(item)
}

func (v stateView) Flag(name string) (any, bool) {
	value, ok := v.e.player.Flags[name]
	return value, ok
}

func (v stateView) PlayerTags() []string {
	return v.e.player.Tags
}

func (v stateView) PlayerTraits() []string {
	return v.e.player.Traits
}

func (v stateView) Reputation(faction string) int {
	return v.e.player.Rep[faction]
}

func (v stateView) ProfileFlag(name string) (any, bool) {
	return v.e.prof.Flag(name)
}
