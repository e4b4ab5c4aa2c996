// Package engine owns the navigation state machine: it walks the
// content graph, applies effects, partitions choices through the
// condition evaluator, detects endings and death, and orchestrates the
// persistence the effect applier asks for. State lives in one aggregate
// passed explicitly; there is no global.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/patchworkisles/engine/internal/logger"
	"github.com/patchworkisles/engine/internal/save"
	"github.com/patchworkisles/engine/internal/storage"
	"github.com/patchworkisles/engine/pkg/condition"
	"github.com/patchworkisles/engine/pkg/effect"
	"github.com/patchworkisles/engine/pkg/profile"
	"github.com/patchworkisles/engine/pkg/state"
	"github.com/patchworkisles/engine/pkg/tags"
	"github.com/patchworkisles/engine/pkg/world"
)

// Status is the navigation state machine's current state.
type Status int

const (
	AwaitingStart Status = iota
	InNode
	Ended
	Perished
)

func (s Status) String() string {
	switch s {
	case AwaitingStart:
		return "awaiting_start"
	case InNode:
		return "in_node"
	case Ended:
		return "ended"
	case Perished:
		return "perished"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// PerishedEnding is the synthetic ending recorded when the player's HP
// drops to zero or below. Death is distinct from a narrative ending but
// still counts as seen in the profile.
const PerishedEnding = "A Short Tale"

// teleportLimit bounds chained on-enter teleports so a miswired graph
// cannot loop the engine forever.
const teleportLimit = 16

// ErrNotInNode is returned when an operation requires an active node.
var ErrNotInNode = errors.New("engine: no active node")

// ChoiceView is one choice as presented to the host.
type ChoiceView struct {
	Index int // position in the node's declared choice order
	Text  string

	// Requirement is the unmet-requirement text for a locked choice,
	// empty for an available one. It is produced by the same resolution
	// rules that locked the choice.
	Requirement string

	// Visited marks a choice already taken from this node this run.
	Visited bool
}

// Config wires an Engine.
type Config struct {
	World       *world.World
	Profile     *profile.Profile
	ProfilePath string
	WorldPath   string
	Saves       *save.Manager
	Tags        *tags.Canonicalizer
	Logger      *slog.Logger

	// Cache optionally mirrors each autosave snapshot into a shared
	// store. Best-effort: cache failures are logged, never fatal.
	Cache storage.SnapshotCache
}

// Engine drives one playthrough. It is single-threaded and synchronous:
// one player, one in-flight mutation at a time.
type Engine struct {
	SessionID uuid.UUID

	world       *world.World
	prof        *profile.Profile
	profilePath string
	player      *state.Player
	session     *state.Session
	saves       *save.Manager
	cache       storage.SnapshotCache
	canon       *tags.Canonicalizer
	eval        *condition.Evaluator
	apply       *effect.Applier
	logger      *slog.Logger

	status Status
	ending string
}

// New builds an engine in AwaitingStart, with the profile's unlocked
// starts merged into the in-memory world copy.
func New(cfg Config) *Engine {
	canon := cfg.Tags
	if canon == nil {
		canon = tags.NewCanonicalizer(nil)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	applier := effect.NewApplier(canon)
	applier.StartTitle = cfg.World.StartTitle

	cfg.World.UnlockStarts(cfg.Profile.UnlockedStarts)

	session := state.NewSession()
	session.WorldSeed = cfg.World.SessionSeed(cfg.WorldPath)
	session.ActiveArea = cfg.World.Title

	return &Engine{
		SessionID:   uuid.New(),
		world:       cfg.World,
		prof:        cfg.Profile,
		profilePath: cfg.ProfilePath,
		session:     session,
		saves:       cfg.Saves,
		cache:       cfg.Cache,
		canon:       canon,
		eval:        condition.NewEvaluator(canon),
		apply:       applier,
		logger:      log,
		status:      AwaitingStart,
	}
}

// Status returns the state machine's current state.
func (e *Engine) Status() Status { return e.status }

// Ending returns the ending name once the session has ended.
func (e *Engine) Ending() string { return e.ending }

// Player returns the player aggregate (nil before Begin).
func (e *Engine) Player() *state.Player { return e.player }

// Session returns the session record.
func (e *Engine) Session() *state.Session { return e.session }

// World returns the content graph.
func (e *Engine) World() *world.World { return e.world }

// Profile returns the cross-playthrough profile.
func (e *Engine) Profile() *profile.Profile { return e.prof }

// AvailableStarts returns the starts the player may currently choose:
// everything not locked, lock state already merged from the profile.
func (e *Engine) AvailableStarts() []world.Start {
	var starts []world.Start
	for _, s := range e.world.Starts {
		if s.Locked && !e.prof.IsUnlocked(s.StartID()) {
			continue
		}
		starts = append(starts, s)
	}
	return starts
}

// Begin starts a playthrough from a start id: fresh player state seeded
// with the start's tags plus accumulated legacy tags, canonicalized and
// deduplicated, then entry into the start's node.
func (e *Engine) Begin(startID, playerName string) ([]string, error) {
	if e.status != AwaitingStart {
		return nil, fmt.Errorf("engine: playthrough already started (status %s)", e.status)
	}
	start, ok := e.world.StartByID(startID)
	if !ok {
		return nil, fmt.Errorf("engine: unknown start %q", startID)
	}
	if start.Locked && !e.prof.IsUnlocked(start.StartID()) {
		return nil, fmt.Errorf("engine: start %q is locked", startID)
	}

	if playerName == "" {
		playerName = "Traveler"
	}
	e.player = state.NewPlayer(playerName)
	for _, faction := range e.world.Factions() {
		e.player.Rep[faction] = 0
	}

	seed := append([]string{}, start.Tags...)
	seed = append(seed, e.prof.LegacyTags...)
	e.player.Tags = e.canon.CanonicalizeList(seed)

	e.session.StartID = start.StartID()
	e.session.CurrentNode = start.Node
	e.status = InNode

	messages, err := e.enterNode()
	if err != nil {
		return messages, err
	}
	if e.status == InNode {
		e.autosave()
	}
	return messages, nil
}

// CurrentNode returns the active node, or a *world.NodeNotFoundError if
// the session points at a node missing from the graph. That condition
// is fatal to the session; the engine surfaces it structurally and does
// not attempt content repair.
func (e *Engine) CurrentNode() (*world.Node, error) {
	if e.status != InNode {
		return nil, ErrNotInNode
	}
	return e.world.Node(e.session.CurrentNode)
}

// Choices partitions the current node's choices into available and
// locked sets. Locked choices carry the unmet-requirement text produced
// by the evaluator's explain path.
func (e *Engine) Choices() (available, locked []ChoiceView, err error) {
	node, err := e.CurrentNode()
	if err != nil {
		return nil, nil, err
	}
	view := e.stateView()
	for i := range node.Choices {
		ch := &node.Choices[i]
		cv := ChoiceView{
			Index:   i,
			Text:    ch.Text,
			Visited: e.session.ChoiceTaken(e.session.CurrentNode, ch.Text),
		}
		if e.eval.Met(ch.Condition, view, e.world) {
			available = append(available, cv)
		} else {
			cv.Requirement = e.eval.Explain(ch.Condition, view, e.world)
			locked = append(locked, cv)
		}
	}
	return available, locked, nil
}

// Choose takes a choice by its index in the node's declared order. The
// choice must currently be available. Effects apply in declared order;
// the traversal is recorded in history unless a teleport rerouted it.
func (e *Engine) Choose(index int) ([]string, error) {
	node, err := e.CurrentNode()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(node.Choices) {
		return nil, fmt.Errorf("engine: choice index %d out of range", index)
	}
	ch := &node.Choices[index]
	if !e.eval.Met(ch.Condition, e.stateView(), e.world) {
		return nil, fmt.Errorf("engine: choice %q is locked", ch.Text)
	}

	origin := e.session.CurrentNode
	out := e.apply.ApplyAll(ch.Effects, e.player, e.session, e.prof)
	e.runIntents(&out)
	messages := out.Messages

	if out.Ended {
		e.finishEnded()
		return messages, nil
	}
	if e.player.HP <= 0 {
		e.finishPerished()
		return messages, nil
	}

	if out.Teleported {
		// The applier already moved the session; skip the history entry.
		enterMsgs, err := e.enterNode()
		messages = append(messages, enterMsgs...)
		if err != nil {
			return messages, err
		}
		if e.status == InNode {
			e.autosave()
		}
		return messages, nil
	}

	if ch.Target == "" {
		// Authoring defect, recoverable: report and stay put so the
		// host can offer the choices again.
		e.logger.Warn("Choice has no target; staying put", "node", origin, "choice", ch.Text)
		messages = append(messages, "[!] Choice had no target; staying put.")
		return messages, nil
	}

	e.session.History.Push(state.HistoryEntry{From: origin, To: ch.Target, Choice: ch.Text})
	e.session.RecordChoice(origin, ch.Text)
	e.session.CurrentNode = ch.Target

	enterMsgs, err := e.enterNode()
	messages = append(messages, enterMsgs...)
	if err != nil {
		return messages, err
	}
	if e.status == InNode {
		e.autosave()
	}
	return messages, nil
}

// enterNode applies the current node's on-enter effects and runs the
// terminal checks: ending sentinel, endings map, death. Chained
// teleports from on-enter effects are followed up to a fixed bound.
func (e *Engine) enterNode() ([]string, error) {
	var messages []string
	for hop := 0; ; hop++ {
		node, err := e.world.Node(e.session.CurrentNode)
		if err != nil {
			return messages, err
		}

		out := e.apply.ApplyAll(node.OnEnter, e.player, e.session, e.prof)
		e.runIntents(&out)
		messages = append(messages, out.Messages...)

		if out.Ended {
			e.finishEnded()
			return messages, nil
		}
		if e.player.HP <= 0 {
			e.finishPerished()
			return messages, nil
		}
		if name, isEnding := e.world.EndingName(e.session.CurrentNode); isEnding {
			e.status = Ended
			e.ending = name
			if e.prof.RecordEnding(name) {
				e.flushProfile()
			}
			return messages, nil
		}
		if !out.Teleported {
			return messages, nil
		}
		if hop >= teleportLimit {
			return messages, fmt.Errorf("engine: teleport chain exceeded %d hops at %q", teleportLimit, e.session.CurrentNode)
		}
	}
}

// finishEnded moves to Ended from the ending sentinel flag. The applier
// already recorded the ending as seen.
func (e *Engine) finishEnded() {
	name, _ := e.player.Ending()
	e.status = Ended
	e.ending = name
}

// finishPerished moves to Perished and records the synthetic ending.
func (e *Engine) finishPerished() {
	e.status = Perished
	e.ending = PerishedEnding
	if e.prof.RecordEnding(PerishedEnding) {
		e.flushProfile()
	}
}

// runIntents executes the persistence intents an outcome asked for and
// re-merges profile unlocks into the world copy.
func (e *Engine) runIntents(out *effect.Outcome) {
	if out.WantsProfileFlush() {
		e.flushProfile()
		e.world.UnlockStarts(e.prof.UnlockedStarts)
	}
}

func (e *Engine) flushProfile() {
	if e.profilePath == "" {
		return
	}
	if err := e.prof.Save(e.profilePath); err != nil {
		logger.WithError(e.logger, err).Error("Profile flush failed", "path", e.profilePath)
	}
}

func (e *Engine) autosave() {
	if e.saves != nil {
		e.saves.Autosave(e.player, e.session)
	}
	if e.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		snap := save.NewSnapshot(save.AutosaveSlot, e.world.Title, e.player, e.session, time.Now().UTC())
		if err := e.cache.Put(ctx, e.SessionID, snap); err != nil {
			e.logger.Warn("Snapshot cache write failed", "session", e.SessionID, "error", err)
		}
	}
}
