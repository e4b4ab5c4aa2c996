package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchworkisles/engine/internal/save"
	"github.com/patchworkisles/engine/pkg/profile"
	"github.com/patchworkisles/engine/pkg/tags"
	"github.com/patchworkisles/engine/pkg/world"
)

const testWorld = `{
	"title": "Patchwork Isles",
	"factions": ["Cartel", "Wardens"],
	"advanced_tags": ["Emissary"],
	"starts": [
		{"id": "dockhand", "node": "dock", "title": "The Dockhand", "tags": ["Diplomat"]},
		{"id": "smuggler", "node": "cove", "title": "The Smuggler's Road", "locked": true}
	],
	"endings": {"fall": "The Quiet Fall"},
	"nodes": {
		"dock": {
			"title": "The Dock",
			"text": "Gulls wheel over the pilings.",
			"choices": [
				{"text": "Walk into town", "target": "market"},
				{"text": "Flash the seal", "target": "market",
				 "condition": {"type": "rep_at_least", "faction": "Cartel", "value": 1}},
				{"text": "Wander off"},
				{"text": "Take the hidden stair",
				 "effects": [{"type": "teleport", "target": "cove"}]},
				{"text": "Dive the undertow",
				 "effects": [{"type": "teleport", "target": "undertow"}]},
				{"text": "Step into the fall", "target": "fall"},
				{"text": "Brave the riptide", "target": "market",
				 "effects": [{"type": "hp_delta", "value": -15}]},
				{"text": "Bribe the harbormaster", "target": "market",
				 "effects": [{"type": "unlock_start", "value": "smuggler"}]},
				{"text": "Cross the broken bridge", "target": "ghost"}
			]
		},
		"market": {"text": "Stalls crowd the square."},
		"undertow": {
			"text": "The current drags you under.",
			"on_enter": [{"type": "hp_delta", "value": -15}]
		},
		"cove": {"text": "Salt mist hides the boats."},
		"fall": {"text": "It ends here."}
	}
}`

type harness struct {
	eng         *Engine
	prof        *profile.Profile
	profilePath string
	savesDir    string
}

func newHarness(t *testing.T, prof *profile.Profile) *harness {
	t.Helper()
	dir := t.TempDir()
	worldPath := filepath.Join(dir, "isles.json")
	require.NoError(t, os.WriteFile(worldPath, []byte(testWorld), 0o644))

	w, err := world.Load(worldPath)
	require.NoError(t, err)

	if prof == nil {
		prof = profile.Default()
	}
	profilePath := filepath.Join(dir, "profile.json")
	require.NoError(t, prof.Save(profilePath))

	savesDir := filepath.Join(dir, "saves")
	saves := save.NewManager(savesDir, w.Title, func(string, error) bool { return true }, nil)

	eng := New(Config{
		World:       w,
		Profile:     prof,
		ProfilePath: profilePath,
		WorldPath:   worldPath,
		Saves:       saves,
		Tags:        tags.NewCanonicalizer(nil),
	})
	return &harness{eng: eng, prof: prof, profilePath: profilePath, savesDir: savesDir}
}

func (h *harness) begin(t *testing.T) {
	t.Helper()
	_, err := h.eng.Begin("dockhand", "Tess")
	require.NoError(t, err)
}

// chooseByText resolves a choice by its text so tests do not depend on
// declared order.
func (h *harness) chooseByText(t *testing.T, text string) []string {
	t.Helper()
	available, _, err := h.eng.Choices()
	require.NoError(t, err)
	for _, cv := range available {
		if cv.Text == text {
			msgs, err := h.eng.Choose(cv.Index)
			require.NoError(t, err)
			return msgs
		}
	}
	t.Fatalf("choice %q not available", text)
	return nil
}

func TestEngine_BeginSeedsCanonicalTags(t *testing.T) {
	prof := profile.Default()
	prof.LegacyTags = []string{"Emissary"}
	h := newHarness(t, prof)

	h.begin(t)

	p := h.eng.Player()
	// Start tag "Diplomat" and legacy "Emissary" collapse to one
	// canonical tag.
	assert.Equal(t, []string{"Emissary"}, p.Tags)
	assert.Equal(t, 10, p.HP)
	assert.Equal(t, map[string]int{"Cartel": 0, "Wardens": 0}, p.Rep)
	assert.Equal(t, InNode, h.eng.Status())
	assert.Equal(t, "dockhand", h.eng.Session().StartID)
}

func TestEngine_BeginRejectsLockedStart(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.eng.Begin("smuggler", "Tess")
	assert.Error(t, err)
}

func TestEngine_LockedStartOpensWithProfile(t *testing.T) {
	prof := profile.Default()
	prof.UnlockStart("smuggler")
	h := newHarness(t, prof)

	starts := h.eng.AvailableStarts()
	ids := make([]string, 0, len(starts))
	for _, s := range starts {
		ids = append(ids, s.StartID())
	}
	assert.Contains(t, ids, "smuggler")

	_, err := h.eng.Begin("smuggler", "Tess")
	assert.NoError(t, err)
}

func TestEngine_ChoicesPartitionWithRequirementText(t *testing.T) {
	h := newHarness(t, nil)
	h.begin(t)

	available, locked, err := h.eng.Choices()
	require.NoError(t, err)

	texts := func(views []ChoiceView) []string {
		out := make([]string, 0, len(views))
		for _, v := range views {
			out = append(out, v.Text)
		}
		return out
	}
	assert.Contains(t, texts(available), "Walk into town")
	require.Contains(t, texts(locked), "Flash the seal")
	for _, v := range locked {
		if v.Text == "Flash the seal" {
			assert.Equal(t, "Need Cartel reputation >= 1", v.Requirement)
		}
	}
	for _, v := range available {
		assert.Empty(t, v.Requirement)
	}
}

func TestEngine_ChooseLockedByIndexFails(t *testing.T) {
	h := newHarness(t, nil)
	h.begin(t)

	_, locked, err := h.eng.Choices()
	require.NoError(t, err)
	require.NotEmpty(t, locked)

	_, err = h.eng.Choose(locked[0].Index)
	assert.Error(t, err)
}

func TestEngine_ChooseRecordsHistoryAndVisited(t *testing.T) {
	h := newHarness(t, nil)
	h.begin(t)

	h.chooseByText(t, "Walk into town")

	s := h.eng.Session()
	assert.Equal(t, "market", s.CurrentNode)
	require.Equal(t, 1, s.History.Len())
	entry := s.History.Entries()[0]
	assert.Equal(t, "dock", entry.From)
	assert.Equal(t, "market", entry.To)
	assert.Equal(t, "Walk into town", entry.Choice)
	assert.True(t, s.ChoiceTaken("dock", "Walk into town"))
}

func TestEngine_EndingNodeFinishesAndPersists(t *testing.T) {
	h := newHarness(t, nil)
	h.begin(t)

	h.chooseByText(t, "Step into the fall")

	assert.Equal(t, Ended, h.eng.Status())
	assert.Equal(t, "The Quiet Fall", h.eng.Ending())
	assert.Contains(t, h.prof.SeenEndings, "The Quiet Fall")

	// The flush reached disk immediately.
	data, err := os.ReadFile(h.profilePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "The Quiet Fall")
}

func TestEngine_DeathYieldsSyntheticEnding(t *testing.T) {
	h := newHarness(t, nil)
	h.begin(t)

	h.chooseByText(t, "Brave the riptide")

	assert.Equal(t, Perished, h.eng.Status())
	assert.Equal(t, PerishedEnding, h.eng.Ending())
	assert.Less(t, h.eng.Player().HP, 1)
	assert.Contains(t, h.prof.SeenEndings, PerishedEnding)
}

func TestEngine_TeleportSkipsHistory(t *testing.T) {
	h := newHarness(t, nil)
	h.begin(t)

	h.chooseByText(t, "Take the hidden stair")

	s := h.eng.Session()
	assert.Equal(t, "cove", s.CurrentNode)
	assert.Equal(t, 0, s.History.Len(), "teleport traversal must not enter history")
	assert.Equal(t, InNode, h.eng.Status())
}

func TestEngine_TeleportIntoDeathDoesNotAutosave(t *testing.T) {
	h := newHarness(t, nil)
	h.begin(t)

	h.chooseByText(t, "Dive the undertow")

	require.Equal(t, Perished, h.eng.Status())
	assert.Equal(t, PerishedEnding, h.eng.Ending())

	// The autosave still holds the last live state from Begin, not the
	// finished run, so resuming lands back at the dock.
	primary := filepath.Join(h.savesDir, save.AutosaveSlot, "save_v1.json")
	data, err := os.ReadFile(primary)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"current_node": "dock"`)

	require.NoError(t, h.eng.LoadSlot(save.AutosaveSlot))
	assert.Equal(t, InNode, h.eng.Status())
	assert.Equal(t, "dock", h.eng.Session().CurrentNode)
	assert.Equal(t, 10, h.eng.Player().HP)
}

func TestEngine_LoadSlotKeepsDeadRunPerished(t *testing.T) {
	h := newHarness(t, nil)
	h.begin(t)

	h.chooseByText(t, "Brave the riptide")
	require.Equal(t, Perished, h.eng.Status())

	_, err := h.eng.SaveSlot("doomed")
	require.NoError(t, err)

	require.NoError(t, h.eng.LoadSlot("doomed"))
	assert.Equal(t, Perished, h.eng.Status())
	assert.Equal(t, PerishedEnding, h.eng.Ending())
	assert.Less(t, h.eng.Player().HP, 1)
}

func TestEngine_MissingTargetStaysPut(t *testing.T) {
	h := newHarness(t, nil)
	h.begin(t)

	msgs := h.chooseByText(t, "Wander off")

	assert.Equal(t, "dock", h.eng.Session().CurrentNode)
	assert.Equal(t, 0, h.eng.Session().History.Len())
	assert.Contains(t, msgs, "[!] Choice had no target; staying put.")

	// The node's choices remain offered.
	available, _, err := h.eng.Choices()
	require.NoError(t, err)
	assert.NotEmpty(t, available)
}

func TestEngine_DanglingTargetIsFatal(t *testing.T) {
	h := newHarness(t, nil)
	h.begin(t)

	available, _, err := h.eng.Choices()
	require.NoError(t, err)
	var idx = -1
	for _, v := range available {
		if v.Text == "Cross the broken bridge" {
			idx = v.Index
		}
	}
	require.NotEqual(t, -1, idx)

	_, err = h.eng.Choose(idx)
	var notFound *world.NodeNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "ghost", notFound.NodeID)
}

func TestEngine_UnlockStartFlushesAndMerges(t *testing.T) {
	h := newHarness(t, nil)
	h.begin(t)

	msgs := h.chooseByText(t, "Bribe the harbormaster")

	assert.Contains(t, msgs, "[#] Origin unlocked: The Smuggler's Road")
	assert.True(t, h.prof.IsUnlocked("smuggler"))

	data, err := os.ReadFile(h.profilePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "smuggler")

	// The in-memory world copy is re-merged, so the start shows up
	// immediately for the next playthrough.
	start, ok := h.eng.World().StartByID("smuggler")
	require.True(t, ok)
	assert.False(t, start.Locked)
}

func TestEngine_AutosaveAfterTransition(t *testing.T) {
	h := newHarness(t, nil)
	h.begin(t)
	h.chooseByText(t, "Walk into town")

	primary := filepath.Join(h.savesDir, save.AutosaveSlot, "save_v1.json")
	data, err := os.ReadFile(primary)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"current_node": "market"`)
}

func TestEngine_QuickSaveLoadRoundTrip(t *testing.T) {
	h := newHarness(t, nil)
	h.begin(t)
	h.chooseByText(t, "Walk into town")

	_, err := h.eng.QuickSave()
	require.NoError(t, err)

	// Wander further state drift, then load back.
	h.eng.Session().CurrentNode = "cove"
	require.NoError(t, h.eng.LoadSlot(save.QuickSlot))

	assert.Equal(t, "market", h.eng.Session().CurrentNode)
	assert.Equal(t, InNode, h.eng.Status())
	assert.Equal(t, "Tess", h.eng.Player().Name)
}

func TestEngine_SaveBeforeBeginFails(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.eng.QuickSave()
	assert.ErrorIs(t, err, ErrNotInNode)
}

func TestEngine_SecondBeginFails(t *testing.T) {
	h := newHarness(t, nil)
	h.begin(t)

	_, err := h.eng.Begin("dockhand", "Tess")
	assert.Error(t, err)
}

func TestEngine_SessionSeedStable(t *testing.T) {
	h := newHarness(t, nil)
	h.begin(t)
	assert.NotZero(t, h.eng.Session().WorldSeed)
}
