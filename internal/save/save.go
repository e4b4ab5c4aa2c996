// Package save persists session snapshots to named slots. Each slot is
// a directory holding a primary file and a backup file. Writes are
// atomic (temp file, then rename) and the backup is refreshed from the
// primary before each replace, so the backup always holds the previous
// successful save and a crash mid-write can never corrupt the primary.
package save

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/patchworkisles/engine/pkg/state"
)

// SchemaVersion is the snapshot schema this build reads and writes.
// Loads require an exact match; a mismatch is corruption, never a
// silent downgrade.
const SchemaVersion = 1

const (
	saveFilename   = "save_v1.json"
	backupFilename = "save_v1.bak"
	schemaName     = "save_v1"
)

// Reserved slot names.
const (
	AutosaveSlot = "autosave"
	QuickSlot    = "quick"
)

const slotChars = "abcdefghijklmnopqrstuvwxyz0123456789-_"

// Typed failure reasons. Save and load errors are recoverable: they
// carry enough structure for the host to decide, and never take down
// the session.
var (
	// ErrNoSave means the slot has no primary file.
	ErrNoSave = errors.New("no save found")

	// ErrBadSlotName means the requested slot name is empty after
	// filtering or collides with a reserved slot.
	ErrBadSlotName = errors.New("invalid slot name")

	// ErrRestoreDeclined means the primary was corrupt, a backup was
	// available, and the restore policy declined it.
	ErrRestoreDeclined = errors.New("backup restore declined")
)

// CorruptError reports a save file that could not be parsed or failed
// schema validation.
type CorruptError struct {
	Path   string
	Reason string
	Err    error
}

func (e *CorruptError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("save file %s corrupt: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("save file %s corrupt: %s", e.Path, e.Reason)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// Metadata describes a snapshot for slot listings.
type Metadata struct {
	Schema     string    `json:"schema"`
	Version    int       `json:"version"`
	SaveSlot   string    `json:"save_slot"`
	SavedAt    time.Time `json:"saved_at"`
	WorldTitle string    `json:"world_title,omitempty"`
	WorldSeed  int64     `json:"world_seed"`
	ActiveArea string    `json:"active_area,omitempty"`
	PlayerName string    `json:"player_name,omitempty"`
}

// SnapshotState is the state block of a snapshot.
type SnapshotState struct {
	CurrentNode string              `json:"current_node"`
	History     *state.History      `json:"history"`
	StartID     string              `json:"start_id"`
	Player      *state.Player       `json:"player"`
	ActiveArea  string              `json:"active_area,omitempty"`
	WorldSeed   int64               `json:"world_seed"`
	ChoicesMade map[string][]string `json:"choices_made,omitempty"`
}

// Snapshot is the versioned save payload.
type Snapshot struct {
	Version  int           `json:"version"`
	Metadata Metadata      `json:"metadata"`
	State    SnapshotState `json:"state"`
}

// SlotMetadata summarizes one slot for listings.
type SlotMetadata struct {
	Slot       string
	SavedAt    time.Time
	PlayerName string
	ActiveArea string
	WorldTitle string
}

// RestorePolicy decides whether to restore a slot's backup after the
// primary is found corrupt. The host typically asks the player.
type RestorePolicy func(slot string, reason error) bool

// Manager orchestrates save, load, autosave, and slot listing for one
// saves directory.
type Manager struct {
	baseDir    string
	worldTitle string
	logger     *slog.Logger
	restore    RestorePolicy
	now        func() time.Time
}

// NewManager returns a Manager rooted at baseDir. The restore policy
// may be nil, in which case corrupt primaries are never restored from
// backup automatically.
func NewManager(baseDir, worldTitle string, restore RestorePolicy, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		baseDir:    baseDir,
		worldTitle: worldTitle,
		logger:     logger,
		restore:    restore,
		now:        time.Now,
	}
}

// NormalizeSlot lowercases and filters a user-supplied slot name to the
// safe character set. The reserved slots pass through unchanged; a
// user-chosen name may not collide with the autosave slot.
func NormalizeSlot(slot string) (string, error) {
	slot = strings.ToLower(strings.TrimSpace(slot))
	if slot == AutosaveSlot || slot == QuickSlot {
		return slot, nil
	}
	var b strings.Builder
	for _, r := range slot {
		if strings.ContainsRune(slotChars, r) {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return "", fmt.Errorf("%w: must contain letters or numbers", ErrBadSlotName)
	}
	if cleaned == AutosaveSlot {
		return "", fmt.Errorf("%w: the autosave slot is reserved", ErrBadSlotName)
	}
	return cleaned, nil
}

// Save writes a snapshot of the player and session to the slot and
// returns the primary file path.
func (m *Manager) Save(slot string, p *state.Player, s *state.Session) (string, error) {
	normalized, err := NormalizeSlot(slot)
	if err != nil {
		return "", err
	}
	snap := m.buildSnapshot(normalized, p, s)
	dir := filepath.Join(m.baseDir, normalized)
	primary := filepath.Join(dir, saveFilename)
	backup := filepath.Join(dir, backupFilename)
	if err := m.writeSnapshot(primary, backup, snap, true); err != nil {
		return "", err
	}
	return primary, nil
}

// Load reads the slot's snapshot and reconstructs player and session
// state. On a corrupt primary with an intact backup, the restore policy
// is consulted; a confirmed restore loads the backup and immediately
// rewrites it as the new primary, without deriving a fresh backup from
// the file known to be corrupt.
func (m *Manager) Load(slot string) (*state.Player, *state.Session, error) {
	normalized, err := NormalizeSlot(slot)
	if err != nil {
		return nil, nil, err
	}
	dir := filepath.Join(m.baseDir, normalized)
	primary := filepath.Join(dir, saveFilename)
	backup := filepath.Join(dir, backupFilename)

	snap, err := readSnapshot(primary)
	if err != nil {
		var corrupt *CorruptError
		if !errors.As(err, &corrupt) {
			return nil, nil, err
		}
		if _, statErr := os.Stat(backup); statErr != nil {
			return nil, nil, fmt.Errorf("slot %q: %w (no backup available)", normalized, err)
		}
		if m.restore == nil || !m.restore(normalized, err) {
			return nil, nil, fmt.Errorf("slot %q: %w", normalized, ErrRestoreDeclined)
		}
		snap, err = readSnapshot(backup)
		if err != nil {
			return nil, nil, fmt.Errorf("slot %q backup: %w", normalized, err)
		}
		if err := m.writeSnapshot(primary, backup, snap, false); err != nil {
			return nil, nil, fmt.Errorf("slot %q: rewrite restored primary: %w", normalized, err)
		}
		m.logger.Info("Backup save restored", "slot", normalized)
	}

	return applySnapshot(snap)
}

// Autosave writes the reserved autosave slot. Failures degrade to a
// warning: an autosave must never stall or kill the interaction loop.
func (m *Manager) Autosave(p *state.Player, s *state.Session) {
	if s == nil || s.CurrentNode == "" {
		return
	}
	if _, err := m.Save(AutosaveSlot, p, s); err != nil {
		m.logger.Warn("Autosave failed; progress not guaranteed", "error", err)
	}
}

// ListSlots returns metadata for every slot holding a primary file,
// sorted by slot name. The autosave slot is excluded unless requested.
// A slot whose primary cannot be read appears as a name-only entry.
func (m *Manager) ListSlots(includeAutosave bool) []SlotMetadata {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		return nil
	}
	var slots []SlotMetadata
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !includeAutosave && name == AutosaveSlot {
			continue
		}
		primary := filepath.Join(m.baseDir, name, saveFilename)
		if _, err := os.Stat(primary); err != nil {
			continue
		}
		snap, err := readSnapshot(primary)
		if err != nil {
			slots = append(slots, SlotMetadata{Slot: name})
			continue
		}
		slots = append(slots, SlotMetadata{
			Slot:       name,
			SavedAt:    snap.Metadata.SavedAt,
			PlayerName: snap.Metadata.PlayerName,
			ActiveArea: snap.Metadata.ActiveArea,
			WorldTitle: snap.Metadata.WorldTitle,
		})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Slot < slots[j].Slot })
	return slots
}

func (m *Manager) buildSnapshot(slot string, p *state.Player, s *state.Session) *Snapshot {
	return NewSnapshot(slot, m.worldTitle, p, s, m.now().UTC())
}

// NewSnapshot assembles a versioned snapshot of the player and session.
func NewSnapshot(slot, worldTitle string, p *state.Player, s *state.Session, at time.Time) *Snapshot {
	return &Snapshot{
		Version: SchemaVersion,
		Metadata: Metadata{
			Schema:     schemaName,
			Version:    SchemaVersion,
			SaveSlot:   slot,
			SavedAt:    at,
			WorldTitle: worldTitle,
			WorldSeed:  s.WorldSeed,
			ActiveArea: s.ActiveArea,
			PlayerName: p.Name,
		},
		State: SnapshotState{
			CurrentNode: s.CurrentNode,
			History:     s.History,
			StartID:     s.StartID,
			Player:      p,
			ActiveArea:  s.ActiveArea,
			WorldSeed:   s.WorldSeed,
			ChoicesMade: s.ChoicesMade,
		},
	}
}

// writeSnapshot serializes snap to a temp file in the slot directory,
// refreshes the backup from the current primary if asked, then renames
// the temp file over the primary.
func (m *Manager) writeSnapshot(primary, backup string, snap *Snapshot, makeBackup bool) error {
	dir := filepath.Dir(primary)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create slot directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, saveFilename+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp save file: %w", err)
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write save: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close save: %w", err)
	}
	if makeBackup {
		if _, err := os.Stat(primary); err == nil {
			if err := copyFile(primary, backup); err != nil {
				os.Remove(tmp.Name())
				return fmt.Errorf("refresh backup: %w", err)
			}
		}
	}
	if err := os.Rename(tmp.Name(), primary); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace save: %w", err)
	}
	return nil
}

func readSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNoSave
	}
	if err != nil {
		return nil, fmt.Errorf("read save: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, &CorruptError{Path: path, Reason: "invalid JSON", Err: err}
	}
	if err := validateSnapshot(&snap, path); err != nil {
		return nil, err
	}
	return &snap, nil
}

func validateSnapshot(snap *Snapshot, path string) error {
	if snap.Version != SchemaVersion {
		return &CorruptError{
			Path:   path,
			Reason: fmt.Sprintf("unsupported schema version %d (want %d)", snap.Version, SchemaVersion),
		}
	}
	if snap.State.Player == nil {
		return &CorruptError{Path: path, Reason: "player block missing"}
	}
	if snap.State.CurrentNode == "" {
		return &CorruptError{Path: path, Reason: "current node missing"}
	}
	return nil
}

func applySnapshot(snap *Snapshot) (*state.Player, *state.Session, error) {
	p := snap.State.Player
	p.Normalize()
	s := &state.Session{
		CurrentNode: snap.State.CurrentNode,
		StartID:     snap.State.StartID,
		WorldSeed:   snap.State.WorldSeed,
		ActiveArea:  snap.State.ActiveArea,
		History:     snap.State.History,
		ChoicesMade: snap.State.ChoicesMade,
	}
	s.Normalize()
	return p, s, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
