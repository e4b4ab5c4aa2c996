package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Info summarizes a stored profile for selection menus.
type Info struct {
	Name           string
	Path           string
	SeenEndings    int
	LegacyTags     int
	UnlockedStarts int
}

// Manager handles the directory of named profiles, one JSON file each.
type Manager struct {
	dir string
}

// NewManager returns a manager rooted at dir, creating it if needed.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create profiles directory: %w", err)
	}
	return &Manager{dir: dir}, nil
}

// Path returns the file path for a profile name.
func (m *Manager) Path(name string) string {
	return filepath.Join(m.dir, name+".json")
}

// List returns available profiles sorted by name. Unreadable profile
// files are skipped.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("read profiles directory: %w", err)
	}
	var infos []Info
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(m.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var p Profile
		if err := json.Unmarshal(data, &p); err != nil {
			continue
		}
		infos = append(infos, Info{
			Name:           strings.TrimSuffix(entry.Name(), ".json"),
			Path:           path,
			SeenEndings:    len(p.SeenEndings),
			LegacyTags:     len(p.LegacyTags),
			UnlockedStarts: len(p.UnlockedStarts),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Create writes a new default profile. The name must be alphanumeric
// with hyphens or underscores, and must not already exist.
func (m *Manager) Create(name string) (string, error) {
	if !namePattern.MatchString(name) {
		return "", fmt.Errorf("profile name %q: only letters, numbers, hyphens, and underscores are allowed", name)
	}
	path := m.Path(name)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("profile %q already exists", name)
	}
	if err := Default().Save(path); err != nil {
		return "", err
	}
	return path, nil
}

// Delete removes a profile file. Returns false if it did not exist.
func (m *Manager) Delete(name string) (bool, error) {
	path := m.Path(name)
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete profile: %w", err)
	}
	return true, nil
}
