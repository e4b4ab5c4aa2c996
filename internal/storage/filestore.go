// Package storage supplies the engine's external stores: world
// documents from a data directory, and an optional Redis-backed cache
// that mirrors the latest session snapshot for hosted deployments.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/patchworkisles/engine/pkg/world"
)

// FileStore loads world documents from a directory. Worlds are static
// resources: read-only, one file each, JSON or YAML.
type FileStore struct {
	dataDir string
	logger  *slog.Logger
}

func NewFileStore(dataDir string, logger *slog.Logger) *FileStore {
	if dataDir == "" {
		dataDir = "./data"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{dataDir: dataDir, logger: logger}
}

// ListWorlds returns the names of world documents in the data
// directory, sorted, without extensions.
func (f *FileStore) ListWorlds(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.dataDir)
	if err != nil {
		return nil, fmt.Errorf("read data directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		switch ext {
		case ".json", ".yaml", ".yml":
			names = append(names, strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())))
		}
	}
	sort.Strings(names)
	return names, nil
}

// GetWorld loads a world by name, trying the supported extensions. It
// returns the world and the path it was loaded from, which callers use
// for seed derivation.
func (f *FileStore) GetWorld(ctx context.Context, name string) (*world.World, string, error) {
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := filepath.Join(f.dataDir, name+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		w, err := world.Load(path)
		if err != nil {
			return nil, "", err
		}
		return w, path, nil
	}
	return nil, "", fmt.Errorf("world %q not found in %s", name, f.dataDir)
}
