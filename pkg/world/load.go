package world

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Seed is the optional world-declared session seed. Authors may write
// it as an integer or a numeric string (base prefixes allowed).
type Seed struct {
	Value int64
	valid bool
}

func (s *Seed) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		s.Value, s.valid = n, true
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("seed: expected integer or string, got %s", data)
	}
	parsed, err := strconv.ParseInt(strings.TrimSpace(str), 0, 64)
	if err != nil {
		// A non-numeric seed string is ignored, matching the loader's
		// lenient handling of optional metadata.
		s.valid = false
		return nil
	}
	s.Value, s.valid = parsed, true
	return nil
}

// Load reads and decodes a world document. Files ending in .yaml or
// .yml are decoded as YAML; everything else as JSON. YAML documents are
// converted through their JSON form so the custom condition and effect
// decoding applies uniformly.
func Load(path string) (*World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read world: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse world yaml %s: %w", path, err)
		}
		data, err = json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("convert world yaml %s: %w", path, err)
		}
	}

	w := &World{}
	if err := json.Unmarshal(data, w); err != nil {
		return nil, fmt.Errorf("parse world %s: %w", path, err)
	}
	if w.Title == "" || w.Nodes == nil {
		return nil, fmt.Errorf("world %s: missing title or nodes", path)
	}
	if w.Endings == nil {
		w.Endings = map[string]string{}
	}
	return w, nil
}

// SessionSeed returns the world's declared seed, or a stable hash of
// the world file path when no valid seed is declared. The hash depends
// only on the path string, so the same file in the same place always
// seeds the same way.
func (w *World) SessionSeed(path string) int64 {
	if w.Seed != nil && w.Seed.valid {
		return w.Seed.Value
	}
	sum := sha1.Sum([]byte(path))
	return int64(binary.BigEndian.Uint32(sum[:4]))
}
