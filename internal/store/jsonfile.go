// Package store provides a small local persistence primitive: a
// mutex-guarded, atomically-written JSON file. The teacher repo has no
// relational database dependency anywhere in its import graph (or the
// rest of the retrieval pack's Go modules); its own components that
// need durable local state — internal/reputation's PeerHistory,
// internal/config's archive/rollback — use exactly this pattern: an
// in-memory map guarded by sync.RWMutex, flushed to a JSON file with a
// temp-file-then-rename for atomicity. We follow that idiom for the
// address book (the routing table is kept in memory only) rather than
// introducing a SQL driver
// the corpus never reaches for (see DESIGN.md).
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONFile persists a single JSON value at path, guarded by an internal
// mutex so callers can treat Load/Save as atomic with respect to each
// other within one process.
type JSONFile struct {
	mu   sync.Mutex
	path string
}

func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

// Load decodes the file's contents into v. A missing file is not an
// error; v is left unmodified so callers can pre-populate defaults.
func (f *JSONFile) Load(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("store: read %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("store: decode %s: %w", f.path, err)
	}
	return nil
}

// Save atomically writes v as JSON: temp file in the same directory,
// then rename, so a crash mid-write never corrupts the previous
// generation.
func (f *JSONFile) Save(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", f.path, err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("store: mkdir %s: %w", dir, err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("store: write temp %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: rename %s: %w", tmp, err)
	}
	return nil
}
