// Package kvstore implements the minimal persistent key/value boundary
// (spec §6): a JSON file under the XDG state directory recording the last
// fatal error and its occurrence count across process restarts.
package kvstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sarpel/audiostreamer/internal/errs"
)

// record is the on-disk shape; fields are exported for encoding/json.
type record struct {
	LastFatalKind string `json:"last_fatal_kind"`
	Count         uint64 `json:"count"`
}

// Store is a JSON-file-backed PersistentStore implementation.
type Store struct {
	path string
	mu   sync.Mutex
}

// Open resolves path (falling back to the XDG state directory when empty)
// and returns a Store bound to it. The backing file is created lazily.
func Open(path string) (*Store, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o700); err != nil {
		return nil, err
	}
	return &Store{path: resolved}, nil
}

// Path returns the resolved backing file path.
func (s *Store) Path() string {
	return s.path
}

// WriteLastFatal persists the most recent fatal error kind and its
// cumulative occurrence count.
func (s *Store) WriteLastFatal(kind errs.Kind, count uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := record{LastFatalKind: kind.String(), Count: count}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

// ReadLastFatal returns the persisted last-fatal record, if any. The third
// return value is false when no record has ever been written.
func (s *Store) ReadLastFatal() (errs.Kind, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return 0, 0, false
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return 0, 0, false
	}

	kind, ok := errs.ParseKind(rec.LastFatalKind)
	if !ok {
		return 0, 0, false
	}
	return kind, rec.Count, true
}

func resolvePath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, "audiostreamer", "kvstore.json"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "audiostreamer", "kvstore.json"), nil
}
