// Package cache persists intermediate stage results so a pipeline run can be
// resumed without repeating expensive LLM work. Each (stage, runID) pair maps
// to exactly one file; content is the stage's serialized record and is opaque
// to this package.
package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/archlens/archlens/internal/runid"
)

// ErrNotFound is returned by Load when no result has been saved for the key.
// Callers treat it as "execute the stage fresh", never as a failure.
var ErrNotFound = errors.New("intermediate result not found")

// Store is a run-scoped intermediate result cache rooted at one directory.
// Keys are single-writer: the stage that owns (stage, runID) is the only
// writer, so no locking beyond the atomic rename is needed.
type Store struct {
	dir string
}

// New creates a store rooted at dir. The directory is created on first Save.
func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(stage string, id runid.ID) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.data", stage, id))
}

// Save durably persists content under (stage, id), replacing any previous
// value. The write goes through a temp file and rename so a crash never
// leaves a half-written record behind.
func (s *Store) Save(stage string, id runid.ID, content []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+stage+"-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing intermediate result: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing intermediate result: %w", err)
	}
	if err := os.Rename(tmpName, s.path(stage, id)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("committing intermediate result: %w", err)
	}

	slog.Debug("saved intermediate result", "stage", stage, "run_id", id.String())
	return nil
}

// Load returns the content previously saved under (stage, id), or ErrNotFound.
func (s *Store) Load(stage string, id runid.ID) ([]byte, error) {
	content, err := os.ReadFile(s.path(stage, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading intermediate result: %w", err)
	}
	slog.Debug("loaded intermediate result", "stage", stage, "run_id", id.String())
	return content, nil
}
