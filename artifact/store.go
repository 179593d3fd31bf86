// Package artifact manages the temporary files that carry uploaded audio into
// the transcription stage.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	fallbackName = "upload"
	maxNameLen   = 200
)

// Store writes each upload into its own request-scoped subdirectory of a
// scratch directory.
type Store struct {
	dir      string
	initOnce sync.Once
	initErr  error
}

// NewStore returns a store rooted at dir. The directory is created on the
// first Save.
func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("artifact directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving artifact directory: %w", err)
	}
	return &Store{dir: abs}, nil
}

// Dir returns the absolute scratch directory.
func (s *Store) Dir() string { return s.dir }

// Save writes data under a fresh request key and returns the file path.
func (s *Store) Save(name string, data []byte) (string, error) {
	s.initOnce.Do(func() {
		s.initErr = os.MkdirAll(s.dir, 0o755)
	})
	if s.initErr != nil {
		return "", fmt.Errorf("creating artifact directory: %w", s.initErr)
	}

	requestDir := filepath.Join(s.dir, uuid.NewString())
	if err := os.Mkdir(requestDir, 0o700); err != nil {
		return "", fmt.Errorf("creating request directory: %w", err)
	}

	path := filepath.Join(requestDir, Sanitize(name))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		_ = os.RemoveAll(requestDir)
		return "", fmt.Errorf("writing artifact: %w", err)
	}
	return path, nil
}

// Remove deletes an artifact and its request directory. Removing an artifact
// that no longer exists is not an error.
func (s *Store) Remove(path string) error {
	requestDir := filepath.Dir(filepath.Clean(path))
	rel, err := filepath.Rel(s.dir, requestDir)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || strings.ContainsRune(rel, filepath.Separator) {
		return fmt.Errorf("artifact %q is outside %s", path, s.dir)
	}
	if err := os.RemoveAll(requestDir); err != nil {
		return fmt.Errorf("removing artifact: %w", err)
	}
	return nil
}

// Sanitize reduces a caller-supplied filename to [A-Za-z0-9._] with no
// leading dots.
func Sanitize(name string) string {
	name = strings.TrimSpace(name)
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_':
			return r
		}
		return -1
	}, name)
	if len(cleaned) > maxNameLen {
		// keep the tail so the extension survives
		cleaned = cleaned[len(cleaned)-maxNameLen:]
	}
	cleaned = strings.TrimLeft(cleaned, ".")
	if cleaned == "" {
		return fallbackName
	}
	return cleaned
}
