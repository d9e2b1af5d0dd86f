// Package identity holds the player's chosen display name. The name gates
// access to every lobby and game context: an empty name means the player
// must go through the entry flow first.
package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// MaxNameLength is the longest display name the server accepts.
const MaxNameLength = 20

// ValidationError describes a rejected display name. It is surfaced inline
// and never reaches the network.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid player name: %s", e.Reason)
}

type profile struct {
	PlayerName string `yaml:"playerName"`
}

// Store is the process-wide display name holder, persisted to a profile
// file so the name survives restarts.
type Store struct {
	path string

	mu   sync.RWMutex
	name string
}

// NewStore creates a store backed by the profile file at path and loads any
// previously persisted name. A missing or unreadable profile is not an
// error; the store just starts empty.
func NewStore(path string) *Store {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("could not read profile")
		}
		return s
	}

	var p profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("could not parse profile")
		return s
	}
	if validate(p.PlayerName) == nil {
		s.name = strings.TrimSpace(p.PlayerName)
	}
	return s
}

// Name returns the current display name, or empty if none is set.
func (s *Store) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// SetName validates, stores, and persists the display name. The name is
// trimmed before validation; it must be non-empty and at most MaxNameLength
// characters.
func (s *Store) SetName(name string) error {
	trimmed := strings.TrimSpace(name)
	if err := validate(trimmed); err != nil {
		return err
	}

	s.mu.Lock()
	s.name = trimmed
	s.mu.Unlock()

	if err := s.persist(trimmed); err != nil {
		// The in-memory name is still usable for this session.
		log.Warn().Err(err).Msg("could not persist player name")
	}
	return nil
}

// Clear erases the display name, forcing the player back through entry.
func (s *Store) Clear() {
	s.mu.Lock()
	s.name = ""
	s.mu.Unlock()

	if err := s.persist(""); err != nil {
		log.Warn().Err(err).Msg("could not persist cleared player name")
	}
}

func (s *Store) persist(name string) error {
	data, err := yaml.Marshal(profile{PlayerName: name})
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}

func validate(trimmed string) error {
	if trimmed == "" {
		return &ValidationError{Reason: "name must not be empty"}
	}
	// Counted in characters, not bytes, so multibyte names get the full
	// length allowance.
	if utf8.RuneCountInString(trimmed) > MaxNameLength {
		return &ValidationError{Reason: fmt.Sprintf("name must be at most %d characters", MaxNameLength)}
	}
	return nil
}
