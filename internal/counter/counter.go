// internal/counter/counter.go
package counter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/tamzrod/ble-fixture/internal/config"
)

// ErrOutOfRange is returned when a seed or stored value is not a valid identity.
var ErrOutOfRange = errors.New("counter: value out of range")

// State is the persisted shape of the counter file.
type State struct {
	AntIDCnt int `yaml:"ant_id_cnt" toml:"ant_id_cnt"`
}

// Store is a file-backed identity counter.
// Safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	path   string
	format config.Format
	state  State

	// seed from settings; ignored once the file exists
	seed        int
	seedIgnored bool
}

// Open loads the counter at path, or seeds a new file with seed when absent.
func Open(path string, seed int) (*Store, error) {
	s := &Store{path: path, format: config.FormatOf(path), seed: seed}

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if !valid(seed) {
			return nil, fmt.Errorf("%w: seed %d", ErrOutOfRange, seed)
		}
		s.state.AntIDCnt = seed
		if err := s.persist(); err != nil {
			return nil, err
		}
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("counter: read %s: %w", path, err)
	}

	if err := s.decode(b); err != nil {
		return nil, fmt.Errorf("counter: %s: %w", path, err)
	}
	if !valid(s.state.AntIDCnt) {
		return nil, fmt.Errorf("%w: stored %d", ErrOutOfRange, s.state.AntIDCnt)
	}
	s.seedIgnored = s.state.AntIDCnt != seed
	return s, nil
}

// SeedIgnored reports whether Open found a stored value different from
// the seed it was given. The stored value wins.
func (s *Store) SeedIgnored() (seed int, ignored bool) {
	return s.seed, s.seedIgnored
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Current returns the identity the next unit will receive.
func (s *Store) Current() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.AntIDCnt
}

// Advance moves to the next identity and persists it.
// The in-memory value advances even when persisting fails, so an identity
// is never handed out twice within one run.
func (s *Store) Advance() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.AntIDCnt = Next(s.state.AntIDCnt)
	return s.state.AntIDCnt, s.persist()
}

// Next returns the identity after v, wrapping 65534 → 1.
func Next(v int) int {
	if v >= config.MaxAntID || v < config.MinAntID {
		return config.MinAntID
	}
	return v + 1
}

func valid(v int) bool {
	return v >= config.MinAntID && v <= config.MaxAntID
}

func (s *Store) decode(b []byte) error {
	if s.format == config.FormatTOML {
		return toml.Unmarshal(b, &s.state)
	}
	return yaml.Unmarshal(b, &s.state)
}

func (s *Store) encode() ([]byte, error) {
	if s.format == config.FormatTOML {
		return toml.Marshal(s.state)
	}
	return yaml.Marshal(s.state)
}

// persist writes the state to a temp file beside path and renames it over.
func (s *Store) persist() error {
	b, err := s.encode()
	if err != nil {
		return fmt.Errorf("counter: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".counter-*")
	if err != nil {
		return fmt.Errorf("counter: temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("counter: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("counter: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("counter: close: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("counter: rename: %w", err)
	}
	return nil
}
