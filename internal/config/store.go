package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"unicode"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrInvalidKey is returned when a config key contains invalid characters.
var ErrInvalidKey = errors.New("invalid config key")

// ValidateKey checks if a config key contains only allowed characters.
// Valid keys contain: letters, digits, dots, underscores, and hyphens.
// This protects against typos and malformed keys.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	for i, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '_' && r != '-' {
			return fmt.Errorf("%w: invalid character %q at position %d", ErrInvalidKey, r, i)
		}
	}
	// Don't allow keys starting or ending with dots
	if key[0] == '.' || key[len(key)-1] == '.' {
		return fmt.Errorf("%w: key cannot start or end with a dot", ErrInvalidKey)
	}
	return nil
}

// Store reads and edits individual settings by dotted key.
type Store interface {
	// Get returns a single entry, or nil when the key is neither set nor
	// has a default.
	Get(key string) (*Entry, error)

	// Set updates a key and persists the change.
	Set(key string, value any) error

	// GetAll returns every set or defaulted entry.
	GetAll() (map[string]Entry, error)
}

// Entry represents a single configuration entry.
type Entry struct {
	Key         string `json:"key" yaml:"key"`
	Value       any    `json:"value" yaml:"value"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// FileStore implements Store over a YAML config file. Only keys present in
// the file are written back; defaults stay implicit.
type FileStore struct {
	path string
	v    *viper.Viper
}

// NewFileStore opens path. A missing file is created on the first Set.
func NewFileStore(path string) (*FileStore, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return &FileStore{path: path, v: v}, nil
}

// Get returns a single config entry by key.
func (s *FileStore) Get(key string) (*Entry, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	def := GetDefault(key)
	if !s.v.IsSet(key) {
		return def, nil
	}
	e := &Entry{Key: key, Value: s.v.Get(key)}
	if def != nil {
		e.Description = def.Description
	}
	return e, nil
}

// Set updates key and rewrites the file.
func (s *FileStore) Set(key string, value any) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	s.v.Set(key, value)
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}

// GetAll returns file entries merged over the defaults.
func (s *FileStore) GetAll() (map[string]Entry, error) {
	all := make(map[string]Entry)
	for _, e := range DefaultEntries() {
		all[e.Key] = e
	}
	for _, key := range s.v.AllKeys() {
		e := Entry{Key: key, Value: s.v.Get(key)}
		if def, ok := all[key]; ok {
			e.Description = def.Description
		}
		all[key] = e
	}
	return all, nil
}

// SortedEntries returns the entries of a GetAll result ordered by key.
func SortedEntries(all map[string]Entry) []Entry {
	out := make([]Entry, 0, len(all))
	for _, e := range all {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// ParseValue interprets a command-line value as YAML so that numbers and
// booleans keep their type. Anything that does not parse stays a string.
func ParseValue(raw string) any {
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
		return raw
	}
	return v
}
