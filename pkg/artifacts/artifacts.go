// Package artifacts reads and writes the files a run hands to later pipeline
// stages: the web server code template, its main file, the API endpoint
// schema and the final fact sheet.
package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"autogippity/pkg/config"
	"autogippity/pkg/factsheet"
)

// ErrPathNotConfigured is returned when an operation's output path is empty.
var ErrPathNotConfigured = errors.New("artifact path not configured")

// Store resolves artifact paths from configuration.
type Store struct {
	paths config.PathsConfig
}

// New creates a store over the configured paths.
func New(paths config.PathsConfig) *Store {
	return &Store{paths: paths}
}

// Paths returns the configured paths.
func (s *Store) Paths() config.PathsConfig {
	return s.paths
}

func read(path, what string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: %s", ErrPathNotConfigured, what)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", what, err)
	}
	return string(b), nil
}

func write(path, what string, data []byte) error {
	if path == "" {
		return fmt.Errorf("%w: %s", ErrPathNotConfigured, what)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", what, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // generated source is meant to be readable
		return fmt.Errorf("failed to write %s: %w", what, err)
	}
	return nil
}

// ReadCodeTemplate returns the web server code template.
func (s *Store) ReadCodeTemplate() (string, error) {
	return read(s.paths.CodeTemplate, "code template")
}

// ReadExecMain returns the current backend main file.
func (s *Store) ReadExecMain() (string, error) {
	return read(s.paths.ExecMain, "backend main")
}

// SaveBackendCode overwrites the backend main file.
func (s *Store) SaveBackendCode(contents string) error {
	return write(s.paths.ExecMain, "backend main", []byte(contents))
}

// SaveAPIEndpoints writes the endpoint schema as indented JSON.
func (s *Store) SaveAPIEndpoints(routes []factsheet.RouteObject) error {
	if routes == nil {
		routes = []factsheet.RouteObject{}
	}
	b, err := json.MarshalIndent(routes, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode API endpoints: %w", err)
	}
	return write(s.paths.APISchema, "API endpoints", b)
}

// SaveFactSheet writes the fact sheet as indented JSON.
func (s *Store) SaveFactSheet(fs *factsheet.FactSheet) error {
	b, err := json.MarshalIndent(fs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode fact sheet: %w", err)
	}
	return write(s.paths.FactSheet, "fact sheet", b)
}

// LoadFactSheet reads a fact sheet written by SaveFactSheet.
func (s *Store) LoadFactSheet() (*factsheet.FactSheet, error) {
	raw, err := read(s.paths.FactSheet, "fact sheet")
	if err != nil {
		return nil, err
	}
	var fs factsheet.FactSheet
	if err := json.Unmarshal([]byte(raw), &fs); err != nil {
		return nil, fmt.Errorf("failed to decode fact sheet: %w", err)
	}
	return &fs, nil
}
