package home

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackzampolin/invex/internal/schema"
)

const (
	// DefaultDirName is the default name for the invex workspace.
	DefaultDirName = ".invex"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// CallLogFileName is the JSONL log of every model call.
	CallLogFileName = "api_calls.jsonl"
)

// Workspace subdirectories.
const (
	DocsDirName          = "docs"    // source documents to convert
	OutputsDirName       = "outputs" // converted markdown, the extraction inputs
	SchemasDirName       = schema.BuiltinExtraction
	OutputSchemasDirName = schema.BuiltinOutput
	ReportsDirName       = "reports"
)

// Dir represents the invex workspace directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.invex).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the workspace.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// CallLogPath returns the path to the model call log.
func (d *Dir) CallLogPath() string {
	return filepath.Join(d.path, CallLogFileName)
}

// DocsDir returns the directory holding source documents.
func (d *Dir) DocsDir() string {
	return filepath.Join(d.path, DocsDirName)
}

// OutputsDir returns the directory holding converted markdown.
func (d *Dir) OutputsDir() string {
	return filepath.Join(d.path, OutputsDirName)
}

// SchemasDir returns the directory holding extraction schemas.
func (d *Dir) SchemasDir() string {
	return filepath.Join(d.path, SchemasDirName)
}

// OutputSchemasDir returns the directory holding output schemas.
func (d *Dir) OutputSchemasDir() string {
	return filepath.Join(d.path, OutputSchemasDirName)
}

// ReportsDir returns the directory saved reports are written to.
func (d *Dir) ReportsDir() string {
	return filepath.Join(d.path, ReportsDirName)
}

// EnsureExists creates the workspace and its subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, sub := range []string{d.DocsDir(), d.OutputsDir(), d.SchemasDir(), d.OutputSchemasDir(), d.ReportsDir()} {
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", sub, err)
		}
	}
	return nil
}

// Exists returns true if the workspace directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the workspace.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// SeedBuiltins installs the sample schemas that are not already present and
// returns the paths it wrote. Existing files are never overwritten.
func (d *Dir) SeedBuiltins() ([]string, error) {
	builtins, err := schema.Builtins()
	if err != nil {
		return nil, err
	}
	var written []string
	for _, b := range builtins {
		dst := filepath.Join(d.path, b.Kind, b.FileName())
		if _, err := os.Stat(dst); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			return written, err
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return written, err
		}
		if err := os.WriteFile(dst, b.Data, 0o644); err != nil {
			return written, fmt.Errorf("failed to install %s: %w", b.FileName(), err)
		}
		written = append(written, dst)
	}
	return written, nil
}

// Documents returns the converted markdown files available for extraction.
func (d *Dir) Documents() ([]string, error) {
	return list(d.OutputsDir(), ".md")
}

// Schemas returns the extraction schema files.
func (d *Dir) Schemas() ([]string, error) {
	return list(d.SchemasDir(), ".json")
}

// OutputSchemas returns the output schema files.
func (d *Dir) OutputSchemas() ([]string, error) {
	return list(d.OutputSchemasDir(), ".json")
}

// Resolve maps a user-supplied name onto a file in dir. Paths that exist as
// given are returned unchanged; bare names are looked up in dir, with ext
// appended when missing.
func Resolve(dir, name, ext string) (string, error) {
	if name == "" {
		return "", errors.New("empty name")
	}
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}
	candidate := filepath.Join(dir, name)
	if !strings.HasSuffix(strings.ToLower(name), ext) {
		candidate += ext
	}
	if _, err := os.Stat(candidate); err != nil {
		return "", fmt.Errorf("%s not found in %s", name, dir)
	}
	return candidate, nil
}

// list returns the sorted names of regular files in dir with extension ext.
// A missing directory is an empty list.
func list(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ext) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
