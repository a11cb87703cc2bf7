package schema

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed builtin/schemas/*.json builtin/output_schemas/*.json
var builtinFS embed.FS

// Builtin kinds, named after the workspace directory each is installed into.
const (
	BuiltinExtraction = "schemas"
	BuiltinOutput     = "output_schemas"
)

// Builtin is a sample schema shipped with the binary.
type Builtin struct {
	Kind string // BuiltinExtraction or BuiltinOutput
	Name string // file name without extension
	Data []byte
}

// FileName returns the file name the builtin is installed as.
func (b Builtin) FileName() string {
	return b.Name + ".json"
}

// Builtins returns every embedded schema, extraction schemas first, sorted
// by name within each kind.
func Builtins() ([]Builtin, error) {
	var out []Builtin
	for _, kind := range []string{BuiltinExtraction, BuiltinOutput} {
		dir := path.Join("builtin", kind)
		entries, err := fs.ReadDir(builtinFS, dir)
		if err != nil {
			return nil, fmt.Errorf("failed to list builtin %s: %w", kind, err)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
		for _, e := range entries {
			data, err := builtinFS.ReadFile(path.Join(dir, e.Name()))
			if err != nil {
				return nil, fmt.Errorf("failed to read builtin %s: %w", e.Name(), err)
			}
			out = append(out, Builtin{
				Kind: kind,
				Name: strings.TrimSuffix(e.Name(), ".json"),
				Data: data,
			})
		}
	}
	return out, nil
}

// GetBuiltin returns one embedded schema by kind and name.
func GetBuiltin(kind, name string) (*Builtin, error) {
	data, err := builtinFS.ReadFile(path.Join("builtin", kind, name+".json"))
	if err != nil {
		return nil, fmt.Errorf("builtin schema not found: %s/%s", kind, name)
	}
	return &Builtin{Kind: kind, Name: name, Data: data}, nil
}
