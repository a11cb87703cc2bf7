package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/invex/internal/home"
	"github.com/jackzampolin/invex/internal/output"
	"github.com/jackzampolin/invex/internal/schema"
)

var schemaShowAs string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect extraction schemas",
}

var schemaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workspace schemas and the built-in samples",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		type entry struct {
			Kind   string `json:"kind" yaml:"kind"`
			Name   string `json:"name" yaml:"name"`
			Source string `json:"source" yaml:"source"`
		}
		var entries []entry
		for _, src := range []struct {
			kind string
			list func() ([]string, error)
		}{
			{schema.BuiltinExtraction, e.home.Schemas},
			{schema.BuiltinOutput, e.home.OutputSchemas},
		} {
			names, err := src.list()
			if err != nil {
				return err
			}
			for _, n := range names {
				entries = append(entries, entry{Kind: src.kind, Name: n, Source: "workspace"})
			}
		}
		builtins, err := schema.Builtins()
		if err != nil {
			return err
		}
		for _, b := range builtins {
			entries = append(entries, entry{Kind: b.Kind, Name: b.FileName(), Source: "builtin"})
		}

		if structured() {
			return output.Write(cmd.OutOrStdout(), format, entries)
		}
		records := make([][]string, len(entries))
		for i, en := range entries {
			records[i] = []string{en.Kind, en.Name, en.Source}
		}
		output.WriteRecords(cmd.OutOrStdout(), []string{"Kind", "Name", "Source"}, records)
		return nil
	},
}

var schemaShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show how a schema is presented to each extractor",
	Long: `Load an extraction schema and print one of its renderings:

  fields      normalized fields in declaration order (default)
  jsonschema  JSON schema embedded in the json_mode prompt
  strict      strict schema sent as the structured_output response format
  parameters  function parameters declared by function_call
  go          the typed model as Go source

The name is looked up in schemas/, then among the built-in samples; a path
also works.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		s, err := findSchema(e.home, args[0])
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		switch schemaShowAs {
		case "", "fields":
			return showFields(w, s)
		case "jsonschema":
			return writeJSON(w, s.JSONSchema())
		case "strict":
			return writeJSON(w, s.StrictJSONSchema())
		case "parameters":
			return writeJSON(w, s.Model().Parameters())
		case "go":
			_, err := io.WriteString(w, s.Model().GoSource())
			return err
		default:
			return fmt.Errorf("unknown rendering %q", schemaShowAs)
		}
	},
}

func init() {
	schemaShowCmd.Flags().StringVar(&schemaShowAs, "as", "fields", "rendering: fields, jsonschema, strict, parameters or go")

	schemaCmd.AddCommand(schemaListCmd)
	schemaCmd.AddCommand(schemaShowCmd)
	rootCmd.AddCommand(schemaCmd)
}

// findSchema resolves name in the workspace, then among the builtins.
func findSchema(h *home.Dir, name string) (*schema.Extraction, error) {
	path, err := home.Resolve(h.SchemasDir(), name, ".json")
	if err == nil {
		return schema.LoadFile(path)
	}
	b, berr := schema.GetBuiltin(schema.BuiltinExtraction, name)
	if berr != nil {
		return nil, err
	}
	s, err := schema.Normalize(b.Data)
	if err != nil {
		return nil, err
	}
	if s.Title == "" {
		s.Title = b.Name
	}
	return s, nil
}

func showFields(w io.Writer, s *schema.Extraction) error {
	if structured() {
		return output.Write(w, format, s)
	}
	records := make([][]string, 0, len(s.Fields))
	var walk func(prefix string, fields []schema.FieldSpec)
	walk = func(prefix string, fields []schema.FieldSpec) {
		for _, f := range fields {
			name := prefix + f.Name
			records = append(records, []string{name, string(f.Type), strconv.FormatBool(f.Required), f.Description})
			walk(name+".", f.Properties)
			if f.Items != nil {
				walk(name+"[].", f.Items.Properties)
			}
		}
	}
	walk("", s.Fields)
	fmt.Fprintf(w, "%s\n", s.Title)
	output.WriteRecords(w, []string{"Field", "Type", "Required", "Description"}, records)
	return nil
}

func writeJSON(w io.Writer, raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
