// Package output maps a consistency report onto the user's output schema and
// renders it.
package output

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/jackzampolin/invex/internal/consistency"
	"github.com/jackzampolin/invex/internal/extract"
	"github.com/jackzampolin/invex/internal/schema"
)

// Field is one output column with its aggregate statistics.
type Field struct {
	Name           string   `json:"name" yaml:"name"`
	Description    string   `json:"description,omitempty" yaml:"description,omitempty"`
	Source         string   `json:"source,omitempty" yaml:"source,omitempty"` // matched extraction field
	MajorityValue  any      `json:"majority_value" yaml:"majority_value"`
	AgreementRatio float64  `json:"agreement_ratio" yaml:"agreement_ratio"`
	DistinctValues []string `json:"distinct_values" yaml:"distinct_values"`
	Samples        int      `json:"samples" yaml:"samples"`
	Mean           *float64 `json:"mean,omitempty" yaml:"mean,omitempty"`
	Note           string   `json:"note,omitempty" yaml:"note,omitempty"`
}

// Label is the column heading: the description when present, else the name.
func (f Field) Label() string {
	if f.Description != "" {
		return f.Description
	}
	return f.Name
}

// Run is one row of the per-run table, values in output field order.
type Run struct {
	Run    int    `json:"run" yaml:"run"`
	Values []any  `json:"values" yaml:"values"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Rendered is a report shaped by an output schema.
type Rendered struct {
	Extractor    string                    `json:"extractor,omitempty" yaml:"extractor,omitempty"`
	Model        string                    `json:"model,omitempty" yaml:"model,omitempty"`
	Runs         int                       `json:"runs" yaml:"runs"`
	Errors       int                       `json:"errors" yaml:"errors"`
	ErrorsByKind map[extract.ErrorKind]int `json:"errors_by_kind,omitempty" yaml:"errors_by_kind,omitempty"`
	Fields       []Field                   `json:"fields" yaml:"fields"`
	Rows         []Run                     `json:"rows" yaml:"rows"`

	// Interrupted is set when the batch was cancelled before every run finished.
	Interrupted bool `json:"interrupted,omitempty" yaml:"interrupted,omitempty"`
}

// Format maps report fields onto out by name. Output fields without a
// matching extraction field get a nil value and a Note; extraction fields
// not named by out are dropped.
func Format(report *consistency.Report, out *schema.Output) Rendered {
	r := Rendered{
		Runs:         report.Runs,
		Errors:       report.ErrorCount,
		ErrorsByKind: report.ErrorsByKind,
		Fields:       make([]Field, 0, len(out.Fields)),
	}

	available := lo.Map(report.Fields, func(f consistency.FieldReport, _ int) string { return f.Name })
	sources := make([]string, len(out.Fields))
	for i, of := range out.Fields {
		f := Field{Name: of.Name, Description: of.Description, DistinctValues: []string{}}
		src, ok := match(of.Name, available)
		if !ok {
			f.Note = fmt.Sprintf("no extracted field named %s", of.Name)
			r.Fields = append(r.Fields, f)
			continue
		}
		fr, _ := report.Field(src)
		sources[i] = src
		f.Source = src
		f.MajorityValue = fr.MajorityValue
		f.AgreementRatio = fr.AgreementRatio
		f.DistinctValues = fr.DistinctValues
		f.Samples = fr.Samples
		f.Mean = mean(fr.Values)
		r.Fields = append(r.Fields, f)
	}

	r.Rows = rows(report, sources)
	return r
}

// match finds the extraction field for an output name: exact, then with
// spaces as underscores, then lowercased, then both.
func match(name string, available []string) (string, bool) {
	candidates := []string{
		name,
		strings.ReplaceAll(name, " ", "_"),
		strings.ToLower(name),
		strings.ToLower(strings.ReplaceAll(name, " ", "_")),
	}
	for _, c := range candidates {
		if lo.Contains(available, c) {
			return c, true
		}
	}
	return "", false
}

func rows(report *consistency.Report, sources []string) []Run {
	all := append(append([]extract.Result{}, report.Results...), report.Errors...)
	sort.Slice(all, func(i, j int) bool { return all[i].RunIndex < all[j].RunIndex })

	out := make([]Run, 0, len(all))
	for _, res := range all {
		row := Run{Run: res.RunIndex + 1, Values: make([]any, len(sources))}
		if res.Err != nil {
			row.Error = res.Err.Error()
		}
		for j, src := range sources {
			if src != "" && res.Values != nil {
				row.Values[j] = res.Values[src]
			}
		}
		out = append(out, row)
	}
	return out
}

// mean averages the numeric samples; nil when there are none.
func mean(values []consistency.RunValue) *float64 {
	nums := lo.FilterMap(values, func(v consistency.RunValue, _ int) (float64, bool) {
		n, ok := v.Value.(float64)
		return n, ok
	})
	if len(nums) == 0 {
		return nil
	}
	m := lo.Sum(nums) / float64(len(nums))
	return &m
}
