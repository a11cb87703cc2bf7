// Package consistency aggregates repeated extraction runs into per-field
// agreement statistics.
package consistency

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/jackzampolin/invex/internal/extract"
	"github.com/jackzampolin/invex/internal/schema"
)

// ErrAggregation marks a batch with negative or duplicated run indices.
var ErrAggregation = errors.New("aggregation error")

// RunValue is one run's canonical value for a field.
type RunValue struct {
	Run   int `json:"run" yaml:"run"`
	Value any `json:"value" yaml:"value"`
}

// FieldReport summarizes one schema field across the successful runs.
type FieldReport struct {
	Name           string     `json:"name" yaml:"name"`
	DistinctValues []string   `json:"distinct_values" yaml:"distinct_values"`
	AgreementRatio float64    `json:"agreement_ratio" yaml:"agreement_ratio"`
	MajorityValue  any        `json:"majority_value" yaml:"majority_value"`
	Samples        int        `json:"samples" yaml:"samples"`
	Values         []RunValue `json:"values" yaml:"values"`
}

// Report is the aggregate of one batch.
type Report struct {
	Runs         int                       `json:"runs" yaml:"runs"`
	Errors       []extract.Result          `json:"errors,omitempty" yaml:"-"`
	ErrorCount   int                       `json:"error_count" yaml:"error_count"`
	ErrorsByKind map[extract.ErrorKind]int `json:"errors_by_kind,omitempty" yaml:"errors_by_kind,omitempty"`
	Fields       []FieldReport             `json:"fields" yaml:"fields"`

	// Results holds the successful runs in RunIndex order.
	Results []extract.Result `json:"-" yaml:"-"`
}

// Failed reports whether no run succeeded.
func (r *Report) Failed() bool {
	return r.Runs == 0 || r.ErrorCount == r.Runs
}

// Field returns the report for the named field.
func (r *Report) Field(name string) (FieldReport, bool) {
	return lo.Find(r.Fields, func(f FieldReport) bool { return f.Name == name })
}

// Aggregate computes per-field statistics over results. Failed runs are
// excluded from every tally. Fields are reported in schema order.
//
// The majority value is the most frequent equality key; ties go to the value
// seen at the lowest run index. A field with no non-null samples has ratio 0
// and a nil majority.
func Aggregate(results []extract.Result, s *schema.Extraction) (*Report, error) {
	if err := checkIndices(results); err != nil {
		return nil, err
	}

	sorted := make([]extract.Result, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RunIndex < sorted[j].RunIndex })

	failed, ok := lo.FilterReject(sorted, func(r extract.Result, _ int) bool { return r.Failed() })
	report := &Report{
		Runs:       len(sorted),
		Errors:     failed,
		ErrorCount: len(failed),
		Results:    ok,
		Fields:     make([]FieldReport, 0, len(s.Fields)),
	}
	if len(failed) > 0 {
		report.ErrorsByKind = lo.CountValuesBy(failed, func(r extract.Result) extract.ErrorKind { return r.Err.Kind })
	}

	for _, f := range s.Fields {
		report.Fields = append(report.Fields, aggregateField(f, ok))
	}
	return report, nil
}

// checkIndices rejects negative and duplicate run indices. Gaps are allowed:
// attempts dropped by cancellation leave holes in an otherwise valid batch.
func checkIndices(results []extract.Result) error {
	seen := make(map[int]bool, len(results))
	for _, r := range results {
		if r.RunIndex < 0 {
			return fmt.Errorf("%w: negative run index %d", ErrAggregation, r.RunIndex)
		}
		if seen[r.RunIndex] {
			return fmt.Errorf("%w: duplicate run index %d", ErrAggregation, r.RunIndex)
		}
		seen[r.RunIndex] = true
	}
	return nil
}

type tally struct {
	count int
	first int // position of first occurrence among samples
	value any
}

func aggregateField(f schema.FieldSpec, results []extract.Result) FieldReport {
	fr := FieldReport{
		Name:           f.Name,
		DistinctValues: []string{},
		Values:         []RunValue{},
	}

	counts := make(map[string]*tally)
	for _, r := range results {
		v := r.Values[f.Name]
		if v == nil {
			continue
		}
		key := Key(f, v)
		t, ok := counts[key]
		if !ok {
			t = &tally{first: fr.Samples, value: v}
			counts[key] = t
			fr.DistinctValues = append(fr.DistinctValues, key)
		}
		t.count++
		fr.Samples++
		fr.Values = append(fr.Values, RunValue{Run: r.RunIndex, Value: v})
	}
	if fr.Samples == 0 {
		return fr
	}

	var best *tally
	for _, key := range fr.DistinctValues {
		t := counts[key]
		if best == nil || t.count > best.count || t.count == best.count && t.first < best.first {
			best = t
		}
	}
	fr.MajorityValue = best.value
	fr.AgreementRatio = float64(best.count) / float64(fr.Samples)
	return fr
}

// Key is the equality key used to compare values of field f across runs.
// Strings have internal whitespace runs collapsed, case kept. Numbers use the
// shortest decimal form, so 100, 100.0 and "100.00" agree. Objects and arrays
// compare by canonical JSON with sorted keys.
func Key(f schema.FieldSpec, v any) string {
	switch f.Type {
	case schema.TypeNumber:
		if n, ok := number(v); ok {
			return strconv.FormatFloat(n, 'f', -1, 64)
		}
	case schema.TypeDate:
		if s, ok := v.(string); ok {
			if d, err := extract.ParseDate(strings.TrimSpace(s)); err == nil {
				return d
			}
		}
	case schema.TypeObject, schema.TypeArray:
		return canonicalJSON(normalize(f, v))
	}
	return scalarKey(v)
}

func scalarKey(v any) string {
	switch val := v.(type) {
	case string:
		return strings.Join(strings.Fields(val), " ")
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	}
	return canonicalJSON(v)
}

func number(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case string:
		n, err := extract.ParseNumber(val)
		return n, err == nil
	}
	return 0, false
}

// normalize rewrites nested members into their key form so that objects
// differing only in formatting compare equal.
func normalize(f schema.FieldSpec, v any) any {
	switch val := v.(type) {
	case map[string]any:
		if len(f.Properties) == 0 {
			return val
		}
		out := make(map[string]any, len(val))
		for _, p := range f.Properties {
			if member, ok := val[p.Name]; ok && member != nil {
				out[p.Name] = memberKey(p, member)
			}
		}
		return out
	case []any:
		if f.Items == nil {
			return val
		}
		return lo.Map(val, func(item any, _ int) any {
			if item == nil {
				return nil
			}
			return memberKey(*f.Items, item)
		})
	}
	return v
}

func memberKey(f schema.FieldSpec, v any) any {
	if f.Type == schema.TypeObject || f.Type == schema.TypeArray {
		return normalize(f, v)
	}
	return Key(f, v)
}

// canonicalJSON relies on encoding/json sorting map keys.
func canonicalJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
