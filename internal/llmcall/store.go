package llmcall

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/samber/lo"
)

// Store reads call records back from a JSONL log.
type Store struct {
	path string
}

// NewStore creates a store over the log at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// QueryFilter specifies filters for listing calls.
type QueryFilter struct {
	Session   string
	Document  string
	Extractor string
	Model     string
	After     *time.Time
	Before    *time.Time
	Success   *bool
	Limit     int // most recent calls kept when set
}

func (f QueryFilter) match(c Call) bool {
	switch {
	case f.Session != "" && c.Session != f.Session,
		f.Document != "" && c.Document != f.Document,
		f.Extractor != "" && c.Extractor != f.Extractor,
		f.Model != "" && c.Model != f.Model,
		f.Success != nil && c.Success != *f.Success,
		f.After != nil && !c.Timestamp.After(*f.After),
		f.Before != nil && !c.Timestamp.Before(*f.Before):
		return false
	}
	return true
}

// All returns every record in file order. A missing log is empty.
// Malformed lines are reported with their line number.
func (s *Store) All() ([]Call, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var calls []Call
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for line := 1; sc.Scan(); line++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var c Call
		if err := json.Unmarshal(sc.Bytes(), &c); err != nil {
			return calls, fmt.Errorf("%s:%d: %w", s.path, line, err)
		}
		calls = append(calls, c)
	}
	return calls, sc.Err()
}

// Get retrieves a single call by ID, or nil when absent.
func (s *Store) Get(id string) (*Call, error) {
	calls, err := s.All()
	if err != nil {
		return nil, err
	}
	c, ok := lo.Find(calls, func(c Call) bool { return c.ID == id })
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// List retrieves calls matching the filter in file order.
func (s *Store) List(filter QueryFilter) ([]Call, error) {
	calls, err := s.All()
	if err != nil {
		return nil, err
	}
	calls = lo.Filter(calls, func(c Call, _ int) bool { return filter.match(c) })
	if filter.Limit > 0 && len(calls) > filter.Limit {
		calls = calls[len(calls)-filter.Limit:]
	}
	return calls, nil
}

// Summary aggregates usage over a set of calls.
type Summary struct {
	Calls        int `json:"calls" yaml:"calls"`
	Failed       int `json:"failed" yaml:"failed"`
	InputTokens  int `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int `json:"output_tokens" yaml:"output_tokens"`
}

// Summarize totals calls and token usage.
func Summarize(calls []Call) Summary {
	return Summary{
		Calls:        len(calls),
		Failed:       lo.CountBy(calls, func(c Call) bool { return !c.Success }),
		InputTokens:  lo.SumBy(calls, func(c Call) int { return c.InputTokens }),
		OutputTokens: lo.SumBy(calls, func(c Call) int { return c.OutputTokens }),
	}
}

// Group is the Summary of the calls for one model and extractor.
type Group struct {
	Model     string `json:"model" yaml:"model"`
	Extractor string `json:"extractor" yaml:"extractor"`
	Summary   `yaml:",inline"`
}

// SummarizeGroups totals calls per model and extractor, ordered by model and
// then extractor.
func SummarizeGroups(calls []Call) []Group {
	byKey := lo.GroupBy(calls, func(c Call) [2]string { return [2]string{c.Model, c.Extractor} })
	groups := make([]Group, 0, len(byKey))
	for key, cs := range byKey {
		groups = append(groups, Group{Model: key[0], Extractor: key[1], Summary: Summarize(cs)})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Model != groups[j].Model {
			return groups[i].Model < groups[j].Model
		}
		return groups[i].Extractor < groups[j].Extractor
	})
	return groups
}
