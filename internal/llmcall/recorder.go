package llmcall

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/jackzampolin/invex/internal/extract"
)

// Recorder appends calls to a JSONL stream. It is safe for concurrent use,
// so Record can be wired directly as a runner observer. Write failures are
// logged, never returned: a broken log must not fail an extraction.
type Recorder struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	logger *slog.Logger
}

// NewRecorder creates a recorder writing to w.
func NewRecorder(w io.Writer, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{w: w, logger: logger}
}

// OpenRecorder appends to the file at path, creating it if needed.
func OpenRecorder(path string, logger *slog.Logger) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open call log: %w", err)
	}
	r := NewRecorder(f, logger)
	r.closer = f
	return r, nil
}

// Record captures an extraction result.
func (r *Recorder) Record(res extract.Result, opts RecordOptions) {
	r.RecordCall(FromResult(res, opts))
}

// RecordCall captures an already-constructed Call.
func (r *Recorder) RecordCall(call *Call) {
	if r == nil || call == nil {
		return
	}
	data, err := json.Marshal(call)
	if err != nil {
		r.logger.Warn("failed to serialize call record", "id", call.ID, "error", err)
		return
	}
	data = append(data, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.w.Write(data); err != nil {
		r.logger.Warn("failed to write call record", "id", call.ID, "error", err)
	}
}

// Observer returns a function that records every result with opts.
func (r *Recorder) Observer(opts RecordOptions) func(extract.Result) {
	return func(res extract.Result) {
		r.Record(res, opts)
	}
}

// Close closes the underlying file when the recorder opened it.
func (r *Recorder) Close() error {
	if r == nil || r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
