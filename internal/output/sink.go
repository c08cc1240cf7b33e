// Package output persists emitted records. The CSV sink streams rows
// during the run and finalizes (stable date sort plus derived filename)
// on close; the mongo sink mirrors records into a collection.
package output

import (
	"log/slog"

	"newsarc/internal/types"
)

// RecordSink is the interface for all output backends.
type RecordSink interface {
	// Append persists one accepted record.
	Append(rec types.ArticleRecord) error

	// Close finalizes the output and releases resources.
	Close() error

	// Name returns the backend identifier.
	Name() string
}

// MultiSink writes records to multiple backends simultaneously.
type MultiSink struct {
	backends []RecordSink
	logger   *slog.Logger
}

// NewMultiSink creates a sink that fans out to multiple backends.
func NewMultiSink(backends []RecordSink, logger *slog.Logger) *MultiSink {
	return &MultiSink{
		backends: backends,
		logger:   logger.With("component", "multi_sink"),
	}
}

func (s *MultiSink) Name() string { return "multi" }

func (s *MultiSink) Append(rec types.ArticleRecord) error {
	var firstErr error
	for _, backend := range s.backends {
		if err := backend.Append(rec); err != nil {
			s.logger.Error("backend append failed", "backend", backend.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *MultiSink) Close() error {
	var firstErr error
	for _, backend := range s.backends {
		if err := backend.Close(); err != nil {
			s.logger.Error("backend close failed", "backend", backend.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
