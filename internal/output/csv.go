package output

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"newsarc/internal/types"
	"newsarc/internal/window"
)

// utf8BOM makes the CSV open cleanly in spreadsheet tools that sniff the
// encoding (the archive content is Traditional Chinese).
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVSink streams records to a temporary file as they arrive, then sorts
// by date ascending and renames to the destination on Close. Streaming
// keeps a crash or fatal run error from losing accepted records.
type CSVSink struct {
	dir      string
	explicit string // explicit destination filename, or ""
	spec     window.Spec

	file    *os.File
	writer  *csv.Writer
	records []types.ArticleRecord
	final   string
	logger  *slog.Logger
}

// NewCSVSink creates a CSV sink writing into dir. When explicitName is
// empty the destination name is derived from the emitted records'
// date range at close time.
func NewCSVSink(dir, explicitName string, spec window.Spec, logger *slog.Logger) (*CSVSink, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.CreateTemp(dir, ".newsarc-*.csv")
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	if _, err := f.Write(utf8BOM); err != nil {
		f.Close()
		return nil, fmt.Errorf("write BOM: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(types.CSVHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write CSV header: %w", err)
	}
	w.Flush()

	return &CSVSink{
		dir:      dir,
		explicit: explicitName,
		spec:     spec,
		file:     f,
		writer:   w,
		logger:   logger.With("component", "csv_sink"),
	}, nil
}

func (s *CSVSink) Name() string { return "csv" }

// Append writes one record and flushes, keeping an in-memory copy for
// the sort pass at close.
func (s *CSVSink) Append(rec types.ArticleRecord) error {
	if err := s.writer.Write(rec.CSVRow()); err != nil {
		return &types.StorageError{Backend: "csv", Err: err}
	}
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return &types.StorageError{Backend: "csv", Err: err}
	}
	s.records = append(s.records, rec)
	return nil
}

// Close sorts the output by date ascending (stable, so same-minute
// records keep their emission order), rewrites the file, and renames it
// to the destination.
func (s *CSVSink) Close() error {
	sorted := SortRecords(s.records)

	if _, err := s.file.Seek(0, 0); err != nil {
		return &types.StorageError{Backend: "csv", Err: err}
	}
	if err := s.file.Truncate(0); err != nil {
		return &types.StorageError{Backend: "csv", Err: err}
	}
	if _, err := s.file.Write(utf8BOM); err != nil {
		return &types.StorageError{Backend: "csv", Err: err}
	}

	w := csv.NewWriter(s.file)
	if err := w.Write(types.CSVHeader); err != nil {
		return &types.StorageError{Backend: "csv", Err: err}
	}
	for _, rec := range sorted {
		if err := w.Write(rec.CSVRow()); err != nil {
			return &types.StorageError{Backend: "csv", Err: err}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &types.StorageError{Backend: "csv", Err: err}
	}
	if err := s.file.Close(); err != nil {
		return &types.StorageError{Backend: "csv", Err: err}
	}

	dest := filepath.Join(s.dir, s.destinationName(sorted))
	if err := os.Rename(s.file.Name(), dest); err != nil {
		return &types.StorageError{Backend: "csv", Err: err}
	}
	s.final = dest

	s.logger.Info("CSV written", "path", dest, "items", len(sorted))
	return nil
}

// Path returns the destination path. Valid after Close.
func (s *CSVSink) Path() string { return s.final }

// destinationName picks the output filename: explicit when given, else
// derived from the emitted set's actual date range, else from the
// nominal window bounds when nothing was emitted.
func (s *CSVSink) destinationName(sorted []types.ArticleRecord) string {
	if s.explicit != "" {
		return s.explicit
	}
	if len(sorted) == 0 {
		return DeriveFilename(s.spec.Start, s.spec.End)
	}
	return DeriveFilename(sorted[0].Date, sorted[len(sorted)-1].Date)
}

// SortRecords returns the records sorted by date ascending. The sort is
// stable: records with equal timestamps keep their emission order.
// Sorting an already-sorted slice is a no-op.
func SortRecords(records []types.ArticleRecord) []types.ArticleRecord {
	sorted := make([]types.ArticleRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	return sorted
}

// DeriveFilename builds the destination name from a date range:
// result_YYYYMMDD_HHMM~HHMM.csv when both ends share a Taipei calendar
// day, result_YYYYMMDD-HHMM~YYYYMMDD-HHMM.csv otherwise.
func DeriveFilename(start, end time.Time) string {
	start = start.In(types.Taipei)
	end = end.In(types.Taipei)

	sy, sm, sd := start.Date()
	ey, em, ed := end.Date()
	if sy == ey && sm == em && sd == ed {
		return fmt.Sprintf("result_%s_%s~%s.csv",
			start.Format("20060102"), start.Format("1504"), end.Format("1504"))
	}
	return fmt.Sprintf("result_%s~%s.csv",
		start.Format("20060102-1504"), end.Format("20060102-1504"))
}
