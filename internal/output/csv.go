// internal/output/csv.go
package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/valpere/StoreScrapexter/internal/store"
)

// CSVWriter writes stores in store.Columns order. The header is written once,
// before the first row.
type CSVWriter struct {
	filename      string
	file          *os.File
	writer        *csv.Writer
	headerWritten bool
}

// NewCSVWriter creates a new CSV writer
func NewCSVWriter(filename string) (*CSVWriter, error) {
	file, err := createFile(filename)
	if err != nil {
		return nil, err
	}
	return &CSVWriter{
		filename: filename,
		file:     file,
		writer:   csv.NewWriter(file),
	}, nil
}

// Write writes stores as CSV rows
func (w *CSVWriter) Write(stores []store.Store) error {
	if w.writer == nil {
		return fmt.Errorf("csv writer is closed")
	}
	if !w.headerWritten {
		if err := w.writer.Write(store.Columns); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		w.headerWritten = true
	}

	for _, s := range stores {
		values := s.Values()
		record := make([]string, len(values))
		for i, v := range values {
			record[i] = formatCell(v)
		}
		if err := w.writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	w.writer.Flush()
	return w.writer.Error()
}

// Close closes the CSV writer. An empty export still gets its header row.
func (w *CSVWriter) Close() error {
	if w.writer != nil {
		if !w.headerWritten {
			_ = w.writer.Write(store.Columns)
		}
		w.writer.Flush()
		w.writer = nil
	}
	if w.file != nil {
		err := w.file.Close()
		w.file = nil
		return err
	}
	return nil
}

func formatCell(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// createFile creates filename and its parent directory.
func createFile(filename string) (*os.File, error) {
	if filename == "" {
		return nil, fmt.Errorf("output file path is required")
	}
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	return os.Create(filename)
}

func ensureDir(filename string) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return nil
}
