// internal/output/json.go
package output

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/valpere/StoreScrapexter/internal/store"
)

// JSONWriter writes all stores as one indented JSON array. Stores are buffered
// and the array is written on Close, so several Write calls produce one document.
type JSONWriter struct {
	filename string
	file     *os.File
	stores   []store.Store
}

// NewJSONWriter creates a new JSON writer
func NewJSONWriter(filename string) (*JSONWriter, error) {
	file, err := createFile(filename)
	if err != nil {
		return nil, err
	}
	return &JSONWriter{
		filename: filename,
		file:     file,
		stores:   make([]store.Store, 0),
	}, nil
}

// Write buffers stores for the final array.
func (w *JSONWriter) Write(stores []store.Store) error {
	if w.file == nil {
		return fmt.Errorf("json writer is closed")
	}
	w.stores = append(w.stores, stores...)
	return nil
}

// Close writes the array and closes the file
func (w *JSONWriter) Close() error {
	if w.file == nil {
		return nil
	}
	encoder := json.NewEncoder(w.file)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	encErr := encoder.Encode(w.stores)

	err := w.file.Close()
	w.file = nil
	if encErr != nil {
		return fmt.Errorf("failed to encode %s: %w", w.filename, encErr)
	}
	return err
}

// JSONLWriter streams one JSON object per line.
type JSONLWriter struct {
	filename string
	file     *os.File
	encoder  *json.Encoder
}

// NewJSONLWriter creates a new JSON lines writer
func NewJSONLWriter(filename string) (*JSONLWriter, error) {
	file, err := createFile(filename)
	if err != nil {
		return nil, err
	}
	encoder := json.NewEncoder(file)
	encoder.SetEscapeHTML(false)
	return &JSONLWriter{filename: filename, file: file, encoder: encoder}, nil
}

// Write appends one line per store
func (w *JSONLWriter) Write(stores []store.Store) error {
	if w.file == nil {
		return fmt.Errorf("jsonl writer is closed")
	}
	for _, s := range stores {
		if err := w.encoder.Encode(s); err != nil {
			return fmt.Errorf("failed to encode store %s: %w", s, err)
		}
	}
	return nil
}

// Close closes the JSON lines writer
func (w *JSONLWriter) Close() error {
	if w.file != nil {
		err := w.file.Close()
		w.file = nil
		return err
	}
	return nil
}
