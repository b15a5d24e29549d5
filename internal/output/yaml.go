// internal/output/yaml.go
package output

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/valpere/StoreScrapexter/internal/store"
)

// YAMLWriter writes all stores as one YAML sequence on Close.
type YAMLWriter struct {
	filename string
	file     *os.File
	indent   int
	stores   []store.Store
}

// NewYAMLWriter creates a new YAML writer
func NewYAMLWriter(filename string) (*YAMLWriter, error) {
	file, err := createFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create YAML file: %w", err)
	}
	return &YAMLWriter{
		filename: filename,
		file:     file,
		indent:   2,
		stores:   make([]store.Store, 0),
	}, nil
}

// Write buffers stores until Close
func (w *YAMLWriter) Write(stores []store.Store) error {
	if w.file == nil {
		return fmt.Errorf("yaml writer is closed")
	}
	w.stores = append(w.stores, stores...)
	return nil
}

// Close encodes the buffered stores and closes the file
func (w *YAMLWriter) Close() error {
	if w.file == nil {
		return nil
	}
	encoder := yaml.NewEncoder(w.file)
	encoder.SetIndent(w.indent)
	encErr := encoder.Encode(w.stores)
	if encErr == nil {
		encErr = encoder.Close()
	}

	err := w.file.Close()
	w.file = nil
	if encErr != nil {
		return fmt.Errorf("failed to encode %s: %w", w.filename, encErr)
	}
	return err
}
