// internal/quality/load.go
package quality

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LoadFile reads the records of a json or jsonl export.
func LoadFile(path string) ([]map[string]interface{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	records, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return records, nil
}

// Decode accepts a JSON array, a single object or a stream of objects (JSONL).
func Decode(r io.Reader) ([]map[string]interface{}, error) {
	dec := json.NewDecoder(r)
	var records []map[string]interface{}
	for {
		var value interface{}
		err := dec.Decode(&value)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		switch v := value.(type) {
		case map[string]interface{}:
			records = append(records, v)
		case []interface{}:
			for i, item := range v {
				record, ok := item.(map[string]interface{})
				if !ok {
					return nil, fmt.Errorf("element %d is not an object", i)
				}
				records = append(records, record)
			}
		default:
			return nil, fmt.Errorf("unexpected JSON value %T", value)
		}
	}
}

// AnalyzeFile loads path and reports on it under its base name.
func AnalyzeFile(path string) (*Report, error) {
	records, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return AnalyzeRecords(filepath.Base(path), records), nil
}
