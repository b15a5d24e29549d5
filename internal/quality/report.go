// internal/quality/report.go

// Package quality reports on the completeness of exported store data: which
// fields are missing or empty, and which records carry unusable locations or
// hours.
package quality

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/valpere/StoreScrapexter/internal/hours"
	"github.com/valpere/StoreScrapexter/internal/store"
)

// Fields are the keys every exported record is expected to carry.
var Fields = []string{"name", "number", "address", "phone_number", "hours", "location", "services", "url", "raw"}

// maxSamples bounds the example records kept per finding.
const maxSamples = 3

// FieldGap describes a field absent from part of the records.
type FieldGap struct {
	Field   string                 `json:"field"`
	Missing int                    `json:"missing"`
	Percent float64                `json:"percent"`
	Sample  map[string]interface{} `json:"sample,omitempty"`
}

// Finding counts records failing one check and keeps a few of them.
type Finding struct {
	Count   int                      `json:"count"`
	Samples []map[string]interface{} `json:"samples,omitempty"`
}

func (f *Finding) add(record map[string]interface{}) {
	f.Count++
	if len(f.Samples) < maxSamples {
		f.Samples = append(f.Samples, record)
	}
}

// Report is the quality analysis of one source file.
type Report struct {
	Source      string    `json:"source"`
	GeneratedAt time.Time `json:"generated_at"`
	Total       int       `json:"total"`
	// MissingAll lists fields no record has.
	MissingAll []string `json:"missing_all,omitempty"`
	// MissingSome lists fields only part of the records have.
	MissingSome []FieldGap `json:"missing_some,omitempty"`
	// Falsy counts present-but-empty values for the plain fields.
	Falsy            map[string]*Finding `json:"falsy,omitempty"`
	InvalidLocations Finding             `json:"invalid_locations"`
	InvalidHours     Finding             `json:"invalid_hours"`
	// IncompleteDays counts, per weekday, records with hours that lack a
	// usable open and close time for that day.
	IncompleteDays map[string]int `json:"incomplete_days"`
}

// Analyze reports on stores as they would be exported.
func Analyze(source string, stores []store.Store) (*Report, error) {
	records := make([]map[string]interface{}, 0, len(stores))
	for _, s := range stores {
		data, err := json.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("failed to encode store %s: %w", s.String(), err)
		}
		var record map[string]interface{}
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return AnalyzeRecords(source, records), nil
}

// AnalyzeRecords reports on decoded JSON records.
func AnalyzeRecords(source string, records []map[string]interface{}) *Report {
	r := &Report{
		Source:         source,
		GeneratedAt:    time.Now(),
		Total:          len(records),
		Falsy:          make(map[string]*Finding),
		IncompleteDays: make(map[string]int, len(hours.Week)),
	}
	for _, day := range hours.Week {
		r.IncompleteDays[day] = 0
	}

	for _, field := range Fields {
		var missing []map[string]interface{}
		for _, record := range records {
			if _, ok := record[field]; !ok {
				missing = append(missing, record)
			}
		}
		switch {
		case len(records) > 0 && len(missing) == len(records):
			r.MissingAll = append(r.MissingAll, field)
		case len(missing) > 0:
			r.MissingSome = append(r.MissingSome, FieldGap{
				Field:   field,
				Missing: len(missing),
				Percent: float64(len(missing)) / float64(len(records)) * 100,
				Sample:  missing[0],
			})
		}
	}

	for _, record := range records {
		for _, field := range Fields {
			if field == "location" || field == "hours" {
				continue
			}
			if value, ok := record[field]; ok && isFalsy(value) {
				if r.Falsy[field] == nil {
					r.Falsy[field] = &Finding{}
				}
				r.Falsy[field].add(record)
			}
		}

		if location, ok := record["location"]; ok && isInvalidLocation(location) {
			r.InvalidLocations.add(record)
		}

		if value, ok := record["hours"]; ok {
			if isInvalidHours(value) {
				r.InvalidHours.add(record)
			}
			if days, ok := value.(map[string]interface{}); ok {
				for _, day := range hours.Week {
					if isInvalidDay(days[day]) {
						r.IncompleteDays[day]++
					}
				}
			}
		}
	}
	return r
}

// FalsyFields returns the fields with empty values in sorted order.
func (r *Report) FalsyFields() []string {
	fields := make([]string, 0, len(r.Falsy))
	for field := range r.Falsy {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

func isFalsy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case float64:
		return t == 0
	case []interface{}:
		return len(t) == 0
	case map[string]interface{}:
		return len(t) == 0
	default:
		return false
	}
}

func isInvalidLocation(v interface{}) bool {
	location, ok := v.(map[string]interface{})
	if !ok {
		return true
	}
	if location["type"] != "Point" {
		return true
	}
	coords, ok := location["coordinates"].([]interface{})
	if !ok || len(coords) != 2 {
		return true
	}
	for _, c := range coords {
		if _, ok := c.(float64); !ok {
			return true
		}
	}
	return false
}

func isInvalidHours(v interface{}) bool {
	days, ok := v.(map[string]interface{})
	if !ok || len(days) == 0 {
		return true
	}
	for _, day := range hours.Week {
		if isInvalidDay(days[day]) {
			return true
		}
	}
	return false
}

func isInvalidDay(v interface{}) bool {
	day, ok := v.(map[string]interface{})
	if !ok {
		return true
	}
	return isFalsy(day["open"]) || isFalsy(day["close"])
}
