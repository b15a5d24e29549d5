// internal/store/store.go

// Package store defines the record every spider emits and the helpers that
// normalize addresses, coordinates and services into it.
package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/valpere/StoreScrapexter/internal/hours"
)

// Store is the common record shape shared by all spiders.
type Store struct {
	Number      string                 `json:"number,omitempty" yaml:"number,omitempty" bson:"number,omitempty"`
	Name        string                 `json:"name,omitempty" yaml:"name,omitempty" bson:"name,omitempty"`
	Address     string                 `json:"address" yaml:"address" bson:"address"`
	PhoneNumber string                 `json:"phone_number,omitempty" yaml:"phone_number,omitempty" bson:"phone_number,omitempty"`
	Location    *Point                 `json:"location" yaml:"location" bson:"location"`
	Hours       hours.Hours            `json:"hours,omitempty" yaml:"hours,omitempty" bson:"hours,omitempty"`
	Services    []string               `json:"services,omitempty" yaml:"services,omitempty" bson:"services,omitempty"`
	URL         string                 `json:"url" yaml:"url" bson:"url"`
	Raw         map[string]interface{} `json:"raw,omitempty" yaml:"raw,omitempty" bson:"raw,omitempty"`
}

// Columns is the flat column order used by tabular and SQL outputs.
var Columns = []string{
	"number", "name", "address", "phone_number", "latitude", "longitude",
	"hours", "services", "url",
}

// Flatten returns the flat column view of s. Hours and services are JSON encoded,
// missing coordinates are nil.
func (s Store) Flatten() map[string]interface{} {
	row := map[string]interface{}{
		"number":       s.Number,
		"name":         s.Name,
		"address":      s.Address,
		"phone_number": s.PhoneNumber,
		"latitude":     nil,
		"longitude":    nil,
		"hours":        encodeJSON(s.Hours, "{}"),
		"services":     encodeJSON(s.Services, "[]"),
		"url":          s.URL,
	}
	if s.Location != nil {
		row["latitude"] = s.Location.Lat()
		row["longitude"] = s.Location.Lon()
	}
	return row
}

// Values returns Flatten in Columns order.
func (s Store) Values() []interface{} {
	row := s.Flatten()
	values := make([]interface{}, len(Columns))
	for i, c := range Columns {
		values[i] = row[c]
	}
	return values
}

// Key identifies a store for de-duplication: its number when present,
// otherwise a hash of the record content.
func (s Store) Key() string {
	if n := strings.TrimSpace(s.Number); n != "" {
		return "number:" + n
	}
	return "hash:" + s.ContentHash()
}

func encodeJSON(v interface{}, empty string) string {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return empty
	}
	return string(data)
}

// String is a short human description used in logs.
func (s Store) String() string {
	name := s.Name
	if name == "" {
		name = s.Number
	}
	return fmt.Sprintf("%s (%s)", name, s.URL)
}
