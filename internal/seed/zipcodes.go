// internal/seed/zipcodes.go
package seed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Zipcode is one search seed. Coordinates are zero when the seed file only lists codes.
type Zipcode struct {
	Zipcode   string  `json:"zipcode" yaml:"zipcode"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// HasLocation reports whether the seed carries coordinates.
func (z Zipcode) HasLocation() bool {
	return z.Latitude != 0 || z.Longitude != 0
}

// code accepts zip codes shipped either as strings or numbers.
type code string

func (c *code) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = code(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("zip code must be a string or number: %w", err)
	}
	v, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid zip code %s: %w", n, err)
	}
	// numeric codes lose their leading zeros
	*c = code(fmt.Sprintf("%05d", v))
	return nil
}

type entry struct {
	Zipcode   code    `json:"zipcode"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	ZipCodes  []code  `json:"zip_codes"`
}

// LoadZipcodes reads a seed file. Two shapes are accepted:
//
//	[{"zipcode": "10001", "latitude": 40.75, "longitude": -73.99}, ...]
//	[{"city": "...", "zip_codes": ["10001", "10002"]}, ...]
func LoadZipcodes(path string) ([]Zipcode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read zipcode file %s: %w", path, err)
	}
	zipcodes, err := ParseZipcodes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse zipcode file %s: %w", path, err)
	}
	return zipcodes, nil
}

// ParseZipcodes decodes seed data, dropping blanks and repeats in first-seen order.
func ParseZipcodes(data []byte) ([]Zipcode, error) {
	var entries []entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []Zipcode
	add := func(z Zipcode) {
		if z.Zipcode == "" || seen[z.Zipcode] {
			return
		}
		seen[z.Zipcode] = true
		out = append(out, z)
	}

	for _, e := range entries {
		if e.Zipcode != "" {
			add(Zipcode{Zipcode: string(e.Zipcode), Latitude: e.Latitude, Longitude: e.Longitude})
		}
		for _, c := range e.ZipCodes {
			add(Zipcode{Zipcode: string(c)})
		}
	}
	return out, nil
}

// Codes returns the bare zip codes.
func Codes(zipcodes []Zipcode) []string {
	codes := make([]string, len(zipcodes))
	for i, z := range zipcodes {
		codes[i] = z.Zipcode
	}
	return codes
}
