// internal/store/store_test.go
package store

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/valpere/StoreScrapexter/internal/hours"
)

func validStore(t *testing.T) Store {
	t.Helper()
	p, err := NewPoint(40.7128, -74.0060)
	if err != nil {
		t.Fatalf("NewPoint: %v", err)
	}
	return Store{
		Number:   "1234",
		Name:     "Downtown",
		Address:  "1 Main St, New York, NY 10001",
		Location: p,
		Hours:    hours.Hours{"monday": {Open: "9:00 am", Close: "5:00 pm"}},
		Services: []string{"Drive Thru"},
		URL:      "https://example.com/stores/1234",
	}
}

func TestFormatAddress(t *testing.T) {
	tests := []struct {
		name     string
		address  Address
		expected string
	}{
		{
			name:     "full",
			address:  Address{Line1: "100 Main St", Line2: "Suite 2", City: "Springfield", State: "IL", PostalCode: "62701"},
			expected: "100 Main St, Suite 2, Springfield, IL 62701",
		},
		{
			name:     "no line2",
			address:  Address{Line1: " 5 Elm  Rd ", City: "Austin", State: "TX", PostalCode: "78701"},
			expected: "5 Elm Rd, Austin, TX 78701",
		},
		{
			name:     "shouted city",
			address:  Address{Line1: "9 Oak Ave", City: "SAN JOSE", State: "CA", PostalCode: "95112"},
			expected: "9 Oak Ave, San Jose, CA 95112",
		},
		{
			name:     "city only",
			address:  Address{City: "Boise"},
			expected: "Boise",
		},
		{
			name:     "empty",
			address:  Address{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatAddress(tt.address); got != tt.expected {
				t.Errorf("FormatAddress() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestCleanServices(t *testing.T) {
	got := CleanServices([]string{" Pharmacy ", "", "Pharmacy", "Drive  Thru", "   "})
	want := []string{"Pharmacy", "Drive Thru"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("CleanServices mismatch (-want +got):\n%s", diff)
	}
}

func TestPoint(t *testing.T) {
	p, err := ParsePoint(" 33.5 ", "-112.07")
	if err != nil {
		t.Fatalf("ParsePoint: %v", err)
	}
	data, _ := json.Marshal(p)
	if string(data) != `{"type":"Point","coordinates":[-112.07,33.5]}` {
		t.Errorf("unexpected GeoJSON: %s", data)
	}

	for _, c := range [][2]string{
		{"91", "0"}, {"0", "-181"}, {"abc", "1"}, {"", "1"},
		{"NaN", "-74"}, {"40.7", "nan"}, {"+Inf", "0"}, {"0", "-Inf"},
	} {
		if _, err := ParsePoint(c[0], c[1]); err == nil {
			t.Errorf("expected error for %v", c)
		}
	}
}

func TestValidate(t *testing.T) {
	s := validStore(t)
	if err := Validate(s); err != nil {
		t.Fatalf("expected valid store, got %v", err)
	}

	bad := Store{Location: &Point{Type: "Point"}, URL: "/relative"}
	err := Validate(bad)
	var ve ValidationErrors
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	want := []string{"address", "location", "url"}
	if diff := cmp.Diff(want, ve.Fields()); diff != "" {
		t.Errorf("failing fields mismatch (-want +got):\n%s", diff)
	}

	outOfRange := validStore(t)
	outOfRange.Location = &Point{Type: "Point", Coordinates: [2]float64{200, 10}}
	if err := Validate(outOfRange); err == nil || !strings.Contains(err.Error(), "longitude") {
		t.Errorf("expected longitude error, got %v", err)
	}

	notANumber := validStore(t)
	notANumber.Location = &Point{Type: "Point", Coordinates: [2]float64{-74, math.NaN()}}
	if err := Validate(notANumber); err == nil || !strings.Contains(err.Error(), "latitude") {
		t.Errorf("expected latitude error for NaN, got %v", err)
	}
}

func TestKey(t *testing.T) {
	s := validStore(t)
	if s.Key() != "number:1234" {
		t.Errorf("Key() = %q", s.Key())
	}

	s.Number = ""
	k1 := s.Key()
	s.Raw = map[string]interface{}{"changes": "nothing"}
	if k2 := s.Key(); k1 != k2 || !strings.HasPrefix(k1, "hash:") {
		t.Errorf("content key should ignore raw payload: %q vs %q", k1, k2)
	}
}

func TestFlatten(t *testing.T) {
	s := validStore(t)
	row := s.Flatten()
	if row["latitude"] != 40.7128 || row["longitude"] != -74.0060 {
		t.Errorf("unexpected coordinates: %v, %v", row["latitude"], row["longitude"])
	}
	if row["services"] != `["Drive Thru"]` {
		t.Errorf("services = %v", row["services"])
	}
	if len(s.Values()) != len(Columns) {
		t.Errorf("Values() has %d entries, want %d", len(s.Values()), len(Columns))
	}

	s.Location = nil
	s.Services = nil
	row = s.Flatten()
	if row["latitude"] != nil || row["services"] != "[]" {
		t.Errorf("unexpected empty flatten: %v", row)
	}
}
