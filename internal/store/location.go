// internal/store/location.go
package store

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Point is a GeoJSON point. Coordinates are [longitude, latitude].
type Point struct {
	Type        string     `json:"type" yaml:"type" bson:"type"`
	Coordinates [2]float64 `json:"coordinates" yaml:"coordinates" bson:"coordinates"`
}

// NewPoint builds a Point, rejecting out-of-range coordinates.
func NewPoint(lat, lon float64) (*Point, error) {
	if err := ValidateCoordinates(lat, lon); err != nil {
		return nil, err
	}
	return &Point{Type: "Point", Coordinates: [2]float64{lon, lat}}, nil
}

// ParsePoint parses decimal latitude and longitude strings.
func ParsePoint(latText, lonText string) (*Point, error) {
	latText, lonText = strings.TrimSpace(latText), strings.TrimSpace(lonText)
	if latText == "" || lonText == "" {
		return nil, fmt.Errorf("missing latitude or longitude")
	}
	lat, err := strconv.ParseFloat(latText, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid latitude %q: %w", latText, err)
	}
	lon, err := strconv.ParseFloat(lonText, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid longitude %q: %w", lonText, err)
	}
	return NewPoint(lat, lon)
}

// ValidateCoordinates checks lat in [-90, 90] and lon in [-180, 180].
// NaN and infinities are rejected; they compare false against any range.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) {
		return fmt.Errorf("latitude %v is not a finite number", lat)
	}
	if math.IsNaN(lon) || math.IsInf(lon, 0) {
		return fmt.Errorf("longitude %v is not a finite number", lon)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", lon)
	}
	return nil
}

// Lat returns the latitude.
func (p *Point) Lat() float64 { return p.Coordinates[1] }

// Lon returns the longitude.
func (p *Point) Lon() float64 { return p.Coordinates[0] }
