// internal/store/validate.go
package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/valpere/StoreScrapexter/internal/utils"
)

// ValidationError describes one failed check on a record.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is returned by Validate when any check fails.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	msgs := make([]string, len(ve))
	for i, e := range ve {
		msgs[i] = e.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Fields lists the failing field names.
func (ve ValidationErrors) Fields() []string {
	fields := make([]string, len(ve))
	for i, e := range ve {
		fields[i] = e.Field
	}
	return fields
}

// Validate checks the required fields (address, location, url) and the coordinate ranges.
func Validate(s Store) error {
	var errs ValidationErrors

	if strings.TrimSpace(s.Address) == "" {
		errs = append(errs, ValidationError{Field: "address", Message: "is required"})
	}

	if s.Location == nil {
		errs = append(errs, ValidationError{Field: "location", Message: "is required"})
	} else {
		if s.Location.Type != "Point" {
			errs = append(errs, ValidationError{Field: "location", Message: fmt.Sprintf("unexpected type %q", s.Location.Type)})
		}
		if err := ValidateCoordinates(s.Location.Lat(), s.Location.Lon()); err != nil {
			errs = append(errs, ValidationError{Field: "location", Message: err.Error()})
		}
		if s.Location.Lat() == 0 && s.Location.Lon() == 0 {
			errs = append(errs, ValidationError{Field: "location", Message: "coordinates are zero"})
		}
	}

	if strings.TrimSpace(s.URL) == "" {
		errs = append(errs, ValidationError{Field: "url", Message: "is required"})
	} else if !utils.IsValidURL(s.URL) {
		errs = append(errs, ValidationError{Field: "url", Message: fmt.Sprintf("%q is not an absolute URL", s.URL)})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ContentHash hashes the canonical JSON of the record without its raw payload.
func (s Store) ContentHash() string {
	s.Raw = nil
	data, err := json.Marshal(s)
	if err != nil {
		return utils.HashString(fmt.Sprintf("%v", s))
	}
	return utils.HashString(string(data))
}
