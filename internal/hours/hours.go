// internal/hours/hours.go

// Package hours turns the many shapes store locators use for opening hours
// into one day -> {open, close} map with 12-hour times.
package hours

import (
	"regexp"
	"strings"
)

// Interval is the opening window for one day, e.g. {"9:00 am", "9:00 pm"}.
type Interval struct {
	Open  string `json:"open" yaml:"open" bson:"open"`
	Close string `json:"close" yaml:"close" bson:"close"`
}

// Valid reports whether both ends are set.
func (i Interval) Valid() bool {
	return i.Open != "" && i.Close != ""
}

// Hours maps a lowercase full day name to its opening window.
type Hours map[string]Interval

// Day names in locator order (week starts on sunday).
var dayNames = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// Week lists the days monday first, the order used for display and reports.
var Week = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

var dayPrefixes = map[string]int{
	"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
}

// dayPattern accepts a whole day token only, so keys like "monitor" fail.
var dayPattern = regexp.MustCompile(`^` + dayToken + `$`)

// DayName resolves abbreviations and full names ("Tue", "TUESDAY", "tues") to "tuesday".
func DayName(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !dayPattern.MatchString(s) {
		return "", false
	}
	idx, ok := dayPrefixes[s[:3]]
	if !ok {
		return "", false
	}
	return dayNames[idx], true
}

// Set stores an interval for day, keeping an existing complete entry.
// It returns false when the day already had hours.
func (h Hours) Set(day string, iv Interval) bool {
	if existing, ok := h[day]; ok && existing.Valid() {
		return false
	}
	h[day] = iv
	return true
}

// Missing lists week days without both times, monday first.
func (h Hours) Missing() []string {
	var missing []string
	for _, day := range Week {
		if !h[day].Valid() {
			missing = append(missing, day)
		}
	}
	return missing
}

// Complete is true when every day of the week has both times.
func (h Hours) Complete() bool {
	return len(h.Missing()) == 0
}

// AllDays returns hours with iv applied to every day.
func AllDays(iv Interval) Hours {
	h := make(Hours, len(dayNames))
	for _, day := range dayNames {
		h[day] = iv
	}
	return h
}
