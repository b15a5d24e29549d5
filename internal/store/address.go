// internal/store/address.go
package store

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/valpere/StoreScrapexter/internal/utils"
)

// Address holds the parts sites return separately.
type Address struct {
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
}

// FormatAddress renders "line1, line2, City, ST ZIP", leaving out empty parts.
// Shouted city names ("SAN JOSE") are title-cased.
func FormatAddress(a Address) string {
	var parts []string
	for _, line := range []string{a.Line1, a.Line2} {
		if line = utils.CleanText(line); line != "" {
			parts = append(parts, line)
		}
	}

	city := utils.CleanText(a.City)
	if isUpper(city) {
		city = cases.Title(language.AmericanEnglish).String(strings.ToLower(city))
	}
	stateZip := strings.TrimSpace(utils.CleanText(a.State) + " " + utils.CleanText(a.PostalCode))

	switch {
	case city != "" && stateZip != "":
		parts = append(parts, city+", "+stateZip)
	case city != "":
		parts = append(parts, city)
	case stateZip != "":
		parts = append(parts, stateZip)
	}

	return strings.Join(parts, ", ")
}

// JoinLines joins already formatted address lines, dropping blanks.
func JoinLines(lines ...string) string {
	var parts []string
	for _, l := range lines {
		if l = utils.CleanText(l); l != "" {
			parts = append(parts, l)
		}
	}
	return strings.Join(parts, ", ")
}

// CleanServices trims entries, drops blanks and duplicates, keeps first-seen order.
func CleanServices(services []string) []string {
	seen := make(map[string]bool, len(services))
	out := make([]string, 0, len(services))
	for _, s := range services {
		s = utils.CleanText(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func isUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}
