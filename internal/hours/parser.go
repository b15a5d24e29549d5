// internal/hours/parser.go
package hours

import (
	"regexp"
	"strings"

	"github.com/valpere/StoreScrapexter/internal/utils"
)

const (
	dayToken    = `(?:mon|tues?|wed(?:nes)?|thur?s?|fri|sat(?:ur)?|sun)(?:day)?`
	timeToken   = `(\d{1,2}(?::\d{2})?)([ap]m)`
	open24Token = "open24hours"
)

var (
	nonHoursChars = regexp.MustCompile(`[^a-z0-9:]`)
	rangePattern  = regexp.MustCompile(`(` + dayToken + `)(` + dayToken + `):?` + timeToken + timeToken)
	singlePattern = regexp.MustCompile(`(` + dayToken + `):?` + timeToken + timeToken)
	pairPattern   = regexp.MustCompile(timeToken + timeToken)
	pairOnly      = regexp.MustCompile(`^` + timeToken + timeToken + `$`)
)

// Parser parses free-text business hours such as "Mon-Sat 9am-9pm, Sun 10am-6pm".
type Parser struct {
	logger utils.Logger
}

// NewParser creates a parser logging skipped and missing days to logger.
// A nil logger discards them.
func NewParser(logger utils.Logger) *Parser {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Parser{logger: logger}
}

var defaultParser = NewParser(nil)

// Parse is NewParser(nil).Parse.
func Parse(text string) Hours {
	return defaultParser.Parse(text)
}

// Normalize lowercases text, drops the words "to" and "thru" and every character
// outside [a-z0-9:], leaving e.g. "monsat9am9pmsun10am6pm".
func Normalize(text string) string {
	s := strings.ToLower(text)
	s = strings.ReplaceAll(s, "to", "")
	s = strings.ReplaceAll(s, "thru", "")
	return nonHoursChars.ReplaceAllString(s, "")
}

type dayRange struct {
	start, end  int
	open, close string
}

// Parse extracts per-day hours. Ranges are applied before single days and a day
// that already has hours is never overwritten. Days that end up without hours are
// logged and left out of the result.
func (p *Parser) Parse(text string) Hours {
	normalized := Normalize(text)
	result := make(Hours, len(dayNames))
	if normalized == "" {
		return result
	}

	if normalized == open24Token {
		return AllDays(Interval{Open: "12:00 am", Close: "11:59 pm"})
	}
	normalized = strings.ReplaceAll(normalized, open24Token, "12:00am11:59pm")

	for _, r := range extractRanges(normalized) {
		end := r.end
		if end < r.start {
			end += 7
		}
		for i := r.start; i <= end; i++ {
			day := dayNames[i%7]
			if !result.Set(day, convertInterval(r.open, r.close)) {
				p.logger.Debugf("day %s already has hours (%s), skipping range %s-%s",
					day, normalized, dayNames[r.start], dayNames[r.end])
			}
		}
	}

	for _, m := range singlePattern.FindAllStringSubmatch(normalized, -1) {
		day := dayNames[dayPrefixes[m[1][:3]]]
		if !result.Set(day, convertInterval(m[2]+" "+m[3], m[4]+" "+m[5])) {
			p.logger.Debugf("day %s already has hours (%s), skipping single day", day, normalized)
		}
	}

	for day, iv := range result {
		if !iv.Valid() {
			delete(result, day)
		}
	}
	for _, day := range result.Missing() {
		p.logger.Warnf("missing hours for %s (%s)", day, normalized)
	}

	return result
}

func extractRanges(s string) []dayRange {
	if strings.Contains(s, "daily") {
		if m := pairPattern.FindStringSubmatch(s); m != nil {
			return []dayRange{{start: 0, end: 6, open: m[1] + " " + m[2], close: m[3] + " " + m[4]}}
		}
	}

	if m := pairOnly.FindStringSubmatch(s); m != nil {
		return []dayRange{{start: 0, end: 6, open: m[1] + " " + m[2], close: m[3] + " " + m[4]}}
	}

	var ranges []dayRange
	for _, m := range rangePattern.FindAllStringSubmatch(s, -1) {
		ranges = append(ranges, dayRange{
			start: dayPrefixes[m[1][:3]],
			end:   dayPrefixes[m[2][:3]],
			open:  m[3] + " " + m[4],
			close: m[5] + " " + m[6],
		})
	}
	return ranges
}

func convertInterval(open, close string) Interval {
	return Interval{Open: MustTo12Hour(open), Close: MustTo12Hour(close)}
}
