// internal/hours/structured.go
package hours

import "github.com/valpere/StoreScrapexter/internal/utils"

// Span is one open window as sites ship it in structured payloads, usually 24h clock.
type Span struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// FromIntervals converts per-day "openIntervals" payloads. Days with no interval are
// closed and left out; days with more than one interval are reported and left out
// because the record shape holds a single window per day.
func FromIntervals(days map[string][]Span, logger utils.Logger) Hours {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	h := make(Hours, len(days))
	for rawDay, spans := range days {
		day, ok := DayName(rawDay)
		if !ok {
			logger.Warnf("unknown day %q in opening intervals", rawDay)
			continue
		}
		switch {
		case len(spans) == 0:
			logger.Debugf("no intervals for %s", day)
			continue
		case len(spans) > 1:
			logger.Errorf("multiple intervals for %s: %v", day, spans)
			continue
		}
		iv := Interval{Open: MustTo12Hour(spans[0].Start), Close: MustTo12Hour(spans[0].End)}
		if !iv.Valid() {
			logger.Warnf("missing open or close time for %s: %v", day, spans[0])
			continue
		}
		h[day] = iv
	}
	return h
}

// FromWeekList zips monday..sunday with [open, close] pairs. Empty pairs are
// dropped before zipping, matching locators that pad the list with nulls.
func FromWeekList(pairs [][]string) Hours {
	h := make(Hours, len(Week))
	i := 0
	for _, pair := range pairs {
		if len(pair) < 2 {
			continue
		}
		if i >= len(Week) {
			break
		}
		h[Week[i]] = Interval{Open: MustTo12Hour(pair[0]), Close: MustTo12Hour(pair[1])}
		i++
	}
	return h
}

// DaySpan is a single named-day window, e.g. {"day": "MONDAY", "start": "06:00", "end": "23:00"}.
type DaySpan struct {
	Day    string `json:"day"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Closed bool   `json:"closed"`
}

// FromDaySpans converts a list of named-day windows, skipping closed and unknown days.
func FromDaySpans(spans []DaySpan) Hours {
	h := make(Hours, len(spans))
	for _, s := range spans {
		day, ok := DayName(s.Day)
		if !ok || s.Closed {
			continue
		}
		iv := Interval{Open: MustTo12Hour(s.Start), Close: MustTo12Hour(s.End)}
		if iv.Valid() {
			h.Set(day, iv)
		}
	}
	return h
}
