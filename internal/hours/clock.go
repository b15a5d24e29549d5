// internal/hours/clock.go
package hours

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var clockPattern = regexp.MustCompile(`^(\d{1,2})(?:[:.](\d{1,2}))?(?::(\d{2}))?$`)
var compactPattern = regexp.MustCompile(`^(\d{2})(\d{2})$`)

// To12Hour converts a clock reading to the "9:00 am" form used in records.
//
// Accepted inputs: "13:00", "13.00", "1300", "13", "13:00:00", each optionally
// followed by "am"/"pm" in any case. When a period is present it is kept as given
// and the hour is rendered on the 12-hour dial.
func To12Hour(text string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return "", fmt.Errorf("empty time")
	}

	period := ""
	switch {
	case strings.HasSuffix(s, "am"):
		period = "am"
	case strings.HasSuffix(s, "pm"):
		period = "pm"
	}
	s = strings.TrimSpace(strings.TrimSuffix(s, period))

	hour, minute, err := splitClock(s)
	if err != nil {
		return "", fmt.Errorf("invalid time %q: %w", text, err)
	}

	if period == "" {
		period = "am"
		if hour >= 12 {
			period = "pm"
		}
	}

	dial := hour % 12
	if dial == 0 {
		dial = 12
	}
	return fmt.Sprintf("%d:%02d %s", dial, minute, period), nil
}

// MustTo12Hour is To12Hour returning "" for unparseable input.
func MustTo12Hour(text string) string {
	out, err := To12Hour(text)
	if err != nil {
		return ""
	}
	return out
}

func splitClock(s string) (hour, minute int, err error) {
	var hourText, minuteText string
	if m := compactPattern.FindStringSubmatch(s); m != nil {
		hourText, minuteText = m[1], m[2]
	} else if m := clockPattern.FindStringSubmatch(s); m != nil {
		hourText, minuteText = m[1], m[2]
	} else {
		return 0, 0, fmt.Errorf("unrecognised clock format")
	}

	hour, _ = strconv.Atoi(hourText)
	if minuteText != "" {
		minute, _ = strconv.Atoi(minuteText)
	}
	if hour > 23 {
		return 0, 0, fmt.Errorf("hour %d out of range", hour)
	}
	if minute > 59 {
		return 0, 0, fmt.Errorf("minute %d out of range", minute)
	}
	return hour, minute, nil
}
