package service

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/spec-kit/guild-warden/pkg/util"
)

var durationPattern = regexp.MustCompile(`^(\d+)(s|m|h|d|w)$`)

var unitMultipliers = map[string]time.Duration{
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
	"w": 7 * 24 * time.Hour,
}

// ParseDuration parses a mute duration spec of the form <integer><unit>
// with unit one of s, m, h, d, w. Anything else is INVALID_DURATION.
func ParseDuration(spec string) (time.Duration, error) {
	match := durationPattern.FindStringSubmatch(strings.ToLower(spec))
	if match == nil {
		return 0, apperrors.NewInvalidDuration(spec)
	}
	amount, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, apperrors.NewInvalidDuration(spec)
	}
	return time.Duration(amount) * unitMultipliers[match[2]], nil
}

// formatDuration renders a duration for user-facing messages, using the
// largest unit that divides it evenly.
func formatDuration(d time.Duration) string {
	switch {
	case d >= 7*24*time.Hour && d%(7*24*time.Hour) == 0:
		return plural(int(d/(7*24*time.Hour)), "week")
	case d >= 24*time.Hour && d%(24*time.Hour) == 0:
		return plural(int(d/(24*time.Hour)), "day")
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return plural(int(d/time.Second), "second")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}
