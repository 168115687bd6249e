package playlist

import (
	"regexp"
	"strconv"
)

var iso8601Duration = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?`)

// ParseISO8601Duration converts an ISO-8601 duration string ("PT1H2M3S")
// into whole seconds. Missing components default to 0; malformed input
// yields 0.
func ParseISO8601Duration(s string) int {
	match := iso8601Duration.FindStringSubmatch(s)
	if match == nil {
		return 0
	}
	h := atoiOrZero(match[1])
	m := atoiOrZero(match[2])
	sec := atoiOrZero(match[3])
	return h*3600 + m*60 + sec
}

func atoiOrZero(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
