package utils

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrBadDuration = errors.New("invalid duration")

// ParseDuration reads durations like "45s", "30m", "2h", "1d", "1w". Day and
// week suffixes are accepted on top of the standard units.
func ParseDuration(value string) (time.Duration, error) {
	trimmed := strings.TrimSpace(strings.ToLower(value))
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty", ErrBadDuration)
	}

	if strings.HasSuffix(trimmed, "d") || strings.HasSuffix(trimmed, "w") {
		unit := time.Duration(24) * time.Hour
		if strings.HasSuffix(trimmed, "w") {
			unit = 7 * 24 * time.Hour
		}
		number, err := strconv.Atoi(trimmed[:len(trimmed)-1])
		if err != nil || number <= 0 {
			return 0, fmt.Errorf("%w: %q", ErrBadDuration, value)
		}
		return time.Duration(number) * unit, nil
	}

	parsed, err := time.ParseDuration(trimmed)
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadDuration, value)
	}
	return parsed, nil
}
