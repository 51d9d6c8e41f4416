package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrInvalidFormat is returned for window strings that do not match the
	// accepted "<integer><unit>" syntax. A normal outcome of user input,
	// never escalated.
	ErrInvalidFormat = errors.New("invalid window format")

	// ErrWindowTooSmall and ErrWindowTooLarge are returned by
	// CheckWindowBounds for windows outside the configured policy range.
	ErrWindowTooSmall = errors.New("window too small")
	ErrWindowTooLarge = errors.New("window too large")
)

// One integer, optional whitespace, one unit token. No decimals, no
// compound windows like "1h30m".
var windowPattern = regexp.MustCompile(`^(\d+)\s*(m|mn|min|mins|minute|minutes|h|hr|hrs|hour|hours|d|day|days)$`)

// ParseWindow converts a window string like "90m", "24h" or "7 days" to
// minutes. Units are case-insensitive. Returns ErrInvalidFormat for
// anything that does not match the accepted syntax.
func ParseWindow(input string) (int, error) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	m := windowPattern.FindStringSubmatch(normalized)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, input)
	}

	value, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, input)
	}

	switch m[2][0] {
	case 'd':
		return value * 1440, nil
	case 'h':
		return value * 60, nil
	default:
		return value, nil
	}
}

// CheckWindowBounds validates minutes against the inclusive [min, max]
// policy range.
func CheckWindowBounds(minutes, min, max int) error {
	if minutes < min {
		return fmt.Errorf("%w: minimum is %s", ErrWindowTooSmall, FormatMinutes(min))
	}
	if minutes > max {
		return fmt.Errorf("%w: maximum is %s", ErrWindowTooLarge, FormatMinutes(max))
	}
	return nil
}

// FormatMinutes renders a minute count as "<H> hour(s) <M> minute(s)",
// omitting zero components. Zero total renders as "0 minutes".
func FormatMinutes(minutes int) string {
	if minutes == 0 {
		return "0 minutes"
	}

	hours := minutes / 60
	rest := minutes % 60

	var parts []string
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", hours, plural(hours, "hour")))
	}
	if rest > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", rest, plural(rest, "minute")))
	}
	return strings.Join(parts, " ")
}

func plural(n int, noun string) string {
	if n == 1 {
		return noun
	}
	return noun + "s"
}
