package scheduling

import (
	"fmt"
	"strconv"
)

const minutesPerDay = 24 * 60

// MinutesSinceMidnight parses an HH:MM wall-clock string.
func MinutesSinceMidnight(clock string) (int, error) {
	if len(clock) != 5 || clock[2] != ':' {
		return 0, fmt.Errorf("%w: %q: expected HH:MM", ErrInvalidFormat, clock)
	}
	hour, err := parseDigits(clock[:2])
	if err != nil {
		return 0, fmt.Errorf("%w: invalid hour in %q", ErrInvalidFormat, clock)
	}
	minute, err := parseDigits(clock[3:])
	if err != nil {
		return 0, fmt.Errorf("%w: invalid minute in %q", ErrInvalidFormat, clock)
	}
	if hour > 23 || minute > 59 {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidFormat, clock)
	}
	return hour*60 + minute, nil
}

// parseDigits rejects signs and spaces that strconv.Atoi would accept.
func parseDigits(s string) (int, error) {
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("non-digit %q", r)
		}
	}
	return strconv.Atoi(s)
}

// ClockTime formats minutes since midnight as zero-padded HH:MM.
func ClockTime(minutes int) (string, error) {
	if minutes < 0 || minutes >= minutesPerDay {
		return "", fmt.Errorf("%w: %d minutes is outside [0, %d)", ErrInvalidRange, minutes, minutesPerDay)
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60), nil
}

// GenerateSlots lists clock times from startClock in steps of stepMinutes,
// stopping strictly before endClock. A non-positive step or an empty range
// yields an empty list; malformed clocks are still an error.
func GenerateSlots(startClock, endClock string, stepMinutes int) ([]string, error) {
	start, err := MinutesSinceMidnight(startClock)
	if err != nil {
		return nil, err
	}
	end, err := MinutesSinceMidnight(endClock)
	if err != nil {
		return nil, err
	}
	return clockRange(start, end, stepMinutes), nil
}

func clockRange(start, end, step int) []string {
	out := []string{}
	if step <= 0 || start >= end {
		return out
	}
	for m := start; m < end; m += step {
		c, _ := ClockTime(m)
		out = append(out, c)
	}
	return out
}
