// Package timestamp converts between HH:MM:SS strings reported by the scene
// search backend and whole seconds.
package timestamp

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedFormat is returned when a timestamp does not decompose into
// three non-negative integer fields.
var ErrMalformedFormat = errors.New("invalid timestamp format")

const (
	fieldCount = 3
	maxSeconds = 1<<31 - 1
)

// Parse converts an HH:MM:SS timestamp into seconds. Fields may be separated
// by ':' or '.'. Minute and second fields are not range checked, so
// "00:99:99" is accepted as 99*60+99.
func Parse(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("%w: empty timestamp", ErrMalformedFormat)
	}

	fields := splitFields(s)
	if len(fields) != fieldCount {
		return 0, fmt.Errorf("%w: %q has %d fields, want %d", ErrMalformedFormat, raw, len(fields), fieldCount)
	}

	var total int64
	for _, f := range fields {
		// signed fields ("-1", "+1") are malformed
		v, err := strconv.ParseUint(f, 10, 31)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrMalformedFormat, raw)
		}
		total = total*60 + int64(v)
	}

	if total > maxSeconds {
		return 0, fmt.Errorf("%w: %q out of range", ErrMalformedFormat, raw)
	}
	return int(total), nil
}

func splitFields(s string) []string {
	return strings.Split(strings.ReplaceAll(s, ".", ":"), ":")
}

// Format renders seconds as zero padded HH:MM:SS. Hours are not capped at 99.
// Negative input is clamped to zero.
func Format(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// Progress returns where raw falls within a clip of the given duration as a
// percentage. The boolean is false when raw is malformed, the duration is
// unknown, or the timestamp lies outside the clip.
func Progress(raw string, duration float64) (float64, bool) {
	if duration <= 0 {
		return 0, false
	}
	seconds, err := Parse(raw)
	if err != nil {
		return 0, false
	}
	if float64(seconds) > duration {
		return 0, false
	}
	return float64(seconds) / duration * 100, true
}
