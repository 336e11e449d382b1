package timestamp

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{"one two three", "01:02:03", 3723, false},
		{"zero", "00:00:00", 0, false},
		{"dot separated", "01.02.03", 3723, false},
		{"mixed separators", "00:01.30", 90, false},
		{"surrounding whitespace", "  00:00:05\n", 5, false},
		{"unpadded", "1:2:3", 3723, false},
		{"minutes not range checked", "00:99:99", 99*60 + 99, false},
		{"large hours", "120:00:00", 432000, false},

		{"bad", "bad", 0, true},
		{"two fields", "1:2", 0, true},
		{"four fields", "00:00:00:00", 0, true},
		{"empty", "", 0, true},
		{"blank", "   ", 0, true},
		{"empty field", "00::05", 0, true},
		{"trailing separator", "00:00:", 0, true},
		{"non numeric field", "00:aa:05", 0, true},
		{"negative field", "00:-1:30", 0, true},
		{"plus sign", "+1:00:00", 0, true},
		{"fractional seconds", "00:00:01.5", 0, true},
		{"overflow", "99999999999:00:00", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedFormat) {
					t.Fatalf("Parse(%q) error = %v, want ErrMalformedFormat", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "00:00:00"},
		{59, "00:00:59"},
		{60, "00:01:00"},
		{3723, "01:02:03"},
		{86400, "24:00:00"},
		{360000, "100:00:00"},
		{-5, "00:00:00"},
	}

	for _, tt := range tests {
		if got := Format(tt.seconds); got != tt.want {
			t.Errorf("Format(%d) = %s, want %s", tt.seconds, got, tt.want)
		}
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	for h := 0; h <= 30; h += 3 {
		for m := 0; m < 60; m += 7 {
			for s := 0; s < 60; s += 11 {
				want := h*3600 + m*60 + s
				got, err := Parse(Format(want))
				if err != nil {
					t.Fatalf("Parse(Format(%d)) error: %v", want, err)
				}
				if got != want {
					t.Fatalf("Parse(Format(%d)) = %d", want, got)
				}
			}
		}
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		duration float64
		want     float64
		ok       bool
	}{
		{"midpoint", "00:00:50", 100, 50, true},
		{"start", "00:00:00", 100, 0, true},
		{"end", "00:01:40", 100, 100, true},
		{"beyond end", "00:01:41", 100, 0, false},
		{"unknown duration", "00:00:10", 0, 0, false},
		{"malformed", "10", 100, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Progress(tt.raw, tt.duration)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Progress(%q, %v) = (%v, %v), want (%v, %v)", tt.raw, tt.duration, got, ok, tt.want, tt.ok)
			}
		})
	}
}
