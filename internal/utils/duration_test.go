package utils

import (
	"errors"
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"45s", 45 * time.Second},
		{"30m", 30 * time.Minute},
		{"2h", 2 * time.Hour},
		{"1d", 24 * time.Hour},
		{"2w", 14 * 24 * time.Hour},
		{" 1H ", time.Hour},
	}
	for _, tc := range cases {
		got, err := ParseDuration(tc.in)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("parse %q: expected %v, got %v", tc.in, tc.want, got)
		}
	}
}

func TestParseDurationRejectsInvalid(t *testing.T) {
	for _, in := range []string{"", "abc", "-5m", "0d", "1.5d"} {
		if _, err := ParseDuration(in); !errors.Is(err, ErrBadDuration) {
			t.Fatalf("expected ErrBadDuration for %q, got %v", in, err)
		}
	}
}
