package service

import (
	"testing"
	"time"

	apperrors "github.com/spec-kit/guild-warden/pkg/util"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		spec string
		want time.Duration
	}{
		{"1s", time.Second},
		{"1h", time.Hour},
		{"30m", 30 * time.Minute},
		{"2d", 48 * time.Hour},
		{"7w", 7 * 7 * 24 * time.Hour},
		{"5H", 5 * time.Hour},
	}
	for _, tc := range cases {
		got, err := ParseDuration(tc.spec)
		if err != nil {
			t.Fatalf("ParseDuration(%q): %v", tc.spec, err)
		}
		if got != tc.want {
			t.Fatalf("ParseDuration(%q) = %v, want %v", tc.spec, got, tc.want)
		}
	}
}

func TestParseDurationRejectsMalformedSpecs(t *testing.T) {
	for _, spec := range []string{"bogus", "5x", "", "h", "10", "1.5h", "-5m", "5 m"} {
		_, err := ParseDuration(spec)
		if err == nil {
			t.Fatalf("ParseDuration(%q): expected error", spec)
		}
		if code := apperrors.CodeOf(err); code != apperrors.CodeInvalidDuration {
			t.Fatalf("ParseDuration(%q): code %s, want %s", spec, code, apperrors.CodeInvalidDuration)
		}
	}
}
