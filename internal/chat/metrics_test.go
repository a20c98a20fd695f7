package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokensPerSecond(t *testing.T) {
	tests := []struct {
		name     string
		tokens   int64
		elapsed  time.Duration
		expected float64
	}{
		{"zero tokens", 0, 5 * time.Second, 0.0},
		{"zero elapsed", 100, 0, 0.0},
		{"sub-millisecond elapsed", 100, 500 * time.Microsecond, 0.0},
		{"whole rate", 100, 10 * time.Second, 10.0},
		{"rounds half up", 25, 8 * time.Second, 3.13},
		{"two decimal places", 1234, 7900 * time.Millisecond, 156.2},
		{"fast stream", 42, 750 * time.Millisecond, 56.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, TokensPerSecond(tt.tokens, tt.elapsed), 0.0001)
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		elapsed  time.Duration
		expected string
	}{
		{"seconds only", 45 * time.Second, "45s"},
		{"minutes and seconds", 75 * time.Second, "1m15s"},
		{"exactly one minute", 60 * time.Second, "1m0s"},
		{"zero", 0, "0s"},
		{"sub-second truncated", 900 * time.Millisecond, "0s"},
		{"fraction truncated", 75*time.Second + 800*time.Millisecond, "1m15s"},
		{"many minutes", 10*time.Minute + 3*time.Second, "10m3s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatDuration(tt.elapsed))
		})
	}
}
