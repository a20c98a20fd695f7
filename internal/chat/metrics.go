package chat

import (
	"fmt"
	"math"
	"time"
)

// TokensPerSecond computes the generation rate rounded to two decimal
// places, half up. Zero tokens or a zero elapsed time yields 0.0.
func TokensPerSecond(totalTokens int64, elapsed time.Duration) float64 {
	millis := elapsed.Milliseconds()
	if totalTokens == 0 || millis <= 0 {
		return 0.0
	}

	rate := float64(totalTokens) / (float64(millis) / 1000.0)
	return math.Floor(rate*100+0.5) / 100
}

// FormatDuration renders an elapsed time as "XmYs" when at least a
// minute has passed, else "Ys". Sub-second precision is truncated.
func FormatDuration(elapsed time.Duration) string {
	seconds := int64(elapsed.Seconds())
	if seconds >= 60 {
		return fmt.Sprintf("%dm%ds", seconds/60, seconds%60)
	}
	return fmt.Sprintf("%ds", seconds)
}
