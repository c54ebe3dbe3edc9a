package pipeline

import (
	"math"
	"time"
)

// rateHeadroom is the share of the published request rate the pool may use.
const rateHeadroom = 0.9

// SafeWorkers returns the largest worker count n such that n workers, each
// pausing pause before every request, stay within 90% of rateLimit
// requests/sec. It never returns less than 1.
func SafeWorkers(pause time.Duration, rateLimit float64) int {
	if pause <= 0 || rateLimit <= 0 {
		return 1
	}
	n := int(math.Floor(rateHeadroom * rateLimit * pause.Seconds()))
	if n < 1 {
		return 1
	}
	return n
}
