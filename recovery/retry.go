package recovery

import (
	"math"
	"time"
)

// Retrier computes exponential backoff delays.
type Retrier struct {
	Base       time.Duration
	Factor     float64
	MaxRetries int
}

// Delay returns the wait before retry number attempt (zero based) and whether that retry is allowed.
func (r Retrier) Delay(attempt int) (time.Duration, bool) {
	if attempt < 0 || attempt >= r.MaxRetries {
		return 0, false
	}
	return time.Duration(float64(r.Base) * math.Pow(r.Factor, float64(attempt))), true
}
