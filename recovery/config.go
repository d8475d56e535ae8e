package recovery

import "time"

// Config bounds aggregation memory and sets breaker and retry policy.
type Config struct {
	MaxUniqueErrors   int
	AggregationWindow time.Duration
	BreakerThreshold  int
	BreakerTimeout    time.Duration
	RetryBase         time.Duration
	RetryFactor       float64
	MaxRetries        int
}

// DefaultConfig returns the stock policy.
func DefaultConfig() Config {
	return Config{
		MaxUniqueErrors:   50,
		AggregationWindow: 5 * time.Minute,
		BreakerThreshold:  5,
		BreakerTimeout:    30 * time.Second,
		RetryBase:         time.Second,
		RetryFactor:       2,
		MaxRetries:        3,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.MaxUniqueErrors <= 0 {
		c.MaxUniqueErrors = d.MaxUniqueErrors
	}
	if c.AggregationWindow <= 0 {
		c.AggregationWindow = d.AggregationWindow
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = d.BreakerThreshold
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = d.BreakerTimeout
	}
	if c.RetryBase <= 0 {
		c.RetryBase = d.RetryBase
	}
	if c.RetryFactor < 1 {
		c.RetryFactor = d.RetryFactor
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	return c
}
