package recovery

import (
	"github.com/sirupsen/logrus"
	"github.com/subloop-cli/subloop/bus"
	"github.com/subloop-cli/subloop/clock"
	"github.com/subloop-cli/subloop/log"
)

// Stats is a diagnostic snapshot of the manager.
type Stats struct {
	Breaker       BreakerState `json:"breaker"`
	Failures      int          `json:"failures"`
	UniqueErrors  int          `json:"uniqueErrors"`
	TotalErrors   int          `json:"totalErrors"`
	PendingRetry  int          `json:"pendingRetry"`
	RecentEntries []Entry      `json:"recent,omitempty"`
}

// Manager is the single funnel for core failures.
//
// Every error is aggregated and fed to the breaker. Non-recoverable errors,
// and the breaker opening, are published on Errors. Observed publishes every
// handled error.
type Manager struct {
	cfg       Config
	clock     clock.Clock
	collector *Collector
	breaker   *Breaker
	retrier   Retrier
	logger    *logrus.Entry

	total    int
	attempts map[string]int
	pending  map[string]clock.Handle

	errors   *bus.Topic[*Error]
	observed *bus.Topic[*Error]
}

// NewManager creates a manager on clk.
func NewManager(cfg Config, clk clock.Clock) *Manager {
	cfg = cfg.normalized()
	return &Manager{
		cfg:       cfg,
		clock:     clk,
		collector: NewCollector(cfg.MaxUniqueErrors, cfg.AggregationWindow),
		breaker:   NewBreaker(clk, cfg.BreakerThreshold, cfg.AggregationWindow, cfg.BreakerTimeout),
		retrier:   Retrier{Base: cfg.RetryBase, Factor: cfg.RetryFactor, MaxRetries: cfg.MaxRetries},
		logger:    log.For("recovery"),
		attempts:  make(map[string]int),
		pending:   make(map[string]clock.Handle),
		errors:    bus.New[*Error]("errors"),
		observed:  bus.New[*Error]("errors.observed"),
	}
}

// Errors publishes non-recoverable and breaker-open conditions.
func (m *Manager) Errors() *bus.Topic[*Error] {
	return m.errors
}

// Observed publishes every handled error.
func (m *Manager) Observed() *bus.Topic[*Error] {
	return m.observed
}

// Breaker exposes the circuit breaker.
func (m *Manager) Breaker() *Breaker {
	return m.breaker
}

// Handle records err and returns its structured form. Plain errors are lifted as medium-severity service failures.
func (m *Manager) Handle(err error) *Error {
	if err == nil {
		return nil
	}

	e := Lift(err, ServiceUnavailable, Medium)
	if e.Timestamp.IsZero() {
		e.Timestamp = m.clock.Now()
	}

	m.total++
	entry := m.collector.Record(e, e.Timestamp)

	m.logger.WithFields(logrus.Fields{
		"code":     e.Code,
		"severity": e.Severity,
		"count":    entry.Count,
	}).Warn(e.Error())

	m.observed.Publish(e)

	opened := m.breaker.Failure(e.Severity)
	if !e.Recoverable {
		m.errors.Publish(e)
	}
	if opened {
		open := New(CircuitOpen, Critical, "circuit breaker opened after %d failures", m.cfg.BreakerThreshold).
			Wrap(e).
			With("trigger", string(e.Code))
		open.Timestamp = e.Timestamp
		m.logger.WithField("trigger", e.Code).Error("circuit breaker opened")
		m.errors.Publish(open)
	}

	return e
}

// Allow returns a CIRCUIT_OPEN error while the breaker is open.
func (m *Manager) Allow() error {
	if m.breaker.Allow() {
		return nil
	}
	return New(CircuitOpen, High, "host calls suspended until %s", m.breaker.OpenedAt().Add(m.cfg.BreakerTimeout).Format("15:04:05"))
}

// Success reports a successful guarded call.
func (m *Manager) Success() {
	m.breaker.Success()
}

// Attempt runs fn under the breaker. A failure is handled and, when retryable,
// fn is rescheduled with exponential backoff until it succeeds or retries run
// out. A new attempt for the same op replaces any pending retry.
func (m *Manager) Attempt(op string, fn func() error) error {
	if err := m.Allow(); err != nil {
		return err
	}

	m.cancel(op)
	delete(m.attempts, op)

	err := fn()
	if err == nil {
		m.Success()
		return nil
	}

	e := m.Handle(err)
	if e.Retryable {
		m.schedule(op, fn)
	}
	return e
}

func (m *Manager) schedule(op string, fn func() error) {
	attempt := m.attempts[op]
	delay, ok := m.retrier.Delay(attempt)
	if !ok {
		m.logger.WithField("op", op).Warnf("giving up after %d retries", attempt)
		delete(m.attempts, op)
		return
	}

	m.attempts[op] = attempt + 1
	m.pending[op] = m.clock.AfterFunc(delay, func() {
		delete(m.pending, op)
		if !m.breaker.Allow() {
			delete(m.attempts, op)
			return
		}

		err := fn()
		if err == nil {
			m.Success()
			delete(m.attempts, op)
			return
		}

		if e := m.Handle(err); e.Retryable {
			m.schedule(op, fn)
		} else {
			delete(m.attempts, op)
		}
	})
}

func (m *Manager) cancel(op string) {
	if h, ok := m.pending[op]; ok {
		h.Stop()
		delete(m.pending, op)
	}
}

// Stats returns a diagnostic snapshot.
func (m *Manager) Stats() Stats {
	entries := m.collector.Entries()
	if len(entries) > 5 {
		entries = entries[:5]
	}
	return Stats{
		Breaker:       m.breaker.State(),
		Failures:      m.breaker.Failures(),
		UniqueErrors:  m.collector.Len(),
		TotalErrors:   m.total,
		PendingRetry:  len(m.pending),
		RecentEntries: entries,
	}
}

// Entries returns every aggregated entry.
func (m *Manager) Entries() []Entry {
	return m.collector.Entries()
}

// UpdateConfig applies a new policy. Existing entries and breaker state are kept.
func (m *Manager) UpdateConfig(cfg Config) {
	cfg = cfg.normalized()
	m.cfg = cfg
	m.collector.Resize(cfg.MaxUniqueErrors, cfg.AggregationWindow)
	m.breaker.Configure(cfg.BreakerThreshold, cfg.AggregationWindow, cfg.BreakerTimeout)
	m.retrier = Retrier{Base: cfg.RetryBase, Factor: cfg.RetryFactor, MaxRetries: cfg.MaxRetries}
}

// Close cancels pending retries and the breaker timer.
func (m *Manager) Close() {
	for op := range m.pending {
		m.cancel(op)
	}
	m.attempts = make(map[string]int)
	m.breaker.Stop()
}

// Reporter receives failures raised by components. *Manager satisfies it.
type Reporter interface {
	Handle(err error) *Error
}

// Discard is a Reporter that only lifts errors.
var Discard Reporter = discard{}

type discard struct{}

func (discard) Handle(err error) *Error {
	return Lift(err, ServiceUnavailable, Medium)
}
