// Package proxy is the only component allowed to touch the host media element.
//
// Reads are served from a short-lived cache, every access validates that the
// element is ready, and failures become structured recovery errors or, with
// graceful degradation, caller-supplied fallback values.
package proxy

import (
	"context"
	"errors"
	"time"

	"github.com/samber/mo"
	"github.com/sirupsen/logrus"
	"github.com/subloop-cli/subloop/clock"
	"github.com/subloop-cli/subloop/log"
	"github.com/subloop-cli/subloop/media"
	"github.com/subloop-cli/subloop/recovery"
)

// Config controls caching, degradation and operation deadlines.
type Config struct {
	CacheTTL            time.Duration
	OperationTimeout    time.Duration
	GracefulDegradation bool
}

// DefaultConfig returns the stock proxy settings.
func DefaultConfig() Config {
	return Config{
		CacheTTL:            100 * time.Millisecond,
		OperationTimeout:    5 * time.Second,
		GracefulDegradation: true,
	}
}

// Result is a property value and whether it came from a fallback.
type Result struct {
	Value        any
	FallbackUsed bool
}

// ListenerID identifies a registered event listener.
type ListenerID uint64

type listener struct {
	event   media.EventType
	handler media.Handler
	detach  func()
}

type cached struct {
	value any
	at    time.Time
}

// Gate decides whether host calls may proceed. *recovery.Manager satisfies it.
type Gate interface {
	Allow() error
}

// Proxy mediates all access to the bound element.
type Proxy struct {
	cfg     Config
	clock   clock.Clock
	gate    Gate
	element media.Element
	logger  *logrus.Entry

	cache     map[media.Property]cached
	listeners map[ListenerID]*listener
	nextID    ListenerID
}

// New creates an unbound proxy. gate may be nil.
func New(cfg Config, clk clock.Clock, gate Gate) *Proxy {
	return &Proxy{
		cfg:       cfg,
		clock:     clk,
		gate:      gate,
		logger:    log.For("proxy"),
		cache:     make(map[media.Property]cached),
		listeners: make(map[ListenerID]*listener),
	}
}

// SetElement binds el, or unbinds when el is nil. Registered listeners move to the new element.
func (p *Proxy) SetElement(el media.Element) {
	if p.element != nil && el != nil && p.element.ID() == el.ID() {
		return
	}

	for _, l := range p.listeners {
		if l.detach != nil {
			l.detach()
			l.detach = nil
		}
	}

	p.element = el
	p.invalidate()

	if el == nil {
		p.logger.Debug("element unbound")
		return
	}

	for _, l := range p.listeners {
		l.detach = p.attach(el, l.event, l.handler)
	}
	p.logger.WithField("element", el.ID()).Debug("element bound")
}

// Element returns the bound element, if any.
func (p *Proxy) Element() mo.Option[media.Element] {
	if p.element == nil {
		return mo.None[media.Element]()
	}
	return mo.Some(p.element)
}

// Ready reports whether the bound element can be controlled.
func (p *Proxy) Ready() bool {
	return p.element != nil && p.element.Ready()
}

// UpdateConfig applies new settings and drops the cache.
func (p *Proxy) UpdateConfig(cfg Config) {
	p.cfg = cfg
	p.invalidate()
}

// GetProperty reads prop through the cache. When the element is unusable and
// graceful degradation is on, a present fallback is returned with FallbackUsed set.
func (p *Proxy) GetProperty(prop media.Property, fallback mo.Option[any]) (Result, error) {
	now := p.clock.Now()
	if c, ok := p.cache[prop]; ok && now.Sub(c.at) < p.cfg.CacheTTL {
		return Result{Value: c.value}, nil
	}

	if err := p.check(); err != nil {
		return p.degrade(err, fallback)
	}

	v, err := p.element.Get(prop)
	if err != nil {
		return p.degrade(p.lift(err, "read "+string(prop)), fallback)
	}

	p.cache[prop] = cached{value: v, at: now}
	return Result{Value: v}, nil
}

// SetProperty writes prop and invalidates the cache.
func (p *Proxy) SetProperty(prop media.Property, value any) error {
	if err := p.check(); err != nil {
		return err
	}

	err := p.element.Set(prop, value)
	p.invalidate()
	if err != nil {
		if errors.Is(err, media.ErrReadOnly) || errors.Is(err, media.ErrUnknownProperty) {
			return recovery.New(recovery.ValidationError, recovery.Low, "write %s", prop).Wrap(err).With("property", string(prop))
		}
		return p.lift(err, "write "+string(prop))
	}
	return nil
}

// AddEventListener registers h for t. Events are delivered on the clock and
// survive element rebinding.
func (p *Proxy) AddEventListener(t media.EventType, h media.Handler) ListenerID {
	p.nextID++
	id := p.nextID

	l := &listener{event: t, handler: h}
	if p.element != nil {
		l.detach = p.attach(p.element, t, h)
	}
	p.listeners[id] = l
	return id
}

// RemoveEventListener unregisters id and reports whether it existed.
func (p *Proxy) RemoveEventListener(id ListenerID) bool {
	l, ok := p.listeners[id]
	if !ok {
		return false
	}
	if l.detach != nil {
		l.detach()
	}
	delete(p.listeners, id)
	return true
}

// Listeners reports the number of registered listeners.
func (p *Proxy) Listeners() int {
	return len(p.listeners)
}

func (p *Proxy) attach(el media.Element, t media.EventType, h media.Handler) func() {
	id := el.ID()
	return el.Subscribe(t, func(e media.Event) {
		p.clock.Post(func() {
			if p.element == nil || p.element.ID() != id {
				return
			}
			p.invalidate()
			h(e)
		})
	})
}

// Operation is a host call raced against the operation timeout.
type Operation func(ctx context.Context, el media.Element) (any, error)

// ExecuteOperation runs op against the element. Exceeding the configured
// timeout yields OPERATION_TIMEOUT. Unavailability follows the same fallback
// rules as GetProperty.
func (p *Proxy) ExecuteOperation(ctx context.Context, name string, op Operation, fallback mo.Option[any]) (Result, error) {
	if err := p.check(); err != nil {
		return p.degrade(err, fallback)
	}

	timeout := p.cfg.OperationTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().OperationTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)
	el := p.element

	go func() {
		v, err := op(ctx, el)
		done <- outcome{value: v, err: err}
	}()

	select {
	case out := <-done:
		p.invalidate()
		if out.err != nil {
			return Result{}, p.lift(out.err, name)
		}
		return Result{Value: out.value}, nil
	case <-ctx.Done():
		p.logger.WithField("operation", name).Warn("operation timed out")
		return Result{}, recovery.New(recovery.OperationTimeout, recovery.Medium, "%s exceeded %s", name, timeout).
			Retry().
			Wrap(ctx.Err()).
			With("operation", name)
	}
}

func (p *Proxy) check() error {
	if p.element == nil {
		return recovery.New(recovery.ElementNotFound, recovery.Medium, "no media element bound")
	}
	if p.gate != nil {
		if err := p.gate.Allow(); err != nil {
			return err
		}
	}
	if !p.element.Ready() {
		return recovery.New(recovery.ElementUnavailable, recovery.High, "media element %s is not ready", p.element.ID()).
			With("element", p.element.ID())
	}
	return nil
}

func (p *Proxy) degrade(err error, fallback mo.Option[any]) (Result, error) {
	if p.cfg.GracefulDegradation {
		if v, ok := fallback.Get(); ok {
			return Result{Value: v, FallbackUsed: true}, nil
		}
	}
	return Result{}, err
}

func (p *Proxy) lift(err error, op string) error {
	if e, ok := recovery.As(err); ok {
		return e
	}
	if errors.Is(err, media.ErrNotReady) {
		return recovery.New(recovery.ElementUnavailable, recovery.High, "%s", op).Wrap(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return recovery.New(recovery.OperationTimeout, recovery.Medium, "%s", op).Retry().Wrap(err)
	}
	return recovery.New(recovery.ServiceUnavailable, recovery.Medium, "%s", op).Retry().Wrap(err)
}

func (p *Proxy) invalidate() {
	if len(p.cache) > 0 {
		p.cache = make(map[media.Property]cached)
	}
}
