// Package inline writes the playback core's events as JSON lines, for scripts
// and other programs driving subloop non-interactively.
package inline

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/samber/lo"
	"github.com/subloop-cli/subloop/log"
	"github.com/subloop-cli/subloop/navigation"
	"github.com/subloop-cli/subloop/recovery"
	"github.com/subloop-cli/subloop/segment"
	"github.com/subloop-cli/subloop/session"
	"github.com/subloop-cli/subloop/subsync"
	"github.com/subloop-cli/subloop/tracker"
)

// Writer encodes records to its output. It is safe for concurrent use.
type Writer struct {
	opts Options

	mu  sync.Mutex
	enc *json.Encoder
}

// NewWriter creates a Writer.
func NewWriter(opts Options) *Writer {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Writer{opts: opts, enc: json.NewEncoder(opts.Out)}
}

// Write stamps and writes r if its kind is selected.
func (w *Writer) Write(r Record) error {
	if !w.opts.wants(r.Kind) {
		return nil
	}
	if r.Time.IsZero() {
		r.Time = w.opts.Now()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(r)
}

func (w *Writer) emit(r Record) {
	if err := w.Write(r); err != nil {
		log.For("inline").WithError(err).Warn("writing record")
	}
}

// Attach writes the events of s until the returned function is called.
func (w *Writer) Attach(s *session.Session) (detach func()) {
	unsubs := []func(){
		s.StateChanges().Subscribe(func(t tracker.Transition) {
			w.emit(Record{Kind: KindState, State: stateRecord(t)})
		}),
		s.PlayerChanges().Subscribe(func(u tracker.Update) {
			w.emit(Record{Kind: KindPosition, Position: positionRecord(u.Current)})
		}),
		s.SegmentLoop().Subscribe(func(e segment.Event) {
			w.emit(Record{Kind: KindLoop, Loop: loopRecord(e)})
		}),
		s.Navigation().Subscribe(func(e navigation.Event) {
			w.emit(Record{Kind: KindNavigation, Navigation: &e})
		}),
		s.ObservedErrors().Subscribe(func(e *recovery.Error) {
			w.emit(Record{Kind: KindError, Error: errorRecord(e)})
		}),
		s.Breaker().Changes().Subscribe(func(state recovery.BreakerState) {
			w.emit(Record{Kind: KindBreaker, Breaker: &Breaker{State: state.String()}})
		}),
	}
	for _, slot := range session.Slots {
		slot := slot
		unsubs = append(unsubs, s.SubtitleSync(slot).Subscribe(func(e subsync.Event) {
			w.emit(Record{Kind: KindCue, Cue: cueRecord(slot, e)})
		}))
	}

	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

func stateRecord(t tracker.Transition) *State {
	return &State{
		From:       t.From.String(),
		To:         t.To.String(),
		DurationMs: t.Duration.Milliseconds(),
		Trigger:    t.Trigger,
	}
}

func positionRecord(info tracker.Info) *Position {
	return &Position{
		State:        info.State.String(),
		CurrentTime:  info.Metadata.CurrentTime,
		Duration:     info.Metadata.Duration,
		PlaybackRate: info.Metadata.PlaybackRate,
		Volume:       info.Metadata.Volume,
		Muted:        info.Metadata.Muted,
	}
}

func cueRecord(slot session.Slot, e subsync.Event) *Cue {
	rec := &Cue{
		Slot:   string(slot),
		Type:   string(e.Type),
		Time:   e.Time,
		Active: lo.Map(e.Active, func(c subsync.ActiveCue, _ int) string { return c.Plain() }),
	}
	if e.Cue != nil {
		rec.ID = e.Cue.ID
		rec.Text = e.Cue.Plain()
		rec.Start = e.Cue.AdjustedStartTime
		rec.End = e.Cue.AdjustedEndTime
	}
	if e.Track != nil {
		rec.Track = e.Track.Name()
	}
	return rec
}

func loopRecord(e segment.Event) *Loop {
	return &Loop{
		Type:      string(e.Type),
		ID:        e.Loop.ID,
		Label:     e.Loop.Label,
		Start:     e.Loop.StartTime,
		End:       e.Loop.EndTime,
		Iteration: e.Loop.CurrentIteration,
		Time:      e.Time,
		Reason:    e.Reason,
	}
}

func errorRecord(e *recovery.Error) *Error {
	return &Error{
		Code:        string(e.Code),
		Severity:    e.Severity.String(),
		Message:     e.Message,
		Recoverable: e.Recoverable,
		Retryable:   e.Retryable,
	}
}

// Schema describes a Record.
func Schema() *jsonschema.Schema {
	reflector := new(jsonschema.Reflector)
	reflector.Anonymous = true
	return reflector.Reflect(&Record{})
}
