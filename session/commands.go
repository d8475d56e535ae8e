package session

import (
	"context"

	"github.com/subloop-cli/subloop/recovery"
	"github.com/subloop-cli/subloop/segment"
	"github.com/subloop-cli/subloop/subtitle"
	"github.com/subloop-cli/subloop/util"
)

// attempt runs a host write under the breaker with retry for retryable failures.
func (s *Session) attempt(op string, fn func() error) error {
	if s.closed {
		return ErrClosed
	}
	return s.manager.Attempt(op, fn)
}

// reject records an invalid command and returns it.
func (s *Session) reject(err *recovery.Error) error {
	s.manager.Handle(err)
	return err
}

// Play resumes playback. Hosts may refuse, which surfaces as PLAYBACK_FAILED.
func (s *Session) Play(ctx context.Context) error {
	return s.attempt("play", func() error { return s.proxy.Play(ctx) })
}

// Pause suspends playback.
func (s *Session) Pause(ctx context.Context) error {
	return s.attempt("pause", func() error { return s.proxy.Pause(ctx) })
}

// Seek moves the playhead. Targets past the known duration are clamped to it.
func (s *Session) Seek(t float64) error {
	if !util.Finite(t) || t < 0 {
		return s.reject(recovery.New(recovery.InvalidTime, recovery.Low, "seek target %v is not a valid position", t))
	}
	if d, err := s.proxy.Duration(); err == nil && d > 0 && t > d {
		t = d
	}
	return s.attempt("seek", func() error { return s.proxy.Seek(t) })
}

// SetPlaybackRate changes the speed within [MinPlaybackRate, MaxPlaybackRate].
func (s *Session) SetPlaybackRate(rate float64) error {
	if !util.Finite(rate) || rate < MinPlaybackRate || rate > MaxPlaybackRate {
		return s.reject(recovery.New(recovery.InvalidRate, recovery.Low, "playback rate %v outside [%.2f, %.2f]", rate, MinPlaybackRate, MaxPlaybackRate))
	}
	return s.attempt("rate", func() error { return s.proxy.SetPlaybackRate(rate) })
}

// SetVolume changes the volume within [0, 1].
func (s *Session) SetVolume(v float64) error {
	if !util.Finite(v) || v < 0 || v > 1 {
		return s.reject(recovery.New(recovery.ValidationError, recovery.Low, "volume %v outside [0, 1]", v))
	}
	return s.attempt("volume", func() error { return s.proxy.SetVolume(v) })
}

// SetMuted mutes or unmutes.
func (s *Session) SetMuted(muted bool) error {
	return s.attempt("mute", func() error { return s.proxy.SetMuted(muted) })
}

// LoadSubtitleTrack swaps the track shown in slot. A nil track unloads it.
func (s *Session) LoadSubtitleTrack(slot Slot, track *subtitle.Track) error {
	if s.closed {
		return ErrClosed
	}
	sync, ok := s.subs[slot]
	if !ok {
		return s.reject(recovery.New(recovery.ValidationError, recovery.Low, "unknown subtitle slot %q", slot))
	}

	sync.LoadTrack(track)
	if track != nil && s.proxy.Ready() {
		sync.Tick()
	}
	return nil
}

// LoadSubtitleFile parses path and loads it into slot.
func (s *Session) LoadSubtitleFile(slot Slot, path string) error {
	track, err := subtitle.Load(path)
	if err != nil {
		return s.reject(recovery.New(recovery.TrackLoadFailed, recovery.Medium, "load subtitles").
			Wrap(err).
			With("path", path))
	}
	return s.LoadSubtitleTrack(slot, track)
}

// Track returns the track loaded in slot, or nil.
func (s *Session) Track(slot Slot) *subtitle.Track {
	if sync, ok := s.subs[slot]; ok {
		return sync.Track()
	}
	return nil
}

// AdjustSubtitleTiming records that cues around time t are off by delta seconds in every slot.
func (s *Session) AdjustSubtitleTiming(t, delta float64) error {
	if !util.Finite(t) || t < 0 || !util.Finite(delta) {
		return s.reject(recovery.New(recovery.InvalidTime, recovery.Low, "timing adjustment %v at %v is not valid", delta, t))
	}
	for _, slot := range Slots {
		s.subs[slot].AdjustTiming(t, delta)
	}
	return nil
}

// CreateSegmentLoop replaces any active loop with loop.
func (s *Session) CreateSegmentLoop(loop segment.Loop) (segment.ActiveLoop, error) {
	if s.closed {
		return segment.ActiveLoop{}, ErrClosed
	}
	a, err := s.loops.Create(loop)
	if err != nil {
		return a, s.rejectErr(err)
	}
	return a, nil
}

// UpdateSegmentLoop edits the active loop, keeping its counters.
func (s *Session) UpdateSegmentLoop(patch segment.Patch) (segment.ActiveLoop, error) {
	a, err := s.loops.Update(patch)
	if err != nil {
		return a, s.rejectErr(err)
	}
	return a, nil
}

// StopSegmentLoop ends the active loop.
func (s *Session) StopSegmentLoop() {
	s.loops.Stop()
}

// EnableSegmentLoop re-arms a disabled loop.
func (s *Session) EnableSegmentLoop() error {
	if err := s.loops.Enable(); err != nil {
		return s.rejectErr(err)
	}
	return nil
}

// DisableSegmentLoop stops looping without forgetting the loop.
func (s *Session) DisableSegmentLoop() error {
	if err := s.loops.Disable(); err != nil {
		return s.rejectErr(err)
	}
	return nil
}

// LoopBookmark creates a loop from a bookmark found by label in b.
func (s *Session) LoopBookmark(b *segment.Bookmarks, label string) (segment.ActiveLoop, error) {
	bm, ok := b.Find(label).Get()
	if !ok {
		return segment.ActiveLoop{}, s.reject(recovery.New(recovery.ValidationError, recovery.Low, "no loop named %q", label))
	}
	return s.CreateSegmentLoop(bm.Loop())
}

// UpdateConfig hands every component its part of cfg.
func (s *Session) UpdateConfig(cfg Config) {
	s.cfg = cfg
	s.manager.UpdateConfig(cfg.Recovery)
	s.proxy.UpdateConfig(cfg.Proxy)
	s.tracker.UpdateConfig(cfg.Tracker)
	for _, slot := range Slots {
		s.subs[slot].UpdateConfig(cfg.Sync)
	}
	s.loops.UpdateConfig(cfg.Loop)
	s.nav.UpdateConfig(cfg.Navigation)
}

func (s *Session) rejectErr(err error) error {
	return s.reject(recovery.Lift(err, recovery.ValidationError, recovery.Low))
}
