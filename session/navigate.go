package session

import (
	"github.com/sirupsen/logrus"
	"github.com/subloop-cli/subloop/navigation"
	"github.com/subloop-cli/subloop/recovery"
	"github.com/subloop-cli/subloop/util"
)

// onNavigation preserves the state of the media being left, rebinds every
// component to the element the source now provides and restores whatever was
// preserved for the media being entered.
func (s *Session) onNavigation(e navigation.Event) {
	if !s.Running() {
		return
	}

	logger := s.logger.WithFields(logrus.Fields{
		"type": e.Type,
		"from": e.PreviousVideoID,
		"to":   e.VideoID,
	})

	if e.PreserveState && e.PreviousVideoID != "" {
		if state, ok := s.snapshot(e.PreviousVideoID, e.FromURL); ok {
			s.preserve(state)
		}
	}

	s.rebinding = true
	defer func() { s.rebinding = false }()

	s.unbind(e.SameVideo())

	el, err := s.acquire()
	if err != nil {
		logger.WithError(err).Warn("no element after navigation")
		s.manager.Handle(err)
		return
	}
	s.bind(el)

	if e.PreserveState {
		s.restore(e.VideoID)
	}
	logger.Info("rebound after navigation")
}

// Snapshot captures the state that PreservePlayerState would keep.
// It is absent until the player has been sampled at least once.
func (s *Session) Snapshot() (navigation.PreservedState, bool) {
	return s.snapshot(s.nav.VideoID(), s.nav.URL())
}

func (s *Session) snapshot(videoID, url string) (navigation.PreservedState, bool) {
	m, ok := s.last.Get()
	if !ok || videoID == "" {
		return navigation.PreservedState{}, false
	}

	state := navigation.PreservedState{
		VideoID:        videoID,
		URL:            url,
		CurrentTime:    m.CurrentTime,
		PlaybackRate:   m.PlaybackRate,
		Volume:         m.Volume,
		Muted:          m.Muted,
		Paused:         m.Paused,
		SubtitleOffset: s.cfg.Sync.GlobalOffset,
		PreservedAt:    s.clock.Now(),
	}
	if track := s.subs[Primary].Track(); track != nil {
		state.SubtitleTrack = track.Source
	}
	if track := s.subs[Secondary].Track(); track != nil {
		state.SecondaryTrack = track.Source
	}
	if a, ok := s.loops.Active().Get(); ok {
		loop := a.Loop
		state.ActiveLoop = &loop
	}
	return state, true
}

// PreservePlayerState stores the current state for the current media, in memory
// for the navigation handoff and in the store when one is configured.
func (s *Session) PreservePlayerState() error {
	if s.closed {
		return ErrClosed
	}
	state, ok := s.Snapshot()
	if !ok {
		return recovery.New(recovery.ElementNotFound, recovery.Low, "nothing to preserve before the player was sampled")
	}
	return s.preserve(state)
}

func (s *Session) preserve(state navigation.PreservedState) error {
	if err := s.nav.PreservePlayerState(state); err != nil {
		s.manager.Handle(err)
		return err
	}
	if s.store == nil {
		return nil
	}
	if err := s.store.Save(state); err != nil {
		e := recovery.Lift(err, recovery.ServiceUnavailable, recovery.Low)
		s.manager.Handle(e)
		return e
	}
	return nil
}

// restore applies the in-memory state for videoID, falling back to the store.
func (s *Session) restore(videoID string) {
	if videoID == "" {
		return
	}

	state, ok := s.nav.Restore(videoID).Get()
	if !ok && s.store != nil && s.cfg.Resume {
		state, ok = s.store.Get(videoID).Get()
	}
	if !ok {
		return
	}

	s.apply(state)
	s.logger.WithFields(logrus.Fields{
		"video": videoID,
		"time":  state.CurrentTime,
		"loop":  state.ActiveLoop != nil,
	}).Info("state restored")
}

// apply replays a preserved state. Each part is applied independently so one
// failure does not prevent the rest.
func (s *Session) apply(state navigation.PreservedState) {
	fail := func(err error) {
		if err != nil {
			s.logger.WithError(err).Debug("restore step failed")
		}
	}

	if state.SubtitleOffset != s.cfg.Sync.GlobalOffset {
		cfg := s.cfg
		cfg.Sync.GlobalOffset = state.SubtitleOffset
		s.UpdateConfig(cfg)
	}

	paths := map[Slot]string{Primary: state.SubtitleTrack, Secondary: state.SecondaryTrack}
	for _, slot := range Slots {
		path := paths[slot]
		if path == "" {
			continue
		}
		if track := s.subs[slot].Track(); track != nil && track.Source == path {
			continue
		}
		fail(s.LoadSubtitleFile(slot, path))
	}

	if state.CurrentTime > 0 {
		fail(s.Seek(state.CurrentTime))
	}
	if state.PlaybackRate > 0 {
		fail(s.SetPlaybackRate(util.Clamp(state.PlaybackRate, MinPlaybackRate, MaxPlaybackRate)))
	}
	fail(s.SetVolume(util.Clamp(state.Volume, 0, 1)))
	fail(s.SetMuted(state.Muted))

	if state.ActiveLoop != nil {
		_, err := s.CreateSegmentLoop(*state.ActiveLoop)
		fail(err)
	}
}
