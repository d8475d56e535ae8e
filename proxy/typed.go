package proxy

import (
	"context"

	"github.com/samber/mo"
	"github.com/spf13/cast"
	"github.com/subloop-cli/subloop/media"
	"github.com/subloop-cli/subloop/recovery"
)

// readFloat reads a numeric property. fallback is returned alongside any error.
func (p *Proxy) readFloat(prop media.Property, fallback float64) (float64, error) {
	r, err := p.GetProperty(prop, mo.None[any]())
	if err != nil {
		return fallback, err
	}
	f, err := cast.ToFloat64E(r.Value)
	if err != nil {
		return fallback, recovery.New(recovery.ObserverFailure, recovery.Low, "%s is not numeric", prop).Wrap(err)
	}
	return f, nil
}

func (p *Proxy) readBool(prop media.Property, fallback bool) (bool, error) {
	r, err := p.GetProperty(prop, mo.None[any]())
	if err != nil {
		return fallback, err
	}
	b, err := cast.ToBoolE(r.Value)
	if err != nil {
		return fallback, recovery.New(recovery.ObserverFailure, recovery.Low, "%s is not boolean", prop).Wrap(err)
	}
	return b, nil
}

// CurrentTime returns the playback position in seconds.
func (p *Proxy) CurrentTime() (float64, error) {
	return p.readFloat(media.CurrentTime, 0)
}

// Duration returns the media length in seconds.
func (p *Proxy) Duration() (float64, error) {
	return p.readFloat(media.Duration, 0)
}

// PlaybackRate returns the current speed multiplier.
func (p *Proxy) PlaybackRate() (float64, error) {
	return p.readFloat(media.PlaybackRate, 1)
}

// Volume returns the volume in [0, 1].
func (p *Proxy) Volume() (float64, error) {
	return p.readFloat(media.Volume, 1)
}

// Muted reports whether audio is muted.
func (p *Proxy) Muted() (bool, error) {
	return p.readBool(media.Muted, false)
}

// Paused reports whether playback is suspended.
func (p *Proxy) Paused() (bool, error) {
	return p.readBool(media.Paused, true)
}

// Seek moves the playhead to t seconds.
func (p *Proxy) Seek(t float64) error {
	if err := p.SetProperty(media.CurrentTime, t); err != nil {
		if e, ok := recovery.As(err); ok && e.Code == recovery.ServiceUnavailable {
			e.Code = recovery.SeekFailed
		}
		return err
	}
	return nil
}

// SetVolume writes the volume.
func (p *Proxy) SetVolume(v float64) error {
	return p.SetProperty(media.Volume, v)
}

// SetPlaybackRate writes the speed multiplier.
func (p *Proxy) SetPlaybackRate(rate float64) error {
	return p.SetProperty(media.PlaybackRate, rate)
}

// SetMuted writes the mute flag.
func (p *Proxy) SetMuted(muted bool) error {
	return p.SetProperty(media.Muted, muted)
}

// Play resumes playback within the operation timeout.
func (p *Proxy) Play(ctx context.Context) error {
	_, err := p.ExecuteOperation(ctx, "play", func(ctx context.Context, el media.Element) (any, error) {
		return nil, el.Play(ctx)
	}, mo.None[any]())
	if e, ok := recovery.As(err); ok && e.Code == recovery.ServiceUnavailable {
		e.Code = recovery.PlaybackFailed
	}
	return err
}

// Pause suspends playback within the operation timeout.
func (p *Proxy) Pause(ctx context.Context) error {
	_, err := p.ExecuteOperation(ctx, "pause", func(_ context.Context, el media.Element) (any, error) {
		return nil, el.Pause()
	}, mo.None[any]())
	if e, ok := recovery.As(err); ok && e.Code == recovery.ServiceUnavailable {
		e.Code = recovery.PlaybackFailed
	}
	return err
}

// Metadata samples every property once. It fails when the element is not
// ready, never substituting fallbacks, so callers can tell a real sample
// from a missing element.
func (p *Proxy) Metadata() (media.Metadata, error) {
	if err := p.check(); err != nil {
		return media.Metadata{}, err
	}

	var (
		m    media.Metadata
		errs []error
	)
	read := func(prop media.Property) any {
		r, err := p.GetProperty(prop, mo.None[any]())
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		return r.Value
	}

	m.CurrentTime = cast.ToFloat64(read(media.CurrentTime))
	m.Duration = cast.ToFloat64(read(media.Duration))
	m.PlaybackRate = cast.ToFloat64(read(media.PlaybackRate))
	m.Volume = cast.ToFloat64(read(media.Volume))
	m.Muted = cast.ToBool(read(media.Muted))
	m.Paused = cast.ToBool(read(media.Paused))
	m.Ended = cast.ToBool(read(media.Ended))
	m.ReadyState = cast.ToInt(read(media.ReadyState))
	m.VideoWidth = cast.ToInt(read(media.VideoWidth))
	m.VideoHeight = cast.ToInt(read(media.VideoHeight))
	m.Src = cast.ToString(read(media.Src))

	if len(errs) > 0 {
		return media.Metadata{}, errs[0]
	}
	return m, nil
}
