package player

import (
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/sirupsen/logrus"
	"github.com/subloop-cli/subloop/log"
	"github.com/subloop-cli/subloop/segment"
	"github.com/subloop-cli/subloop/subsync"
	"github.com/subloop-cli/subloop/util"
)

// osdLinger keeps text a little past the end of its cue so adjacent cues do not flicker.
const osdLinger = 250 * time.Millisecond

type osdText struct {
	text string
	d    time.Duration
}

// Overlay mirrors the active cues onto mpv's OSD and the active loop onto its
// chapter list. Updates never block the caller: a single goroutine sends them
// and only the latest pending text and chapters are kept.
type Overlay struct {
	host   *Host
	logger *logrus.Entry

	mu       sync.Mutex
	text     mo.Option[osdText]
	chapters mo.Option[[]Chapter]
	shown    string

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

// NewOverlay starts an overlay on host. Close stops it.
func NewOverlay(host *Host) *Overlay {
	o := &Overlay{
		host:   host,
		logger: log.For("overlay"),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go o.run()
	return o
}

// Cues shows the primary cues above the secondary ones until the longest of
// them ends. No cues clears the OSD.
func (o *Overlay) Cues(primary, secondary []subsync.ActiveCue) {
	active := lo.Filter(append(append([]subsync.ActiveCue{}, primary...), secondary...), func(c subsync.ActiveCue, _ int) bool {
		return c.IsActive
	})

	lines := lo.Map(active, func(c subsync.ActiveCue, _ int) string { return c.Plain() })
	text := strings.Join(lo.Compact(lines), "\n")

	remaining := lo.Max(lo.Map(active, func(c subsync.ActiveCue, _ int) float64 { return c.TimeRemaining }))
	d := lo.Ternary(text == "", 0, time.Duration(remaining*float64(time.Second))+osdLinger)

	o.mu.Lock()
	if text == o.shown {
		o.mu.Unlock()
		return
	}
	o.shown = text
	o.text = mo.Some(osdText{text: text, d: d})
	o.mu.Unlock()
	o.notify()
}

// Loop marks the bounds of the active loop on the timeline, or removes them.
func (o *Overlay) Loop(active mo.Option[segment.ActiveLoop]) {
	var chapters []Chapter
	if a, ok := active.Get(); ok {
		title := lo.Ternary(a.Label != "", a.Label, "loop")
		chapters = []Chapter{
			{Title: title + " " + util.FormatTimestamp(a.StartTime), Time: a.StartTime},
			{Title: title + " end", Time: a.EndTime},
		}
	}

	o.mu.Lock()
	o.chapters = mo.Some(chapters)
	o.mu.Unlock()
	o.notify()
}

// Close stops sending. Pending updates are dropped.
func (o *Overlay) Close() {
	o.once.Do(func() { close(o.done) })
}

func (o *Overlay) notify() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *Overlay) run() {
	for {
		select {
		case <-o.done:
			return
		case <-o.host.Done():
			return
		case <-o.wake:
		}

		o.mu.Lock()
		text, chapters := o.text, o.chapters
		o.text, o.chapters = mo.None[osdText](), mo.None[[]Chapter]()
		o.mu.Unlock()

		if t, ok := text.Get(); ok {
			if err := o.host.ShowText(t.text, t.d); err != nil {
				o.logger.WithError(err).Debug("show text")
			}
		}
		if c, ok := chapters.Get(); ok {
			if err := o.host.SetChapters(c); err != nil {
				o.logger.WithError(err).Debug("set chapters")
			}
		}
	}
}
