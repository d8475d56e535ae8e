package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/subloop-cli/subloop/log"
	"github.com/subloop-cli/subloop/media"
	"github.com/subloop-cli/subloop/navigation"
)

// ErrClosed is returned once the connection to mpv is gone.
var ErrClosed = errors.New("mpv connection closed")

// Options configure a Host.
type Options struct {
	// Binary is the mpv executable. Empty means "mpv" from PATH.
	Binary string
	// Title overrides the window title.
	Title string
	// Args are passed to mpv verbatim before the target.
	Args []string
	// ReadyTimeout bounds how long Acquire waits for a file to load.
	ReadyTimeout time.Duration
}

const defaultReadyTimeout = 10 * time.Second

type hooks struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func(string)
}

func (h *hooks) add(fn func(string)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.fns == nil {
		h.fns = make(map[int]func(string))
	}
	h.nextID++
	id := h.nextID
	h.fns[id] = fn

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.fns, id)
	}
}

func (h *hooks) fire(v string) {
	h.mu.Lock()
	fns := lo.Values(h.fns)
	h.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Host is a connected mpv instance. It is the session's element source and
// navigation host: loaded files are routes, playlist moves are history
// changes and a lost connection is an element replacement.
type Host struct {
	opts     Options
	mpv      *MPV
	ipc      *client
	listener *EventListener
	logger   *logrus.Entry

	mu      sync.Mutex
	current *Element
	adopted bool
	pos     mo.Option[int]
	loaded  chan struct{}
	closed  bool
	done    chan struct{}

	routes   hooks
	history  hooks
	replaced hooks
}

// New creates an unconnected host.
func New(opts Options) *Host {
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = defaultReadyTimeout
	}
	return &Host{
		opts:   opts,
		logger: log.For("player"),
		loaded: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Launch starts mpv on target and connects to it.
func (h *Host) Launch(target string) error {
	h.mpv = NewMPV(h.opts.Binary)
	if err := h.mpv.Start(target, h.opts.Title, h.opts.Args...); err != nil {
		return err
	}

	if err := h.connect(h.mpv.Socket()); err != nil {
		_ = h.mpv.Close()
		return err
	}
	h.adopt()

	go func() {
		<-h.mpv.Wait()
		h.lost()
	}()
	return nil
}

// Attach connects to an mpv already listening on socketPath.
func (h *Host) Attach(socketPath string) error {
	if err := h.connect(socketPath); err != nil {
		return err
	}
	h.adopt()
	return nil
}

// adopt picks up a file loaded before the listener connected. The
// file-loaded event for it, if still in flight, is then ignored.
func (h *Host) adopt() {
	path, err := h.path()
	if err != nil || path == "" {
		return
	}
	h.fileLoaded(path)

	h.mu.Lock()
	h.adopted = true
	h.mu.Unlock()
}

func (h *Host) connect(socketPath string) error {
	h.ipc = newClient(socketPath)
	h.listener = NewEventListener(socketPath, h.onMessage, h.lost)
	if err := h.listener.Start(); err != nil {
		return fmt.Errorf("listen to mpv: %w", err)
	}
	h.logger.WithField("socket", socketPath).Info("connected to mpv")
	return nil
}

// Done is closed when mpv exits or the connection is lost.
func (h *Host) Done() <-chan struct{} {
	return h.done
}

// Acquire returns the element for the loaded file, waiting for one to load.
func (h *Host) Acquire(ctx context.Context) (media.Element, error) {
	ctx, cancel := context.WithTimeout(ctx, h.opts.ReadyTimeout)
	defer cancel()

	for {
		h.mu.Lock()
		el, loaded, closed := h.current, h.loaded, h.closed
		h.mu.Unlock()

		if closed {
			return nil, ErrClosed
		}
		if el != nil && el.Ready() {
			return el, nil
		}

		select {
		case <-loaded:
		case <-h.done:
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for mpv to load media: %w", ctx.Err())
		}
	}
}

// URL reports the loaded path.
func (h *Host) URL() (string, error) {
	h.mu.Lock()
	el := h.current
	h.mu.Unlock()

	if el != nil {
		return el.Path(), nil
	}
	return h.path()
}

// OnRoute calls fn with the path of every file mpv loads.
func (h *Host) OnRoute(fn func(url string)) func() {
	return h.routes.add(fn)
}

// OnHistory calls fn when the playlist position moves.
func (h *Host) OnHistory(fn func(url string)) func() {
	return h.history.add(fn)
}

// OnReplaced calls fn when the element is lost with the connection.
func (h *Host) OnReplaced(fn func(elementID string)) func() {
	return h.replaced.add(fn)
}

// Navigation returns h as every navigation hook.
func (h *Host) Navigation() navigation.Host {
	return navigation.Host{URL: h, History: h, Routes: h, Elements: h}
}

// Load replaces the playing file.
func (h *Host) Load(target string) error {
	safe, err := sanitizeMediaTarget(target)
	if err != nil {
		return fmt.Errorf("invalid media target: %w", err)
	}
	_, err = h.command("loadfile", safe, "replace")
	return err
}

// ShowText renders text on mpv's OSD for d. Empty text clears it.
func (h *Host) ShowText(text string, d time.Duration) error {
	_, err := h.command("show-text", text, d.Milliseconds())
	return err
}

// SetChapters replaces the chapter markers on mpv's timeline.
func (h *Host) SetChapters(chapters []Chapter) error {
	list := lo.Map(chapters, func(c Chapter, _ int) map[string]any {
		return map[string]any{"title": c.Title, "time": c.Time}
	})
	_, err := h.command("set_property", propChapters, list)
	return err
}

// Close disconnects and, when this host launched mpv, quits it.
func (h *Host) Close() error {
	if h.listener != nil {
		h.listener.Stop()
	}
	h.lost()
	if h.mpv != nil {
		return h.mpv.Close()
	}
	return nil
}

func (h *Host) command(args ...any) (any, error) {
	if h.ipc == nil {
		return nil, ErrClosed
	}
	return h.ipc.command(args...)
}

func (h *Host) path() (string, error) {
	v, err := h.command("get_property", propPath)
	if err != nil {
		return "", err
	}
	return cast.ToStringE(v)
}

// onMessage runs on the listener goroutine.
func (h *Host) onMessage(msg Message) {
	switch msg.Event {
	case "start-file":
		h.mu.Lock()
		h.adopted = false
		h.mu.Unlock()
		h.fileStarted()
		return
	case "file-loaded":
		path, err := h.path()
		if err != nil {
			h.logger.WithError(err).Warn("loaded file has no path")
			return
		}

		h.mu.Lock()
		adopted := h.adopted && h.current != nil && h.current.Path() == path
		h.adopted = false
		h.mu.Unlock()
		if !adopted {
			h.fileLoaded(path)
		}
		return
	case "property-change":
		if msg.Name == propPlaylist && msg.Data != nil {
			h.playlistMoved(cast.ToInt(msg.Data))
		}
	}

	h.mu.Lock()
	el := h.current
	h.mu.Unlock()
	if el != nil {
		el.dispatch(msg)
	}
}

// playlistMoved reports a history change when the playlist position differs
// from the one last seen. The first value mpv reports only seeds it.
func (h *Host) playlistMoved(pos int) {
	h.mu.Lock()
	prev, seen := h.pos.Get()
	h.pos = mo.Some(pos)
	h.mu.Unlock()

	if seen && prev != pos {
		url, _ := h.URL()
		h.history.fire(url)
	}
}

// fileStarted detaches the element of the previous file.
func (h *Host) fileStarted() {
	h.mu.Lock()
	el := h.current
	h.current = nil
	h.mu.Unlock()

	if el != nil {
		el.detach()
	}
}

func (h *Host) fileLoaded(path string) {
	el := newElement(h.ipc, path)

	h.mu.Lock()
	prev := h.current
	h.current = el
	loaded := h.loaded
	h.loaded = make(chan struct{})
	h.mu.Unlock()

	if prev != nil {
		prev.detach()
	}
	close(loaded)

	h.logger.WithFields(logrus.Fields{
		"path":    path,
		"element": el.ID(),
	}).Info("file loaded")

	el.emit(media.EventLoadedMetadata)
	h.routes.fire(path)
}

// lost tears everything down once. It is idempotent.
func (h *Host) lost() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	el := h.current
	h.current = nil
	h.mu.Unlock()

	close(h.done)
	if el != nil {
		el.detach()
		h.replaced.fire(el.ID())
	}
	h.logger.Info("mpv connection closed")
}
