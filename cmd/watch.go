package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subloop-cli/subloop/clock"
	"github.com/subloop-cli/subloop/config"
	"github.com/subloop-cli/subloop/filesystem"
	"github.com/subloop-cli/subloop/history"
	"github.com/subloop-cli/subloop/inline"
	"github.com/subloop-cli/subloop/key"
	"github.com/subloop-cli/subloop/log"
	"github.com/subloop-cli/subloop/metrics"
	"github.com/subloop-cli/subloop/player"
	"github.com/subloop-cli/subloop/segment"
	"github.com/subloop-cli/subloop/session"
	"github.com/subloop-cli/subloop/subsync"
	"github.com/subloop-cli/subloop/subtitle"
	"github.com/subloop-cli/subloop/tui"
	"github.com/subloop-cli/subloop/util"
	"github.com/subloop-cli/subloop/where"
	"golang.org/x/term"
)

// coreTimeout bounds a blocking call into the playback core.
const coreTimeout = 5 * time.Second

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringP("sub", "s", "", "Primary subtitle file. Discovered next to the media when empty")
	watchCmd.Flags().String("sub2", "", "Secondary subtitle file")
	watchCmd.Flags().StringP("lang", "l", "", "Preferred primary subtitle language")
	lo.Must0(viper.BindPFlag(key.SubtitleLang, watchCmd.Flags().Lookup("lang")))
	watchCmd.Flags().String("lang2", "", "Preferred secondary subtitle language")
	lo.Must0(viper.BindPFlag(key.SubtitleLang2, watchCmd.Flags().Lookup("lang2")))

	watchCmd.Flags().String("loops", "", "Loops file. Defaults to the one saved for this media")
	watchCmd.Flags().String("loop", "", "Start the saved loop with this label")
	lo.Must0(watchCmd.RegisterFlagCompletionFunc("loop", completionLoopLabels))

	watchCmd.Flags().Bool("osd", true, "Render active subtitles on the player's on-screen display")
	lo.Must0(viper.BindPFlag(key.PlayerOSD, watchCmd.Flags().Lookup("osd")))
	watchCmd.Flags().String("player", "", "Path or name of the mpv executable")
	lo.Must0(viper.BindPFlag(key.PlayerBinary, watchCmd.Flags().Lookup("player")))
	watchCmd.Flags().String("attach", "", "Attach to an mpv already listening on this IPC socket instead of launching one")

	watchCmd.Flags().BoolP("inline", "i", false, "Print events as JSON lines instead of showing the dashboard")
	watchCmd.Flags().StringP("kinds", "k", "", "Comma-separated inline record kinds, or \"all\"")
	lo.Must0(watchCmd.RegisterFlagCompletionFunc("kinds", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return append(lo.Map(inline.Kinds, func(k inline.Kind, _ int) string { return string(k) }), "all"), cobra.ShellCompDirectiveNoFileComp
	}))
	watchCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
}

var watchCmd = &cobra.Command{
	Use:   "watch [media]",
	Short: "Play media in mpv with synchronized subtitles and segment loops",
	Long: `Play media in mpv with synchronized subtitles and segment loops.

Subtitle files named after the media (movie.mkv, movie.en.srt, movie.ja.vtt)
are discovered automatically. Loops saved from the dashboard are kept per media
in the loops directory and restored the next time it is watched.`,
	Example: `  subloop watch movie.mkv --lang en --lang2 ja
  subloop watch movie.mkv --loop chorus
  subloop watch --attach /tmp/mpv.sock --inline --kinds cue,loop`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		handleErr(watch(cmd, lo.FirstOr(args, "")))
	},
}

// watchOptions are the resolved flags of a watch run.
type watchOptions struct {
	media       string
	attach      string
	sub, sub2   string
	loopsPath   string
	loop        string
	inline      bool
	kinds       []inline.Kind
	metricsAddr string
}

func readWatchOptions(cmd *cobra.Command, media string) (watchOptions, error) {
	flags := cmd.Flags()
	opts := watchOptions{
		media:       media,
		attach:      lo.Must(flags.GetString("attach")),
		sub:         lo.Must(flags.GetString("sub")),
		sub2:        lo.Must(flags.GetString("sub2")),
		loopsPath:   lo.Must(flags.GetString("loops")),
		loop:        lo.Must(flags.GetString("loop")),
		inline:      lo.Must(flags.GetBool("inline")),
		metricsAddr: lo.Must(flags.GetString("metrics-addr")),
	}

	if opts.media == "" && opts.attach == "" {
		return opts, errors.New("nothing to watch: pass a media file or --attach")
	}

	kinds, err := inline.ParseKinds(lo.Must(flags.GetString("kinds")))
	if err != nil {
		return opts, err
	}
	opts.kinds = kinds
	return opts, nil
}

// on runs fn on the loop goroutine and waits for its result.
func on(loop *clock.Loop, fn func() error) error {
	done := make(chan error, 1)
	loop.Post(func() { done <- fn() })

	select {
	case err := <-done:
		return err
	case <-time.After(coreTimeout):
		return errors.New("playback core did not respond")
	}
}

func watch(cmd *cobra.Command, media string) error {
	opts, err := readWatchOptions(cmd, media)
	if err != nil {
		return err
	}
	logger := log.For("watch")

	host := player.New(player.Options{
		Binary: viper.GetString(key.PlayerBinary),
		Title:  util.FileStem(opts.media),
	})
	if opts.attach != "" {
		err = host.Attach(opts.attach)
	} else {
		CheckDependencies(viper.GetString(key.PlayerBinary))
		err = host.Launch(opts.media)
	}
	if err != nil {
		return err
	}
	defer host.Close()

	if opts.media == "" {
		opts.media, _ = host.URL()
	}

	loop := clock.NewLoop()
	defer loop.Close()
	go func() { _ = loop.Run(context.Background()) }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	s := session.New(session.Options{
		Config: config.Core(),
		Clock:  loop,
		Source: host,
		Host:   host.Navigation(),
		Store:  history.Default(),
	})
	if err := on(loop, func() error { return s.Start(ctx) }); err != nil {
		return fmt.Errorf("start playback: %w", err)
	}
	defer func() {
		_ = on(loop, func() error {
			if err := s.PreservePlayerState(); err != nil {
				logger.WithError(err).Debug("state not preserved")
			}
			s.Shutdown()
			return nil
		})
	}()

	if err := loadSubtitles(loop, s, opts); err != nil {
		return err
	}

	bookmarks, bookmarksPath, err := loadBookmarks(opts)
	if err != nil {
		return err
	}
	if opts.loop != "" {
		if err := on(loop, func() error {
			_, err := s.LoopBookmark(bookmarks, opts.loop)
			return err
		}); err != nil {
			return err
		}
	}

	if viper.GetBool(key.PlayerOSD) {
		overlay := player.NewOverlay(host)
		defer overlay.Close()
		detach := mirror(loop, s, overlay)
		defer detach()
	}

	if opts.metricsAddr != "" {
		stop, err := serveMetrics(loop, s, opts.metricsAddr)
		if err != nil {
			return err
		}
		defer stop()
	}

	if opts.inline {
		w := inline.NewWriter(inline.Options{Out: os.Stdout, Kinds: opts.kinds})
		var detach func()
		if err := on(loop, func() error {
			detach = w.Attach(s)
			return nil
		}); err != nil {
			return err
		}
		defer detach()

		select {
		case <-ctx.Done():
		case <-host.Done():
		}
		return nil
	}

	return tui.Run(&tui.Options{
		Session:       s,
		Post:          loop.Post,
		Done:          host.Done(),
		Title:         util.FileStem(opts.media),
		Bookmarks:     bookmarks,
		BookmarksPath: bookmarksPath,
	})
}

// mirror keeps the overlay in step with the cues and the loop. Session topics
// publish on the loop goroutine, so reading the session here is safe.
func mirror(loop *clock.Loop, s *session.Session, overlay *player.Overlay) (detach func()) {
	cues := func(subsync.Event) {
		overlay.Cues(s.ActiveCues(session.Primary), s.ActiveCues(session.Secondary))
	}

	var unsubs []func()
	err := on(loop, func() error {
		for _, slot := range session.Slots {
			unsubs = append(unsubs, s.SubtitleSync(slot).Subscribe(cues))
		}
		unsubs = append(unsubs, s.SegmentLoop().Subscribe(func(segment.Event) {
			overlay.Loop(s.ActiveLoop())
		}))
		overlay.Loop(s.ActiveLoop())
		return nil
	})
	if err != nil {
		log.For("overlay").WithError(err).Warn("overlay not attached")
	}

	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

func serveMetrics(loop *clock.Loop, s *session.Session, addr string) (stop func(), err error) {
	m := metrics.New()

	var detach func()
	if err := on(loop, func() error {
		detach = m.Instrument(s)
		return nil
	}); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.For("metrics").WithError(err).Error("metrics server stopped")
		}
	}()

	return func() {
		detach()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}, nil
}

func loadSubtitles(loop *clock.Loop, s *session.Session, opts watchOptions) error {
	var candidates []subtitle.Candidate
	if opts.media != "" && (opts.sub == "" || opts.sub2 == "") {
		found, err := subtitle.Discover(opts.media)
		if err != nil {
			log.For("watch").WithError(err).Debug("no subtitles discovered")
		}
		candidates = found
	}

	primary, err := pickSubtitle(opts.sub, candidates, viper.GetString(key.SubtitleLang), true, !opts.inline)
	if err != nil {
		return err
	}

	if p, ok := primary.Get(); ok {
		candidates = lo.Reject(candidates, func(c subtitle.Candidate, _ int) bool { return c.Path == p })
	}
	secondary, err := pickSubtitle(opts.sub2, candidates, viper.GetString(key.SubtitleLang2), false, !opts.inline)
	if err != nil {
		return err
	}

	for slot, choice := range map[session.Slot]mo.Option[string]{session.Primary: primary, session.Secondary: secondary} {
		path, ok := choice.Get()
		if !ok {
			continue
		}
		if err := on(loop, func() error { return s.LoadSubtitleFile(slot, path) }); err != nil {
			return fmt.Errorf("load %s subtitles: %w", slot, err)
		}
	}
	return nil
}

// pickSubtitle resolves the file for a slot. An explicit path wins. Otherwise
// the discovered candidates matching lang are used, asking when several match
// and a terminal is attached. Without a language only the primary slot picks one.
func pickSubtitle(path string, candidates []subtitle.Candidate, lang string, primary, interactive bool) (mo.Option[string], error) {
	if path != "" {
		return mo.Some(path), nil
	}
	if lang == "" && !primary {
		return mo.None[string](), nil
	}

	matches := subtitle.Matches(candidates, lang)
	switch {
	case len(matches) == 0:
		return mo.None[string](), nil
	case len(matches) == 1 || !interactive || !term.IsTerminal(int(os.Stdin.Fd())):
		return mo.Some(matches[0].Path), nil
	}

	options := lo.Map(matches, func(c subtitle.Candidate, _ int) string {
		return filepath.Base(c.Path)
	})
	var choice string
	err := survey.AskOne(&survey.Select{
		Message: lo.Ternary(primary, "Primary subtitles", "Secondary subtitles"),
		Options: append(options, "none"),
	}, &choice)
	if err != nil {
		return mo.None[string](), err
	}

	idx := lo.IndexOf(options, choice)
	if idx < 0 {
		return mo.None[string](), nil
	}
	return mo.Some(matches[idx].Path), nil
}

// loopsPathFor is where loops saved for media live.
func loopsPathFor(media string) string {
	return filepath.Join(where.Loops(), util.SanitizeFilename(util.FileStem(media))+".yaml")
}

func loadBookmarks(opts watchOptions) (*segment.Bookmarks, string, error) {
	path := opts.loopsPath
	if path == "" {
		path = loopsPathFor(opts.media)
	}

	exists, err := filesystem.API().Exists(path)
	if err != nil {
		return nil, "", err
	}
	if !exists {
		if opts.loopsPath != "" {
			return nil, "", fmt.Errorf("loops file %s does not exist", path)
		}
		return &segment.Bookmarks{Media: opts.media}, path, nil
	}

	b, err := segment.LoadBookmarks(path)
	if err != nil {
		return nil, "", err
	}
	return b, path, nil
}

func completionLoopLabels(cmd *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	path := lo.Must(cmd.Flags().GetString("loops"))
	if path == "" && len(args) > 0 {
		path = loopsPathFor(args[0])
	}
	if path == "" {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	b, err := segment.LoadBookmarks(path)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return lo.Map(b.Loops, func(bm segment.Bookmark, _ int) string { return bm.Label }), cobra.ShellCompDirectiveNoFileComp
}
