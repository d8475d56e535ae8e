package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"
	"github.com/samber/lo"
	"github.com/subloop-cli/subloop/icon"
	"github.com/subloop-cli/subloop/recovery"
	"github.com/subloop-cli/subloop/session"
	"github.com/subloop-cli/subloop/style"
	"github.com/subloop-cli/subloop/subsync"
	"github.com/subloop-cli/subloop/tracker"
	"github.com/subloop-cli/subloop/util"
)

var (
	listExtraPaddingStyle = lipgloss.NewStyle().Padding(1, 2, 1, 0)
	paddingStyle          = lipgloss.NewStyle().Padding(1, 2)

	primaryCueStyle   = lipgloss.NewStyle().Foreground(style.Text).Bold(true)
	secondaryCueStyle = lipgloss.NewStyle().Foreground(style.Subtext).Italic(true)
	errorStyle        = lipgloss.NewStyle().Foreground(style.ErrorColor)
)

func (b *statefulBubble) View() string {
	switch b.state {
	case dashboardState:
		return b.viewDashboard()
	case loopsState:
		return b.viewLoops()
	case errorState:
		return b.viewError()
	default:
		return "Unknown state"
	}
}

func (b *statefulBubble) viewDashboard() string {
	lines := []string{
		style.Title("subloop") + " " + b.truncate(b.options.Title, len("subloop")+3),
		"",
		b.viewPlayer(),
		b.progressC.ViewAs(b.ratio()),
		"",
	}

	lines = append(lines, b.viewCues(session.Primary, primaryCueStyle)...)
	lines = append(lines, b.viewCues(session.Secondary, secondaryCueStyle)...)
	lines = append(lines, "", b.viewLoop())

	if status := b.viewStatus(); status != "" {
		lines = append(lines, "", status)
	}

	return b.renderLines(true, lines)
}

func (b *statefulBubble) viewPlayer() string {
	info, ok := b.info.Get()
	if !ok {
		return b.spinnerC.View() + " waiting for the player"
	}

	var indicator string
	switch info.State {
	case tracker.Playing:
		indicator = icon.Get(icon.Play)
	case tracker.Buffering:
		indicator = b.spinnerC.View()
	default:
		indicator = icon.Get(icon.Pause)
	}

	m := info.Metadata
	parts := []string{
		indicator + " " + style.Bold(info.State.String()),
		fmt.Sprintf("%s / %s", util.FormatTimestamp(m.CurrentTime), util.FormatTimestamp(m.Duration)),
		fmt.Sprintf("%.2fx", m.PlaybackRate),
	}
	if m.Muted {
		parts = append(parts, style.Faint("muted"))
	} else {
		parts = append(parts, fmt.Sprintf("vol %d%%", int(m.Volume*100+0.5)))
	}
	if start, ok := b.markIn.Get(); ok {
		parts = append(parts, style.Fg(style.Yellow)("[ "+util.FormatTimestamp(start)))
	}

	return strings.Join(parts, "  ")
}

func (b *statefulBubble) ratio() float64 {
	info, ok := b.info.Get()
	if !ok || info.Metadata.Duration <= 0 {
		return 0
	}
	return util.Clamp(info.Metadata.CurrentTime/info.Metadata.Duration, 0, 1)
}

// viewCues renders the visible cues of slot in display order, wrapped to the
// terminal width.
func (b *statefulBubble) viewCues(slot session.Slot, cueStyle lipgloss.Style) []string {
	track := b.tracks[slot]
	if track == "" {
		return nil
	}

	header := style.Faint(icon.Get(icon.Subtitle) + " " + track)
	cues := b.cues[slot]
	if len(cues) == 0 {
		return []string{header, ""}
	}

	lines := []string{header}
	for _, cue := range lo.Filter(cues, func(c subsync.ActiveCue, _ int) bool { return c.IsActive }) {
		text := wordwrap.String(cue.Plain(), max(b.width, 10))
		lines = append(lines, cueStyle.Render(wrap.String(text, max(b.width, 10))))
	}
	return append(lines, "")
}

func (b *statefulBubble) viewLoop() string {
	loop, ok := b.loop.Get()
	if !ok {
		return style.Faint(icon.Get(icon.Loop) + " no loop")
	}

	label := loop.Label
	if label == "" {
		label = "loop"
	}
	iterations := fmt.Sprintf("%d", loop.CurrentIteration)
	if loop.LoopCount > 0 {
		iterations += fmt.Sprintf("/%d", loop.LoopCount)
	}

	line := fmt.Sprintf("%s %s  %s - %s  #%s",
		icon.Get(icon.Loop),
		style.Bold(label),
		util.FormatTimestamp(loop.StartTime),
		util.FormatTimestamp(loop.EndTime),
		iterations,
	)
	if !loop.Enabled {
		return style.Faint(line + "  disabled")
	}
	return style.Fg(style.AccentColor)(line)
}

func (b *statefulBubble) viewStatus() string {
	var lines []string

	if nav, ok := b.navigation.Get(); ok {
		lines = append(lines, style.Faint(fmt.Sprintf("%s %s %s", icon.Get(icon.Navigation), nav.Type, b.truncate(nav.ToURL, 20))))
	}
	if b.breaker != recovery.Closed {
		lines = append(lines, errorStyle.Render(fmt.Sprintf("%s breaker %s", icon.Get(icon.Warning), b.breaker)))
	}
	if last, ok := b.errors.Last(); ok {
		lines = append(lines, errorStyle.Render(b.truncate(fmt.Sprintf("%s %s: %s", icon.Get(icon.Warning), last.Code, last.Message), 0)))
	}
	if b.status != "" {
		lines = append(lines, style.Fg(style.SecondaryColor)(b.status))
	}

	return strings.Join(lines, "\n")
}

func (b *statefulBubble) viewLoops() string {
	return listExtraPaddingStyle.Render(b.loopsC.View())
}

func (b *statefulBubble) viewError() string {
	body := errorStyle.Bold(true).Render(fmt.Sprintf("%s: %s", b.lastError.Code, b.lastError.Message))
	return b.renderLines(
		true,
		[]string{
			style.ErrorTitle("Error"),
			"",
			icon.Get(icon.Fail) + " Playback cannot continue:",
			"",
			wrap.String(body, max(b.width, 10)),
		},
	)
}

// truncate shortens s to the width left after reserved cells.
func (b *statefulBubble) truncate(s string, reserved int) string {
	if b.width <= reserved {
		return s
	}
	return truncate.StringWithTail(s, uint(b.width-reserved), "…")
}

func (b *statefulBubble) renderLines(addHelp bool, lines []string) string {
	l := strings.Join(lines, "\n")
	h := lipgloss.Height(l)
	if addHelp {
		if b.height > h {
			l += strings.Repeat("\n", b.height-h)
		}
		l += b.helpC.View(b.keymap)
	}

	return paddingStyle.Render(l)
}
