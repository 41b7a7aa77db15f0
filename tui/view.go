package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wrap"
	"github.com/streamctl/streamctl/constant"
	"github.com/streamctl/streamctl/icon"
	"github.com/streamctl/streamctl/player"
	"github.com/streamctl/streamctl/profile"
	"github.com/streamctl/streamctl/quality"
	"github.com/streamctl/streamctl/style"
	"github.com/streamctl/streamctl/util"
)

// Used before the first window size message.
const (
	defaultWidth  = 80
	defaultHeight = 24
)

var paddingStyle = lipgloss.NewStyle().Padding(1, 2)

var volumeBar = progress.New(
	progress.WithSolidFill(string(style.AccentColor)),
	progress.WithoutPercentage(),
	progress.WithWidth(20),
)

func (b *bubble) View() string {
	if b.switching {
		return b.channelC.View() + "\n" + b.helpC.View(b.keymap)
	}

	width := b.contentWidth()
	sections := []string{
		b.viewHeader(width),
		b.viewPanels(width),
		b.viewVolume(),
	}

	if r := b.viewRetry(width); r != "" {
		sections = append(sections, r)
	}
	if e := b.viewFailure(width); e != "" {
		sections = append(sections, e)
	}
	if b.status != "" {
		sections = append(sections, style.Faint(truncate.StringWithTail(b.status, uint(width), "…")))
	}
	sections = append(sections, b.helpC.View(b.keymap))

	return paddingStyle.Render(strings.Join(sections, "\n\n"))
}

func (b *bubble) contentWidth() int {
	w := b.width
	if w <= 0 {
		w = defaultWidth
	}
	x, _ := paddingStyle.GetFrameSize()
	return util.Max(w-x, 20)
}

func (b *bubble) viewHeader(width int) string {
	badge := style.State(string(b.state))
	if b.state == player.Loading || b.state == player.Buffering {
		badge += " " + b.spinnerC.View()
	}

	top := strings.Join([]string{
		style.Title(constant.Streamctl),
		badge,
		style.Route(b.route.String()),
		b.stateIcon(),
	}, " ")

	title := b.src.Title()
	if title == "" {
		title = "nothing loaded"
	}

	lines := []string{
		top,
		style.Bold(truncate.StringWithTail(title, uint(width), "…")),
	}
	if b.src.Address != "" && b.src.Address != title {
		lines = append(lines, style.Faint(truncate.StringWithTail(b.src.Address, uint(width), "…")))
	}
	if _, masked := b.src.Mask(); masked {
		lines = append(lines, style.Faint("sni mask active"))
	}
	return strings.Join(lines, "\n")
}

func (b *bubble) stateIcon() string {
	switch b.state {
	case player.Playing:
		return icon.Get(icon.Play)
	case player.Paused:
		return icon.Get(icon.Pause)
	case player.Buffering, player.Loading:
		return icon.Get(icon.Buffering)
	case player.Error:
		return icon.Get(icon.Fail)
	default:
		return ""
	}
}

func (b *bubble) viewPanels(width int) string {
	qualityPanel := style.Panel(true).Render(b.viewQuality())
	if !b.telemetry {
		return qualityPanel
	}

	telemetryPanel := style.Panel(false).Render(b.viewTelemetry())
	if lipgloss.Width(qualityPanel)+lipgloss.Width(telemetryPanel)+1 > width {
		return lipgloss.JoinVertical(lipgloss.Left, qualityPanel, telemetryPanel)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, qualityPanel, " ", telemetryPanel)
}

func (b *bubble) viewQuality() string {
	lines := []string{style.Fg(style.SecondaryColor)("Quality")}

	if len(b.tracks) == 0 {
		return strings.Join(append(lines, style.Faint("no selectable tracks")), "\n")
	}

	pinned := false
	for i, t := range b.tracks {
		marker := "  "
		if t.Active {
			marker = style.Fg(style.SuccessColor)("● ")
			pinned = true
		}
		lines = append(lines, fmt.Sprintf("%s%s %s", marker, style.Faint(fmt.Sprintf("[%d]", i)), quality.Label(t)))
	}

	auto := "  auto"
	if !pinned {
		auto = style.Fg(style.SuccessColor)("● ") + "auto"
	}
	return strings.Join(append(lines, auto), "\n")
}

func (b *bubble) viewTelemetry() string {
	s := b.sample
	row := func(name, value string) string {
		return fmt.Sprintf("%-8s %s", style.Faint(name), value)
	}

	codec := s.Codec
	if codec == "" {
		codec = "unknown"
	}

	return strings.Join([]string{
		style.Fg(style.SecondaryColor)(icon.Get(icon.Signal) + " Telemetry"),
		row("bitrate", fmt.Sprintf("%d kbps", s.BitrateKbps)),
		row("buffer", fmt.Sprintf("%.1f s", s.BufferSeconds)),
		row("latency", fmt.Sprintf("%.1f s", s.LatencySeconds)),
		row("fps", fmt.Sprintf("%d", s.FPS)),
		row("codec", codec),
	}, "\n")
}

func (b *bubble) viewVolume() string {
	label := fmt.Sprintf("%3d%%", int(b.intent.Volume*100+0.5))
	if b.intent.Muted {
		label += " " + style.Fg(style.WarningColor)("muted")
	}
	return style.Faint("volume ") + volumeBar.ViewAs(b.intent.Volume) + " " + label
}

func (b *bubble) viewRetry(width int) string {
	r := b.retry
	if r.Attempt == 0 || b.state == player.Error {
		return ""
	}

	line := fmt.Sprintf("%s retry %d/%d", icon.Get(icon.Progress), r.Attempt, profile.MaxRetryAttempts-1)
	if wait := time.Until(r.NextRetryAt); wait > 0 {
		line += fmt.Sprintf(" in %s", wait.Round(100*time.Millisecond))
	}
	if r.LastError != nil {
		line += ": " + r.LastError.Error()
	}
	return style.Fg(style.WarningColor)(wrap.String(line, width))
}

func (b *bubble) viewFailure(width int) string {
	if b.failure == nil || b.state != player.Error {
		return ""
	}
	return style.ErrorTitle(b.failure.Kind.String()) + "\n" +
		style.Fg(style.ErrorColor)(wrap.String(b.failure.Error(), width)) + "\n" +
		style.Faint("press r to retry")
}
