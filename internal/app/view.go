package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) View() string {
	if m.showDiag {
		return m.diag.Render(&m)
	}

	var b strings.Builder

	b.WriteString(m.headerView())
	b.WriteString("\n\n")
	b.WriteString(m.carouselView())
	b.WriteString("\n\n")
	b.WriteString(m.nowPlayingView())
	b.WriteString("\n")
	b.WriteString(m.volumeView())

	if m.errorMsg != "" {
		b.WriteString("\n")
		b.WriteString(m.theme.Error.Render(m.errorMsg))
	}
	if m.showHelp {
		b.WriteString("\n\n")
		b.WriteString(m.helpView())
	} else {
		b.WriteString("\n\n")
		b.WriteString(m.theme.Dim.Render("? help · q quit"))
	}
	return b.String()
}

func (m Model) headerView() string {
	title := m.theme.Title.Render("cubby")
	conn := m.theme.Error.Render("● offline")
	if m.store.Connected() {
		conn = m.theme.Success.Render("● connected")
	}
	gap := m.width - lipgloss.Width(title) - lipgloss.Width(conn)
	if gap < 1 {
		gap = 1
	}
	return title + strings.Repeat(" ", gap) + conn
}

func (m Model) carouselView() string {
	all := m.carousel.All()
	if len(all) == 0 {
		return m.theme.Dim.Render("catalog is empty")
	}

	var cells []string
	for i, it := range all {
		label := it.Name
		if label == "" {
			label = it.URI
		}
		if it.Temp {
			label += " ~"
		}
		if i == m.carousel.selected {
			marker := "▶ "
			if m.Loading() {
				marker = m.spin.View() + " "
			}
			cells = append(cells, m.theme.Highlight.Render(marker+label))
		} else {
			cells = append(cells, m.theme.Dim.Render(label))
		}
	}
	return "  " + strings.Join(cells, m.theme.Border.Render("  ·  "))
}

func (m Model) nowPlayingView() string {
	snap := m.store.Now()
	if !snap.Active() {
		return m.theme.Dim.Render("  nothing playing")
	}

	stateLabel := "playing"
	if snap.Paused {
		stateLabel = "paused"
	}
	line := fmt.Sprintf("  %s  %s — %s",
		m.theme.Accent.Render(stateLabel),
		m.theme.Text.Render(snap.TrackName),
		m.theme.Dim.Render(snap.TrackArtist))

	barWidth := m.width - 24
	if barWidth < 10 {
		barWidth = 10
	}
	bar := progressBar(barWidth, snap.Progress())
	times := fmt.Sprintf("%s / %s", formatMS(snap.PositionMS), formatMS(snap.DurationMS))
	return line + "\n  " + m.theme.Accent.Render(bar) + " " + m.theme.Dim.Render(times)
}

func (m Model) volumeView() string {
	label := fmt.Sprintf("  vol %d%% (%s)", m.arbiter.DisplayLevel(), m.arbiter.Mode())
	return m.theme.Dim.Render(label)
}

func (m Model) helpView() string {
	rows := []string{
		"←/→    select item",
		"space  play/pause",
		"n/p    next/previous track",
		"v      volume level",
		"q      quit",
	}
	return m.theme.Dim.Render("  " + strings.Join(rows, "\n  "))
}

func progressBar(width int, frac float64) string {
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	filled := int(frac * float64(width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func formatMS(ms int64) string {
	secs := ms / 1000
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
