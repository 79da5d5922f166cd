package app

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// DiagnosticsState holds metrics for the debug overlay.
type DiagnosticsState struct {
	StartTime      time.Time
	LastUpdate     time.Time
	MemoryUsage    uint64
	GoroutineCount int
}

func NewDiagnosticsState() *DiagnosticsState {
	return &DiagnosticsState{StartTime: time.Now()}
}

// Update refreshes runtime stats.
func (d *DiagnosticsState) Update() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	d.MemoryUsage = m.Alloc
	d.GoroutineCount = runtime.NumGoroutine()
	d.LastUpdate = time.Now()
}

// Uptime returns the application uptime.
func (d *DiagnosticsState) Uptime() time.Duration {
	return time.Since(d.StartTime)
}

// Render renders the diagnostics overlay.
func (d *DiagnosticsState) Render(m *Model) string {
	d.Update()

	var b strings.Builder

	b.WriteString(m.theme.Title.Render(" ═══ Diagnostics ═══ "))
	b.WriteString("\n\n")

	uptime := d.Uptime().Round(time.Second)
	b.WriteString(m.theme.Dim.Render("Uptime: "))
	b.WriteString(m.theme.Text.Render(uptime.String()))
	b.WriteString("\n\n")

	b.WriteString(m.theme.Accent.Render("Runtime"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  Memory: %s\n", formatBytes(d.MemoryUsage)))
	b.WriteString(fmt.Sprintf("  Goroutines: %d\n", d.GoroutineCount))
	b.WriteString("\n")

	b.WriteString(m.theme.Accent.Render("Device"))
	b.WriteString("\n")
	if m.store.Connected() {
		b.WriteString(m.theme.Success.Render("  ● Connected"))
	} else {
		b.WriteString(m.theme.Error.Render("  ○ Disconnected"))
	}
	b.WriteString("\n\n")

	b.WriteString(m.theme.Accent.Render("Playback"))
	b.WriteString("\n")
	snap := m.store.Now()
	if snap.Active() {
		stateLabel := "Playing"
		if snap.Paused {
			stateLabel = "Paused"
		}
		b.WriteString(fmt.Sprintf("  State: %s\n", stateLabel))
		b.WriteString(fmt.Sprintf("  Context: %s\n", snap.ContextURI))
		b.WriteString(fmt.Sprintf("  Track: %s\n", snap.TrackURI))
		b.WriteString(fmt.Sprintf("  Position: %s / %s\n", formatMS(snap.PositionMS), formatMS(snap.DurationMS)))
	} else {
		b.WriteString("  Nothing playing\n")
	}
	b.WriteString(fmt.Sprintf("  Loading: %v\n", m.Loading()))
	b.WriteString("\n")

	b.WriteString(m.theme.Accent.Render("Volume"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  Mode: %s\n", m.arbiter.Mode()))
	b.WriteString(fmt.Sprintf("  Level: %d%%\n", m.arbiter.EffectiveLevel()))
	b.WriteString("\n")

	b.WriteString(m.theme.Accent.Render("Carousel"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  Items: %d\n", m.carousel.Len()))
	b.WriteString(fmt.Sprintf("  Selected: %s\n", m.carousel.SelectedURI()))
	b.WriteString(fmt.Sprintf("  Transient: %v\n", m.carousel.Transient() != nil))

	b.WriteString("\n")
	b.WriteString(m.theme.Dim.Render("Press Ctrl+D to close"))

	content := b.String()
	diagBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(1, 2).
		Width(44).
		Render(content)

	return lipgloss.Place(m.width, m.height, lipgloss.Right, lipgloss.Top, diagBox)
}

// formatBytes formats bytes as human-readable string.
func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
