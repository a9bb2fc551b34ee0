package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/thruflo/tracksync/internal/host"
)

// DefaultBarWidth is the bar length used when the terminal size is unknown.
const DefaultBarWidth = 40

type barStyles struct {
	label   lipgloss.Style
	fill    lipgloss.Style
	empty   lipgloss.Style
	value   lipgloss.Style
	status  lipgloss.Style
	playing lipgloss.Style
	paused  lipgloss.Style
}

func defaultStyles() barStyles {
	brand := lipgloss.AdaptiveColor{Light: "26", Dark: "81"}
	subtle := lipgloss.AdaptiveColor{Light: "245", Dark: "244"}
	return barStyles{
		label:   lipgloss.NewStyle().Bold(true),
		fill:    lipgloss.NewStyle().Foreground(brand),
		empty:   lipgloss.NewStyle().Foreground(subtle),
		value:   lipgloss.NewStyle().Foreground(subtle),
		status:  lipgloss.NewStyle().Foreground(subtle),
		playing: lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		paused:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
	}
}

// BarRenderer draws one horizontal bar per track and a status line, redrawing
// in place from the top-left corner.
type BarRenderer struct {
	out    io.Writer
	width  int
	styles barStyles
	ranges *host.Ranges
}

// NewBarRenderer creates a BarRenderer writing to out.
func NewBarRenderer(out io.Writer) *BarRenderer {
	return &BarRenderer{
		out:    out,
		width:  DefaultBarWidth,
		styles: defaultStyles(),
		ranges: host.NewRanges(),
	}
}

// SetTerminalWidth sizes bars to fit a terminal of the given width.
func (r *BarRenderer) SetTerminalWidth(cols int) {
	w := cols - 40
	if w < 10 {
		w = 10
	}
	r.width = w
}

// Draw implements host.Renderer.
func (r *BarRenderer) Draw(frame host.Frame) error {
	_, err := io.WriteString(r.out, CursorHome+r.Render(frame))
	return err
}

// Render returns the view for frame without cursor positioning.
func (r *BarRenderer) Render(frame host.Frame) string {
	labelWidth := 0
	for _, s := range frame.Tracks {
		if len(s.Name) > labelWidth {
			labelWidth = len(s.Name)
		}
	}

	var b strings.Builder
	b.WriteString(r.status(frame))
	b.WriteString(ClearLine + "\r\n")

	for _, s := range frame.Tracks {
		filled := int(r.ranges.Normalize(s.Name, s.Value)*float64(r.width) + 0.5)
		if filled > r.width {
			filled = r.width
		}

		b.WriteString(r.styles.label.Render(fmt.Sprintf("%-*s", labelWidth, s.Name)))
		b.WriteString(" ")
		b.WriteString(r.styles.fill.Render(strings.Repeat("█", filled)))
		b.WriteString(r.styles.empty.Render(strings.Repeat("░", r.width-filled)))
		b.WriteString(" ")
		b.WriteString(r.styles.value.Render(fmt.Sprintf("%10.4f", s.Value)))
		b.WriteString(ClearLine + "\r\n")
	}
	return b.String()
}

func (r *BarRenderer) status(frame host.Frame) string {
	mode := r.styles.playing.Render("playing")
	if frame.Paused {
		mode = r.styles.paused.Render("paused")
	}
	return fmt.Sprintf("%s %s %s",
		mode,
		r.styles.status.Render(fmt.Sprintf("row %-6d %s", frame.Row, formatTime(frame.Time))),
		r.styles.status.Render(frame.State),
	)
}

// formatTime renders a playback position as mm:ss.mmm.
func formatTime(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d.%03d", ms/60000, (ms/1000)%60, ms%1000)
}
