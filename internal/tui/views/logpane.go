package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/xoelrdgz/ransomradar/internal/domain"
	"github.com/xoelrdgz/ransomradar/pkg/sanitize"
)

// LogPane shows one detection channel with the newest line at the bottom.
type LogPane struct {
	Channel       domain.Channel
	Events        []*domain.Event
	Count         int64 // Channel counter, may exceed len(Events)
	VisibleCount  int
	Width         int
	Focused       bool
	SelectedIndex int
}

func NewLogPane(channel domain.Channel, visibleCount int) *LogPane {
	return &LogPane{
		Channel:       channel,
		VisibleCount:  visibleCount,
		Width:         40,
		SelectedIndex: -1,
	}
}

// Update replaces the pane contents. A selection pinned to the newest line
// follows new events.
func (p *LogPane) Update(events []*domain.Event, count int64) {
	followTail := p.SelectedIndex < 0 || p.SelectedIndex >= len(p.Events)-1
	p.Events = events
	p.Count = count
	switch {
	case len(events) == 0:
		p.SelectedIndex = -1
	case followTail || p.SelectedIndex >= len(events):
		p.SelectedIndex = len(events) - 1
	}
}

func (p *LogPane) ScrollUp() {
	if p.SelectedIndex > 0 {
		p.SelectedIndex--
	}
}

func (p *LogPane) ScrollDown() {
	if p.SelectedIndex < len(p.Events)-1 {
		p.SelectedIndex++
	}
}

func (p *LogPane) GetSelected() *domain.Event {
	if p.SelectedIndex >= 0 && p.SelectedIndex < len(p.Events) {
		return p.Events[p.SelectedIndex]
	}
	return nil
}

// window returns the [start, end) slice of events kept on screen so that
// the selection is visible.
func (p *LogPane) window() (int, int) {
	n := len(p.Events)
	if n <= p.VisibleCount || p.VisibleCount <= 0 {
		return 0, n
	}
	end := n
	if p.SelectedIndex >= 0 && p.SelectedIndex < n-p.VisibleCount {
		end = p.SelectedIndex + p.VisibleCount
	}
	return end - p.VisibleCount, end
}

func (p *LogPane) Render() string {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("#404040"))
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("#707070"))
	text := lipgloss.NewStyle().Foreground(lipgloss.Color("#e5e5e5"))
	selected := lipgloss.NewStyle().Background(lipgloss.Color("#003300")).Foreground(lipgloss.Color("#00ff41"))

	titleStyle := forLevel(string(p.Channel.Level()))
	borderColor := lipgloss.Color("#1a3a1a")
	if p.Focused {
		borderColor = lipgloss.Color("#00ff41")
	}

	inner := p.Width - 4
	if inner < 10 {
		inner = 10
	}

	var lines []string
	lines = append(lines, titleStyle.Render(strings.ToUpper(p.Channel.String()))+
		muted.Render(fmt.Sprintf("  %s", fmtLarge(p.Count))))
	lines = append(lines, dim.Render(strings.Repeat("─", inner)))

	if len(p.Events) == 0 {
		lines = append(lines, dim.Italic(true).Render("No events"))
	}

	start, end := p.window()
	for i := start; i < end; i++ {
		ev := p.Events[i]
		ts := ev.Timestamp.Local().Format("15:04:05")
		msg := sanitize.String(ev.Message, inner-10)

		if p.Focused && i == p.SelectedIndex {
			lines = append(lines, selected.Render(fmt.Sprintf("%s %s", ts, msg)))
			continue
		}
		lines = append(lines, dim.Render(ts)+" "+text.Render(msg))
	}

	for len(lines) < p.VisibleCount+2 {
		lines = append(lines, "")
	}

	return lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(borderColor).
		Padding(0, 1).
		Width(p.Width - 2).
		Render(strings.Join(lines, "\n"))
}
