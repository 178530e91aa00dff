package views

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/xoelrdgz/ransomradar/internal/domain"
	"github.com/xoelrdgz/ransomradar/pkg/sanitize"
)

var (
	inspColorPrimary = lipgloss.Color("#00ff41")
	inspColorAmber   = lipgloss.Color("#ffb000")
	inspColorRed     = lipgloss.Color("#ff3333")
	inspColorCyan    = lipgloss.Color("#00b8ff")
	inspColorText    = lipgloss.Color("#e5e5e5")
	inspColorDim     = lipgloss.Color("#404040")
	inspColorBorder  = lipgloss.Color("#00ff41")
	inspColorBg      = lipgloss.Color("#0a1f0a")
)

func forLevel(level string) lipgloss.Style {
	switch level {
	case string(domain.AlertLevelCritical):
		return lipgloss.NewStyle().Foreground(inspColorRed).Bold(true)
	case string(domain.AlertLevelWarning):
		return lipgloss.NewStyle().Foreground(inspColorAmber).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(inspColorCyan)
	}
}

// EventInspector is the full-screen detail view of one event.
type EventInspector struct {
	Event   *domain.Event
	Width   int
	Height  int
	ScrollY int
	Visible bool
}

func NewEventInspector() *EventInspector {
	return &EventInspector{
		Width:  80,
		Height: 24,
	}
}

func (p *EventInspector) SetEvent(event *domain.Event) {
	p.Event = event
	p.ScrollY = 0
	p.Visible = event != nil
}

func (p *EventInspector) SetDimensions(width, height int) {
	p.Width = width
	p.Height = height
}

func (p *EventInspector) ScrollUp() {
	if p.ScrollY > 0 {
		p.ScrollY--
	}
}

func (p *EventInspector) ScrollDown() {
	p.ScrollY++
}

func (p *EventInspector) Close() {
	p.Event = nil
	p.Visible = false
}

func (p *EventInspector) Render() string {
	if p.Event == nil {
		return ""
	}

	ev := p.Event
	contentWidth := p.Width - 4

	header := lipgloss.NewStyle().
		Foreground(inspColorPrimary).
		Bold(true)
	label := lipgloss.NewStyle().
		Foreground(inspColorAmber).
		Width(12)
	value := lipgloss.NewStyle().
		Foreground(inspColorText)
	dimText := lipgloss.NewStyle().
		Foreground(inspColorDim)
	codeBlock := lipgloss.NewStyle().
		Foreground(inspColorPrimary).
		Background(inspColorBg)

	row := func(name, v string) string {
		return fmt.Sprintf("%s %s", label.Render(name), value.Render(v))
	}

	var lines []string
	lines = append(lines, header.Render("╔═══ EVENT INSPECTOR ═══╗"))
	lines = append(lines, dimText.Render(strings.Repeat("─", contentWidth)))

	lines = append(lines, header.Render("▶ EVENT DETAILS"))
	lines = append(lines, row("Timestamp:", ev.Timestamp.Local().Format("2006-01-02 15:04:05.000")))
	lines = append(lines, fmt.Sprintf("%s %s",
		label.Render("Channel:"),
		forLevel(string(ev.Level)).Render(strings.ToUpper(ev.Channel.String()))))
	lines = append(lines, fmt.Sprintf("%s %s",
		label.Render("Level:"),
		forLevel(string(ev.Level)).Render(string(ev.Level))))
	lines = append(lines, row("Event ID:", ev.ID))
	if ev.SessionID != "" {
		lines = append(lines, row("Session:", ev.SessionID))
	}
	lines = append(lines, row("Message:", sanitize.String(ev.Message, contentWidth-13)))

	if ev.Path != "" {
		lines = append(lines, "")
		lines = append(lines, dimText.Render(strings.Repeat("─", contentWidth)))
		lines = append(lines, header.Render("▶ FILE"))
		lines = append(lines, codeBlock.Render(sanitize.Path(ev.Path, contentWidth)))
	}

	if len(ev.Metadata) > 0 {
		lines = append(lines, "")
		lines = append(lines, dimText.Render(strings.Repeat("─", contentWidth)))
		lines = append(lines, header.Render("▶ DETECTION DETAILS"))

		keys := make([]string, 0, len(ev.Metadata))
		for k := range ev.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			for _, line := range strings.Split(ev.Metadata[k], "\n") {
				lines = append(lines, codeBlock.Render(sanitize.String(k+": "+line, contentWidth)))
			}
		}
	}

	lines = append(lines, "")
	lines = append(lines, dimText.Render(strings.Repeat("─", contentWidth)))
	lines = append(lines, dimText.Render("[ESC] Close   [↑/↓] Scroll"))
	if p.ScrollY > 0 && p.ScrollY < len(lines) {
		lines = lines[p.ScrollY:]
	}
	if len(lines) > p.Height-2 {
		lines = lines[:p.Height-2]
	}

	return lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(inspColorBorder).
		Padding(0, 1).
		Width(p.Width).
		Height(p.Height).
		Render(strings.Join(lines, "\n"))
}
