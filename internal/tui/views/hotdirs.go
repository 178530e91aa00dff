package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/xoelrdgz/ransomradar/pkg/sanitize"
)

// DirEntry aggregates events under one parent directory.
type DirEntry struct {
	Dir      string
	Events   int
	LastSeen string
	Channels []string
}

// HotDirs ranks directories by event volume. Encryption sweeps show up as
// one directory racing ahead of the rest.
type HotDirs struct {
	Dirs         []*DirEntry
	Width        int
	VisibleCount int
}

func NewHotDirs(width int) *HotDirs {
	return &HotDirs{Width: width, VisibleCount: 25}
}

func (v *HotDirs) Update(dirs []*DirEntry) { v.Dirs = dirs }

func (v *HotDirs) Render() string {
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff41"))
	greenDim := lipgloss.NewStyle().Foreground(lipgloss.Color("#00aa2a"))
	amber := lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb000"))
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("#ff3333"))
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("#404040"))
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("#707070"))
	text := lipgloss.NewStyle().Foreground(lipgloss.Color("#e5e5e5"))

	if len(v.Dirs) == 0 {
		return dim.Italic(true).Render("  No file activity")
	}

	dirWidth := v.Width - 45
	if dirWidth < 20 {
		dirWidth = 20
	}

	var lines []string
	lines = append(lines, muted.Bold(true).Render(fmt.Sprintf(" %-3s %-*s %-12s %-10s %s",
		"#", dirWidth, "DIRECTORY", "EVENTS", "LAST", "CHANNELS")))
	lines = append(lines, dim.Render(strings.Repeat("─", v.Width)))

	maxEvents := v.Dirs[0].Events
	for _, d := range v.Dirs {
		maxEvents = max(maxEvents, d.Events)
	}

	visible := v.Dirs
	if len(visible) > v.VisibleCount {
		visible = visible[:v.VisibleCount]
	}

	for i, d := range visible {
		ratio := float64(d.Events) / float64(max(maxEvents, 1))
		style := greenDim
		switch {
		case d.Events > 50 || ratio > 0.7:
			style = red.Bold(true)
		case d.Events > 20 || ratio > 0.4:
			style = amber.Bold(true)
		case d.Events > 5:
			style = green
		}

		const barWidth = 6
		fill := min(int(ratio*barWidth), barWidth)
		bar := strings.Repeat("█", fill) + strings.Repeat("░", barWidth-fill)

		lines = append(lines, fmt.Sprintf(" %s %s %s %s %s",
			muted.Render(fmt.Sprintf("%2d.", i+1)),
			style.Render(padRight(sanitize.Path(d.Dir, dirWidth), dirWidth)),
			style.Render(fmt.Sprintf("%s %5s", bar, fmtLarge(int64(d.Events)))),
			muted.Render(padRight(d.LastSeen, 10)),
			text.Render(strings.Join(d.Channels, ",")),
		))
	}

	if len(v.Dirs) > v.VisibleCount {
		lines = append(lines, dim.Render(fmt.Sprintf("  [showing %d of %d directories]", v.VisibleCount, len(v.Dirs))))
	}

	return strings.Join(lines, "\n")
}

func padRight(s string, length int) string {
	n := len([]rune(s))
	if n >= length {
		return string([]rune(s)[:length])
	}
	return s + strings.Repeat(" ", length-n)
}
