package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	sparkColorPrimary = lipgloss.Color("#00ff41")
	sparkColorAmber   = lipgloss.Color("#ffb000")
	sparkColorRed     = lipgloss.Color("#ff3333")
	sparkColorDim     = lipgloss.Color("#404040")
	sparkColorGhost   = lipgloss.Color("#252525")
)

var signalChars = []rune{'⎽', '⎼', '─', '⎻', '⎺'}

// CPUTrace draws recent CPU samples as an oscilloscope line scaled to
// 0-100%. The trace turns amber near the anomaly CPU threshold and red
// above it.
type CPUTrace struct {
	Data      []float64
	Width     int
	Threshold float64
	Files     int
}

func NewCPUTrace(width int, threshold float64) *CPUTrace {
	if width <= 0 {
		width = 60
	}
	return &CPUTrace{
		Data:      make([]float64, width),
		Width:     width,
		Threshold: threshold,
	}
}

func (t *CPUTrace) Update(cpu float64, files int) {
	t.Data = append(t.Data[1:], cpu)
	t.Files = files
}

func (t *CPUTrace) Current() float64 {
	if len(t.Data) == 0 {
		return 0
	}
	return t.Data[len(t.Data)-1]
}

func (t *CPUTrace) SetWidth(width int) {
	if width <= 0 || width == t.Width {
		return
	}
	old := t.Data
	t.Width = width
	t.Data = make([]float64, width)
	if len(old) > width {
		old = old[len(old)-width:]
	}
	copy(t.Data[width-len(old):], old)
}

// Level maps a CPU percentage to a trace glyph index.
func (t *CPUTrace) Level(v float64) int {
	if v <= 0 {
		return 0
	}
	level := int(v / 100 * float64(len(signalChars)-1))
	return min(max(level, 0), len(signalChars)-1)
}

func (t *CPUTrace) Render() string {
	green := lipgloss.NewStyle().Foreground(sparkColorPrimary)
	amber := lipgloss.NewStyle().Foreground(sparkColorAmber)
	red := lipgloss.NewStyle().Foreground(sparkColorRed)
	dim := lipgloss.NewStyle().Foreground(sparkColorDim)
	ghost := lipgloss.NewStyle().Foreground(sparkColorGhost)

	current := t.Current()
	color := green
	switch {
	case current > t.Threshold:
		color = red
	case current > t.Threshold*0.8:
		color = amber
	}

	var trace strings.Builder
	trace.WriteString(dim.Render(" CPU "))

	for i, v := range t.Data {
		if i > 0 && i%10 == 0 {
			trace.WriteString(ghost.Render("│"))
			continue
		}
		if v == 0 {
			trace.WriteString(dim.Render(string(signalChars[0])))
			continue
		}
		trace.WriteString(color.Render(string(signalChars[t.Level(v)])))
	}

	trace.WriteString(color.Bold(true).Render(fmt.Sprintf(" ▶ %.1f%%", current)))
	trace.WriteString(dim.Render(fmt.Sprintf("  FILES %s", fmtLarge(int64(t.Files)))))
	return trace.String()
}
