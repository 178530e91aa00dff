package views

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/xoelrdgz/ransomradar/internal/domain"
)

// Status is the bottom bar: loop heartbeat, the three channel counters and
// a transient notice such as "Logs saved to ...".
type Status struct {
	Width     int
	Counters  domain.CountersSnapshot
	Matched   int
	StartTime time.Time
	LastTick  time.Time
	Running   bool
	Notice    string
}

func NewStatus(width int) *Status {
	return &Status{Width: width, StartTime: time.Now()}
}

func (s *Status) Render() string {
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff41"))
	greenDim := lipgloss.NewStyle().Foreground(lipgloss.Color("#00aa2a"))
	amber := lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb000"))
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("#ff3333"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("#00b8ff"))
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("#707070"))
	border := lipgloss.NewStyle().Foreground(lipgloss.Color("#2a2a2a"))

	ano := green
	if s.Counters.Anomaly > 0 {
		ano = amber.Bold(true)
	}
	sig := green
	if s.Counters.Signature > 0 {
		sig = red.Bold(true)
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	items := []string{
		s.heartbeat(green, greenDim, amber, red),
		muted.Render("BEH:") + " " + cyan.Render(fmtLarge(s.Counters.Behavioral)),
		muted.Render("ANO:") + " " + ano.Render(fmtLarge(s.Counters.Anomaly)),
		muted.Render("SIG:") + " " + sig.Render(fmtLarge(s.Counters.Signature)),
		muted.Render("MATCHED:") + " " + sig.Render(fmt.Sprintf("%d", s.Matched)),
		muted.Render("MEM:") + " " + green.Render(fmt.Sprintf("%.0fM", float64(ms.Alloc)/(1<<20))),
		muted.Render("UP:") + " " + green.Render(fmtUptime(time.Since(s.StartTime).Round(time.Second))),
	}
	line := strings.Join(items, border.Render(" │ "))
	if s.Notice != "" {
		line += border.Render(" │ ") + amber.Render(s.Notice)
	}

	return lipgloss.NewStyle().
		Width(s.Width).
		Padding(0, 1).
		Background(lipgloss.Color("#0a0a0a")).
		Render(line)
}

func (s *Status) heartbeat(active, dim, warn, crit lipgloss.Style) string {
	label := lipgloss.NewStyle().Foreground(lipgloss.Color("#707070")).Render("LOOP:")
	if !s.Running {
		return label + " " + dim.Render("○")
	}

	elapsed := time.Since(s.LastTick)
	var icon string
	var style lipgloss.Style
	switch {
	case elapsed < time.Second:
		icon, style = "●", active.Bold(true)
	case elapsed < 3*time.Second:
		icon, style = "●", dim
	case elapsed < 10*time.Second:
		icon, style = "○", warn
	default:
		icon, style = "○", crit
	}
	return label + " " + style.Render(icon)
}

func fmtLarge(n int64) string {
	if n >= 1000000 {
		return fmt.Sprintf("%.1fM", float64(n)/1000000)
	}
	if n >= 1000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%d", n)
}

func fmtUptime(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	sec := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	return fmt.Sprintf("%dm%02ds", m, sec)
}
