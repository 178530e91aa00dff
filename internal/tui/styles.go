package tui

import "github.com/charmbracelet/lipgloss"

var (
	ColorPrimary    = lipgloss.Color("#00ff41")
	ColorPrimaryDim = lipgloss.Color("#00aa2a")
	ColorAmber      = lipgloss.Color("#ffb000")
	ColorRed        = lipgloss.Color("#ff3333")
	ColorCyan       = lipgloss.Color("#00b8ff")
	ColorCritical   = ColorRed
	ColorWarning    = ColorAmber
	ColorInfo       = ColorCyan
	ColorMuted      = lipgloss.Color("#707070")
	ColorDim        = lipgloss.Color("#404040")
)
