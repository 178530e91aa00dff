// Package tui is the terminal front end: three channel panes, a CPU trace,
// a hot directory ranking and an event inspector, driven by bubbletea.
package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/xoelrdgz/ransomradar/internal/app"
	"github.com/xoelrdgz/ransomradar/internal/domain"
	"github.com/xoelrdgz/ransomradar/internal/tui/views"
)

const (
	maxEventsPerTick   = 50
	uiTickInterval     = 100 * time.Millisecond
	statusPollInterval = 500 * time.Millisecond
	noticeLifetime     = 5 * time.Second
)

// Controller is satisfied by *app.Monitor.
type Controller interface {
	Start(ctx context.Context) error
	Stop() error
	ClearLogs()
	Status() app.MonitorStatus
}

// ExportFunc saves the logs and returns where they went.
type ExportFunc func() (string, error)

type App struct {
	ctx        context.Context
	controller Controller
	export     ExportFunc

	model     *Model
	cpu       *views.CPUTrace
	panes     [3]*views.LogPane
	hotDirs   *views.HotDirs
	status    *views.Status
	inspector *views.EventInspector

	ready    bool
	quitting bool
	width    int
	height   int

	eventBuffer    []*domain.Event
	eventBufferMu  sync.Mutex
	droppedEvents  int64
	maxEventBuffer int

	sampleChan   chan domain.SampleSnapshot
	refresh      atomic.Bool
	lastStatus   app.MonitorStatus
	noticeExpiry time.Time
}

func NewApp(ctx context.Context, controller Controller, export ExportFunc, cpuThreshold float64) *App {
	a := &App{
		ctx:            ctx,
		controller:     controller,
		export:         export,
		model:          NewModel(),
		cpu:            views.NewCPUTrace(80, cpuThreshold),
		hotDirs:        views.NewHotDirs(100),
		status:         views.NewStatus(100),
		inspector:      views.NewEventInspector(),
		eventBuffer:    make([]*domain.Event, 0, 100),
		maxEventBuffer: 500,
		sampleChan:     make(chan domain.SampleSnapshot, 10),
	}
	for i, ch := range domain.Channels() {
		a.panes[i] = views.NewLogPane(ch, 10)
	}
	a.panes[0].Focused = true
	return a
}

type tickMsg time.Time
type sampleMsg domain.SampleSnapshot
type statusMsg app.MonitorStatus
type actionMsg struct {
	notice string
	err    error
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(tea.EnterAltScreen, a.tick(), a.pollStatus(), a.listenForSamples())
}

func (a *App) tick() tea.Cmd {
	return tea.Tick(uiTickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// pollStatus reads the monitor off the UI goroutine; Status can wait on a
// stop in progress.
func (a *App) pollStatus() tea.Cmd {
	return tea.Tick(statusPollInterval, func(time.Time) tea.Msg {
		return statusMsg(a.controller.Status())
	})
}

func (a *App) listenForSamples() tea.Cmd {
	return func() tea.Msg { return sampleMsg(<-a.sampleChan) }
}

// run executes a controller action off the UI goroutine.
func (a *App) run(fn func() (string, error)) tea.Cmd {
	return func() tea.Msg {
		notice, err := fn()
		return actionMsg{notice: notice, err: err}
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if a.inspector.Visible {
			switch msg.String() {
			case "esc", "q":
				a.inspector.Close()
			case "up", "k":
				a.inspector.ScrollUp()
			case "down", "j":
				a.inspector.ScrollDown()
			}
			return a, nil
		}
		return a, a.handleKey(msg.String())

	case tea.WindowSizeMsg:
		a.resize(msg.Width, msg.Height)

	case tickMsg:
		a.processBatchedEvents()
		if !a.noticeExpiry.IsZero() && time.Now().After(a.noticeExpiry) {
			a.status.Notice = ""
			a.noticeExpiry = time.Time{}
		}
		return a, a.tick()

	case statusMsg:
		a.applyStatus(app.MonitorStatus(msg))
		return a, a.pollStatus()

	case sampleMsg:
		a.cpu.Update(msg.CPUPercent, msg.FileCount)
		return a, a.listenForSamples()

	case actionMsg:
		if msg.err != nil {
			a.setNotice("Error: " + msg.err.Error())
		} else if msg.notice != "" {
			a.setNotice(msg.notice)
		}
		a.applyStatus(a.controller.Status())
	}
	return a, nil
}

func (a *App) handleKey(key string) tea.Cmd {
	switch key {
	case "q", "ctrl+c":
		a.quitting = true
		return tea.Quit
	case "s":
		return a.run(func() (string, error) {
			return "", a.controller.Start(a.ctx)
		})
	case "x":
		return a.run(func() (string, error) {
			return "", a.controller.Stop()
		})
	case "c":
		return a.run(func() (string, error) {
			a.controller.ClearLogs()
			return "Logs cleared", nil
		})
	case "e":
		if a.export == nil {
			return nil
		}
		return a.run(func() (string, error) {
			path, err := a.export()
			if err != nil {
				return "", err
			}
			return "Logs saved to " + path, nil
		})
	case "tab":
		a.model.NextView()
		for i, p := range a.panes {
			p.Focused = i == a.model.ActiveView
		}
	case "up", "k":
		if p := a.focusedPane(); p != nil {
			p.ScrollUp()
		}
	case "down", "j":
		if p := a.focusedPane(); p != nil {
			p.ScrollDown()
		}
	case "enter":
		if p := a.focusedPane(); p != nil {
			if selected := p.GetSelected(); selected != nil {
				a.inspector.SetEvent(selected)
			}
		}
	}
	return nil
}

func (a *App) focusedPane() *views.LogPane {
	if a.model.ActiveView < len(a.panes) {
		return a.panes[a.model.ActiveView]
	}
	return nil
}

func (a *App) resize(width, height int) {
	a.width, a.height = width, height
	a.ready = true
	a.model.SetDimensions(width, height)

	paneWidth := max(width/3, 24)
	contentHeight := max(height-12, 5)
	for _, p := range a.panes {
		p.Width = paneWidth
		p.VisibleCount = contentHeight
	}
	a.hotDirs.Width = width - 4
	a.hotDirs.VisibleCount = contentHeight
	a.status.Width = width
	a.cpu.SetWidth(max(width-30, 10))
	a.inspector.SetDimensions(width-4, height-2)
}

func (a *App) applyStatus(st app.MonitorStatus) {
	a.lastStatus = st
	a.status.Counters = st.Counters
	a.status.Matched = st.MatchedFiles
	a.status.Running = st.State == app.StateRunning
	a.status.LastTick = st.LastTick
	for _, p := range a.panes {
		p.Count = st.Counters.Get(p.Channel)
	}
}

func (a *App) setNotice(notice string) {
	a.status.Notice = notice
	a.noticeExpiry = time.Now().Add(noticeLifetime)
}

func (a *App) processBatchedEvents() {
	a.eventBufferMu.Lock()
	count := min(len(a.eventBuffer), maxEventsPerTick)
	batch := a.eventBuffer[:count]
	a.eventBuffer = a.eventBuffer[count:]
	a.eventBufferMu.Unlock()

	for _, ev := range batch {
		a.model.AddEvent(ev)
	}
	if count == 0 && !a.refresh.Swap(false) {
		return
	}

	for _, p := range a.panes {
		p.Update(a.model.GetEvents(p.Channel), a.lastStatus.Counters.Get(p.Channel))
	}
	a.hotDirs.Update(convertDirEntries(a.model.GetTopDirs()))
}

func convertDirEntries(entries []DirEntry) []*views.DirEntry {
	result := make([]*views.DirEntry, len(entries))
	for i, e := range entries {
		result[i] = &views.DirEntry{Dir: e.Dir, Events: e.Events, LastSeen: e.LastSeen, Channels: e.Channels}
	}
	return result
}

func (a *App) View() string {
	if a.quitting {
		return "\n  Session terminated.\n\n"
	}
	if !a.ready {
		return "\n  Initializing...\n\n"
	}
	if a.inspector.Visible {
		return a.inspector.Render()
	}

	dim := lipgloss.NewStyle().Foreground(ColorDim)
	muted := lipgloss.NewStyle().Foreground(ColorMuted)

	var b strings.Builder
	b.WriteString(a.renderHeader())
	b.WriteString("\n")
	b.WriteString(dim.Render(strings.Repeat("─", a.width)))
	b.WriteString("\n")

	b.WriteString(a.cpu.Render())
	b.WriteString("\n\n")

	if a.model.ActiveView == FocusHotDirs {
		b.WriteString(muted.Render("  HOT DIRECTORIES"))
		b.WriteString("\n")
		b.WriteString(a.hotDirs.Render())
	} else {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			a.panes[0].Render(), a.panes[1].Render(), a.panes[2].Render()))
	}

	b.WriteString("\n\n")
	b.WriteString(a.status.Render())
	b.WriteString("\n")
	b.WriteString(a.renderHelp())
	return b.String()
}

func (a *App) renderHeader() string {
	green := lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	red := lipgloss.NewStyle().Foreground(ColorCritical).Bold(true)
	dim := lipgloss.NewStyle().Foreground(ColorDim)
	muted := lipgloss.NewStyle().Foreground(ColorMuted)

	title := green.Render("RANSOMRADAR")

	state := muted.Render("IDLE")
	if a.lastStatus.State == app.StateRunning {
		state = green.Render("MONITORING")
		if a.lastStatus.Counters.Signature > 0 {
			state = red.Render("RANSOMWARE DETECTED")
		}
	}

	session := ""
	if id := a.lastStatus.SessionID; id != "" {
		session = fmt.Sprintf("  %s %s", dim.Render("SESSION:"), id[:min(8, len(id))])
	}

	return fmt.Sprintf("  %s  %s  %s%s",
		title, state, muted.Render(a.lastStatus.StatusLine()), session)
}

func (a *App) renderHelp() string {
	dim := lipgloss.NewStyle().Foreground(ColorDim)
	key := lipgloss.NewStyle().Foreground(ColorPrimaryDim)
	focus := []string{"BEHAVIORAL", "ANOMALY", "SIGNATURE", "DIRS"}
	return dim.Render(fmt.Sprintf("  %s start  %s stop  %s clear  %s save  %s [%s]  %s scroll  %s inspect  %s quit",
		key.Render("s"), key.Render("x"), key.Render("c"), key.Render("e"),
		key.Render("TAB"), focus[a.model.ActiveView],
		key.Render("↑↓"), key.Render("ENTER"), key.Render("q")))
}

// OnEvent implements ports.EventSubscriber. Events are buffered and folded
// into the model on the next UI tick.
func (a *App) OnEvent(event *domain.Event) {
	a.eventBufferMu.Lock()
	defer a.eventBufferMu.Unlock()
	if len(a.eventBuffer) >= a.maxEventBuffer {
		a.droppedEvents++
		a.eventBuffer = a.eventBuffer[a.maxEventBuffer/10:]
	}
	a.eventBuffer = append(a.eventBuffer, event)
}

// ObserveSample implements ports.SampleObserver.
func (a *App) ObserveSample(snapshot domain.SampleSnapshot) {
	select {
	case a.sampleChan <- snapshot:
	default:
	}
}

// Clear drops buffered and displayed events. Registered with the monitor
// so "Clear Logs" empties the panes; they redraw on the next UI tick.
func (a *App) Clear() {
	a.eventBufferMu.Lock()
	a.eventBuffer = a.eventBuffer[:0]
	a.eventBufferMu.Unlock()
	a.model.Clear()
	a.refresh.Store(true)
}

func (a *App) GetModel() *Model { return a.model }

func (a *App) DroppedEvents() int64 {
	a.eventBufferMu.Lock()
	defer a.eventBufferMu.Unlock()
	return a.droppedEvents
}

func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}
