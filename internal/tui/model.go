package tui

import (
	"container/heap"
	"path/filepath"
	"sync"

	"github.com/xoelrdgz/ransomradar/internal/domain"
)

// Focus targets cycled with tab.
const (
	FocusBehavioral = iota
	FocusAnomaly
	FocusSignature
	FocusHotDirs
	focusCount
)

// Model holds what the panes render. Events arrive from the dispatcher
// goroutine, so every accessor locks.
type Model struct {
	Width  int
	Height int

	ActiveView int

	events  map[domain.Channel][]*domain.Event
	dirMap  map[string]*DirEntry
	dirHeap *dirMaxHeap

	MaxEventsPerChannel int
	MaxTopDirs          int
	MaxTrackedDirs      int

	mu         sync.RWMutex
	eventCount int
}

type DirEntry struct {
	Dir       string
	Events    int
	LastSeen  string
	Channels  []string
	heapIndex int
}

type dirMaxHeap []*DirEntry

func (h dirMaxHeap) Len() int           { return len(h) }
func (h dirMaxHeap) Less(i, j int) bool { return h[i].Events > h[j].Events }
func (h dirMaxHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *dirMaxHeap) Push(x any) {
	n := len(*h)
	item := x.(*DirEntry)
	item.heapIndex = n
	*h = append(*h, item)
}

func (h *dirMaxHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.heapIndex = -1
	*h = old[0 : n-1]
	return item
}

func NewModel() *Model {
	h := &dirMaxHeap{}
	heap.Init(h)

	return &Model{
		Width:               120,
		Height:              40,
		events:              make(map[domain.Channel][]*domain.Event, 3),
		dirMap:              make(map[string]*DirEntry),
		dirHeap:             h,
		MaxEventsPerChannel: 200,
		MaxTopDirs:          25,
		MaxTrackedDirs:      5000,
	}
}

// AddEvent appends to the event's channel, dropping the oldest line when
// the channel is full, and credits the event's parent directory.
func (m *Model) AddEvent(ev *domain.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.events[ev.Channel]
	if len(list) >= m.MaxEventsPerChannel {
		copy(list, list[1:])
		list = list[:len(list)-1]
	}
	m.events[ev.Channel] = append(list, ev)
	m.eventCount++

	if ev.Path != "" {
		m.trackDir(filepath.Dir(ev.Path), ev)
	}
}

func (m *Model) trackDir(dir string, ev *domain.Event) {
	if entry, ok := m.dirMap[dir]; ok {
		entry.Events++
		entry.LastSeen = ev.Timestamp.Local().Format("15:04:05")
		hasChannel := false
		for _, c := range entry.Channels {
			if c == ev.Channel.String() {
				hasChannel = true
				break
			}
		}
		if !hasChannel {
			entry.Channels = append(entry.Channels, ev.Channel.String())
		}
		heap.Fix(m.dirHeap, entry.heapIndex)
		return
	}

	if len(m.dirMap) >= m.MaxTrackedDirs && m.dirHeap.Len() > 0 {
		minIdx := 0
		for i := 1; i < m.dirHeap.Len(); i++ {
			if (*m.dirHeap)[i].Events < (*m.dirHeap)[minIdx].Events {
				minIdx = i
			}
		}
		old := heap.Remove(m.dirHeap, minIdx).(*DirEntry)
		delete(m.dirMap, old.Dir)
	}

	entry := &DirEntry{
		Dir:      dir,
		Events:   1,
		LastSeen: ev.Timestamp.Local().Format("15:04:05"),
		Channels: []string{ev.Channel.String()},
	}
	m.dirMap[dir] = entry
	heap.Push(m.dirHeap, entry)
}

// GetEvents returns a copy of one channel's lines, oldest first.
func (m *Model) GetEvents(channel domain.Channel) []*domain.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.events[channel]
	result := make([]*domain.Event, len(list))
	copy(result, list)
	return result
}

// GetTopDirs returns up to MaxTopDirs directories, busiest first.
func (m *Model) GetTopDirs() []DirEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]*DirEntry, len(*m.dirHeap))
	copy(all, *m.dirHeap)

	n := min(m.MaxTopDirs, len(all))
	result := make([]DirEntry, 0, n)
	for len(result) < n {
		best := 0
		for i := 1; i < len(all); i++ {
			if all[i].Events > all[best].Events {
				best = i
			}
		}
		e := *all[best]
		e.Channels = append([]string(nil), e.Channels...)
		result = append(result, e)
		all = append(all[:best], all[best+1:]...)
	}
	return result
}

func (m *Model) TotalEvents() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.eventCount
}

func (m *Model) TrackedDirs() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.dirMap)
}

// Clear empties every pane and the directory ranking.
func (m *Model) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = make(map[domain.Channel][]*domain.Event, 3)
	m.dirMap = make(map[string]*DirEntry)
	*m.dirHeap = (*m.dirHeap)[:0]
	m.eventCount = 0
}

func (m *Model) SetDimensions(width, height int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Width = width
	m.Height = height
}

func (m *Model) NextView() {
	m.ActiveView = (m.ActiveView + 1) % focusCount
}

// FocusedChannel returns the channel whose pane has focus, or "" when the
// hot directory view is shown.
func (m *Model) FocusedChannel() domain.Channel {
	switch m.ActiveView {
	case FocusBehavioral:
		return domain.ChannelBehavioral
	case FocusAnomaly:
		return domain.ChannelAnomaly
	case FocusSignature:
		return domain.ChannelSignature
	}
	return ""
}
