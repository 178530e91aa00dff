package output

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/xoelrdgz/ransomradar/internal/domain"
)

const bell = "\a"

// BellNotifier rings the terminal bell on signature events when sound
// alerts are enabled. Enabled can be flipped at runtime by config reload.
type BellNotifier struct {
	out     io.Writer
	enabled atomic.Bool
	rung    atomic.Int64
	mu      sync.Mutex
}

func NewBellNotifier(out io.Writer, enabled bool) *BellNotifier {
	b := &BellNotifier{out: out}
	b.enabled.Store(enabled)
	return b
}

func (b *BellNotifier) SetEnabled(enabled bool) { b.enabled.Store(enabled) }
func (b *BellNotifier) Enabled() bool           { return b.enabled.Load() }
func (b *BellNotifier) Rung() int64             { return b.rung.Load() }

// OnEvent implements ports.EventSubscriber.
func (b *BellNotifier) OnEvent(event *domain.Event) {
	if event.Channel != domain.ChannelSignature || !b.enabled.Load() {
		return
	}
	b.mu.Lock()
	_, err := io.WriteString(b.out, bell)
	b.mu.Unlock()
	if err == nil {
		b.rung.Add(1)
	}
}
