package app

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xoelrdgz/ransomradar/internal/domain"
)

type mockAlerter struct {
	sendCount  atomic.Int64
	flushCount atomic.Int64
	block      chan struct{}
}

func (m *mockAlerter) Send(ctx context.Context, event *domain.Event) error {
	if m.block != nil {
		<-m.block
	}
	m.sendCount.Add(1)
	return nil
}

func (m *mockAlerter) Flush() error { m.flushCount.Add(1); return nil }
func (m *mockAlerter) Close() error { return nil }

type mockSubscriber struct {
	mu          sync.Mutex
	events      []*domain.Event
	shouldPanic atomic.Bool
}

func (m *mockSubscriber) OnEvent(event *domain.Event) {
	if m.shouldPanic.Load() {
		panic("intentional panic for testing")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *mockSubscriber) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func TestDispatcher_Delivers(t *testing.T) {
	alerter := &mockAlerter{}
	sub := &mockSubscriber{}

	d := NewDispatcher(DispatcherConfig{QueueSize: 100})
	d.AddAlerter(alerter)
	d.AddSubscriber(sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	for i := 0; i < 10; i++ {
		if !d.Submit(domain.NewEvent(domain.ChannelBehavioral, "File created: /x")) {
			t.Error("Failed to submit event")
		}
	}

	d.Stop()

	if alerter.sendCount.Load() != 10 {
		t.Errorf("Expected 10 sends, got %d", alerter.sendCount.Load())
	}
	if sub.count() != 10 {
		t.Errorf("Expected 10 subscriber events, got %d", sub.count())
	}
	if alerter.flushCount.Load() != 1 {
		t.Errorf("Expected alerter flushed once on stop, got %d", alerter.flushCount.Load())
	}
}

func TestDispatcher_SubmitWhenStopped(t *testing.T) {
	d := NewDispatcher(DefaultDispatcherConfig())
	if d.Submit(domain.NewEvent(domain.ChannelAnomaly, "x")) {
		t.Error("Submit should fail before Start")
	}

	d.Start(context.Background())
	d.Stop()
	d.Stop()

	if d.Submit(domain.NewEvent(domain.ChannelAnomaly, "x")) {
		t.Error("Submit should fail after Stop")
	}
	if d.IsRunning() {
		t.Error("Dispatcher should not be running after stop")
	}
}

func TestDispatcher_PanicRecovery(t *testing.T) {
	sub := &mockSubscriber{}
	sub.shouldPanic.Store(true)
	quarantine := filepath.Join(t.TempDir(), "quarantine.jsonl")

	d := NewDispatcher(DispatcherConfig{QueueSize: 10, QuarantinePath: quarantine})
	d.AddSubscriber(sub)
	d.Start(context.Background())

	d.Submit(domain.NewEvent(domain.ChannelSignature, "RANSOMWARE DETECTED in /a"))
	time.Sleep(100 * time.Millisecond)

	sub.shouldPanic.Store(false)
	d.Submit(domain.NewEvent(domain.ChannelSignature, "RANSOMWARE DETECTED in /b"))
	d.Stop()

	if sub.count() != 1 {
		t.Errorf("Expected delivery to continue after panic, got %d events", sub.count())
	}

	f, err := os.Open(quarantine)
	if err != nil {
		t.Fatalf("Quarantine file not written: %v", err)
	}
	defer f.Close()
	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines++
	}
	if lines != 1 {
		t.Errorf("Expected 1 quarantined event, got %d", lines)
	}
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	alerter := &mockAlerter{block: make(chan struct{})}

	d := NewDispatcher(DispatcherConfig{QueueSize: 1, SubmitTimeout: 10 * time.Millisecond})
	d.AddAlerter(alerter)
	d.Start(context.Background())

	accepted := 0
	for i := 0; i < 5; i++ {
		if d.Submit(domain.NewEvent(domain.ChannelBehavioral, "burst")) {
			accepted++
		}
	}

	if d.Dropped() == 0 {
		t.Error("Expected drops with a blocked alerter and a queue of 1")
	}
	if int64(accepted)+d.Dropped() != 5 {
		t.Errorf("Accepted %d + dropped %d should equal 5", accepted, d.Dropped())
	}

	close(alerter.block)
	d.Stop()
}

func TestDispatcher_OverflowWhenFull(t *testing.T) {
	alerter := &mockAlerter{block: make(chan struct{})}
	overflow := filepath.Join(t.TempDir(), "overflow.jsonl")

	d := NewDispatcher(DispatcherConfig{QueueSize: 1, SubmitTimeout: 10 * time.Millisecond, OverflowPath: overflow})
	d.AddAlerter(alerter)
	d.Start(context.Background())

	for i := 0; i < 5; i++ {
		if !d.Submit(domain.NewEvent(domain.ChannelBehavioral, "burst")) {
			t.Error("Submit should spill to overflow instead of failing")
		}
	}
	if d.Overflowed() == 0 {
		t.Error("Expected events in overflow")
	}
	if d.Dropped() != 0 {
		t.Errorf("Expected no drops with overflow enabled, got %d", d.Dropped())
	}

	close(alerter.block)
	d.Stop()

	info, err := os.Stat(overflow)
	if err != nil || info.Size() == 0 {
		t.Errorf("Overflow file should hold spilled events: %v", err)
	}
}

func TestDispatcher_ConcurrentSubmit(t *testing.T) {
	alerter := &mockAlerter{}
	d := NewDispatcher(DispatcherConfig{QueueSize: 1000, SubmitTimeout: time.Second})
	d.AddAlerter(alerter)
	d.Start(context.Background())

	var wg sync.WaitGroup
	submitCount := 100
	goroutines := 10

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < submitCount; i++ {
				d.Submit(domain.NewEvent(domain.ChannelBehavioral, "concurrent"))
			}
		}()
	}

	wg.Wait()
	d.Stop()

	expected := int64(submitCount * goroutines)
	if alerter.sendCount.Load() != expected {
		t.Errorf("Expected %d sends, got %d", expected, alerter.sendCount.Load())
	}
	if d.Delivered() != expected {
		t.Errorf("Expected %d delivered, got %d", expected, d.Delivered())
	}
}
