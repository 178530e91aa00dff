package domain

import "sync"

// CountersSnapshot is a point-in-time copy of the detection counters.
type CountersSnapshot struct {
	Behavioral int64 `json:"behavioral"`
	Anomaly    int64 `json:"anomaly"`
	Signature  int64 `json:"signature"`
}

// Total sums all channels.
func (s CountersSnapshot) Total() int64 {
	return s.Behavioral + s.Anomaly + s.Signature
}

// Get returns the count for one channel.
func (s CountersSnapshot) Get(c Channel) int64 {
	switch c {
	case ChannelBehavioral:
		return s.Behavioral
	case ChannelAnomaly:
		return s.Anomaly
	case ChannelSignature:
		return s.Signature
	}
	return 0
}

// DetectionCounters tallies events per channel.
//
// Thread Safety: a single mutex covers all three counts so Snapshot and
// Reset observe a consistent triple.
type DetectionCounters struct {
	counts CountersSnapshot
	mu     sync.Mutex
}

func NewDetectionCounters() *DetectionCounters {
	return &DetectionCounters{}
}

// Increment adds one to channel and returns the new count. Unknown channels
// are counted as behavioral, matching how the sink routes them.
func (c *DetectionCounters) Increment(channel Channel) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch channel {
	case ChannelAnomaly:
		c.counts.Anomaly++
		return c.counts.Anomaly
	case ChannelSignature:
		c.counts.Signature++
		return c.counts.Signature
	default:
		c.counts.Behavioral++
		return c.counts.Behavioral
	}
}

func (c *DetectionCounters) Count(channel Channel) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts.Get(channel)
}

func (c *DetectionCounters) Snapshot() CountersSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts
}

func (c *DetectionCounters) Reset() {
	c.mu.Lock()
	c.counts = CountersSnapshot{}
	c.mu.Unlock()
}
