// Package sampler measures host CPU and walks the monitored trees once per
// loop tick.
package sampler

import (
	"context"
	"fmt"
	"io/fs"
	"math"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/cpu"

	"github.com/xoelrdgz/ransomradar/internal/domain"
	"github.com/xoelrdgz/ransomradar/internal/ports"
)

const (
	DefaultCPUWindow    = 500 * time.Millisecond
	MinCPUWindow        = 100 * time.Millisecond
	MaxCPUWindow        = 500 * time.Millisecond
	DefaultCPUThreshold = 70.0
)

// CPUFunc returns system-wide CPU utilisation in percent, measured over
// window.
type CPUFunc func(ctx context.Context, window time.Duration) (float64, error)

// GopsutilCPU measures aggregate CPU over window via gopsutil.
func GopsutilCPU(ctx context.Context, window time.Duration) (float64, error) {
	percents, err := cpu.PercentWithContext(ctx, window, false)
	if err != nil {
		return 0, err
	}
	if len(percents) == 0 {
		return 0, fmt.Errorf("cpu percent: no samples returned")
	}
	return percents[0], nil
}

type Config struct {
	Dirs         []string
	Filter       domain.PathFilter
	CPUWindow    time.Duration
	CPUThreshold float64 // Percent; 0 alerts on any load, negative means DefaultCPUThreshold
}

type ResourceSampler struct {
	dirs      []string
	filter    domain.PathFilter
	window    time.Duration
	threshold atomic.Uint64 // float64 bits
	cpuFunc   CPUFunc
	sink      ports.EventSink

	observersMu sync.RWMutex
	observers   []ports.SampleObserver
}

func New(config Config, sink ports.EventSink) *ResourceSampler {
	window := config.CPUWindow
	if window <= 0 {
		window = DefaultCPUWindow
	}
	window = max(MinCPUWindow, min(MaxCPUWindow, window))

	s := &ResourceSampler{
		dirs:    config.Dirs,
		filter:  config.Filter,
		window:  window,
		cpuFunc: GopsutilCPU,
		sink:    sink,
	}
	threshold := config.CPUThreshold
	if threshold < 0 {
		threshold = DefaultCPUThreshold
	}
	s.SetCPUThreshold(threshold)
	return s
}

// SetCPUFunc replaces the CPU reading. Used by tests and the simulator.
func (s *ResourceSampler) SetCPUFunc(fn CPUFunc) {
	if fn != nil {
		s.cpuFunc = fn
	}
}

// SetCPUThreshold updates the behavioral CPU alert threshold. Safe to call
// while the loop is running.
func (s *ResourceSampler) SetCPUThreshold(threshold float64) {
	s.threshold.Store(math.Float64bits(threshold))
}

func (s *ResourceSampler) CPUThreshold() float64 {
	return math.Float64frombits(s.threshold.Load())
}

func (s *ResourceSampler) Window() time.Duration { return s.window }

func (s *ResourceSampler) AddObserver(o ports.SampleObserver) {
	s.observersMu.Lock()
	defer s.observersMu.Unlock()
	s.observers = append(s.observers, o)
}

// Sample takes one CPU measurement and walks every monitored tree.
func (s *ResourceSampler) Sample(ctx context.Context) ports.Sample {
	var result ports.Sample

	cpuPercent, err := s.cpuFunc(ctx, s.window)
	if err != nil {
		log.Warn().Err(err).Msg("CPU measurement failed")
		result.CPUErr = err
	} else if cpuPercent > s.CPUThreshold() {
		s.sink.Log(domain.ChannelBehavioral, fmt.Sprintf("High CPU usage detected: %.1f%%", cpuPercent))
	}

	for _, dir := range s.dirs {
		result.Files = append(result.Files, s.walk(dir)...)
	}

	result.Snapshot = domain.SampleSnapshot{
		FileCount:  len(result.Files),
		CPUPercent: cpuPercent,
		Timestamp:  time.Now(),
	}

	s.observersMu.RLock()
	for _, o := range s.observers {
		o.ObserveSample(result.Snapshot)
	}
	s.observersMu.RUnlock()

	return result
}

// walk collects regular files under root. Unreadable entries are skipped
// individually.
func (s *ResourceSampler) walk(root string) []string {
	var files []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Error scanning path")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if s.filter.IsExcluded(path) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	return files
}
