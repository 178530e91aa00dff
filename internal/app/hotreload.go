package app

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// ReloadFunc applies a validated configuration change. It receives the
// previous and the new settings.
type ReloadFunc func(old, updated Settings)

// HotReload re-reads the config file when it changes and pushes the
// settings that can change at runtime (CPU threshold, sound) to the
// registered callbacks. Everything else requires a restart.
type HotReload struct {
	v        *viper.Viper
	current  atomic.Pointer[Settings]
	handlers []ReloadFunc
	mu       sync.Mutex
	stopped  atomic.Bool
	stopOnce sync.Once
}

func NewHotReload(v *viper.Viper, initial Settings) *HotReload {
	h := &HotReload{v: v}
	h.current.Store(&initial)
	return h
}

func (h *HotReload) OnReload(fn ReloadFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers = append(h.handlers, fn)
}

func (h *HotReload) StartWatching() {
	h.v.OnConfigChange(func(e fsnotify.Event) {
		if h.stopped.Load() {
			return
		}
		log.Info().
			Str("file", e.Name).
			Str("op", e.Op.String()).
			Msg("Config file changed, reloading...")
		h.Reload()
	})

	h.v.WatchConfig()
	log.Info().Str("config", h.v.ConfigFileUsed()).Msg("Hot-reload config watching started")
}

// Reload re-reads the config file and applies it. Invalid configuration is
// rejected and the running settings are kept.
func (h *HotReload) Reload() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.v.ReadInConfig(); err != nil {
		log.Error().Err(err).Msg("Failed to re-read config, keeping current configuration")
		return false
	}

	updated := LoadSettings(h.v)
	if err := updated.Validate(); err != nil {
		log.Error().Err(err).Msg("Invalid configuration, rejecting reload")
		return false
	}

	old := *h.current.Load()
	for _, fn := range h.handlers {
		fn(old, updated)
	}
	h.current.Store(&updated)

	ev := log.Info().
		Float64("cpu_threshold", updated.CPUThreshold).
		Bool("enable_sound", updated.EnableSound)
	if restartRequired(old, updated) {
		ev = ev.Bool("restart_required", true)
	}
	ev.Msg("Configuration hot-reloaded successfully")
	return true
}

func (h *HotReload) Current() Settings {
	return *h.current.Load()
}

// Stop detaches the reload handler. viper keeps its file watch until the
// process exits.
func (h *HotReload) Stop() {
	h.stopOnce.Do(func() {
		h.stopped.Store(true)
		log.Info().Msg("Hot-reload config watcher stopped")
	})
}

// restartRequired reports changes that only take effect on restart.
func restartRequired(old, updated Settings) bool {
	return !slices.Equal(old.Dirs, updated.Dirs) ||
		!slices.Equal(old.Excluded, updated.Excluded) ||
		old.RulePath != updated.RulePath ||
		old.Engine != updated.Engine ||
		old.Interval != updated.Interval ||
		old.APIAddr != updated.APIAddr
}
