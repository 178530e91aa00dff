package app

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/xoelrdgz/ransomradar/internal/domain"
)

const (
	EngineCLI = "cli"
	EngineLib = "lib"
)

// Settings is the resolved runtime configuration.
type Settings struct {
	Dirs     []string
	Excluded []string
	Interval time.Duration

	RulePath        string
	YaraBinary      string
	Engine          string
	ScanTimeout     time.Duration
	ScanCacheSize   int
	BreakerFailures uint32
	BreakerCooldown time.Duration

	CPUThreshold         float64
	AnomalyContamination float64
	CPUWindow            time.Duration
	DedupCapacity        int
	IncludeChmod         bool

	EnableSound bool

	JSONEnabled    bool
	JSONStdout     bool
	JSONPath       string
	ArchiveEnabled bool
	ArchivePath    string
	NATSEnabled    bool
	NATSURL        string
	NATSSubject    string
	MemoryBuffer   int

	Dispatcher DispatcherConfig

	APIEnabled       bool
	APIAddr          string
	HealthMaxTickAge time.Duration

	LogLevel string
	LogDir   string
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("monitor.dirs", []string{"~/Documents", "~/test_files"})
	v.SetDefault("monitor.excluded", []string{"/proc", "/sys", "/dev", "/tmp"})
	v.SetDefault("monitor.interval", "300ms")

	v.SetDefault("signature.rule", "config/ransomware_rule.yar")
	v.SetDefault("signature.binary", "yara")
	v.SetDefault("signature.engine", EngineCLI)
	v.SetDefault("signature.timeout", "0s")
	v.SetDefault("signature.cache_size", 0)
	v.SetDefault("signature.breaker.failures", 5)
	v.SetDefault("signature.breaker.cooldown", "30s")

	v.SetDefault("detection.cpu_threshold", 70)
	v.SetDefault("detection.anomaly_contamination", 0.05)
	v.SetDefault("sampler.cpu_window", "500ms")
	v.SetDefault("dedup.capacity", 50)
	v.SetDefault("watcher.include_chmod", false)

	v.SetDefault("alerts.enable_sound", false)

	v.SetDefault("output.json.enabled", false)
	v.SetDefault("output.json.stdout", false)
	v.SetDefault("output.json.path", "")
	v.SetDefault("output.archive.enabled", true)
	v.SetDefault("output.archive.path", "data/events.db")
	v.SetDefault("output.nats.enabled", false)
	v.SetDefault("output.nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("output.nats.subject", "ransomradar.events")
	v.SetDefault("output.memory.size", 500)

	v.SetDefault("dispatcher.queue_size", 1024)
	v.SetDefault("dispatcher.submit_timeout", "50ms")
	v.SetDefault("dispatcher.overflow_path", "")
	v.SetDefault("dispatcher.quarantine_path", "")

	v.SetDefault("api.enabled", false)
	v.SetDefault("api.addr", "127.0.0.1:9090")
	v.SetDefault("api.health.max_tick_age", "30s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.dir", "logs")
}

// LoadSettings resolves Settings from v. Invalid values fall back to their
// defaults with a warning; loading never fails.
func LoadSettings(v *viper.Viper) Settings {
	s := Settings{
		Dirs:     domain.ExpandPaths(stringList(v, "monitor.dirs")),
		Excluded: domain.ExpandPaths(stringList(v, "monitor.excluded")),
		Interval: safeDuration(v, "monitor.interval", DefaultInterval),

		RulePath:        domain.ExpandPath(v.GetString("signature.rule")),
		YaraBinary:      v.GetString("signature.binary"),
		Engine:          strings.ToLower(strings.TrimSpace(v.GetString("signature.engine"))),
		ScanTimeout:     safeDuration(v, "signature.timeout", 0),
		ScanCacheSize:   max(0, v.GetInt("signature.cache_size")),
		BreakerFailures: uint32(SafeFloat(v.Get("signature.breaker.failures"), 5, 1, 1000)),
		BreakerCooldown: safeDuration(v, "signature.breaker.cooldown", 30*time.Second),

		CPUThreshold:         SafeFloat(v.Get("detection.cpu_threshold"), 70, 0, 100),
		AnomalyContamination: SafeFloat(v.Get("detection.anomaly_contamination"), 0.05, 0.01, 0.5),
		CPUWindow:            safeDuration(v, "sampler.cpu_window", 500*time.Millisecond),
		DedupCapacity:        v.GetInt("dedup.capacity"),
		IncludeChmod:         v.GetBool("watcher.include_chmod"),

		EnableSound: v.GetBool("alerts.enable_sound"),

		JSONEnabled:    v.GetBool("output.json.enabled"),
		JSONStdout:     v.GetBool("output.json.stdout"),
		JSONPath:       v.GetString("output.json.path"),
		ArchiveEnabled: v.GetBool("output.archive.enabled"),
		ArchivePath:    domain.ExpandPath(v.GetString("output.archive.path")),
		NATSEnabled:    v.GetBool("output.nats.enabled"),
		NATSURL:        v.GetString("output.nats.url"),
		NATSSubject:    v.GetString("output.nats.subject"),
		MemoryBuffer:   v.GetInt("output.memory.size"),

		Dispatcher: DispatcherConfig{
			QueueSize:      v.GetInt("dispatcher.queue_size"),
			SubmitTimeout:  safeDuration(v, "dispatcher.submit_timeout", 50*time.Millisecond),
			OverflowPath:   v.GetString("dispatcher.overflow_path"),
			QuarantinePath: v.GetString("dispatcher.quarantine_path"),
		},

		APIEnabled:       v.GetBool("api.enabled"),
		APIAddr:          v.GetString("api.addr"),
		HealthMaxTickAge: safeDuration(v, "api.health.max_tick_age", 30*time.Second),

		LogLevel: v.GetString("logging.level"),
		LogDir:   v.GetString("logging.dir"),
	}

	if s.Engine != EngineCLI && s.Engine != EngineLib {
		log.Warn().Str("engine", s.Engine).Msg("Unknown signature engine, using cli")
		s.Engine = EngineCLI
	}
	if s.DedupCapacity <= 0 {
		s.DedupCapacity = 50
	}
	return s
}

// Validate reports the first setting that cannot be used as given. It is
// applied to reloaded configuration before anything is changed.
func (s Settings) Validate() error {
	if len(s.Dirs) == 0 {
		return &ConfigValidationError{Field: "monitor.dirs", Value: "", Reason: "at least one directory is required"}
	}
	if s.Interval < 10*time.Millisecond {
		return &ConfigValidationError{Field: "monitor.interval", Value: s.Interval, Reason: "must be at least 10ms"}
	}
	if s.RulePath == "" {
		return &ConfigValidationError{Field: "signature.rule", Value: "", Reason: "rule path is required"}
	}
	return nil
}

var numericNoise = regexp.MustCompile(`[^\d.\-]`)

// SafeFloat converts a loosely formatted config value to a number inside
// [lo, hi]. Characters other than digits, '.' and '-' are stripped first,
// so "75%" reads as 75. Unparseable input yields def.
func SafeFloat(raw interface{}, def, lo, hi float64) float64 {
	cleaned := numericNoise.ReplaceAllString(fmt.Sprint(raw), "")
	num, err := strconv.ParseFloat(cleaned, 64)
	if raw == nil || err != nil || math.IsNaN(num) {
		log.Warn().Interface("value", raw).Float64("default", def).Msg("Could not convert config value to float, using default")
		return def
	}
	if num < lo || num > hi {
		clamped := math.Max(lo, math.Min(hi, num))
		log.Warn().Float64("value", num).Float64("clamped", clamped).Msg("Config value out of range, clamping")
		return clamped
	}
	return num
}

func safeDuration(v *viper.Viper, key string, def time.Duration) time.Duration {
	raw := v.Get(key)
	switch val := raw.(type) {
	case nil:
		return def
	case time.Duration:
		return val
	case int, int64, float64:
		// Bare numbers are milliseconds.
		return time.Duration(SafeFloat(val, float64(def/time.Millisecond), 0, math.MaxInt32)) * time.Millisecond
	}
	d, err := time.ParseDuration(strings.TrimSpace(fmt.Sprint(raw)))
	if err != nil || d < 0 {
		log.Warn().Str("key", key).Interface("value", raw).Dur("default", def).Msg("Invalid duration, using default")
		return def
	}
	return d
}

// stringList accepts either a YAML list or a comma separated string.
func stringList(v *viper.Viper, key string) []string {
	if s, ok := v.Get(key).(string); ok {
		return strings.Split(s, ",")
	}
	return v.GetStringSlice(key)
}

// ConfigureViper points v at the config search path and the environment.
// cfgFile overrides the search when non-empty.
func ConfigureViper(v *viper.Viper, cfgFile string) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "ransomradar"))
		}
	}

	SetDefaults(v)

	v.SetEnvPrefix("RANSOMRADAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// ReadConfig loads the config file. When none exists, a file holding the
// defaults is written to defaultPath and used.
func ReadConfig(v *viper.Viper, defaultPath string) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}

	var notFound viper.ConfigFileNotFoundError
	if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if defaultPath == "" {
		return nil
	}

	if err := WriteDefaultConfig(v, defaultPath); err != nil {
		log.Warn().Err(err).Str("path", defaultPath).Msg("Could not write default config")
		return nil
	}
	v.SetConfigFile(defaultPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read default config: %w", err)
	}
	return nil
}

// WriteDefaultConfig writes the current defaults to path without
// overwriting an existing file.
func WriteDefaultConfig(v *viper.Viper, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := v.SafeWriteConfigAs(path); err != nil {
		return err
	}
	log.Info().Str("path", path).Msg("Created default config file")
	return nil
}

type ConfigValidationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("config validation error: %s = %v - %s", e.Field, e.Value, e.Reason)
}
