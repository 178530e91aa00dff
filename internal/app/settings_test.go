package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeFloat(t *testing.T) {
	tests := []struct {
		name string
		raw  interface{}
		want float64
	}{
		{"plain number", 55, 55},
		{"string number", "42.5", 42.5},
		{"percent suffix", "75%", 75},
		{"above max", 150, 100},
		{"below min", -5, 0},
		{"garbage", "high", 70},
		{"nil", nil, 70},
		{"float", 99.9, 99.9},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SafeFloat(tc.raw, 70, 0, 100))
		})
	}
}

func TestLoadSettings_Defaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	s := LoadSettings(v)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(home, "Documents"), filepath.Join(home, "test_files")}, s.Dirs)
	assert.Equal(t, []string{"/proc", "/sys", "/dev", "/tmp"}, s.Excluded)
	assert.Equal(t, 300*time.Millisecond, s.Interval)
	assert.Equal(t, 70.0, s.CPUThreshold)
	assert.Equal(t, 0.05, s.AnomalyContamination)
	assert.Equal(t, 500*time.Millisecond, s.CPUWindow)
	assert.Equal(t, 50, s.DedupCapacity)
	assert.Equal(t, EngineCLI, s.Engine)
	assert.Equal(t, time.Duration(0), s.ScanTimeout)
	assert.Equal(t, uint32(5), s.BreakerFailures)
	assert.Equal(t, 30*time.Second, s.BreakerCooldown)
	assert.Equal(t, 30*time.Second, s.HealthMaxTickAge)
	assert.False(t, s.EnableSound)
	assert.True(t, s.ArchiveEnabled)
	assert.NoError(t, s.Validate())
}

func TestLoadSettings_Overrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("monitor.dirs", "/srv/a, /srv/b ,")
	v.Set("detection.cpu_threshold", "250")
	v.Set("detection.anomaly_contamination", "0.001")
	v.Set("monitor.interval", 150)
	v.Set("signature.engine", "YARA-X")
	v.Set("sampler.cpu_window", "nonsense")
	v.Set("api.health.max_tick_age", "2m")

	s := LoadSettings(v)

	assert.Equal(t, []string{"/srv/a", "/srv/b"}, s.Dirs)
	assert.Equal(t, 100.0, s.CPUThreshold)
	assert.Equal(t, 0.01, s.AnomalyContamination)
	assert.Equal(t, 150*time.Millisecond, s.Interval)
	assert.Equal(t, EngineCLI, s.Engine)
	assert.Equal(t, 500*time.Millisecond, s.CPUWindow)
	assert.Equal(t, 2*time.Minute, s.HealthMaxTickAge)
}

func TestSettings_Validate(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	base := LoadSettings(v)

	noDirs := base
	noDirs.Dirs = nil
	var verr *ConfigValidationError
	require.ErrorAs(t, noDirs.Validate(), &verr)
	assert.Equal(t, "monitor.dirs", verr.Field)

	tooFast := base
	tooFast.Interval = time.Millisecond
	require.ErrorAs(t, tooFast.Validate(), &verr)
	assert.Equal(t, "monitor.interval", verr.Field)
}

func TestReadConfig_WritesDefaultFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config", "config.yaml")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(dir, "config"))
	SetDefaults(v)

	require.NoError(t, ReadConfig(v, path))

	_, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, path, v.ConfigFileUsed())

	// A second run finds the file and leaves it alone.
	v2 := viper.New()
	v2.SetConfigFile(path)
	SetDefaults(v2)
	require.NoError(t, ReadConfig(v2, path))
	assert.Equal(t, 70.0, LoadSettings(v2).CPUThreshold)
}

func TestReadConfig_ExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("detection:\n  cpu_threshold: 85\nalerts:\n  enable_sound: true\n"), 0644))

	v := viper.New()
	v.SetConfigFile(path)
	SetDefaults(v)
	require.NoError(t, ReadConfig(v, ""))

	s := LoadSettings(v)
	assert.Equal(t, 85.0, s.CPUThreshold)
	assert.True(t, s.EnableSound)
}
