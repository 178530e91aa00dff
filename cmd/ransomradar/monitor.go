package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/xoelrdgz/ransomradar/internal/adapters/api"
	"github.com/xoelrdgz/ransomradar/internal/adapters/detection"
	"github.com/xoelrdgz/ransomradar/internal/adapters/output"
	"github.com/xoelrdgz/ransomradar/internal/adapters/sampler"
	"github.com/xoelrdgz/ransomradar/internal/adapters/watcher"
	"github.com/xoelrdgz/ransomradar/internal/app"
	"github.com/xoelrdgz/ransomradar/internal/domain"
	"github.com/xoelrdgz/ransomradar/internal/ports"
	"github.com/xoelrdgz/ransomradar/internal/tui"
	"github.com/xoelrdgz/ransomradar/pkg/dedup"
)

const shutdownTimeout = 5 * time.Second

func runMonitor(cmd *cobra.Command, args []string) error {
	settings, v, err := loadSettings()
	if err != nil {
		return err
	}
	logCloser := setupLogging(settings.LogLevel, settings.LogDir, noTUI)
	defer logCloser.Close()

	log.Info().
		Strs("dirs", settings.Dirs).
		Str("engine", settings.Engine).
		Float64("cpu_threshold", settings.CPUThreshold).
		Bool("tui", !noTUI).
		Msg("RansomRadar started")

	if _, err := os.Stat(settings.RulePath); err != nil {
		log.Warn().Err(err).Str("rule", settings.RulePath).Msg("Signature rule file not readable, scans will fail")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher := app.NewDispatcher(settings.Dispatcher)
	bus := app.NewEventBus(dispatcher)

	filter := domain.NewPathFilter(settings.Excluded)
	fsWatcher := watcher.New(watcher.Config{
		Dirs:         settings.Dirs,
		Filter:       filter,
		IncludeChmod: settings.IncludeChmod,
	}, bus, dedup.New(settings.DedupCapacity))

	resourceSampler := sampler.New(sampler.Config{
		Dirs:         settings.Dirs,
		Filter:       filter,
		CPUWindow:    settings.CPUWindow,
		CPUThreshold: settings.CPUThreshold,
	}, bus)

	model, err := detection.NewSeededModel(settings.AnomalyContamination)
	if err != nil {
		return err
	}
	scorer := detection.NewAnomalyScorer(model, bus)

	matcher, closeMatcher := newMatcher(settings)
	defer closeMatcher()
	breaker := detection.NewBreakerMatcher(matcher, detection.BreakerConfig{
		Failures: settings.BreakerFailures,
		Cooldown: settings.BreakerCooldown,
	})

	matched := domain.NewMatchedFileSet()
	scanner := detection.NewSignatureScanner(detection.SignatureConfig{
		RulePath: settings.RulePath,
		Cache:    detection.NewScanCache(settings.ScanCacheSize),
	}, breaker, matched, bus)

	monitor := app.NewMonitor(app.MonitorConfig{
		Dirs:     settings.Dirs,
		Interval: settings.Interval,
	}, bus, resourceSampler, scorer, scanner, fsWatcher, matched)
	scanner.AddObserver(monitor)

	metrics := output.NewPrometheusMetrics("ransomradar", output.MetricsSources{
		Counters:    bus.Counters,
		QueueLength: dispatcher.QueueLength,
		Dropped:     dispatcher.Dropped,
		BreakerState: func() float64 {
			return detection.StateValue(breaker.State())
		},
	})
	dispatcher.AddSubscriber(metrics)
	resourceSampler.AddObserver(metrics)
	scanner.AddObserver(metrics)

	var alerters []ports.Alerter

	memory := output.NewMemoryAlerter(settings.MemoryBuffer)
	alerters = append(alerters, memory)
	monitor.AddClearable(memory)

	if jsonOut || settings.JSONEnabled {
		jsonConfig := output.JSONAlerterConfig{
			Stdout: settings.JSONStdout || jsonOut,
		}
		if settings.JSONPath != "" && !jsonOut {
			jsonConfig.FilePath = settings.JSONPath
			jsonConfig.Stdout = false
		}
		if jsonConfig.Stdout && !noTUI {
			log.Warn().Msg("JSON to stdout conflicts with the TUI, JSON output disabled")
			jsonConfig.Stdout = false
		}
		jsonAlerter, err := output.NewJSONAlerter(jsonConfig)
		if err != nil {
			return fmt.Errorf("failed to create JSON alerter: %w", err)
		}
		alerters = append(alerters, jsonAlerter)
	}

	var archive *output.EventArchive
	if settings.ArchiveEnabled {
		archive, err = output.OpenEventArchive(settings.ArchivePath)
		if err != nil {
			log.Warn().Err(err).Msg("Event archive unavailable, events are not persisted")
		} else {
			alerters = append(alerters, archive)
		}
	}

	if settings.NATSEnabled {
		publisher, err := output.NewNATSPublisher(output.NATSConfig{
			URL:     settings.NATSURL,
			Subject: settings.NATSSubject,
		})
		if err != nil {
			log.Warn().Err(err).Msg("NATS publishing disabled")
		} else {
			alerters = append(alerters, publisher)
		}
	}

	for _, a := range alerters {
		dispatcher.AddAlerter(a)
	}

	bell := output.NewBellNotifier(os.Stdout, settings.EnableSound)
	dispatcher.AddSubscriber(bell)

	exportFn := func() (string, error) {
		events := memory.Latest(0)
		path := output.DefaultExportName(time.Now())
		if err := output.ExportToFile(path, events); err != nil {
			return "", err
		}
		log.Info().Str("path", path).Int("events", len(events)).Msg("Logs exported")
		return path, nil
	}

	var tuiApp *tui.App
	if !noTUI {
		tuiApp = tui.NewApp(ctx, monitor, exportFn, settings.CPUThreshold)
		dispatcher.AddSubscriber(tuiApp)
		resourceSampler.AddObserver(tuiApp)
		monitor.AddClearable(tuiApp)
	}

	hotReload := app.NewHotReload(v, settings)
	hotReload.OnReload(func(old, updated app.Settings) {
		resourceSampler.SetCPUThreshold(updated.CPUThreshold)
		bell.SetEnabled(updated.EnableSound)
	})
	if v.ConfigFileUsed() != "" {
		hotReload.StartWatching()
	}
	defer hotReload.Stop()

	// The dispatcher outlives ctx so events logged during shutdown are
	// still delivered before Stop drains the queue.
	dispatchCtx, dispatchCancel := context.WithCancel(context.Background())
	defer dispatchCancel()
	dispatcher.Start(dispatchCtx)

	var server *api.Server
	if addr := apiAddr; addr != "" || settings.APIEnabled {
		if addr == "" {
			addr = settings.APIAddr
		}
		health := output.NewHealthChecker(monitor, dispatcher, output.HealthCheckerConfig{
			MaxTickAge:    settings.HealthMaxTickAge,
			CheckInterval: time.Second,
			BreakerState:  breaker.State,
		})
		apiConfig := api.Config{
			Addr:       addr,
			Monitor:    monitor,
			Events:     memory,
			Metrics:    metrics.Handler(),
			Health:     health,
			RunContext: ctx,
		}
		if archive != nil {
			apiConfig.Archive = archive
		}
		server = api.NewServer(apiConfig)
		server.Start()
	}

	var runErr error
	if noTUI {
		log.Info().Msg("Running in console mode")
		runErr = monitor.Run(ctx)
	} else {
		if autoStart {
			if err := monitor.Start(ctx); err != nil {
				return err
			}
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("TUI panic recovered")
					runErr = fmt.Errorf("TUI panic: %v", r)
				}
			}()
			runErr = tuiApp.Run()
		}()
	}

	cancel()
	log.Info().Msg("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		if server != nil {
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("API shutdown error")
			}
		}
		if err := monitor.Stop(); err != nil {
			log.Warn().Err(err).Msg("Monitor stop error")
		}
		dispatcher.Stop()
		for _, a := range alerters {
			if err := a.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close alerter")
			}
		}
	}()

	select {
	case <-shutdownDone:
		log.Debug().Msg("Shutdown complete")
	case <-shutdownCtx.Done():
		log.Warn().Msg("Shutdown timeout, forcing exit")
	}

	return runErr
}

// newMatcher picks the scan engine. The in-process engine falls back to the
// yara binary when it was not compiled in.
func newMatcher(settings app.Settings) (ports.ContentMatcher, func()) {
	if settings.Engine == app.EngineLib {
		lib, err := detection.NewLibMatcher()
		if err == nil {
			log.Info().Msg("Using in-process yara engine")
			return lib, func() { lib.Close() }
		}
		log.Warn().Err(err).Msg("In-process yara engine unavailable, using yara binary")
	}
	log.Info().Str("binary", settings.YaraBinary).Dur("timeout", settings.ScanTimeout).Msg("Using yara binary")
	return detection.NewCLIMatcher(settings.YaraBinary, settings.ScanTimeout), func() {}
}
