// Package simulate reproduces the footprint of an encrypting ransomware run
// so the detectors can be exercised end to end: a CPU spike on every core,
// a burst of new files, a mass rename to .locked and dropped ransom notes.
package simulate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	LockedSuffix = ".locked"
	RansomNote   = "Your files are encrypted! Pay to decrypt."
)

type Config struct {
	TargetDir    string        // Files, renames and notes go here
	AltDir       string        // Optional; receives one extra note
	Files        int           // Files created then renamed (default: 50)
	Notes        int           // Notes dropped in TargetDir (default: 3)
	Burners      int           // CPU burner goroutines; <0 disables, 0 means one per core
	BurnDuration time.Duration // How long the burners spin (default: 15s)
	Step         time.Duration // Pause between file operations (default: 30ms)
}

func DefaultConfig() Config {
	return Config{
		Files:        50,
		Notes:        3,
		BurnDuration: 15 * time.Second,
		Step:         30 * time.Millisecond,
	}
}

type Simulator struct {
	config Config

	created atomic.Int64
	renamed atomic.Int64
	notes   atomic.Int64
}

func New(config Config) *Simulator {
	def := DefaultConfig()
	if config.Files <= 0 {
		config.Files = def.Files
	}
	if config.Notes <= 0 {
		config.Notes = def.Notes
	}
	if config.BurnDuration <= 0 {
		config.BurnDuration = def.BurnDuration
	}
	if config.Step < 0 {
		config.Step = 0
	}
	if config.Burners == 0 {
		config.Burners = runtime.NumCPU()
	}
	return &Simulator{config: config}
}

// Run performs the simulation and waits for the burners to finish. The
// burners stop early when ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) error {
	if s.config.TargetDir == "" {
		return fmt.Errorf("simulation target directory is required")
	}
	for _, dir := range []string{s.config.TargetDir, s.config.AltDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	log.Info().
		Str("target", s.config.TargetDir).
		Int("burners", max(0, s.config.Burners)).
		Int("files", s.config.Files).
		Msg("Starting ransomware simulation")

	burnCtx, cancel := context.WithTimeout(ctx, s.config.BurnDuration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Burners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			burn(burnCtx)
		}()
	}
	log.Debug().Int("count", max(0, s.config.Burners)).Msg("Started CPU burners")

	err := s.touchFiles(ctx)
	if err == nil {
		err = s.lockFiles(ctx)
	}
	if err == nil {
		err = s.dropNotes(ctx)
	}

	if err != nil {
		cancel()
	}
	wg.Wait()

	if err != nil {
		return err
	}
	log.Info().
		Int64("created", s.created.Load()).
		Int64("renamed", s.renamed.Load()).
		Int64("notes", s.notes.Load()).
		Msg("Ransomware simulation complete")
	return nil
}

func (s *Simulator) touchFiles(ctx context.Context) error {
	for i := 0; i < s.config.Files; i++ {
		path := filepath.Join(s.config.TargetDir, fmt.Sprintf("test%d.txt", i))
		if err := os.WriteFile(path, []byte("Test file."), 0644); err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		s.created.Add(1)
		log.Debug().Str("path", path).Msg("Created file")
		if err := s.pause(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulator) lockFiles(ctx context.Context) error {
	for i := 0; i < s.config.Files; i++ {
		oldPath := filepath.Join(s.config.TargetDir, fmt.Sprintf("test%d.txt", i))
		newPath := oldPath + LockedSuffix
		if err := os.Rename(oldPath, newPath); err != nil {
			return fmt.Errorf("failed to rename %s: %w", oldPath, err)
		}
		s.renamed.Add(1)
		log.Debug().Str("from", oldPath).Str("to", newPath).Msg("Renamed file")
		if err := s.pause(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulator) dropNotes(ctx context.Context) error {
	paths := make([]string, 0, s.config.Notes+1)
	for i := 0; i < s.config.Notes; i++ {
		paths = append(paths, filepath.Join(s.config.TargetDir, fmt.Sprintf("READ_ME%d.txt", i)))
	}
	if s.config.AltDir != "" {
		paths = append(paths, filepath.Join(s.config.AltDir, "READ_ME.txt"))
	}

	for _, path := range paths {
		if err := os.WriteFile(path, []byte(RansomNote), 0644); err != nil {
			return fmt.Errorf("failed to write ransom note %s: %w", path, err)
		}
		s.notes.Add(1)
		log.Debug().Str("path", path).Msg("Created ransom note")
		if err := s.pause(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulator) pause(ctx context.Context) error {
	if s.config.Step == 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.config.Step)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// burn spins until ctx ends, checking it every million iterations.
func burn(ctx context.Context) {
	var sink uint64
	for ctx.Err() == nil {
		for i := 0; i < 1_000_000; i++ {
			sink += uint64(i)
		}
	}
	_ = sink
}

func (s *Simulator) Created() int64 { return s.created.Load() }
func (s *Simulator) Renamed() int64 { return s.renamed.Load() }
func (s *Simulator) Notes() int64   { return s.notes.Load() }
