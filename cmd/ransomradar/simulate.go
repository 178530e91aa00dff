package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xoelrdgz/ransomradar/internal/adapters/simulate"
	"github.com/xoelrdgz/ransomradar/internal/domain"
)

func runSimulate(cmd *cobra.Command, args []string) error {
	logCloser := setupLogging("debug", "", true)
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sim := simulate.New(simulate.Config{
		TargetDir:    domain.ExpandPath(simTarget),
		AltDir:       domain.ExpandPath(simAlt),
		Files:        simFiles,
		Burners:      simBurners,
		BurnDuration: simDuration,
		Step:         simulate.DefaultConfig().Step,
	})
	return sim.Run(ctx)
}
