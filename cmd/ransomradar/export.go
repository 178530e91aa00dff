package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/xoelrdgz/ransomradar/internal/adapters/output"
)

func runExport(cmd *cobra.Command, args []string) error {
	settings, _, err := loadSettings()
	if err != nil {
		return err
	}
	logCloser := setupLogging(settings.LogLevel, "", true)
	defer logCloser.Close()

	archive, err := output.OpenEventArchive(settings.ArchivePath)
	if err != nil {
		return fmt.Errorf("%w (is a monitor still running?)", err)
	}
	defer archive.Close()

	events, err := archive.List(output.ArchiveQuery{SessionID: exportSession})
	if err != nil {
		return fmt.Errorf("failed to read archive: %w", err)
	}

	path := exportOut
	if path == "" {
		path = output.DefaultExportName(time.Now())
	}
	if err := output.ExportToFile(path, events); err != nil {
		return err
	}
	log.Info().Str("path", path).Int("events", len(events)).Msg("Logs exported")

	if exportPurge {
		if err := archive.Purge(); err != nil {
			return fmt.Errorf("failed to purge archive: %w", err)
		}
		log.Info().Str("archive", archive.Path()).Msg("Archive purged")
	}

	fmt.Println(path)
	return nil
}
