package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/xoelrdgz/ransomradar/internal/domain"
)

// DefaultExportName is the file name "Save Logs" proposes for a given time.
func DefaultExportName(now time.Time) string {
	return "ransomware_logs_" + now.Format("20060102_150405") + ".txt"
}

// WriteExport writes events grouped by channel, one section per channel in
// display order:
//
//	=== Behavioral Logs ===
//	Mon Jan  2 15:04:05 2006: File created: /data/a.txt
//
//	=== Anomaly Logs ===
//	...
//
// Events keep their relative order inside a section.
func WriteExport(w io.Writer, events []*domain.Event) error {
	byChannel := make(map[domain.Channel][]*domain.Event, 3)
	for _, ev := range events {
		byChannel[ev.Channel] = append(byChannel[ev.Channel], ev)
	}

	bw := bufio.NewWriter(w)
	for _, ch := range domain.Channels() {
		fmt.Fprintf(bw, "=== %s Logs ===\n", ch.Title())
		for _, ev := range byChannel[ch] {
			bw.WriteString(ev.LogLine())
			bw.WriteByte('\n')
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// ExportToFile writes the export to path, creating parent directories.
func ExportToFile(path string, events []*domain.Event) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	if err := WriteExport(f, events); err != nil {
		f.Close()
		return fmt.Errorf("failed to write export: %w", err)
	}
	return f.Close()
}
