package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xoelrdgz/ransomradar/internal/app"
)

const defaultConfigPath = "config/config.yaml"

var (
	cfgFile   string
	noTUI     bool
	jsonOut   bool
	apiAddr   string
	autoStart bool

	exportOut     string
	exportSession string
	exportPurge   bool

	simTarget   string
	simAlt      string
	simFiles    int
	simBurners  int
	simDuration time.Duration

	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "ransomradar",
	Short: "Host-level ransomware activity detection",
	Long: `RansomRadar watches a set of directories for ransomware-like activity
and reports detections on three channels.

Detection Channels:
  - Behavioral: file creations, modifications, deletions and renames,
    plus CPU threshold crossings
  - Anomaly: an isolation forest over (file count, CPU load)
  - Signature: YARA rule matches on files under the monitored roots`,
	SilenceUsage: true,
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Monitor the configured directories",
	Long: `Start the detection loop over the configured directories.

Examples:
  ransomradar monitor
  ransomradar monitor --autostart
  ransomradar monitor --no-tui --json
  ransomradar monitor --no-tui --api 127.0.0.1:9090`,
	RunE: runMonitor,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write archived detections to a text file",
	Long: `Export archived events grouped by channel.

Examples:
  ransomradar export
  ransomradar export --session 3f1c... --output logs.txt
  ransomradar export --purge`,
	RunE: runExport,
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Reproduce ransomware activity for testing the detectors",
	Long: `Spin every CPU core, create a batch of files, rename them to .locked and
drop ransom notes. Run it against a monitored directory in a second terminal.

Examples:
  ransomradar simulate
  ransomradar simulate --target ~/test_files --files 80 --duration 20s`,
	RunE: runSimulate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("RansomRadar %s\n", Version)
		fmt.Printf("Commit:  %s\n", Commit)
		fmt.Printf("Built:   %s\n", BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().StringSlice("dirs", nil, "directories to monitor (overrides monitor.dirs)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	monitorCmd.Flags().BoolVar(&noTUI, "no-tui", false, "disable TUI, log to the console")
	monitorCmd.Flags().BoolVar(&jsonOut, "json", false, "write events as JSON to stdout")
	monitorCmd.Flags().StringVar(&apiAddr, "api", "", "serve the control API on this address")
	monitorCmd.Flags().BoolVar(&autoStart, "autostart", false, "start monitoring as soon as the TUI opens")

	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "output file (default: ransomware_logs_<timestamp>.txt)")
	exportCmd.Flags().StringVar(&exportSession, "session", "", "only export events from this session")
	exportCmd.Flags().BoolVar(&exportPurge, "purge", false, "delete the archived events after exporting")

	simulateCmd.Flags().StringVar(&simTarget, "target", "~/Documents/test", "directory receiving the files and notes")
	simulateCmd.Flags().StringVar(&simAlt, "alt", "~/test_files", "second directory receiving one note")
	simulateCmd.Flags().IntVar(&simFiles, "files", 50, "files to create and rename")
	simulateCmd.Flags().IntVar(&simBurners, "burners", 0, "CPU burner goroutines (0: one per core, -1: none)")
	simulateCmd.Flags().DurationVar(&simDuration, "duration", 15*time.Second, "how long the burners spin")

	viper.BindPFlag("monitor.dirs", rootCmd.PersistentFlags().Lookup("dirs"))
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadSettings reads .env, the config file and the environment. A missing
// config file is created with the defaults.
func loadSettings() (app.Settings, *viper.Viper, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Error loading .env file")
	}

	v := viper.GetViper()
	app.ConfigureViper(v, cfgFile)
	if err := app.ReadConfig(v, defaultConfigPath); err != nil {
		return app.Settings{}, nil, err
	}

	settings := app.LoadSettings(v)
	if err := settings.Validate(); err != nil {
		return app.Settings{}, nil, err
	}
	return settings, v, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// setupLogging configures the global logger. Every run also writes to
// <dir>/ransomradar_<timestamp>.log; the console only gets output when the
// TUI is not drawing on the terminal.
func setupLogging(level, dir string, console bool) io.Closer {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	var writers []io.Writer
	if console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		})
	}

	var closer io.Closer = nopCloser{}
	if dir != "" {
		path := filepath.Join(dir, "ransomradar_"+time.Now().Format("20060102_150405")+".log")
		f, err := openLogFile(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Could not open log file")
		} else {
			writers = append(writers, f)
			closer = f
		}
	}

	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	return closer
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
