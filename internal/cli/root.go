package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/haskel/kstar/internal/config"
	"github.com/haskel/kstar/internal/logger"
)

var (
	// Global flags
	cfgFile  string
	logLevel string
	jsonOut  bool

	// Version info (set from main)
	Version = "0.1.0"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "kstar",
	Short: "K* lazy stream classifier",
	Long: `kstar runs the K* instance-based classifier over ARFF streams.
It keeps a sliding window of recent instances and scores every new
instance against it using entropy-based transformation probabilities.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
}

// SetVersion sets the version for the CLI
func SetVersion(v string) {
	Version = v
	rootCmd.Version = v
}

// loadConfig reads --config when given and applies the global overrides.
// Unlike LoadOrDefault it reports a broken file instead of ignoring it.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// newLogger logs to logging.file when set, otherwise to stderr so stdout
// only carries results. An interactive run without a file drops records
// rather than drawing over the live view.
func newLogger(cfg *config.Config, interactive bool) (*slog.Logger, func() error, error) {
	if cfg.Logging.File != "" {
		return logger.OpenFile(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.Format)
	}
	noop := func() error { return nil }
	if interactive {
		return logger.Discard(), noop, nil
	}
	return logger.New(cfg.Logging.Level, cfg.Logging.Format), noop, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
