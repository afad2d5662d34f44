package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	cfgpkg "github.com/yangatekane/bh-ea-dashboard/internal/config"
	"github.com/yangatekane/bh-ea-dashboard/internal/logger"
)

var (
	// Global flags
	cfgFile string
	debug   bool
	logMode string
	// Retry/HTTP flags (override config if set)
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "bhea",
	Short: "BH-EA: borehole economic analysis dashboard and tools",
	Long: `BH-EA serves a per-browser dashboard for borehole survey economics and
ERT resistivity sections, and exposes the same processing steps as commands.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.bhea/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&logMode, "log-mode", "", "log mode: dev or prod (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max retry attempts on 429/5xx (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
}

func loadConfig() {
	if _, err := requireConfig(); err != nil {
		// Non-fatal: offline commands run on defaults.
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
	}
}

// requireConfig returns the loaded configuration with CLI overrides applied,
// loading it on demand when initialization was skipped or failed.
func requireConfig() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	f := rootCmd.PersistentFlags()
	if f.Changed("log-mode") && logMode != "" {
		c.Log.Mode = logMode
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		c.HTTP.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("retry-base-ms") && flagRetryBaseDelayMs > 0 {
		c.HTTP.RetryBaseDelayMs = flagRetryBaseDelayMs
	}
	if f.Changed("retry-max-ms") && flagRetryMaxDelayMs > 0 {
		c.HTTP.RetryMaxDelayMs = flagRetryMaxDelayMs
	}
	cfg = c
	return cfg, nil
}

func newLogger(c *cfgpkg.Global) (*logger.Logger, error) {
	mode := c.Log.Mode
	if debug {
		mode = "dev"
	}
	return logger.New(mode)
}

// cliLogger is newLogger for offline commands, which still run when the
// configuration cannot be loaded.
func cliLogger() *logger.Logger {
	c, err := requireConfig()
	if err != nil {
		return logger.Nop()
	}
	l, err := newLogger(c)
	if err != nil {
		return logger.Nop()
	}
	return l
}

// expandInputs resolves globs and literal paths into a sorted, de-duplicated list.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched")
	}
	sort.Strings(files)
	return files, nil
}
