package main

import (
	"fmt"
	"os"

	"github.com/segmentio/encoding/json"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/joshuapare/execalloc/internal/logger"
)

var (
	// Global flags
	verbose    bool
	quiet      bool
	jsonOut    bool
	configPath string
	poolSize   int
	writeMode  string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "jitctl",
	Short: "Exercise and inspect the executable memory allocator",
	Long: `jitctl reserves an executable memory pool the way a JIT would and
exercises it: it reports the selected write strategy and pool geometry,
stress tests allocation under concurrency, dumps allocation profiles, and
writes code through the W^X-safe copy path.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML configuration file")
	rootCmd.PersistentFlags().IntVar(&poolSize, "pool-size", 0, "Pool size in bytes (overrides config)")
	rootCmd.PersistentFlags().
		StringVar(&writeMode, "write-mode", "", "Write strategy: auto, fast, separate, mprotect, none")
	rootCmd.PersistentFlags().
		StringVar(&logLevel, "log-level", "", "Enable structured logs at this level (debug, info, warn, error)")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v\n", err)
		os.Exit(1)
	}
}

// initLogging enables the global logger when --log-level is set. Verbose
// mode alone enables warnings.
func initLogging() error {
	level := logLevel
	if level == "" && verbose {
		level = "warn"
	}
	if level == "" {
		return logger.Init(logger.Options{})
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	return logger.Init(logger.Options{
		Enabled:     true,
		Level:       lvl,
		Development: true,
	})
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printError prints an error message
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
