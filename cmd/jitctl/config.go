package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/joshuapare/execalloc/jit/executable"
)

func init() {
	rootCmd.AddCommand(newConfigCmd())
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `The config command prints the configuration jitctl would use, after
applying the --config file and flag overrides, as TOML (or JSON with --json).

Example:
  jitctl config
  jitctl config --config jit.toml --write-mode mprotect`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfig()
		},
	}
}

func runConfig() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(cfg)
	}
	out, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	printInfo("%s", out)
	return nil
}

// loadConfig starts from the defaults, applies the --config file if any,
// then the flag overrides, and validates the result.
func loadConfig() (executable.Config, error) {
	cfg := executable.Default()

	if configPath != "" {
		printVerbose("Loading config: %s\n", configPath)
		f, err := os.Open(configPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to open config: %w", err)
		}
		defer f.Close()

		if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return cfg, fmt.Errorf("unknown config keys:\n%s", strict.String())
			}
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if poolSize != 0 {
		cfg.PoolSize = poolSize
	}
	if writeMode != "" {
		cfg.WriteMode = writeMode
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// openAllocator creates an allocator from the effective configuration.
func openAllocator() (*executable.Allocator, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	printVerbose("Reserving %d byte pool (write mode %s)\n", cfg.PoolSize, cfg.WriteMode)
	a := executable.New(cfg)
	if !a.IsValid() {
		return nil, a.Err()
	}
	return a, nil
}
