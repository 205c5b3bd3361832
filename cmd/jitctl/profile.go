package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/joshuapare/execalloc/jit/executable"
)

var (
	profileSizes   string
	profileRelease string
)

func init() {
	cmd := newProfileCmd()
	cmd.Flags().StringVar(&profileSizes, "sizes", "64,128,256,4096,65536", "Comma-separated allocation sizes")
	cmd.Flags().StringVar(&profileRelease, "release", "odd", "Which allocations to release before dumping: none, odd, even, all")
	rootCmd.AddCommand(cmd)
}

func newProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Allocate a pattern and dump the allocation profile",
		Long: `The profile command allocates the given sizes in order, releases a
subset of them to fragment the pool, and prints the allocator profile with
the resulting free-list layout.

Example:
  jitctl profile
  jitctl profile --sizes 32,32,32,8192 --release even`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfile()
		},
	}
}

func runProfile() (err error) {
	sizes, err := parseSizes(profileSizes)
	if err != nil {
		return err
	}
	keep, err := releaseFilter(profileRelease)
	if err != nil {
		return err
	}

	a, err := openAllocator()
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, a.Close()) }()

	var held []*executable.Memory
	defer func() {
		for _, m := range held {
			err = multierr.Append(err, m.Release())
		}
	}()

	for i, size := range sizes {
		m, aerr := a.Allocate(size, executable.OwnerID(i+1), executable.EffortFull)
		if aerr != nil {
			return fmt.Errorf("allocation %d (%d bytes): %w", i, size, aerr)
		}
		printVerbose("Allocated %s\n", m)
		if keep(i) {
			held = append(held, m)
			continue
		}
		if rerr := m.Release(); rerr != nil {
			return rerr
		}
	}

	if jsonOut {
		return printJSON(a.Stats())
	}
	if quiet {
		return nil
	}
	return a.DumpProfile(os.Stdout)
}

func parseSizes(s string) ([]int, error) {
	var sizes []int
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid size %q", field)
		}
		sizes = append(sizes, n)
	}
	if len(sizes) == 0 {
		return nil, errors.New("no sizes given")
	}
	return sizes, nil
}

// releaseFilter returns a predicate reporting whether allocation i is kept.
func releaseFilter(mode string) (func(i int) bool, error) {
	switch mode {
	case "none":
		return func(int) bool { return true }, nil
	case "odd":
		return func(i int) bool { return i%2 == 0 }, nil
	case "even":
		return func(i int) bool { return i%2 == 1 }, nil
	case "all":
		return func(int) bool { return false }, nil
	default:
		return nil, fmt.Errorf("invalid --release %q (want none, odd, even or all)", mode)
	}
}
