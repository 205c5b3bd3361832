package main

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/joshuapare/execalloc/jit/executable"
	"github.com/joshuapare/execalloc/jit/metaalloc"
)

var (
	stressWorkers    int
	stressOps        int
	stressMaxSize    int
	stressSeed       uint64
	stressQuickRatio float64
	stressWrite      bool
)

func init() {
	cmd := newStressCmd()
	cmd.Flags().IntVar(&stressWorkers, "workers", 4, "Concurrent workers")
	cmd.Flags().IntVar(&stressOps, "ops", 10000, "Operations per worker")
	cmd.Flags().IntVar(&stressMaxSize, "max-size", 4096, "Largest request in bytes")
	cmd.Flags().Uint64Var(&stressSeed, "seed", 1, "Random seed")
	cmd.Flags().Float64Var(&stressQuickRatio, "quick-ratio", 0.8, "Fraction of quick-effort requests")
	cmd.Flags().BoolVar(&stressWrite, "write", true, "Write a byte pattern into each allocation")
	rootCmd.AddCommand(cmd)
}

func newStressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stress",
		Short: "Allocate and release concurrently and verify the free lists",
		Long: `The stress command runs workers that randomly allocate, write, and
release executable memory, then releases everything and verifies that the
free lists are intact and fully coalesced.

Example:
  jitctl stress
  jitctl stress --workers 8 --ops 100000 --max-size 65536`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress()
		},
	}
}

// StressResult is the stress command's result.
type StressResult struct {
	Workers            int           `json:"workers"`
	Operations         int           `json:"operations"`
	Allocations        int64         `json:"allocations"`
	Releases           int64         `json:"releases"`
	OutOfMemory        int64         `json:"out_of_memory"`
	PressureRejections int64         `json:"pressure_rejections"`
	PeakBytes          int64         `json:"peak_bytes"`
	BytesWritten       int64         `json:"bytes_written"`
	Elapsed            time.Duration `json:"elapsed_ns"`
	FreeRanges         int           `json:"free_ranges_after"`
}

func runStress() (err error) {
	if stressWorkers <= 0 || stressOps <= 0 || stressMaxSize <= 0 {
		return errors.New("--workers, --ops and --max-size must be positive")
	}

	a, err := openAllocator()
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, a.Close()) }()

	printVerbose("Running %d workers x %d ops\n", stressWorkers, stressOps)
	start := time.Now()

	errs := make([]error, stressWorkers)
	var wg sync.WaitGroup
	for w := range stressWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[w] = stressWorker(a, w)
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	if err := multierr.Combine(errs...); err != nil {
		return err
	}
	if a.CommittedByteCount() != 0 {
		return fmt.Errorf("%d bytes still allocated after release", a.CommittedByteCount())
	}
	if err := a.CheckInvariants(); err != nil {
		return err
	}

	s := a.Stats()
	res := StressResult{
		Workers:            stressWorkers,
		Operations:         stressWorkers * stressOps,
		Allocations:        s.Allocations,
		Releases:           s.Releases,
		OutOfMemory:        s.OutOfMemory,
		PressureRejections: s.PressureRejections,
		PeakBytes:          s.Engine.PeakBytesAllocated,
		BytesWritten:       s.BytesWritten,
		Elapsed:            elapsed,
		FreeRanges:         s.Engine.FreeRanges,
	}

	if jsonOut {
		return printJSON(res)
	}
	printInfo("Operations:       %d in %v\n", res.Operations, res.Elapsed.Round(time.Millisecond))
	printInfo("Allocations:      %d (%d released)\n", res.Allocations, res.Releases)
	printInfo("Rejected:         %d out of memory, %d pressure\n", res.OutOfMemory, res.PressureRejections)
	printInfo("Peak allocated:   %d bytes\n", res.PeakBytes)
	printInfo("Bytes written:    %d\n", res.BytesWritten)
	printInfo("Free lists:       OK (%d range after release)\n", res.FreeRanges)
	return nil
}

// stressWorker runs one worker's share of operations and releases whatever
// it still holds. Pool exhaustion and pressure rejections are expected.
func stressWorker(a *executable.Allocator, id int) error {
	rng := rand.New(rand.NewPCG(stressSeed, uint64(id)))
	owner := executable.OwnerID(id + 1)
	live := make([]*executable.Memory, 0, 256)

	var errs error
	for range stressOps {
		if len(live) > 0 && rng.IntN(2) == 0 {
			i := rng.IntN(len(live))
			errs = multierr.Append(errs, live[i].Release())
			live[i] = live[len(live)-1]
			live = live[:len(live)-1]
			continue
		}

		effort := executable.EffortFull
		if rng.Float64() < stressQuickRatio {
			effort = executable.EffortQuick
		}
		m, err := a.Allocate(1+rng.IntN(stressMaxSize), owner, effort)
		switch {
		case err == nil:
		case errors.Is(err, metaalloc.ErrOutOfPoolMemory), errors.Is(err, executable.ErrPressureRejected):
			continue
		default:
			return err
		}
		live = append(live, m)

		if stressWrite {
			pattern := make([]byte, min(m.Size(), 64))
			for i := range pattern {
				pattern[i] = byte(id)
			}
			if _, err := a.PerformJITMemcpy(m.Pointer(), pattern); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
	}

	for _, m := range live {
		errs = multierr.Append(errs, m.Release())
	}
	return errs
}
