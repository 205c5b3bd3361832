package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/joshuapare/execalloc/jit/pressure"
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show pool geometry, write strategy, and memory pressure",
		Long: `The info command reserves a pool with the effective configuration and
reports how it was laid out: its address range, page size, allocation
granule, large allocation threshold, the selected write strategy, and the
current memory pressure readings.

Example:
  jitctl info
  jitctl info --write-mode mprotect --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo()
		},
	}
}

// PoolInfo is the info command's result.
type PoolInfo struct {
	Start          string  `json:"start"`
	End            string  `json:"end"`
	Size           int     `json:"size"`
	PageSize       int     `json:"page_size"`
	Granule        int     `json:"granule"`
	LargeThreshold int     `json:"large_threshold"`
	Writer         string  `json:"writer"`
	UnderPressure  bool    `json:"under_pressure"`
	Multiplier     float64 `json:"pressure_multiplier"`
	SystemTotal    uint64  `json:"system_total_bytes"`
	SystemFree     uint64  `json:"system_available_bytes"`
}

func runInfo() (err error) {
	a, err := openAllocator()
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, a.Close()) }()

	b := a.Bounds()
	g := a.Geometry()
	info := PoolInfo{
		Start:          fmt.Sprintf("%#x", b.Start),
		End:            fmt.Sprintf("%#x", b.End),
		Size:           b.Size(),
		PageSize:       g.PageSize,
		Granule:        g.Granule,
		LargeThreshold: g.LargeThreshold,
		Writer:         a.WriterName(),
		UnderPressure:  a.UnderMemoryPressure(),
		Multiplier:     a.MemoryPressureMultiplier(0),
	}
	if sig, serr := (pressure.SystemSource{}).Sample(); serr == nil {
		info.SystemTotal = sig.TotalBytes
		info.SystemFree = sig.AvailableBytes
	} else {
		printVerbose("System memory sample failed: %v\n", serr)
	}

	if jsonOut {
		return printJSON(info)
	}

	printInfo("Pool:             [%s, %s)\n", info.Start, info.End)
	printInfo("Size:             %d bytes\n", info.Size)
	printInfo("Page size:        %d\n", info.PageSize)
	printInfo("Granule:          %d\n", info.Granule)
	printInfo("Large threshold:  %d\n", info.LargeThreshold)
	printInfo("Write strategy:   %s\n", info.Writer)
	printInfo("Under pressure:   %v (multiplier %.3f)\n", info.UnderPressure, info.Multiplier)
	if info.SystemTotal > 0 {
		printInfo("System memory:    %d of %d bytes available\n", info.SystemFree, info.SystemTotal)
	}
	return nil
}
