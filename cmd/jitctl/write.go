package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/joshuapare/execalloc/jit/executable"
)

var writeOwner uint64

func init() {
	cmd := newWriteCmd()
	cmd.Flags().Uint64Var(&writeOwner, "owner", 1, "Owner id recorded with the allocation")
	rootCmd.AddCommand(cmd)
}

func newWriteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "write <hex>",
		Short: "Write machine code into executable memory and read it back",
		Long: `The write command allocates executable memory, writes the given bytes
through the W^X-safe copy path, flushes the instruction cache, and reads
the bytes back to verify them. The code is never executed.

Example:
  jitctl write c3
  jitctl write "55 48 89 e5 5d c3" --write-mode mprotect`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(cmd.Context(), args[0])
		},
	}
}

// WriteResult is the write command's result.
type WriteResult struct {
	Address string `json:"address"`
	Size    int    `json:"size"`
	Written int    `json:"written"`
	Writer  string `json:"writer"`
	Bytes   string `json:"bytes"`
}

func runWrite(ctx context.Context, arg string) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	code, err := hex.DecodeString(strings.Join(strings.Fields(arg), ""))
	if err != nil {
		return fmt.Errorf("invalid hex: %w", err)
	}
	if len(code) == 0 {
		return fmt.Errorf("nothing to write")
	}

	a, err := openAllocator()
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, a.Close()) }()

	m, err := a.Allocate(len(code), executable.OwnerID(writeOwner), executable.EffortFull)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, m.Release()) }()

	w := m.NewCodeWriter()
	if _, err := w.Write(code); err != nil {
		return err
	}
	if err := w.Finalize(ctx); err != nil {
		return err
	}

	got, err := m.Bytes()
	if err != nil {
		return err
	}
	got = got[:len(code)]
	if !bytes.Equal(got, code) {
		return fmt.Errorf("read back %x, wrote %x", got, code)
	}

	res := WriteResult{
		Address: fmt.Sprintf("%#x", m.Start()),
		Size:    m.Size(),
		Written: len(code),
		Writer:  a.WriterName(),
		Bytes:   hex.EncodeToString(got),
	}
	if jsonOut {
		return printJSON(res)
	}
	printInfo("Wrote %d bytes at %s (%d byte allocation) via %s\n", res.Written, res.Address, res.Size, res.Writer)
	printVerbose("Read back: %s\n", res.Bytes)
	return nil
}
