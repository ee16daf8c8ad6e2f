package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pharmbio/cellpaint/internal/protocol"
)

var cellPaintFlags struct {
	numPlates  string
	incuCSV    string
	interleave bool
	six        bool
	lockstep   bool
}

var cellPaintCmd = &cobra.Command{
	Use:   "cell-paint",
	Short: "Run a full cell-painting batch",
	RunE: func(cmd *cobra.Command, args []string) error {
		batchSizes, err := parseBatchSizes(cellPaintFlags.numPlates)
		if err != nil {
			return err
		}

		protoCfg, err := protocol.MakeV3(protocol.MakeV3Options{
			IncuCSV:    cellPaintFlags.incuCSV,
			Interleave: cellPaintFlags.interleave,
			Six:        cellPaintFlags.six,
			Lockstep:   cellPaintFlags.lockstep,
		})
		if err != nil {
			return err
		}

		registry := loadMovesRegistry()
		program, err := protocol.CellPaintProgram(batchSizes, protoCfg, sleekWith(registry))
		if err != nil {
			return err
		}

		return runProgram("cell_paint", program)
	},
}

func init() {
	cellPaintCmd.Flags().StringVar(&cellPaintFlags.numPlates, "num-plates", "1",
		"comma-separated batch sizes, e.g. \"2,2\" for two batches of two plates")
	cellPaintCmd.Flags().StringVar(&cellPaintFlags.incuCSV, "incu", "1:30,1:30,1:30,1:30,1:30",
		"comma-separated per-step incubation window (M:SS, seconds, or a free variable name)")
	cellPaintCmd.Flags().BoolVar(&cellPaintFlags.interleave, "interleave", false, "interleave consecutive plates' steps")
	cellPaintCmd.Flags().BoolVar(&cellPaintFlags.six, "six", false, "use the six-step protocol variant (adds a Wash 1 step)")
	cellPaintCmd.Flags().BoolVar(&cellPaintFlags.lockstep, "lockstep", false, "lock step boundaries across plates")
}

func parseBatchSizes(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("--num-plates: invalid batch size %q", part)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("--num-plates: at least one batch is required")
	}
	return out, nil
}
