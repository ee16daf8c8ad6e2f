package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pharmbio/cellpaint/internal/protocol"
	"github.com/pharmbio/cellpaint/internal/symbolic"
)

var timeBioteksFlags struct {
	incuCSV string
	six     bool
}

var timeBioteksDoc = `
Timing for biotek protocols and robotarm moves from and to bioteks.

This is preferably done with the bioteks connected to water.

Required lab prerequisites:
    1. hotel B21:        one plate *without* lid
    2. biotek washer:    empty
    3. biotek washer:    connected to water
    4. biotek dispenser: empty
    5. biotek dispenser: all pumps and syringes connected to water
    6. robotarm:         in neutral position by B hotel
    7. gripper:          sufficiently open to grab a plate

    8. incubator transfer door: not used
    9. hotel B1-19:             not used
   10. hotel A:                 not used
   11. hotel C:                 not used
`

var timeBioteksCmd = &cobra.Command{
	Use:   "time-bioteks",
	Short: "Time biotek protocols and the robot-arm moves to/from them",
	RunE: func(cmd *cobra.Command, args []string) error {
		protoCfg, err := protocol.MakeV3(protocol.MakeV3Options{IncuCSV: timeBioteksFlags.incuCSV, Six: timeBioteksFlags.six})
		if err != nil {
			return err
		}
		// Every incu window becomes a free variable: this procedure never
		// waits on the incubator, only times the washer/dispenser.
		for i := range protoCfg.Incu {
			protoCfg.Incu[i] = symbolic.Var(fmt.Sprintf("incu %d", i))
		}

		registry := loadMovesRegistry()
		program, err := protocol.CellPaintProgram([]int{1}, protoCfg, sleekWith(registry))
		if err != nil {
			return err
		}
		program = filterForTimeBioteks(program)

		if err := attend(timeBioteksDoc); err != nil {
			return err
		}
		return runProgram("time_bioteks", program)
	},
}

func init() {
	timeBioteksCmd.Flags().StringVar(&timeBioteksFlags.incuCSV, "incu", "1:30,1:30,1:30,1:30,1:30", "per-step incubation window template (ignored: overridden to free variables)")
	timeBioteksCmd.Flags().BoolVar(&timeBioteksFlags.six, "six", false, "use the six-step protocol variant")
}
