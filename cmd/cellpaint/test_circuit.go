package main

import (
	"github.com/spf13/cobra"

	"github.com/pharmbio/cellpaint/internal/command"
	"github.com/pharmbio/cellpaint/internal/protocol"
)

var testCircuitDoc = `
Test circuit using one plate.

Required lab prerequisites:
    1. hotel one:               empty!
    2. hotel two:               empty!
    3. hotel three:             empty!
    4. biotek washer:           empty!
    5. biotek dispenser:        empty!
    6. incubator transfer door: one plate with lid
    7. robotarm:                in neutral position by lid hotel
    8. gripper:                 sufficiently open to grab a plate
`

var testCircuitCmd = &cobra.Command{
	Use:   "test-circuit",
	Short: "Short test paint on one plate, without the incubator",
	RunE: func(cmd *cobra.Command, args []string) error {
		plates, err := protocol.DefinePlates([]int{1})
		if err != nil {
			return err
		}
		plate := plates[0]

		protoCfg, err := protocol.MakeV3(protocol.MakeV3Options{IncuCSV: "s1,s2,s3,s4,s5", Six: true, Interleave: true})
		if err != nil {
			return err
		}
		program, err := protocol.CellPaintProgram([]int{1}, protoCfg, nil)
		if err != nil {
			return err
		}

		var kept []command.Command
		for _, leaf := range program.Collect() {
			if leaf.Cmd.Kind != command.KindRobotarm {
				continue
			}
			if leaf.Meta.Step == "Triton" || leaf.Meta.Step == "Stains" {
				continue
			}
			kept = append(kept, leaf.Cmd.WithMetadata(leaf.Meta))
		}
		kept = append(kept, protocol.RobotarmCmds(plate.OutGet(), nil, nil)...)
		kept = append(kept, protocol.RobotarmCmds("incu put", nil, nil)...)

		registry := loadMovesRegistry()
		program = sleekWith(registry)(command.Sequence(kept...))

		if err := attend(testCircuitDoc); err != nil {
			return err
		}
		return runProgram("test_circuit", program)
	},
}
