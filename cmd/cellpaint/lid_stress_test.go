package main

import (
	"github.com/spf13/cobra"

	"github.com/pharmbio/cellpaint/internal/command"
	"github.com/pharmbio/cellpaint/internal/protocol"
)

var lidStressTestDoc = `
Do a lid stress test

Required lab prerequisites:
    1. hotel B21:   plate with lid
    2. hotel B1-19: empty
    3. hotel A:     empty
    4. hotel B:     empty
    5. robotarm:    in neutral position by B hotel
    6. gripper:     sufficiently open to grab a plate
`

var lidStressTestCmd = &cobra.Command{
	Use:   "lid-stress-test",
	Short: "Stress test lid handling across every lid/RT/out slot",
	RunE: func(cmd *cobra.Command, args []string) error {
		n := len(protocol.LidLocs)
		if len(protocol.ALocs) < n {
			n = len(protocol.ALocs)
		}
		if len(protocol.CLocs) < n {
			n = len(protocol.CLocs)
		}

		var cmds []command.Command
		for i := 0; i < n; i++ {
			p := protocol.Plate{ID: "p", RTLoc: protocol.CLocs[i], LidLoc: protocol.LidLocs[i], OutLoc: protocol.ALocs[i], BatchIndex: 1}
			cmds = append(cmds, protocol.RobotarmCmds(p.LidPut(), nil, nil)...)
			cmds = append(cmds, protocol.RobotarmCmds(p.LidGet(), nil, nil)...)
			cmds = append(cmds, protocol.RobotarmCmds(p.RTPut(), nil, nil)...)
			cmds = append(cmds, protocol.RobotarmCmds(p.RTGet(), nil, nil)...)
			cmds = append(cmds, protocol.RobotarmCmds(p.LidPut(), nil, nil)...)
			cmds = append(cmds, protocol.RobotarmCmds(p.LidGet(), nil, nil)...)
			cmds = append(cmds, protocol.RobotarmCmds(p.OutPut(), nil, nil)...)
			cmds = append(cmds, protocol.RobotarmCmds(p.OutGet(), nil, nil)...)
		}

		registry := loadMovesRegistry()
		program := sleekWith(registry)(command.Sequence(cmds...))

		if err := attend(lidStressTestDoc); err != nil {
			return err
		}
		return runProgram("lid_stress_test", program)
	},
}
