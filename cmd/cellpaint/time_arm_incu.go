package main

import (
	"github.com/spf13/cobra"

	"github.com/pharmbio/cellpaint/internal/command"
	"github.com/pharmbio/cellpaint/internal/protocol"
)

var timeArmIncuDoc = `
Timing for robotarm and incubator.

Required lab prerequisites:
    1. incubator transfer door: one plate with lid
    2. hotel B21:               one plate with lid
    3. hotel B1-19:             empty!
    4. hotel A:                 empty!
    5. hotel C:                 empty!
    6. biotek washer:           empty!
    7. biotek dispenser:        empty!
    8. robotarm:                in neutral position by B hotel
    9. gripper:                 sufficiently open to grab a plate
`

var timeArmIncuCmd = &cobra.Command{
	Use:   "time-arm-incu",
	Short: "Time the robot arm and incubator in isolation",
	RunE: func(cmd *cobra.Command, args []string) error {
		const incuLocs = 16
		const n = 8

		var incu []command.Command
		for _, loc := range protocol.IncuLocs[:incuLocs] {
			incu = append(incu, command.IncuCmd(command.IncuPut, loc), command.IncuCmd(command.IncuGet, loc))
		}

		plate := protocol.Plate{ID: "1", BatchIndex: 1}
		var arm []command.Command
		for _, lidLoc := range protocol.LidLocs[:n] {
			plate = plate.WithLidLoc(lidLoc)
			arm = append(arm, protocol.RobotarmCmds(plate.LidPut(), nil, nil)...)
			arm = append(arm, protocol.RobotarmCmds(plate.LidGet(), nil, nil)...)
		}
		for _, rtLoc := range protocol.RTLocs[:n] {
			plate.RTLoc = rtLoc
			arm = append(arm, protocol.RobotarmCmds(plate.RTPut(), nil, nil)...)
			arm = append(arm, protocol.RobotarmCmds(plate.RTGet(), nil, nil)...)
		}
		for _, outLoc := range protocol.OutLocs[:n] {
			plate.OutLoc = outLoc
			arm = append(arm, protocol.RobotarmCmds(plate.OutPut(), nil, nil)...)
			arm = append(arm, protocol.RobotarmCmds(plate.OutGet(), nil, nil)...)
		}

		plate = plate.WithLidLoc(protocol.LidLocs[0])
		plate.RTLoc = protocol.RTLocs[0]
		var arm2 []command.Command
		arm2 = append(arm2, protocol.RobotarmCmds(plate.RTPut(), nil, nil)...)
		arm2 = append(arm2, protocol.RobotarmCmds("incu get", nil, nil)...)
		arm2 = append(arm2, protocol.RobotarmCmds(plate.LidPut(), nil, nil)...)
		arm2 = append(arm2, protocol.RobotarmCmds("wash put", nil, nil)...)
		arm2 = append(arm2, protocol.RobotarmCmds("wash_to_disp", nil, nil)...)
		arm2 = append(arm2, protocol.RobotarmCmds("disp get", nil, nil)...)
		arm2 = append(arm2, protocol.RobotarmCmds("wash put", nil, nil)...)
		arm2 = append(arm2, protocol.RobotarmCmds("wash get", nil, nil)...)
		arm2 = append(arm2, protocol.RobotarmCmds("B15 put", nil, nil)...)
		arm2 = append(arm2, protocol.RobotarmCmds("wash15 put", nil, nil)...)
		arm2 = append(arm2, protocol.RobotarmCmds("wash15 get", nil, nil)...)
		arm2 = append(arm2, protocol.RobotarmCmds("B15 get", nil, nil)...)
		arm2 = append(arm2, protocol.RobotarmCmds(plate.LidGet(), nil, nil)...)
		arm2 = append(arm2, protocol.RobotarmCmds("incu put", nil, nil)...)
		arm2 = append(arm2, protocol.RobotarmCmds(plate.RTGet(), nil, nil)...)

		registry := loadMovesRegistry()
		cmds := []command.Command{
			command.ForkCmd(command.Sequence(incu...), command.ResourceIncu, command.AssumeNothing),
		}
		cmds = append(cmds, arm...)
		cmds = append(cmds, command.WaitForResourceCmd(command.ResourceIncu, command.AssumeNothing))
		// sleeked and unsleeked arm2 both run in sequence: this procedure
		// times both the fused and unfused move lists for comparison.
		cmds = append(cmds, sleekWith(registry)(command.Sequence(arm2...)))
		cmds = append(cmds, arm2...)

		if err := attend(timeArmIncuDoc); err != nil {
			return err
		}
		return runProgram("time_arm_incu", command.Sequence(cmds...))
	},
}
