package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pharmbio/cellpaint/internal/command"
	"github.com/pharmbio/cellpaint/internal/protocol"
)

var unloadIncuDoc = `
Unload the incubator with plates from incubator positions L1, ..., to A hotel, starting at the bottom.

Required lab prerequisites:
    1. incubator transfer door: empty!
    2. incubator L1, ...:       plates with lid
    3. hotel A1-A#:             empty!
    4. robotarm:                in neutral position by B hotel
    5. gripper:                 sufficiently open to grab a plate
`

var unloadIncuCmd = &cobra.Command{
	Use:   "unload-incu N",
	Short: "Unload N plates from the incubator into the A hotel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		numPlates, err := strconv.Atoi(args[0])
		if err != nil || numPlates <= 0 {
			return fmt.Errorf("unload-incu: invalid plate count %q", args[0])
		}

		plates, err := protocol.DefinePlates([]int{numPlates})
		if err != nil {
			return err
		}

		var cmds []command.Command
		for _, p := range plates {
			if !strings.HasPrefix(p.OutLoc, "out") {
				return fmt.Errorf("unload-incu: expected an out-prefixed slot, got %q", p.OutLoc)
			}
			pos := strings.TrimPrefix(p.OutLoc, "out")
			cmds = append(cmds,
				command.ForkCmd(command.IncuCmd(command.IncuPut, p.IncuLoc), command.ResourceIncu, command.AssumeNothing),
				command.RobotarmCmd(fmt.Sprintf("incu_A%s get prep", pos)),
				command.WaitForResourceCmd(command.ResourceIncu, command.AssumeNothing),
				command.RobotarmCmd(fmt.Sprintf("incu_A%s get transfer", pos)),
				command.RobotarmCmd(fmt.Sprintf("incu_A%s get return", pos)),
			)
		}

		if err := attend(unloadIncuDoc); err != nil {
			return err
		}
		return runProgram("unload_incu", command.Sequence(cmds...))
	},
}
