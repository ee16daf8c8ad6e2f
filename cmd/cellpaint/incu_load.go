package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pharmbio/cellpaint/internal/command"
	"github.com/pharmbio/cellpaint/internal/protocol"
)

var loadIncuDoc = `
Load the incubator with plates from A hotel, starting at the bottom, to incubator positions L1, ...

Required lab prerequisites:
    1. incubator transfer door: empty!
    2. incubator L1, ...:       empty!
    3. hotel A1-A#:             plates with lid
    4. robotarm:                in neutral position by B hotel
    5. gripper:                 sufficiently open to grab a plate
`

var loadIncuCmd = &cobra.Command{
	Use:   "load-incu N",
	Short: "Load N plates from the A hotel into the incubator",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		numPlates, err := strconv.Atoi(args[0])
		if err != nil || numPlates <= 0 {
			return fmt.Errorf("load-incu: invalid plate count %q", args[0])
		}

		reversedA := make([]string, len(protocol.ALocs))
		for i, loc := range protocol.ALocs {
			reversedA[len(protocol.ALocs)-1-i] = loc
		}

		var cmds []command.Command
		for i := 0; i < numPlates && i < len(protocol.IncuLocs) && i < len(reversedA); i++ {
			incuLoc := protocol.IncuLocs[i]
			outLoc := reversedA[i]
			plateID := fmt.Sprintf("%d", i+1)
			if !strings.HasPrefix(outLoc, "out") {
				return fmt.Errorf("load-incu: expected an out-prefixed slot, got %q", outLoc)
			}
			pos := strings.TrimPrefix(outLoc, "out")
			step := command.Sequence(
				command.RobotarmCmd(fmt.Sprintf("incu_A%s put prep", pos)),
				command.RobotarmCmd(fmt.Sprintf("incu_A%s put transfer to drop neu", pos)),
				command.WaitForResourceCmd(command.ResourceIncu, command.AssumeNothing),
				command.RobotarmCmd(fmt.Sprintf("incu_A%s put transfer from drop neu", pos)),
				command.ForkCmd(command.IncuCmd(command.IncuPut, incuLoc), command.ResourceIncu, command.AssumeNothing),
				command.RobotarmCmd(fmt.Sprintf("incu_A%s put return", pos)),
			).WithMetadata(command.Metadata{PlateID: plateID})
			cmds = append(cmds, step)
		}

		all := []command.Command{command.RobotarmCmd("incu_A21 put-prep")}
		all = append(all, cmds...)
		all = append(all, command.RobotarmCmd("incu_A21 put-return"))
		program := command.Sequence(all...)

		if err := attend(loadIncuDoc); err != nil {
			return err
		}
		return runProgram("load_incu", program)
	},
}
