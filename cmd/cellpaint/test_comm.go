package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pharmbio/cellpaint/internal/protocol"
)

var testCommCmd = &cobra.Command{
	Use:   "test-comm",
	Short: "Test communication with robot arm, washer, dispenser, and incubator",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Testing communication with robotarm, washer, dispenser and incubator.")
		if err := runProgram("test_comm", protocol.TestCommProgram); err != nil {
			return err
		}
		fmt.Println("Communication tests ok.")
		return nil
	},
}
