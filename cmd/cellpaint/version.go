package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pharmbio/cellpaint/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the cellpaint build version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(version.Full())
		return nil
	},
}
