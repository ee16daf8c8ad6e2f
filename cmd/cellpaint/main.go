// Command cellpaint is the thin CLI collaborator that wires the protocol
// builder, constraint optimizer, and runtime executor together and drives
// one named procedure per invocation: the standard cell-painting run or one
// of the lab's standalone commissioning/maintenance procedures.
//
// Grounded on original_source/protocol.py's module-level procedure
// functions (time_bioteks, time_arm_incu, lid_stress_test, load_incu,
// unload_incu, test_circuit, test_comm, cell_paint) and its
// execute_program/make_runtime flow, and on cmd/tarsy/main.go's flag
// parsing + godotenv.Load + log.Fatalf startup idiom, generalized from one
// fixed server process into a cobra multi-command CLI the way
// cmd/bd's subcommand-per-file layout organizes BeadsLog's CLI surface.
package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	configName  string
	logDir      string
	movesFile   string
	statusAddr  string
	envFile     string
	timingsFile string
}

var flags globalFlags

var rootCmd = &cobra.Command{
	Use:   "cellpaint",
	Short: "Automated cell-painting run controller",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(flags.envFile); err != nil {
			log.Printf("warning: could not load %s: %v (continuing with existing environment)", flags.envFile, err)
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flags.configName, "config", "dry-run",
		"run configuration: live, test-all, test-arm-incu, simulator, or dry-run")
	rootCmd.PersistentFlags().StringVar(&flags.logDir, "log-dir", "logs", "directory for the run's event log file")
	rootCmd.PersistentFlags().StringVar(&flags.movesFile, "moves-file", "", "YAML move-list registry for robot-arm move fusion (sleek); disabled if unset")
	rootCmd.PersistentFlags().StringVar(&flags.statusAddr, "status-addr", "", "address to serve GET /healthz on during the run; disabled if unset")
	rootCmd.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "path to a .env file with ROBOT_IP/INCU_URL/BIOTEK_URL")
	rootCmd.PersistentFlags().StringVar(&flags.timingsFile, "timings-file", "timings_v3.1.jsonl",
		"historical JSONL duration samples the planner estimates device command durations from")

	rootCmd.AddCommand(cellPaintCmd)
	rootCmd.AddCommand(timeBioteksCmd)
	rootCmd.AddCommand(timeArmIncuCmd)
	rootCmd.AddCommand(lidStressTestCmd)
	rootCmd.AddCommand(loadIncuCmd)
	rootCmd.AddCommand(unloadIncuCmd)
	rootCmd.AddCommand(testCommCmd)
	rootCmd.AddCommand(testCircuitCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
