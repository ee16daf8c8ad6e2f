package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pharmbio/cellpaint/internal/command"
	"github.com/pharmbio/cellpaint/internal/deviceclient"
	"github.com/pharmbio/cellpaint/internal/estimator"
	"github.com/pharmbio/cellpaint/internal/eventlog"
	"github.com/pharmbio/cellpaint/internal/executor"
	"github.com/pharmbio/cellpaint/internal/moves"
	"github.com/pharmbio/cellpaint/internal/optimize"
	"github.com/pharmbio/cellpaint/internal/runconfig"
	"github.com/pharmbio/cellpaint/internal/sleek"
	"github.com/pharmbio/cellpaint/internal/status"
	"github.com/pharmbio/cellpaint/pkg/version"
)

func lookupConfig() (*runconfig.Config, error) {
	return runconfig.Lookup(flags.configName)
}

// loadMovesRegistry loads the move-list registry move fusion consults, or
// an empty registry (fusion never matches, so sleek.Program is a no-op) if
// no --moves-file was given or it failed to load.
func loadMovesRegistry() *moves.Registry {
	if flags.movesFile == "" {
		return moves.NewRegistry(nil)
	}
	reg, err := moves.LoadRegistryFromFile(flags.movesFile)
	if err != nil {
		slog.Warn("moves registry not loaded, move fusion disabled", "path", flags.movesFile, "error", err)
		return moves.NewRegistry(nil)
	}
	return reg
}

// sleekWith returns a CellPaintProgram-compatible fuser bound to registry.
func sleekWith(registry *moves.Registry) func(command.Command) command.Command {
	return func(c command.Command) command.Command { return sleek.Program(c, registry) }
}

// loadEstimates loads the historical duration table the planner charges
// every device command against, the way original_source/timings.py's
// module-level `Estimates` is built: history from --timings-file averaged
// per (source, arg), then DefaultOverrides layered on top. A missing or
// unreadable file still yields the override table alone (just as a fresh
// checkout with no timings_v3.1.jsonl yet still has the static overrides),
// rather than failing every run before it can even plan.
func loadEstimates() *estimator.Table {
	overrides := estimator.NewTable(nil).WithOverrides(estimator.DefaultOverrides())
	if flags.timingsFile == "" {
		return overrides
	}
	table, err := estimator.LoadFromFile(flags.timingsFile)
	if err != nil {
		slog.Warn("timings history not loaded, estimates limited to overrides", "path", flags.timingsFile, "error", err)
		return overrides
	}
	return table.WithOverrides(estimator.DefaultOverrides())
}

// runProgram drives one assembled program through assign-ids (inside
// optimize.Build) -> solve -> substitute -> (test-arm-incu filtering) ->
// remove-scheduling-idles -> execute, the way original_source/protocol.py's
// execute_program does, logging to a run-named JSONL file and printing a
// short classification header plus the log path on failure.
func runProgram(name string, program command.Command) error {
	cfg, err := lookupConfig()
	if err != nil {
		return err
	}

	slog.Info("starting run", "name", name, "config", cfg.Name, "version", version.Full())

	estimates := loadEstimates()
	model, err := optimize.Build(program, estimates)
	if err != nil {
		return fmt.Errorf("plan %s: %w", name, err)
	}
	assignment, err := model.Solve()
	if err != nil {
		return fmt.Errorf("plan %s: infeasible schedule: %w", name, err)
	}
	resolved, err := optimize.Substitute(program, assignment)
	if err != nil {
		return fmt.Errorf("plan %s: %w", name, err)
	}

	if cfg.Name == runconfig.TestArmIncu.Name {
		resolved = filterForTestArmIncu(resolved)
	}
	resolved = resolved.RemoveSchedulingIdles()

	if err := os.MkdirAll(flags.logDir, 0o755); err != nil {
		return fmt.Errorf("create log dir %s: %w", flags.logDir, err)
	}
	logPath := filepath.Join(flags.logDir, fmt.Sprintf("event_log_%s_%s_%s.jsonl",
		name, cfg.Name, time.Now().Format("20060102_150405")))
	writer := eventlog.NewWriter(logPath)

	env := deviceclient.EnvFromOS()
	rt := executor.New(cfg, env, writer, estimates)

	var statusServer *status.Server
	if flags.statusAddr != "" {
		statusServer = status.New(flags.statusAddr, rt.RunID, rt)
		go func() {
			if err := statusServer.ListenAndServe(); err != nil {
				slog.Warn("status server stopped", "error", err)
			}
		}()
		defer statusServer.Close()
	}

	ctx := context.Background()
	rt.Start(ctx)
	runErr := rt.Execute(ctx, resolved)
	rt.Stop()

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "%s FAILED: %v\nlog: %s\n", name, runErr, logPath)
		return runErr
	}
	fmt.Printf("%s completed. log: %s\n", name, logPath)
	return nil
}

// attend runs the Runtime Executor's operator confirmation prompt against a
// fresh dry-run Runtime scoped only to this process's stdin, the way every
// commissioning procedure in original_source/protocol.py calls ATTENTION(s)
// before touching hardware.
func attend(doc string) error {
	rt := executor.New(runconfig.DryRun, deviceclient.Env{}, nil, nil)
	return rt.Attention(doc)
}

// filterForTestArmIncu elides every wash/disp/idle leaf and every
// WaitForCheckpoint not named for the incubator slot it's timing, keeping
// incubator leaves, so a test-arm-incu run exercises only the robot arm and
// incubator. Grounded on
// original_source protocol.py's execute_program Filter closure.
func filterForTestArmIncu(program command.Command) command.Command {
	return program.Transform(func(c command.Command) command.Command {
		switch {
		case c.Kind == command.KindWash, c.Kind == command.KindDisp, c.Kind == command.KindIdle:
			return command.Sequence()
		case c.Kind == command.KindWaitForCheckpoint && !strings.Contains(c.Name, "incu #"):
			return command.Sequence()
		default:
			return c
		}
	})
}

// filterForTimeBioteks keeps only what's needed to time the washer and
// dispenser in isolation: every incubator command, incubator Fork/Wait, and
// the "37C" settle Duration are dropped, and robot-arm moves are kept only
// when they touch the wash or disp stations. Grounded on original_source
// protocol.py's time_bioteks filter over program.collect().
func filterForTimeBioteks(program command.Command) command.Command {
	var kept []command.Command
	for _, leaf := range program.Collect() {
		c := leaf.Cmd
		switch {
		case c.Kind == command.KindIncu:
			continue
		case c.Kind == command.KindFork && c.Resource == command.ResourceIncu:
			continue
		case c.Kind == command.KindWaitForResource && c.Resource == command.ResourceIncu:
			continue
		case c.Kind == command.KindDuration && strings.Contains(c.Name, "37C"):
			continue
		case c.Kind == command.KindRobotarm && !strings.Contains(c.Program, "wash") && !strings.Contains(c.Program, "disp"):
			continue
		}
		kept = append(kept, c.WithMetadata(leaf.Meta))
	}
	return command.Sequence(kept...)
}
