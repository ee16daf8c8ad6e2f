// Package executor implements the Runtime Executor: a single cooperative
// main thread of control that walks an optimized command tree leaf by leaf,
// dispatching device commands, forking work onto per-resource background
// workers, and tracking checkpoints/durations in the shared event log.
//
// Grounded on original_source/protocol.py's execute_program (the
// assign_ids -> optimize -> test-arm-incu filtering -> remove_scheduling_idles
// -> execute flow) and its ATTENTION(s) operator-confirmation helper, and on
// pkg/queue/pool.go's shape for owning a set of long-lived worker goroutines
// from one coordinating value. The fine-grained dispatch loop (one mutex
// guarding a small state map, suspension points checked between leaves) is
// grounded directly on spec.md §4.6/§5.
package executor

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pharmbio/cellpaint/internal/command"
	"github.com/pharmbio/cellpaint/internal/device"
	"github.com/pharmbio/cellpaint/internal/deviceclient"
	"github.com/pharmbio/cellpaint/internal/estimator"
	"github.com/pharmbio/cellpaint/internal/eventlog"
	"github.com/pharmbio/cellpaint/internal/runconfig"
)

// Runtime holds everything the executor needs to drive one run: device
// worker handles, transport clients, the selected config, and the mutable
// shared state spec.md §3 calls out (checkpoints, resource_busy via the
// workers themselves, log).
type Runtime struct {
	RunID string
	cfg   *runconfig.Config
	log   *eventlog.Writer
	start time.Time

	washClient     *deviceclient.BiotekClient
	dispClient     *deviceclient.BiotekClient
	incuClient     *deviceclient.IncuClient
	robotarmClient *deviceclient.RobotarmClient

	estimates *estimator.Table

	mu          sync.Mutex
	checkpoints map[string]float64

	workers map[command.Resource]*device.Worker
	aborted atomic.Bool
}

// New builds a Runtime wired to cfg's execution modes and env's device
// addresses, with one worker per forkable resource (wash, disp, incu).
// estimates supplies the simulated-time advance device commands take under
// a "noop" dispatch mode (simulator/dry-run); a nil estimates is treated as
// an empty table, so under a noop mode every device command that has an
// estimator key fails with estimator.ErrNoEstimate.
func New(cfg *runconfig.Config, env deviceclient.Env, w *eventlog.Writer, estimates *estimator.Table) *Runtime {
	if estimates == nil {
		estimates = estimator.NewTable(nil)
	}
	rt := &Runtime{
		RunID:          uuid.NewString(),
		cfg:            cfg,
		log:            w,
		start:          time.Now(),
		checkpoints:    make(map[string]float64),
		workers:        make(map[command.Resource]*device.Worker),
		washClient:     deviceclient.NewBiotekClient(env, "wash"),
		dispClient:     deviceclient.NewBiotekClient(env, "disp"),
		incuClient:     deviceclient.NewIncuClient(env),
		robotarmClient: deviceclient.NewRobotarmClient(env),
		estimates:      estimates,
	}

	rt.workers[command.ResourceWash] = device.NewWorker(command.ResourceWash, rt.workerExecute)
	rt.workers[command.ResourceDisp] = device.NewWorker(command.ResourceDisp, rt.workerExecute)
	rt.workers[command.ResourceIncu] = device.NewWorker(command.ResourceIncu, rt.workerExecute)

	return rt
}

// workerExecute is the Execute func every resource worker runs a Fork's
// inner tree through: the same leaf interpreter the main thread uses,
// so Checkpoint/Idle/Duration nodes nested inside a Fork behave identically
// whether reached on the main thread or a worker's goroutine.
func (rt *Runtime) workerExecute(ctx context.Context, cmd command.Command) error {
	return rt.runLeaf(ctx, cmd, command.Metadata{})
}

// Start launches every resource worker's goroutine.
func (rt *Runtime) Start(ctx context.Context) {
	for _, w := range rt.workers {
		w.Start(ctx)
	}
}

// Stop signals every worker to drain and waits for them all to exit,
// mirroring pkg/queue/pool.go's Stop using an errgroup to join concurrently
// rather than sequentially (workers may still be mid-request).
func (rt *Runtime) Stop() {
	var g errgroup.Group
	for _, w := range rt.workers {
		w := w
		g.Go(func() error {
			w.Stop()
			return nil
		})
	}
	_ = g.Wait()
	if rt.log != nil {
		_ = rt.log.Close()
	}
}

// Now returns the run's current time under the configured time mode.
func (rt *Runtime) Now() time.Time { return rt.cfg.Now() }

func (rt *Runtime) elapsed() float64 {
	return rt.Now().Sub(rt.start).Seconds()
}

// Aborted reports whether a fatal fault or user abort has already halted
// the run — checked at every main-thread suspension point.
func (rt *Runtime) Aborted() bool { return rt.aborted.Load() }

// Workers exposes the resource worker handles to internal/status, which
// reports their ready/busy state over /healthz.
func (rt *Runtime) Workers() map[command.Resource]*device.Worker { return rt.workers }

func (rt *Runtime) abort() { rt.aborted.Store(true) }

func (rt *Runtime) append(e eventlog.Entry) {
	if rt.log == nil {
		return
	}
	e.LogTime = rt.Now().Format(time.RFC3339Nano)
	e.T = rt.elapsed()
	if err := rt.log.Append(e); err != nil {
		slog.Error("eventlog append failed", "error", err)
	}
}

// Execute runs program to completion on the main thread, dispatching forked
// device commands to their resource's worker. It stops at the first fatal
// fault (device error, invariant violation, or user abort) and returns it.
func (rt *Runtime) Execute(ctx context.Context, program command.Command) error {
	rt.append(eventlog.Entry{Metadata: eventlog.Metadata{Section: "run-start"}, Msg: "run start"})
	for _, leaf := range program.Collect() {
		if rt.Aborted() {
			return fmt.Errorf("executor: run aborted")
		}
		if err := rt.runLeaf(ctx, leaf.Cmd, leaf.Meta); err != nil {
			rt.abort()
			rt.append(eventlog.Entry{
				Metadata: eventlog.Metadata{Metadata: leaf.Meta},
				Err:      &eventlog.Error{Message: err.Error(), Fatal: true},
			})
			return err
		}
	}
	return nil
}

// runLeaf interprets one collected leaf. It is also the closure a device
// Worker runs a Fork's inner tree through, so Fork's own nested
// Checkpoint/Idle/Duration/device leaves get the identical interpretation,
// just on that resource's goroutine instead of the main one.
func (rt *Runtime) runLeaf(ctx context.Context, cmd command.Command, meta command.Metadata) error {
	switch cmd.Kind {
	case command.KindRobotarm:
		return rt.execRobotarm(ctx, cmd, meta)
	case command.KindWash:
		return rt.execBiotek(ctx, rt.washClient, cmd)
	case command.KindDisp:
		return rt.execBiotek(ctx, rt.dispClient, cmd)
	case command.KindIncu:
		return rt.execIncu(ctx, cmd)
	case command.KindFork:
		return rt.execFork(cmd, meta)
	case command.KindWaitForResource:
		return rt.execWaitForResource(cmd)
	case command.KindCheckpoint:
		return rt.execCheckpoint(cmd, meta)
	case command.KindDuration:
		return rt.execDuration(cmd, meta)
	case command.KindWaitForCheckpoint:
		return rt.execWaitForCheckpoint(cmd)
	case command.KindIdle:
		return rt.execIdle(cmd)
	case command.KindSequence:
		for i := range cmd.Children {
			if err := rt.runLeaf(ctx, cmd.Children[i], meta); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

func (rt *Runtime) execCheckpoint(cmd command.Command, meta command.Metadata) error {
	rt.mu.Lock()
	if _, exists := rt.checkpoints[cmd.Name]; exists {
		rt.mu.Unlock()
		return fmt.Errorf("executor: duplicate checkpoint %q", cmd.Name)
	}
	now := rt.elapsed()
	rt.checkpoints[cmd.Name] = now
	rt.mu.Unlock()

	rt.append(eventlog.Entry{
		Metadata:    eventlog.Metadata{Metadata: meta},
		CommandKind: "checkpoint",
		Name:        cmd.Name,
	})
	return nil
}

func (rt *Runtime) checkpointTime(name string) (float64, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	t, ok := rt.checkpoints[name]
	return t, ok
}

func (rt *Runtime) execDuration(cmd command.Command, meta command.Metadata) error {
	start, ok := rt.checkpointTime(cmd.Name)
	if !ok {
		return fmt.Errorf("executor: Duration(%q) has no matching Checkpoint", cmd.Name)
	}
	rt.append(eventlog.Entry{
		Metadata:    eventlog.Metadata{Metadata: meta},
		CommandKind: "duration",
		Name:        cmd.Name,
		T0:          &start,
	})
	return nil
}

func (rt *Runtime) execWaitForCheckpoint(cmd command.Command) error {
	start, ok := rt.checkpointTime(cmd.Name)
	if !ok {
		return fmt.Errorf("executor: WaitForCheckpoint(%q) has no matching Checkpoint", cmd.Name)
	}
	wake, err := cmd.Wake.Resolve(nil)
	if err != nil {
		return fmt.Errorf("executor: WaitForCheckpoint(%q): %w", cmd.Name, err)
	}
	target := start + wake
	deficit := target - rt.elapsed()
	if deficit < 0 && cmd.ReportBehindTime {
		slog.Warn("behind time", "checkpoint", cmd.Name, "deficit_seconds", -deficit)
	}
	if deficit > 0 {
		rt.cfg.Sleep(deficit)
	}
	return nil
}

func (rt *Runtime) execIdle(cmd command.Command) error {
	secs, err := cmd.Secs.Resolve(nil)
	if err != nil {
		return fmt.Errorf("executor: Idle: %w", err)
	}
	rt.cfg.Sleep(secs)
	return nil
}

func (rt *Runtime) execFork(cmd command.Command, meta command.Metadata) error {
	w, ok := rt.workers[cmd.Resource]
	if !ok {
		return fmt.Errorf("executor: fork onto unknown resource %q", cmd.Resource)
	}
	if cmd.Assume == command.AssumeIdle && !w.IsReady() {
		return fmt.Errorf("executor: Fork(%s, assume=idle) but resource is busy", cmd.Resource)
	}
	inner := command.Command{Kind: command.KindSequence}
	if cmd.Inner != nil {
		inner = *cmd.Inner
	}

	done := make(chan error, 1)
	w.Submit(device.Job{Cmd: inner, OnFinished: func(err error) { done <- err }})

	rt.append(eventlog.Entry{
		Metadata:    eventlog.Metadata{Metadata: meta},
		CommandKind: "fork",
		Name:        string(cmd.Resource),
	})

	go func() {
		if err := <-done; err != nil {
			rt.abort()
			rt.append(eventlog.Entry{
				Metadata: eventlog.Metadata{Metadata: meta},
				Err:      &eventlog.Error{Message: err.Error(), Fatal: true},
			})
		}
	}()
	return nil
}

func (rt *Runtime) execWaitForResource(cmd command.Command) error {
	w, ok := rt.workers[cmd.Resource]
	if !ok {
		return fmt.Errorf("executor: WaitForResource on unknown resource %q", cmd.Resource)
	}
	w.WaitIdle()
	if rt.Aborted() {
		return fmt.Errorf("executor: run aborted while waiting for %s", cmd.Resource)
	}
	return nil
}

func (rt *Runtime) execRobotarm(ctx context.Context, cmd command.Command, meta command.Metadata) error {
	start := rt.elapsed()
	var err error
	switch rt.cfg.RobotarmMode {
	case runconfig.RobotarmModeNoop:
		err = rt.simulate(cmd)
	case runconfig.RobotarmModeExecute, runconfig.RobotarmModeExecuteNoGripper:
		err = rt.robotarmClient.RunProgram(ctx, cmd.Program)
	default:
		err = fmt.Errorf("executor: unknown robotarm mode %q", rt.cfg.RobotarmMode)
	}
	rt.append(eventlog.Entry{
		Metadata:    eventlog.Metadata{Metadata: meta},
		CommandKind: "robotarm",
		Name:        cmd.Program,
		T0:          &start,
	})
	return err
}

// execBiotek handles a Wash/Disp leaf: direct dispatch with retry-on-6061,
// whether it was reached bare (unusual, but honored the same way) or inside
// a Fork's inner tree running on that resource's worker goroutine.
func (rt *Runtime) execBiotek(ctx context.Context, client *deviceclient.BiotekClient, cmd command.Command) error {
	if rt.cfg.BiotekMode == runconfig.BiotekModeNoop {
		return rt.simulate(cmd)
	}
	return runBiotekWithRetry(ctx, client, cmd.ProtocolPath)
}

func (rt *Runtime) execIncu(ctx context.Context, cmd command.Command) error {
	if rt.cfg.IncuMode == runconfig.IncuModeNoop {
		return rt.simulate(cmd)
	}
	switch cmd.IncuAction {
	case command.IncuPut:
		return rt.incuClient.Put(ctx, cmd.Loc)
	case command.IncuGet:
		return rt.incuClient.Get(ctx, cmd.Loc)
	case command.IncuGetClimate:
		_, err := rt.incuClient.GetClimate(ctx)
		return err
	default:
		return fmt.Errorf("executor: unknown incubator action %q", cmd.IncuAction)
	}
}

// simulate advances the virtual clock by cmd's estimated duration instead
// of actually dispatching it, the way a "noop" config (simulator/dry-run)
// times a device command it never really sends, per spec.md §4.9/§5. The
// same estimates table the planner charged this command against at Build
// time is consulted here, so a run that planned successfully always finds
// its estimate again at execution time.
func (rt *Runtime) simulate(cmd command.Command) error {
	source, arg, ok := estimator.KeyForCommand(cmd)
	if !ok {
		return nil
	}
	secs, err := rt.estimates.Estimate(source, arg)
	if err != nil {
		return fmt.Errorf("executor: simulate %s: %w", cmd, err)
	}
	rt.cfg.Sleep(secs)
	return nil
}

// runBiotekWithRetry dispatches one LHC_RunProtocol call, retrying
// indefinitely (with logging) on the 6061 transient signature, as
// original_source/robots.py's Biotek.loop does.
func runBiotekWithRetry(ctx context.Context, client *deviceclient.BiotekClient, path string) error {
	for {
		res, err := client.RunProtocol(ctx, path)
		if err != nil {
			return fmt.Errorf("executor: biotek request: %w", err)
		}
		done, retry, classifyErr := device.ClassifyBiotekResult(res.Out.Status, res.Out.Details)
		if done {
			return nil
		}
		if retry {
			slog.Warn("retrying transient biotek error", "details", res.Out.Details)
			continue
		}
		return classifyErr
	}
}

// Attention implements protocol.py's ATTENTION(s): it prints a boxed
// warning and blocks for an operator "y" confirmation, returning an error
// (user abort) for anything else. The box is always drawn on stderr; the
// confirmation itself is always read from stdin, so scripted/dry-run
// invocations can still answer it without a TTY attached.
func (rt *Runtime) Attention(msg string) error {
	border := strings.Repeat("=", len(msg)+4)
	fmt.Fprintf(os.Stderr, "%s\n= %s =\n%s\ncontinue? [y/N] ", border, msg, border)

	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	if answer != "y" && answer != "yes" {
		rt.abort()
		return fmt.Errorf("executor: user declined ATTENTION prompt: %s", msg)
	}
	return nil
}
