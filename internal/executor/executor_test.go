package executor

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmbio/cellpaint/internal/command"
	"github.com/pharmbio/cellpaint/internal/deviceclient"
	"github.com/pharmbio/cellpaint/internal/estimator"
	"github.com/pharmbio/cellpaint/internal/runconfig"
	"github.com/pharmbio/cellpaint/internal/symbolic"
)

func newTestRuntime() *Runtime {
	estimates := estimator.NewTable(map[estimator.Key]float64{
		{Source: estimator.SourceWash, Arg: "RunValidated p.LHC"}: 5.0,
	})
	return New(runconfig.DryRun, deviceclient.Env{}, nil, estimates)
}

func TestExecuteRecordsCheckpointsInOrder(t *testing.T) {
	rt := newTestRuntime()
	ctx := context.Background()
	rt.Start(ctx)
	defer rt.Stop()

	program := command.Sequence(
		command.CheckpointCmd("start"),
		command.IdleCmd(symbolic.Const(0), false),
		command.CheckpointCmd("end"),
	)

	err := rt.Execute(ctx, program)
	require.NoError(t, err)

	startT, ok := rt.checkpointTime("start")
	require.True(t, ok)
	endT, ok := rt.checkpointTime("end")
	require.True(t, ok)
	assert.GreaterOrEqual(t, endT, startT)
}

func TestExecuteDuplicateCheckpointIsFatal(t *testing.T) {
	rt := newTestRuntime()
	ctx := context.Background()
	rt.Start(ctx)
	defer rt.Stop()

	program := command.Sequence(
		command.CheckpointCmd("dup"),
		command.CheckpointCmd("dup"),
	)

	err := rt.Execute(ctx, program)
	assert.Error(t, err)
	assert.True(t, rt.Aborted())
}

func TestExecuteDurationWithoutCheckpointIsFatal(t *testing.T) {
	rt := newTestRuntime()
	ctx := context.Background()
	rt.Start(ctx)
	defer rt.Stop()

	program := command.Sequence(command.DurationCmd("ghost", 1, nil))

	err := rt.Execute(ctx, program)
	assert.Error(t, err)
}

func TestExecuteForkThenWaitForResourceReturnsReady(t *testing.T) {
	rt := newTestRuntime()
	ctx := context.Background()
	rt.Start(ctx)
	defer rt.Stop()

	program := command.Sequence(
		command.ForkCmd(command.WashCmd("p.LHC", command.ModeRunValidated), command.ResourceWash, command.AssumeIdle),
		command.WaitForResourceCmd(command.ResourceWash, command.AssumeNothing),
		command.CheckpointCmd("done"),
	)

	err := rt.Execute(ctx, program)
	require.NoError(t, err)
	assert.True(t, rt.workers[command.ResourceWash].IsReady())
}

func TestExecuteWaitForCheckpointDoesNotBlockUnderFastForward(t *testing.T) {
	rt := newTestRuntime()
	ctx := context.Background()
	rt.Start(ctx)
	defer rt.Stop()

	program := command.Sequence(
		command.CheckpointCmd("cp"),
		command.WaitForCheckpointCmd("cp", symbolic.Const(5), true),
	)

	err := rt.Execute(ctx, program)
	require.NoError(t, err)
}

func TestExecuteRobotarmUnderNoopAdvancesVirtualClockByEstimate(t *testing.T) {
	estimates := estimator.NewTable(map[estimator.Key]float64{
		{Source: estimator.SourceRobotarm, Arg: "wash get"}: 7.0,
	})
	rt := New(runconfig.DryRun, deviceclient.Env{}, nil, estimates)
	ctx := context.Background()
	rt.Start(ctx)
	defer rt.Stop()

	program := command.Sequence(
		command.CheckpointCmd("start"),
		command.RobotarmCmd("wash get"),
		command.CheckpointCmd("end"),
	)

	err := rt.Execute(ctx, program)
	require.NoError(t, err)

	startT, _ := rt.checkpointTime("start")
	endT, _ := rt.checkpointTime("end")
	assert.InDelta(t, 7.0, endT-startT, 0.001)
}

func TestExecuteRobotarmUnderNoopWithNoEstimateIsFatal(t *testing.T) {
	rt := New(runconfig.DryRun, deviceclient.Env{}, nil, nil)
	ctx := context.Background()
	rt.Start(ctx)
	defer rt.Stop()

	program := command.Sequence(command.RobotarmCmd("never seen before"))

	err := rt.Execute(ctx, program)
	assert.Error(t, err)
}

func TestAttentionDeclineAbortsRun(t *testing.T) {
	rt := newTestRuntime()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	orig := os.Stdin
	os.Stdin = r
	defer func() { os.Stdin = orig }()

	_, _ = w.WriteString("n\n")
	w.Close()

	err = rt.Attention("test abort prompt")
	assert.Error(t, err)
	assert.True(t, rt.Aborted())
}
