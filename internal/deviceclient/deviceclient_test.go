package deviceclient

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRobotarm listens once, reads the uploaded program name, and writes
// back the frames given, one per line, then closes.
func fakeRobotarm(t *testing.T, frames ...string) Env {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		reader := bufio.NewReader(conn)
		_, _ = reader.ReadString('\n')
		for _, f := range frames {
			_, _ = conn.Write([]byte(f + "\n"))
		}
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return Env{RobotarmHost: host, RobotarmPort: port}
}

func TestRunProgramSucceedsOnCompletionFrame(t *testing.T) {
	env := fakeRobotarm(t, "busy", "Program wash get completed")
	client := NewRobotarmClient(env)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := client.RunProgram(ctx, "wash get")
	assert.NoError(t, err)
}

func TestRunProgramFailsOnSyntaxError(t *testing.T) {
	env := fakeRobotarm(t, "syntax_error_on_line:12")
	client := NewRobotarmClient(env)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := client.RunProgram(ctx, "wash get")
	assert.Error(t, err)
}

func TestRunProgramFailsOnSecondaryProgramException(t *testing.T) {
	env := fakeRobotarm(t, "SECONDARY_PROGRAM_EXCEPTION Protective stop")
	client := NewRobotarmClient(env)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := client.RunProgram(ctx, "wash get")
	assert.Error(t, err)
}

func TestRunProgramFailsOnProgramStoppedFrame(t *testing.T) {
	env := fakeRobotarm(t, "PROGRAM_XXX_STOPPEDwash get")
	client := NewRobotarmClient(env)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := client.RunProgram(ctx, "wash get")
	assert.Error(t, err)
}

func TestRunProgramFailsWhenConnectionClosesWithoutCompletion(t *testing.T) {
	env := fakeRobotarm(t, "busy")
	client := NewRobotarmClient(env)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := client.RunProgram(ctx, "wash get")
	assert.Error(t, err)
}
