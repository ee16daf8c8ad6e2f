// Package runconfig holds the five named run configurations the cell
// painting controller can be started with, and the wall-clock /
// fast-forward time source that the executor's Idle and WaitForCheckpoint
// handling reads.
//
// Grounded directly on original_source/robots.py's Config dataclass, the
// module-level `configs` dict, and the Time helper; ported from Python's
// frozen dataclass + Literal union into a Go struct with string-typed enum
// fields, the same pattern the teacher uses for config.TransportConfig's
// discriminant fields (pkg/config).
package runconfig

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// TimeMode selects whether Idle/Sleep blocks in real wall-clock time or
// advances a virtual clock instantly ("fast forward", used by dry runs and
// tests so a multi-hour protocol plans in milliseconds).
type TimeMode string

const (
	TimeModeWall        TimeMode = "wall"
	TimeModeFastForward TimeMode = "fast forward"
)

// BiotekMode selects how wash/disp Fork commands are actually dispatched.
type BiotekMode string

const (
	BiotekModeNoop          BiotekMode = "noop"
	BiotekModeExecute       BiotekMode = "execute"
	BiotekModeExecuteShort  BiotekMode = "execute short"
)

// IncuMode selects how incubator commands are dispatched.
type IncuMode string

const (
	IncuModeNoop    IncuMode = "noop"
	IncuModeExecute IncuMode = "execute"
)

// RobotarmMode selects how robot-arm commands are dispatched.
type RobotarmMode string

const (
	RobotarmModeNoop           RobotarmMode = "noop"
	RobotarmModeExecute        RobotarmMode = "execute"
	RobotarmModeExecuteNoGripper RobotarmMode = "execute no gripper"
)

// Config is one named run configuration: which time source to use, and how
// literally to dispatch device commands to hardware.
type Config struct {
	Name         string
	TimeMode     TimeMode
	BiotekMode   BiotekMode
	IncuMode     IncuMode
	RobotarmMode RobotarmMode

	// skippedTime accumulates the virtual seconds elapsed under fast-forward
	// time mode. Stored as an int64 of nanoseconds via atomic ops so Sleep
	// can be called concurrently from multiple device workers.
	skippedTime atomic.Int64
}

// Named run configurations, verbatim from robots.py's `configs` dict.
var (
	Live = &Config{
		Name: "live", TimeMode: TimeModeWall,
		BiotekMode: BiotekModeExecute, IncuMode: IncuModeExecute, RobotarmMode: RobotarmModeExecute,
	}
	TestAll = &Config{
		Name: "test-all", TimeMode: TimeModeFastForward,
		BiotekMode: BiotekModeExecuteShort, IncuMode: IncuModeExecute, RobotarmMode: RobotarmModeExecute,
	}
	TestArmIncu = &Config{
		Name: "test-arm-incu", TimeMode: TimeModeFastForward,
		BiotekMode: BiotekModeNoop, IncuMode: IncuModeExecute, RobotarmMode: RobotarmModeExecute,
	}
	Simulator = &Config{
		Name: "simulator", TimeMode: TimeModeFastForward,
		BiotekMode: BiotekModeNoop, IncuMode: IncuModeNoop, RobotarmMode: RobotarmModeExecuteNoGripper,
	}
	DryRun = &Config{
		Name: "dry-run", TimeMode: TimeModeFastForward,
		BiotekMode: BiotekModeNoop, IncuMode: IncuModeNoop, RobotarmMode: RobotarmModeNoop,
	}
)

// Named indexes every preset by name for CLI flag lookup.
var Named = map[string]*Config{
	Live.Name:        Live,
	TestAll.Name:     TestAll,
	TestArmIncu.Name: TestArmIncu,
	Simulator.Name:   Simulator,
	DryRun.Name:      DryRun,
}

// Lookup returns the named preset, or an error if unknown.
func Lookup(name string) (*Config, error) {
	cfg, ok := Named[name]
	if !ok {
		return nil, fmt.Errorf("runconfig: unknown config %q", name)
	}
	return cfg, nil
}

// Now returns the current time, advanced by any fast-forwarded seconds
// accumulated so far. Under wall-clock mode no time may ever have been
// skipped.
func (c *Config) Now() time.Time {
	skipped := time.Duration(c.skippedTime.Load())
	if c.TimeMode == TimeModeWall && skipped != 0 {
		panic("runconfig: wall-clock config accumulated skipped time")
	}
	return time.Now().Add(skipped)
}

// Sleep waits secs seconds, either by actually blocking (wall-clock mode)
// or by advancing the virtual clock instantly (fast-forward mode). A
// negative secs means the caller is already behind schedule: it logs a
// warning and returns immediately rather than sleeping backwards.
func (c *Config) Sleep(secs float64) {
	if secs < 0 {
		slog.Warn("behind time", "seconds", -secs)
		return
	}
	if c.TimeMode == TimeModeWall {
		time.Sleep(time.Duration(secs * float64(time.Second)))
		return
	}
	c.skippedTime.Add(int64(time.Duration(secs * float64(time.Second))))
}
