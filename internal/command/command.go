// Package command implements the closed command algebra described in the
// cell-painter scheduler: a small set of variant nodes (atomic device
// commands, sequences, forks, checkpoints, duration measurements, waits,
// idles) forming a tree with attached metadata, plus the traversal
// operations the protocol builder, move-fusion pass, constraint optimizer,
// and runtime executor all share.
//
// The tree shape mirrors the stage/timeline structures the teacher builds
// for agent execution (pkg/models/timeline.go, pkg/agent/controller), just
// generalized from "LLM iteration events" to "device commands".
package command

import (
	"fmt"

	"github.com/pharmbio/cellpaint/internal/symbolic"
)

// Kind identifies which variant a Command node is.
type Kind int

const (
	KindRobotarm Kind = iota
	KindWash
	KindDisp
	KindIncu
	KindFork
	KindWaitForResource
	KindCheckpoint
	KindDuration
	KindWaitForCheckpoint
	KindIdle
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindRobotarm:
		return "Robotarm"
	case KindWash:
		return "Wash"
	case KindDisp:
		return "Disp"
	case KindIncu:
		return "Incu"
	case KindFork:
		return "Fork"
	case KindWaitForResource:
		return "WaitForResource"
	case KindCheckpoint:
		return "Checkpoint"
	case KindDuration:
		return "Duration"
	case KindWaitForCheckpoint:
		return "WaitForCheckpoint"
	case KindIdle:
		return "Idle"
	case KindSequence:
		return "Sequence"
	default:
		return "Unknown"
	}
}

// Resource names a shared physical device that at most one command may use
// at a time.
type Resource string

const (
	ResourceWash     Resource = "wash"
	ResourceDisp     Resource = "disp"
	ResourceIncu     Resource = "incu"
	ResourceRobotarm Resource = "robotarm"
)

// BiotekMode is the action mode sent to the washer/dispenser adapters.
type BiotekMode string

const (
	ModeRun                BiotekMode = "Run"
	ModeValidate           BiotekMode = "Validate"
	ModeRunValidated       BiotekMode = "RunValidated"
	ModeTestCommunications BiotekMode = "TestCommunications"
)

// IncuAction is the action sent to the incubator adapter.
type IncuAction string

const (
	IncuPut        IncuAction = "put"
	IncuGet        IncuAction = "get"
	IncuGetClimate IncuAction = "get_climate"
)

// Assume is a scheduling hint attached to Fork/WaitForResource describing
// what the author of the protocol expects the resource's state to be.
type Assume string

const (
	AssumeNothing   Assume = "nothing"
	AssumeWillWait  Assume = "will wait"
	AssumeIdle      Assume = "idle"
)

// Command is one node of the command tree. Only the fields relevant to Kind
// are meaningful; this mirrors the teacher's config structs (one struct,
// many optional fields gated by a discriminant) rather than a Go interface
// per variant, which would make the bottom-up Transform pass substantially
// more verbose for no behavioral gain here.
type Command struct {
	Kind     Kind
	Metadata Metadata

	// KindRobotarm
	Program string

	// KindWash / KindDisp
	ProtocolPath string
	Mode         BiotekMode

	// KindIncu
	IncuAction IncuAction
	Loc        string

	// KindFork / KindWaitForResource
	Inner    *Command
	Resource Resource
	Assume   Assume

	// KindCheckpoint / KindDuration / KindWaitForCheckpoint
	Name             string
	OptWeight        float64
	Exactly          *symbolic.SymVar
	Wake             symbolic.SymVar
	ReportBehindTime bool

	// KindIdle
	Secs              symbolic.SymVar
	OnlyForScheduling bool

	// KindSequence
	Children []Command
}

// RobotarmCmd runs one named move list on the robot arm.
func RobotarmCmd(program string) Command {
	return Command{Kind: KindRobotarm, Program: program}
}

// WashCmd runs the washer with the given protocol path and mode.
func WashCmd(protocolPath string, mode BiotekMode) Command {
	return Command{Kind: KindWash, ProtocolPath: protocolPath, Mode: mode}
}

// DispCmd runs the dispenser with the given protocol path and mode.
func DispCmd(protocolPath string, mode BiotekMode) Command {
	return Command{Kind: KindDisp, ProtocolPath: protocolPath, Mode: mode}
}

// IncuCmd runs one incubator action against a slot.
func IncuCmd(action IncuAction, loc string) Command {
	return Command{Kind: KindIncu, IncuAction: action, Loc: loc}
}

// ForkCmd hands cmd off to run on a background worker owning resource.
func ForkCmd(cmd Command, resource Resource, assume Assume) Command {
	inner := cmd
	return Command{Kind: KindFork, Inner: &inner, Resource: resource, Assume: assume}
}

// WaitForResourceCmd blocks until resource's worker queue is empty and ready.
func WaitForResourceCmd(resource Resource, assume Assume) Command {
	return Command{Kind: KindWaitForResource, Resource: resource, Assume: assume}
}

// CheckpointCmd records a named wall-time marker.
func CheckpointCmd(name string) Command {
	return Command{Kind: KindCheckpoint, Name: name}
}

// DurationCmd measures the interval since the matching Checkpoint. exactly,
// if non-nil, constrains the interval to equal a SymVar at plan time.
func DurationCmd(name string, optWeight float64, exactly *symbolic.SymVar) Command {
	return Command{Kind: KindDuration, Name: name, OptWeight: optWeight, Exactly: exactly}
}

// WaitForCheckpointCmd blocks until time_of(name) + wake is reached.
func WaitForCheckpointCmd(name string, wake symbolic.SymVar, reportBehindTime bool) Command {
	return Command{Kind: KindWaitForCheckpoint, Name: name, Wake: wake, ReportBehindTime: reportBehindTime}
}

// IdleCmd sleeps for secs. onlyForScheduling marks the delay as optimizer
// slack rather than a real wait, so RemoveSchedulingIdles can drop it.
func IdleCmd(secs symbolic.SymVar, onlyForScheduling bool) Command {
	return Command{Kind: KindIdle, Secs: secs, OnlyForScheduling: onlyForScheduling}
}

// Sequence composes children in order. It is associative with the empty
// sequence as identity: nested Sequence children that carry no metadata of
// their own are flattened one level so Sequence(Sequence(a,b),c) ==
// Sequence(a,b,c); a nested Sequence with metadata stays one child, so
// Collect still merges that metadata into its leaves.
func Sequence(children ...Command) Command {
	flat := make([]Command, 0, len(children))
	for _, c := range children {
		if c.Kind == KindSequence && c.Metadata == (Metadata{}) {
			flat = append(flat, c.Children...)
		} else {
			flat = append(flat, c)
		}
	}
	return Command{Kind: KindSequence, Children: flat}
}

// IsEmptySequence reports whether c is the identity element for Sequence.
func (c Command) IsEmptySequence() bool {
	return c.Kind == KindSequence && len(c.Children) == 0
}

// RequiredResource returns the resource a leaf command occupies, or "" for
// nodes that don't touch a device (Checkpoint, Duration, Idle, Sequence).
func (c Command) RequiredResource() Resource {
	switch c.Kind {
	case KindRobotarm:
		return ResourceRobotarm
	case KindWash:
		return ResourceWash
	case KindDisp:
		return ResourceDisp
	case KindIncu:
		return ResourceIncu
	case KindFork, KindWaitForResource:
		return c.Resource
	default:
		return ""
	}
}

func (c Command) String() string {
	switch c.Kind {
	case KindRobotarm:
		return fmt.Sprintf("RobotarmCmd(%s)", c.Program)
	case KindWash:
		return fmt.Sprintf("WashCmd(%s, %s)", c.ProtocolPath, c.Mode)
	case KindDisp:
		return fmt.Sprintf("DispCmd(%s, %s)", c.ProtocolPath, c.Mode)
	case KindIncu:
		return fmt.Sprintf("IncuCmd(%s, %s)", c.IncuAction, c.Loc)
	case KindFork:
		return fmt.Sprintf("Fork(%s, %s)", c.Inner, c.Resource)
	case KindWaitForResource:
		return fmt.Sprintf("WaitForResource(%s)", c.Resource)
	case KindCheckpoint:
		return fmt.Sprintf("Checkpoint(%s)", c.Name)
	case KindDuration:
		return fmt.Sprintf("Duration(%s)", c.Name)
	case KindWaitForCheckpoint:
		return fmt.Sprintf("WaitForCheckpoint(%s, %s)", c.Name, c.Wake)
	case KindIdle:
		return fmt.Sprintf("Idle(%s)", c.Secs)
	case KindSequence:
		return fmt.Sprintf("Sequence(%d)", len(c.Children))
	default:
		return "?"
	}
}
