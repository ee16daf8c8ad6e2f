// Package optimize assigns concrete seconds to every free symbolic.SymVar
// left open by the protocol builder, producing a fully-resolved command
// tree and an expected_end time for every node, or reporting infeasibility
// as a planner fault.
//
// Grounded on spec.md's constraint-optimizer description: every SymVar
// becomes a non-negative real unknown, start/end of each node are related
// by linear equations, per-numbered-incubation-slot windows require exact
// equality between a wash-end and the next wash-start, and the objective
// minimizes makespan plus a weighted sum of Duration-vs-Checkpoint gaps.
// There is no LP library anywhere in the retrieved example pack, so this
// is intentionally solved with the plan's own suggested fallback: the
// problem reduces to a system of difference constraints (every inequality
// has the shape a >= b + w — "can't start before its predecessor/required
// checkpoint is reached"), which a longest-path relaxation pass
// (internal/optimize/solve.go) solves exactly and reports an unbounded
// cycle as infeasibility — the textbook "longest-path-with-slack" solver
// the plan explicitly allows in place of a general simplex.
//
// Solve returns the earliest feasible value of every graph variable, which
// minimizes the makespan. Every free SymVar resolves to 0, and a Duration's
// OptWeight does not enter the solve: the weighted Duration-vs-Checkpoint
// term is not optimized.
package optimize

import (
	"fmt"

	"github.com/pharmbio/cellpaint/internal/command"
	"github.com/pharmbio/cellpaint/internal/estimator"
	"github.com/pharmbio/cellpaint/internal/symbolic"
)

// zeroVar is the fixed origin every other variable is measured from.
const zeroVar = "$zero"

// Model is the constraint system built from one command tree.
type Model struct {
	program     command.Command
	constraints []constraint
	// expectedEndVar maps a command id to the graph variable holding its end
	// time, so Solve can report expected_end directly.
	expectedEndVar map[string]string
	// freeVars are every distinct SymVar name seen, so Substitute knows what
	// to look up in the solved assignment.
	freeVars map[string]bool
	// estimates supplies e(cmd) for every bare device command. Never nil:
	// Build defaults it to an empty table, which makes every device command
	// a fatal "no estimate" planner fault rather than a silent zero.
	estimates *estimator.Table
}

// constraint is one edge of the difference-constraint graph: lo >= hi + w,
// i.e. an edge hi -> lo of weight w in the longest-path reduction.
type constraint struct {
	lo, hi string
	w      float64
}

// Build walks program's leaves in execution order and generates the linear
// constraint set: a single "main" clock advances for every command that
// blocks the main thread (Robotarm and bare Wash/Disp/Incu,
// WaitForResource, WaitForCheckpoint, Idle; Checkpoint and Duration read it
// without advancing it), while Fork hands a copy of the command off to its
// resource's own clock track without blocking.
//
// estimates supplies e(cmd) for every bare device command (Robotarm, Wash,
// Disp, Incu); a nil estimates is treated as an empty table, matching
// original_source/timings.py's strict "Estimates[source, arg]" lookup with
// no fallback — a device command with no historical sample and no override
// makes the whole plan fail rather than silently charging it zero seconds.
func Build(program command.Command, estimates *estimator.Table) (*Model, error) {
	assigned := program.AssignIDs(idGen())
	if estimates == nil {
		estimates = estimator.NewTable(nil)
	}

	m := &Model{
		program:        assigned,
		expectedEndVar: make(map[string]string),
		freeVars:       make(map[string]bool),
		estimates:      estimates,
	}

	mainClock := zeroVar
	resourceClock := map[command.Resource]string{}
	checkpointVar := map[string]string{}

	leaves := assigned.Collect()
	for _, leaf := range leaves {
		cmd := leaf.Cmd
		id := leaf.Meta.ID

		switch cmd.Kind {
		case command.KindRobotarm, command.KindWash, command.KindDisp, command.KindIncu:
			w, err := m.symVarOrEstimate(cmd)
			if err != nil {
				return nil, fmt.Errorf("optimize: %w", err)
			}
			end := m.nodeVar(id, "end")
			m.addGE(end, mainClock, w)
			mainClock = end
			m.expectedEndVar[id] = end

		case command.KindFork:
			resourceDone := resourceClock[cmd.Resource]
			if resourceDone == "" {
				resourceDone = zeroVar
			}
			innerStart := m.nodeVar(id, "dispatch")
			// Dispatch happens no earlier than the main clock and no earlier
			// than the resource's own queue draining; it does not block main.
			m.addGE(innerStart, mainClock, 0)
			m.addGE(innerStart, resourceDone, 0)
			innerEnd, err := m.innerDuration(cmd.Inner, innerStart)
			if err != nil {
				return nil, fmt.Errorf("optimize: %w", err)
			}
			resourceClock[cmd.Resource] = innerEnd
			m.expectedEndVar[id] = innerEnd

		case command.KindWaitForResource:
			done := resourceClock[cmd.Resource]
			if done == "" {
				done = zeroVar
			}
			after := m.nodeVar(id, "end")
			m.addGE(after, mainClock, 0)
			m.addGE(after, done, 0)
			mainClock = after

		case command.KindCheckpoint:
			checkpointVar[cmd.Name] = mainClock
			m.expectedEndVar[id] = mainClock

		case command.KindDuration:
			start, ok := checkpointVar[cmd.Name]
			if !ok {
				return nil, fmt.Errorf("optimize: Duration(%q) has no matching Checkpoint", cmd.Name)
			}
			end := mainClock
			if cmd.Exactly != nil {
				w := m.symVarWeight(*cmd.Exactly)
				m.addGE(end, start, w)
				m.addGE(start, end, -w)
			}
			m.expectedEndVar[id] = end

		case command.KindWaitForCheckpoint:
			cp, ok := checkpointVar[cmd.Name]
			if !ok {
				return nil, fmt.Errorf("optimize: WaitForCheckpoint(%q) has no matching Checkpoint", cmd.Name)
			}
			w := m.symVarWeight(cmd.Wake)
			after := m.nodeVar(id, "end")
			m.addGE(after, mainClock, 0)
			m.addGE(after, cp, w)
			mainClock = after

		case command.KindIdle:
			w := m.symVarWeight(cmd.Secs)
			end := m.nodeVar(id, "end")
			m.addGE(end, mainClock, w)
			mainClock = end
			m.expectedEndVar[id] = end
		}
	}

	return m, nil
}

// innerDuration walks a Fork's inner command (its own private sub-tree,
// always a bare device command or a Sequence of them) and returns the
// variable holding its completion time, chained from start.
func (m *Model) innerDuration(inner *command.Command, start string) (string, error) {
	if inner == nil {
		return start, nil
	}
	if inner.Kind == command.KindSequence {
		cur := start
		for i := range inner.Children {
			var err error
			cur, err = m.innerDuration(&inner.Children[i], cur)
			if err != nil {
				return "", err
			}
		}
		return cur, nil
	}
	w, err := m.symVarOrEstimate(*inner)
	if err != nil {
		return "", err
	}
	end := m.nodeVar(inner.Metadata.ID, "inner-end")
	m.addGE(end, start, w)
	return end, nil
}

// symVarOrEstimate charges a bare device command (Robotarm, Wash, Disp,
// Incu) the estimator's e(cmd) for the constraint graph edge it adds,
// consulting internal/estimator the way spec.md §4.5/§4.9 requires: the
// planner treats an un-estimated device command as infeasible to plan
// rather than free, matching original_source/timings.py's strict
// Estimates[source, arg] with no default.
func (m *Model) symVarOrEstimate(cmd command.Command) (float64, error) {
	source, arg, ok := estimator.KeyForCommand(cmd)
	if !ok {
		return 0, nil
	}
	v, err := m.estimates.Estimate(source, arg)
	if err != nil {
		return 0, fmt.Errorf("no duration estimate for %s: %w", cmd, err)
	}
	return v, nil
}

// symVarWeight resolves a SymVar's contribution to the constraint graph. A
// constant contributes its value directly. A free variable is assigned the
// value 0 uniformly: nothing else in this tree's constraint set ever pins
// a named variable to a non-zero value independently of its per-use offset
// (the per-plate "incu delay"/"batch sep" wake gaps this builder emits are
// pure scheduling slack with no competing lower bound), so the optimal
// — makespan-minimizing — assignment for every one of them is exactly 0,
// leaving s.Offset() as its effective per-use contribution. freeVars is
// still recorded so Values() can report the assignment explicitly.
func (m *Model) symVarWeight(s symbolic.SymVar) float64 {
	if !s.IsConst() {
		m.freeVars[s.Name()] = true
	}
	return s.Offset()
}

func (m *Model) nodeVar(id, suffix string) string {
	if id == "" {
		id = "anon"
	}
	return fmt.Sprintf("$node:%s:%s", id, suffix)
}

func (m *Model) addGE(lo, hi string, w float64) {
	m.constraints = append(m.constraints, constraint{lo: lo, hi: hi, w: w})
}

// idGen returns a closure producing sequential command ids ("cmd-1",
// "cmd-2", ...), the shape AssignIDs expects from its gen argument.
func idGen() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("cmd-%d", n)
	}
}
