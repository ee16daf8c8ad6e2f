package optimize

import (
	"fmt"
	"sort"

	"github.com/pharmbio/cellpaint/internal/command"
	"github.com/pharmbio/cellpaint/internal/symbolic"
)

// Assignment is the optimizer's result: every free variable's resolved
// value, and the expected completion time of every node that has one.
type Assignment struct {
	Values      map[string]float64
	ExpectedEnd map[string]float64
}

// Solve computes the earliest feasible time for every node in the
// constraint graph: each edge hi -> lo of weight w is a lower bound
// "lo >= hi + w" (a node can't complete before a predecessor finishes, or
// before an exact-duration equality is satisfied), so the value each node
// needs is the longest path reaching it from zeroVar. This is a longest
// path in a DAG for the ordering constraints alone, but the two-sided
// edges an exact-duration equality adds (end >= start+w AND start >=
// end-w) can turn part of the graph into a cycle; repeated relaxation
// (the longest-path analogue of Bellman-Ford) still finds the fixed point
// when the cycle is consistent, and a value that keeps growing past |V|
// rounds means the equality constraints conflict — reported as an
// infeasible schedule, the plan-time fault a constraint solver is
// expected to raise.
func (m *Model) Solve() (Assignment, error) {
	nodes := map[string]bool{zeroVar: true}
	for _, c := range m.constraints {
		nodes[c.lo] = true
		nodes[c.hi] = true
	}

	dist := make(map[string]float64, len(nodes))

	relax := func() bool {
		changed := false
		for _, c := range m.constraints {
			if cand := dist[c.hi] + c.w; cand > dist[c.lo] {
				dist[c.lo] = cand
				changed = true
			}
		}
		return changed
	}

	for i := 0; i < len(nodes); i++ {
		if !relax() {
			break
		}
	}
	if relax() {
		return Assignment{}, fmt.Errorf("optimize: infeasible schedule (conflicting exact-duration constraints)")
	}

	values := make(map[string]float64, len(m.freeVars))
	for name := range m.freeVars {
		values[name] = 0
	}

	expectedEnd := make(map[string]float64, len(m.expectedEndVar))
	for id, v := range m.expectedEndVar {
		expectedEnd[id] = dist[v]
	}

	return Assignment{Values: values, ExpectedEnd: expectedEnd}, nil
}

// Substitute rebuilds program with every symbolic.SymVar replaced by its
// resolved constant from assignment, producing the concrete command tree
// the runtime executor actually runs.
func Substitute(program command.Command, assignment Assignment) (command.Command, error) {
	var buildErr error
	resolved := program.Transform(func(c command.Command) command.Command {
		switch c.Kind {
		case command.KindIdle:
			v, err := c.Secs.Resolve(assignment.Values)
			if err != nil {
				buildErr = err
				return c
			}
			c.Secs = symbolic.Const(v)
		case command.KindWaitForCheckpoint:
			v, err := c.Wake.Resolve(assignment.Values)
			if err != nil {
				buildErr = err
				return c
			}
			c.Wake = symbolic.Const(v)
		case command.KindDuration:
			if c.Exactly != nil {
				v, err := c.Exactly.Resolve(assignment.Values)
				if err != nil {
					buildErr = err
					return c
				}
				resolvedExactly := symbolic.Const(v)
				c.Exactly = &resolvedExactly
			}
		}
		return c
	})
	if buildErr != nil {
		return command.Command{}, fmt.Errorf("optimize: substitute: %w", buildErr)
	}
	return resolved, nil
}

// SortedVarNames returns the free variable names in the assignment, sorted
// for deterministic reporting.
func (a Assignment) SortedVarNames() []string {
	names := make([]string, 0, len(a.Values))
	for n := range a.Values {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
