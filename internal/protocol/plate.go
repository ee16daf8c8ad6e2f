// Package protocol builds the cell-painting command tree: physical slot
// layout, the interleaving templates that describe how consecutive plates'
// steps overlap, the per-protocol configuration (wash/dispense/prime LHC
// file lists, incubation windows), and the batch builder that turns a list
// of plates plus a ProtocolConfig into a single Command tree.
//
// Grounded throughout on original_source/protocol.py, re-expressed as
// explicit Go structs and functions (no dataclasses, no global dict
// comprehensions) following the teacher's plain-struct, explicit-error-path
// style (pkg/config, pkg/models).
package protocol

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pharmbio/cellpaint/internal/command"
)

// Plate is one microplate's stable identity and slot assignment for a run.
// It mirrors internal/layout.Plate's fields but additionally knows how to
// render the robot-arm program name for each of its slots.
type Plate struct {
	ID         string
	IncuLoc    string
	RTLoc      string
	LidLoc     string
	OutLoc     string
	BatchIndex int
}

// LidPut is the robot-arm program name for placing this plate's lid.
func (p Plate) LidPut() string { return fmt.Sprintf("lid_%s put", p.LidLoc) }

// LidGet is the robot-arm program name for picking this plate's lid back up.
func (p Plate) LidGet() string { return fmt.Sprintf("lid_%s get", p.LidLoc) }

// RTPut is the robot-arm program name for parking the plate at its RT slot.
func (p Plate) RTPut() string { return fmt.Sprintf("%s put", p.RTLoc) }

// RTGet is the robot-arm program name for picking the plate up from its RT slot.
func (p Plate) RTGet() string { return fmt.Sprintf("%s get", p.RTLoc) }

// OutPut is the robot-arm program name for placing the plate at its output slot.
func (p Plate) OutPut() string { return fmt.Sprintf("%s put", p.OutLoc) }

// OutGet is the robot-arm program name for picking the plate up from its output slot.
func (p Plate) OutGet() string { return fmt.Sprintf("%s get", p.OutLoc) }

// WithLidLoc returns a copy of p with LidLoc replaced, the way paint_batch
// reassigns a shared lid slot per step without mutating the plate identity.
func (p Plate) WithLidLoc(loc string) Plate {
	p.LidLoc = loc
	return p
}

var (
	hSeries = []int{21, 19, 17, 15, 13, 11, 9, 7, 5, 3, 1}

	// ALocs, BLocs, CLocs are the three hotel columns used for output,
	// lid parking, and room-temperature parking respectively.
	ALocs = namedSeries("out", hSeries)
	BLocs = namedSeries("h", hSeries)
	CLocs = namedSeries("r", hSeries)

	// IncuLocs enumerates every incubator slot (left and right racks).
	IncuLocs = incuSeries()

	// RTLocs is the subset of slots used to park plates at room temperature.
	RTLocs = rtSeries()

	// OutLocs is the subset of slots used for the plate's final resting place.
	OutLocs = outSeries()

	// LidLocs is the subset of hotel-B slots reserved for lids.
	LidLocs = lidSeries()
)

func namedSeries(prefix string, nums []int) []string {
	out := make([]string, len(nums))
	for i, n := range nums {
		out[i] = fmt.Sprintf("%s%d", prefix, n)
	}
	return out
}

func incuSeries() []string {
	out := make([]string, 0, 44)
	for i := 1; i <= 22; i++ {
		out = append(out, fmt.Sprintf("L%d", i))
	}
	for i := 1; i <= 22; i++ {
		out = append(out, fmt.Sprintf("R%d", i))
	}
	return out
}

func rtSeries() []string {
	out := append([]string{}, CLocs[:5]...)
	out = append(out, ALocs[:5]...)
	out = append(out, BLocs[4])
	return out
}

func outSeries() []string {
	reverse := func(s []string) []string {
		out := make([]string, len(s))
		for i, v := range s {
			out[len(s)-1-i] = v
		}
		return out
	}
	out := append([]string{}, reverse(ALocs[5:])...)
	out = append(out, reverse(BLocs[5:])...)
	out = append(out, reverse(CLocs[5:])...)
	return out
}

func lidSeries() []string {
	var out []string
	for _, b := range BLocs {
		if strings.Contains(b, "19") || strings.Contains(b, "17") {
			out = append(out, b)
		}
	}
	return out
}

// DefinePlates assigns incubator/RT/lid/output slots to a run's plates,
// batchSizes[i] plates in batch i, and checks the within- and
// cross-batch distinctness invariants. Mirrors original_source
// protocol.py's define_plates, including its self-check loop.
func DefinePlates(batchSizes []int) ([]Plate, error) {
	var plates []Plate
	index := 0
	for batchIndex, size := range batchSizes {
		for inBatch := 0; inBatch < size; inBatch++ {
			if index >= len(IncuLocs) || index >= len(OutLocs) {
				available := min(len(IncuLocs), len(OutLocs))
				return nil, fmt.Errorf("protocol: batch plan needs %d slots, only %d available", index+1, available)
			}
			plates = append(plates, Plate{
				ID:         fmt.Sprintf("%d", index+1),
				IncuLoc:    IncuLocs[index],
				RTLoc:      RTLocs[inBatch%len(RTLocs)],
				LidLoc:     LidLocs[inBatch%2],
				OutLoc:     OutLocs[index],
				BatchIndex: batchIndex,
			})
			index++
		}
	}

	for i, p := range plates {
		for j, q := range plates {
			if i == j {
				continue
			}
			if p.ID == q.ID {
				return nil, fmt.Errorf("protocol: duplicate plate id %q", p.ID)
			}
			if p.IncuLoc == q.IncuLoc {
				return nil, fmt.Errorf("protocol: plates %q and %q share incu slot %q", p.ID, q.ID, p.IncuLoc)
			}
			if p.OutLoc == q.OutLoc || p.OutLoc == q.RTLoc || p.OutLoc == q.LidLoc || p.OutLoc == q.IncuLoc {
				return nil, fmt.Errorf("protocol: plate %q's out slot %q collides with plate %q", p.ID, p.OutLoc, q.ID)
			}
			if p.BatchIndex == q.BatchIndex && p.RTLoc == q.RTLoc {
				return nil, fmt.Errorf("protocol: plates %q and %q in the same batch share rt slot %q", p.ID, q.ID, p.RTLoc)
			}
		}
	}

	return plates, nil
}

// GroupByBatch buckets plates by BatchIndex, batches ordered by index.
func GroupByBatch(plates []Plate) [][]Plate {
	byIndex := make(map[int][]Plate)
	for _, p := range plates {
		byIndex[p.BatchIndex] = append(byIndex[p.BatchIndex], p)
	}
	indices := make([]int, 0, len(byIndex))
	for k := range byIndex {
		indices = append(indices, k)
	}
	sort.Ints(indices)
	out := make([][]Plate, 0, len(indices))
	for _, k := range indices {
		out = append(out, byIndex[k])
	}
	return out
}

// RobotarmCmds expands a base program name into its prep/transfer/return
// triple, splicing in any commands that must run between prep and transfer
// (beforePick) or between transfer and return (afterDrop). Grounded on
// original_source protocol.py's RobotarmCmds.
func RobotarmCmds(base string, beforePick, afterDrop []command.Command) []command.Command {
	out := make([]command.Command, 0, 3+len(beforePick)+len(afterDrop))
	out = append(out, command.RobotarmCmd(base+" prep"))
	out = append(out, beforePick...)
	out = append(out, command.RobotarmCmd(base+" transfer"))
	out = append(out, afterDrop...)
	out = append(out, command.RobotarmCmd(base+" return"))
	return out
}
