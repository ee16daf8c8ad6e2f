package protocol

import (
	"fmt"
	"sort"

	"github.com/pharmbio/cellpaint/internal/command"
	"github.com/pharmbio/cellpaint/internal/symbolic"
)

// chunkDesc names one (plate, step, transition) chunk of commands, the way
// original_source protocol.py keys its `chunks` dict by (plate.id, step,
// subpart).
type chunkDesc struct {
	PlateID string
	Step    string
	SubPart string
}

func early(secs float64) command.Command {
	return command.IdleCmd(symbolic.Const(secs), true)
}

func washFork(path string, mode command.BiotekMode, assume command.Assume) command.Command {
	return command.ForkCmd(command.WashCmd(path, mode), command.ResourceWash, assume)
}

func dispFork(path string, mode command.BiotekMode, assume command.Assume) command.Command {
	return command.ForkCmd(command.DispCmd(path, mode), command.ResourceDisp, assume)
}

func incuFork(action command.IncuAction, loc string, assume command.Assume) command.Command {
	return command.ForkCmd(command.IncuCmd(action, loc), command.ResourceIncu, assume)
}

func waitForCheckpoint(name string, wake symbolic.SymVar, reportBehindTime bool) command.Command {
	return command.WaitForCheckpointCmd(name, wake, reportBehindTime)
}

func durationExactly(name string, exactly symbolic.SymVar) command.Command {
	e := exactly
	return command.DurationCmd(name, 0, &e)
}

// TestCommProgram pings every device once, used as the opening section of
// every generated protocol and standalone by the test-comm CLI subcommand.
// Grounded on original_source protocol.py's module-level test_comm_program.
var TestCommProgram = command.Sequence(
	dispFork("", command.ModeTestCommunications, ""),
	incuFork(command.IncuGetClimate, "", ""),
	command.RobotarmCmd("gripper check"),
	command.WaitForResourceCmd(command.ResourceDisp, ""),
	washFork("", command.ModeTestCommunications, ""),
	command.WaitForResourceCmd(command.ResourceIncu, ""),
	command.WaitForResourceCmd(command.ResourceWash, ""),
).WithMetadata(command.Metadata{Step: "test comm"})

// PaintBatch builds the command tree for one batch of plates: a prep
// section (wash/disp priming, checkpointing on the previous batch), the
// interleaved per-plate-step chunks linearized by topological sort of the
// chosen overlap template, and a post section measuring the batch's total
// duration. Grounded directly on original_source protocol.py's paint_batch.
func PaintBatch(batch []Plate, cfg ProtocolConfig) (command.Command, error) {
	if len(batch) == 0 {
		return command.Command{}, fmt.Errorf("protocol: empty batch")
	}
	if err := cfg.Validate(); err != nil {
		return command.Command{}, err
	}

	firstPlate := batch[0]
	lastPlate := batch[len(batch)-1]
	batchIndex := firstPlate.BatchIndex
	firstBatch := batchIndex == 0

	var prepWash command.Command
	if cfg.PrepWash != "" {
		prepWash = washFork(cfg.PrepWash, "", "")
	} else {
		prepWash = command.IdleCmd(symbolic.Const(0), false)
	}
	var prepDisp command.Command
	if cfg.PrepDisp != "" {
		prepDisp = command.Sequence(dispFork(cfg.PrepDisp, "", ""), early(2))
	} else {
		prepDisp = command.IdleCmd(symbolic.Const(0), false)
	}

	prepCmds := []command.Command{prepWash, prepDisp}
	if !firstBatch {
		prepCmds = append(prepCmds, waitForCheckpoint(fmt.Sprintf("batch %d", batchIndex-1), symbolic.Var("batch sep"), true))
	}
	prepCmds = append(prepCmds, command.CheckpointCmd(fmt.Sprintf("batch %d", batchIndex)))

	postCmds := []command.Command{command.DurationCmd(fmt.Sprintf("batch %d", batchIndex), -1, nil)}

	lidLocs := LidLocs[:1]
	if cfg.Interleave {
		lidLocs = LidLocs[:2]
	}
	lidIndex := 0

	chunks := make(map[chunkDesc][]command.Command)

	for i, step := range cfg.StepNames {
		for _, plate := range batch {
			lidLoc := lidLocs[lidIndex%len(lidLocs)]
			lidIndex++
			p := plate.WithLidLoc(lidLoc)
			ix := i + 1
			plateDesc := fmt.Sprintf("plate %s", plate.ID)

			var incuDelay, washDelay []command.Command
			if step == "Mito" {
				incuDelay = []command.Command{waitForCheckpoint(fmt.Sprintf("batch %d", batchIndex), symbolic.Var(fmt.Sprintf("%s incu delay %d", plateDesc, ix)), true)}
				washDelay = []command.Command{waitForCheckpoint(fmt.Sprintf("batch %d", batchIndex), symbolic.Var(fmt.Sprintf("%s first wash delay", plateDesc)), true)}
			} else {
				incuDelay = []command.Command{waitForCheckpoint(fmt.Sprintf("%s incubation %d", plateDesc, ix-1), symbolic.Var(fmt.Sprintf("%s incu delay %d", plateDesc, ix)), true)}
				washDelay = []command.Command{early(2), waitForCheckpoint(fmt.Sprintf("%s incubation %d", plateDesc, ix-1), cfg.Incu[i-1], true)}
			}

			lidOff := RobotarmCmds(p.LidPut(), []command.Command{command.CheckpointCmd(fmt.Sprintf("%s lid off %d", plateDesc, ix))}, nil)
			lidOn := RobotarmCmds(p.LidGet(), nil, []command.Command{command.DurationCmd(fmt.Sprintf("%s lid off %d", plateDesc, ix), -1, nil)})

			var incuGet []command.Command
			switch step {
			case "Mito":
				incuGet = append([]command.Command{
					command.WaitForResourceCmd(command.ResourceIncu, command.AssumeNothing),
					incuFork(command.IncuGet, plate.IncuLoc, ""),
				}, RobotarmCmds("incu get", []command.Command{command.WaitForResourceCmd(command.ResourceIncu, command.AssumeWillWait)}, nil)...)
				incuGet = append(incuGet, lidOff...)
			case "PFA":
				incuGet = append([]command.Command{
					command.WaitForResourceCmd(command.ResourceIncu, command.AssumeNothing),
					incuFork(command.IncuGet, plate.IncuLoc, ""),
				}, RobotarmCmds("incu get", []command.Command{
					command.WaitForResourceCmd(command.ResourceIncu, command.AssumeWillWait),
					command.DurationCmd(fmt.Sprintf("%s 37C", plateDesc), 1, nil),
				}, nil)...)
				incuGet = append(incuGet, lidOff...)
			default:
				incuGet = append(RobotarmCmds(plate.RTGet(), nil, nil), lidOff...)
			}

			var b21ToIncu []command.Command
			if step == "Mito" {
				b21ToIncu = RobotarmCmds("incu put",
					[]command.Command{command.WaitForResourceCmd(command.ResourceIncu, command.AssumeNothing)},
					[]command.Command{command.ForkCmd(command.Sequence(
						command.IncuCmd(command.IncuPut, plate.IncuLoc),
						command.CheckpointCmd(fmt.Sprintf("%s 37C", plateDesc)),
					), command.ResourceIncu, "")},
				)
			} else {
				b21ToIncu = RobotarmCmds(plate.RTPut(), nil, nil)
			}

			var dispPrime string
			if i < len(cfg.Prime) && cfg.Prime[i] != "" && plate.ID == firstPlate.ID {
				dispPrime = cfg.Prime[i]
			}

			var preDisp command.Command
			var preDispWait command.Command
			if cfg.Disp[i] != "" || dispPrime != "" {
				primeCmd := command.IdleCmd(symbolic.Const(0), false)
				if dispPrime != "" {
					primeCmd = dispFork(dispPrime, "", "")
				}
				preDispCmd := command.IdleCmd(symbolic.Const(0), false)
				if cfg.PreDisp[i] != "" {
					preDispCmd = dispFork(cfg.PreDisp[i], "", "")
				}
				preDisp = command.ForkCmd(command.Sequence(
					waitForCheckpoint(fmt.Sprintf("%s pre disp %d", plateDesc, ix), symbolic.Const(0), true),
					early(0),
					primeCmd,
					preDispCmd,
					dispFork(cfg.Disp[i], command.ModeValidate, ""),
					early(3),
					command.CheckpointCmd(fmt.Sprintf("%s pre disp done %d", plateDesc, ix)),
				), command.ResourceDisp, command.AssumeNothing)
				preDispWait = command.DurationCmd(fmt.Sprintf("%s pre disp done %d", plateDesc, ix), -1, nil)
			} else {
				preDisp = command.IdleCmd(symbolic.Const(0), false)
				preDispWait = command.IdleCmd(symbolic.Const(0), false)
			}

			var incuDurationExactly command.Command
			if i > 0 {
				incuDurationExactly = durationExactly(fmt.Sprintf("%s incubation %d", plateDesc, ix-1), cfg.Incu[i-1])
			} else {
				incuDurationExactly = command.IdleCmd(symbolic.Const(0), false)
			}
			wrapUp := command.CheckpointCmd(fmt.Sprintf("%s transfer %d", plateDesc, ix))
			if i >= 4 {
				wrapUp = command.CheckpointCmd(fmt.Sprintf("%s incubation %d", plateDesc, ix))
			}

			washCmds := append([]command.Command{
				washFork(cfg.Wash[i], command.ModeValidate, command.AssumeIdle),
				command.RobotarmCmd("wash put prep"),
				command.RobotarmCmd("wash put transfer"),
				command.ForkCmd(command.Sequence(
					append(append(washDelay, incuDurationExactly), command.CheckpointCmd(fmt.Sprintf("%s pre disp %d", plateDesc, ix)), command.WashCmd(cfg.Wash[i], command.ModeRunValidated), wrapUp)...,
				), command.ResourceWash, command.AssumeNothing),
			}, preDisp, command.RobotarmCmd("wash put return"))

			dispCmds := []command.Command{
				command.RobotarmCmd("wash_to_disp prep"),
				early(1),
				command.WaitForResourceCmd(command.ResourceWash, command.AssumeWillWait),
				command.RobotarmCmd("wash_to_disp transfer"),
				preDispWait,
				command.ForkCmd(command.Sequence(
					command.DispCmd(cfg.Disp[i], command.ModeRunValidated),
					command.CheckpointCmd(fmt.Sprintf("%s disp %d done", plateDesc, ix)),
					command.CheckpointCmd(fmt.Sprintf("%s incubation %d", plateDesc, ix)),
				), command.ResourceDisp, ""),
				command.RobotarmCmd("wash_to_disp return"),
			}

			dispToB21 := []command.Command{
				command.RobotarmCmd("disp get prep"),
				waitForCheckpoint(fmt.Sprintf("%s disp %d done", plateDesc, ix), symbolic.Const(0), false),
				command.RobotarmCmd("disp get transfer"),
				command.RobotarmCmd("disp get return"),
			}

			chunks[chunkDesc{plate.ID, step, "incu -> B21"}] = append(incuDelay, incuGet...)
			chunks[chunkDesc{plate.ID, step, "B21 -> wash"}] = washCmds
			chunks[chunkDesc{plate.ID, step, "wash -> disp"}] = dispCmds
			chunks[chunkDesc{plate.ID, step, "disp -> B21"}] = append(dispToB21, lidOn...)

			chunks[chunkDesc{plate.ID, step, "wash -> B21"}] = append(
				RobotarmCmds("wash get", []command.Command{command.WaitForResourceCmd(command.ResourceWash, "")}, nil), lidOn...)
			chunks[chunkDesc{plate.ID, step, "wash -> B15"}] = RobotarmCmds("wash15 get", []command.Command{command.WaitForResourceCmd(command.ResourceWash, "")}, nil)
			chunks[chunkDesc{plate.ID, step, "B15 -> B21"}] = append(RobotarmCmds("B15 get", nil, nil), lidOn...)

			chunks[chunkDesc{plate.ID, step, "B21 -> incu"}] = b21ToIncu
			chunks[chunkDesc{plate.ID, step, "B21 -> out"}] = RobotarmCmds(plate.OutPut(), nil, nil)
		}
	}

	adjacent := make(map[chunkDesc]map[chunkDesc]bool)
	order := make([]chunkDesc, 0)
	addEdge := func(from, to chunkDesc) {
		if adjacent[from] == nil {
			adjacent[from] = make(map[chunkDesc]bool)
		}
		adjacent[from][to] = true
	}
	seq := func(descs []chunkDesc) {
		for i := 0; i+1 < len(descs); i++ {
			addEdge(descs[i], descs[i+1])
		}
		order = append(order, descs...)
	}

	if cfg.Lockstep && len(batch) >= 2 {
		for i := 0; i+1 < len(cfg.StepNames); i++ {
			step := cfg.StepNames[i]
			nextStep := cfg.StepNames[i+1]
			ilv := Templates[cfg.Interleavings[i]]
			nextIlv := Templates[cfg.Interleavings[i+1]]
			overlap := []struct {
				plate    Plate
				step     string
				subparts map[string]bool
			}{
				{batch[len(batch)-2], step, ilv.SubParts()},
				{batch[len(batch)-1], step, ilv.SubParts()},
				{batch[0], nextStep, nextIlv.SubParts()},
				{batch[1], nextStep, nextIlv.SubParts()},
			}
			for offset := range overlap {
				var descs []chunkDesc
				for _, row := range ilv.Rows {
					if row.Index+offset >= len(overlap) {
						continue
					}
					slot := overlap[row.Index+offset]
					if slot.subparts[row.SubPart] {
						descs = append(descs, chunkDesc{slot.plate.ID, slot.step, row.SubPart})
					}
				}
				seq(descs)
			}
		}
	} else {
		for i := 0; i+1 < len(cfg.StepNames); i++ {
			step := cfg.StepNames[i]
			nextStep := cfg.StepNames[i+1]
			seq([]chunkDesc{
				{lastPlate.ID, step, "B21 -> incu"},
				{firstPlate.ID, nextStep, "incu -> B21"},
			})
		}
	}

	for i, step := range cfg.StepNames {
		ilv := Templates[cfg.Interleavings[i]]
		for offset := range batch {
			var descs []chunkDesc
			for _, row := range ilv.Rows {
				if row.Index+offset >= len(batch) {
					continue
				}
				descs = append(descs, chunkDesc{batch[row.Index+offset].ID, step, row.SubPart})
			}
			seq(descs)
		}
	}

	linear, err := topologicalOrder(order, adjacent)
	if err != nil {
		return command.Command{}, err
	}

	plateCmds := make([]command.Command, 0, len(linear))
	for _, desc := range linear {
		cs, ok := chunks[desc]
		if !ok {
			return command.Command{}, fmt.Errorf("protocol: no chunk for %+v", desc)
		}
		meta := command.Metadata{Step: desc.Step, PlateID: desc.PlateID, SubPart: desc.SubPart}
		for _, c := range cs {
			plateCmds = append(plateCmds, c.WithMetadata(meta))
		}
	}

	return command.Sequence(
		command.Sequence(prepCmds...),
		command.Sequence(plateCmds...),
		command.Sequence(postCmds...),
	), nil
}

// topologicalOrder produces a stable topological sort of the nodes
// mentioned in seenOrder, respecting adjacent's edges. Ties are broken by
// first-seen order so the same batch always linearizes the same way,
// mirroring Python's graphlib.TopologicalSorter.static_order determinism.
func topologicalOrder(seenOrder []chunkDesc, adjacent map[chunkDesc]map[chunkDesc]bool) ([]chunkDesc, error) {
	indegree := make(map[chunkDesc]int)
	index := make(map[chunkDesc]int)
	nodes := make([]chunkDesc, 0)
	for _, d := range seenOrder {
		if _, ok := index[d]; !ok {
			index[d] = len(nodes)
			nodes = append(nodes, d)
			indegree[d] = 0
		}
	}
	for from, tos := range adjacent {
		if _, ok := index[from]; !ok {
			index[from] = len(nodes)
			nodes = append(nodes, from)
			indegree[from] = 0
		}
		for to := range tos {
			if _, ok := index[to]; !ok {
				index[to] = len(nodes)
				nodes = append(nodes, to)
				indegree[to] = 0
			}
		}
	}
	for _, tos := range adjacent {
		for to := range tos {
			indegree[to]++
		}
	}

	var ready []chunkDesc
	for _, n := range nodes {
		if indegree[n] == 0 {
			ready = append(ready, n)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return index[ready[i]] < index[ready[j]] })

	var out []chunkDesc
	remaining := indegree
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		out = append(out, n)
		tos := make([]chunkDesc, 0, len(adjacent[n]))
		for to := range adjacent[n] {
			tos = append(tos, to)
		}
		sort.Slice(tos, func(i, j int) bool { return index[tos[i]] < index[tos[j]] })
		for _, to := range tos {
			remaining[to]--
			if remaining[to] == 0 {
				inserted := false
				for i, r := range ready {
					if index[to] < index[r] {
						ready = append(ready[:i], append([]chunkDesc{to}, ready[i:]...)...)
						inserted = true
						break
					}
				}
				if !inserted {
					ready = append(ready, to)
				}
			}
		}
	}

	if len(out) != len(nodes) {
		return nil, fmt.Errorf("protocol: interleaving graph has a cycle (got %d of %d nodes)", len(out), len(nodes))
	}
	return out, nil
}

// CellPaintProgram builds the full program for a run: a communications
// self-test, followed by each batch's command tree (move-fused when sleek
// is non-nil), followed by a run-duration measurement. Grounded on
// original_source protocol.py's cell_paint_program.
func CellPaintProgram(batchSizes []int, cfg ProtocolConfig, sleek func(command.Command) command.Command) (command.Command, error) {
	plates, err := DefinePlates(batchSizes)
	if err != nil {
		return command.Command{}, err
	}
	cmds := []command.Command{command.CheckpointCmd("run"), TestCommProgram}
	for _, batch := range GroupByBatch(plates) {
		batchCmd, err := PaintBatch(batch, cfg)
		if err != nil {
			return command.Command{}, err
		}
		if sleek != nil {
			batchCmd = sleek(batchCmd)
		}
		cmds = append(cmds, batchCmd)
	}
	cmds = append(cmds, command.DurationCmd("run", 0, nil))
	return command.Sequence(cmds...), nil
}
