// Package sleek implements the move-fusion rewrite: a sliding-window pass
// over a linearized leaf list that merges a robot-arm program ending at a
// hand-off pose with the next one starting from it, when the move-list
// registry has fused "to-pose"/"from-pose" variants for that pose.
//
// There is no equivalent pass in the teacher repo; this package instead
// follows the shape of the teacher's other local, order-preserving rewrite
// passes (pkg/masking's single-pass redaction scan over a token stream),
// adapted to a windowed two-token lookahead over command leaves.
package sleek

import (
	"strings"

	"github.com/pharmbio/cellpaint/internal/command"
	"github.com/pharmbio/cellpaint/internal/moves"
)

// Program fuses adjacent robot-arm moves in program wherever the move
// registry has a matching fused pair, and returns the rewritten tree as a
// flat Sequence of leaves (metadata preserved per leaf). Idempotent: running
// it twice on its own output is a no-op, since a fused leaf's program name
// no longer matches any "a to D" / "b from D..." key pair.
func Program(program command.Command, registry *moves.Registry) command.Command {
	leaves := program.Collect()
	fused := fuse(leaves, registry)
	out := make([]command.Command, 0, len(fused))
	for _, l := range fused {
		out = append(out, l.Cmd.WithMetadata(l.Meta))
	}
	return command.Sequence(out...)
}

func fuse(leaves []command.Leaf, registry *moves.Registry) []command.Leaf {
	out := make([]command.Leaf, 0, len(leaves))
	i := 0
	for i < len(leaves) {
		if leaves[i].Cmd.Kind != command.KindRobotarm {
			out = append(out, leaves[i])
			i++
			continue
		}
		j := i + 1
		for j < len(leaves) && leaves[j].Cmd.Kind != command.KindRobotarm {
			j++
		}
		if j < len(leaves) {
			a := leaves[i].Cmd.Program
			b := leaves[j].Cmd.Program
			if toName, fromName, ok := handoffNames(a, b, registry); ok {
				merged := leaves[i]
				merged.Cmd = command.RobotarmCmd(toName)
				out = append(out, merged)
				between := leaves[i+1 : j]
				out = append(out, between...)
				fromLeaf := leaves[j]
				fromLeaf.Cmd = command.RobotarmCmd(fromName)
				out = append(out, fromLeaf)
				i = j + 1
				continue
			}
		}
		out = append(out, leaves[i])
		i++
	}
	return out
}

// handoffNames finds a common hand-off pose D such that the registry has
// both an "a to D" program and a "b from D" program, and returns the two
// registered names verbatim. The "from" side isn't always the bare
// "b from D" string: a move that spans all the way to a second station
// keeps its full span in its own name, e.g. registry key
// "wash_to_disp from wash neu to disp neu" for b="wash_to_disp" and
// D="wash neu" — so this matches by prefix ("b from D" or "b from D "
// followed by more) rather than requiring an exact "b from D" key.
func handoffNames(a, b string, registry *moves.Registry) (toName, fromName string, ok bool) {
	toPrefix := a + " to "
	fromPrefix := b + " from "
	for _, name := range registry.Names() {
		if !strings.HasPrefix(name, toPrefix) {
			continue
		}
		pose := strings.TrimPrefix(name, toPrefix)
		fromBase := fromPrefix + pose
		for _, cand := range registry.Names() {
			if cand == fromBase || strings.HasPrefix(cand, fromBase+" ") {
				return name, cand, true
			}
		}
	}
	return "", "", false
}
