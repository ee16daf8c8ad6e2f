package protocol

import (
	"testing"

	"github.com/pharmbio/cellpaint/internal/command"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) ProtocolConfig {
	t.Helper()
	cfg, err := MakeV3(MakeV3Options{IncuCSV: "1200,1200,1200,1200", Interleave: false, Six: false})
	require.NoError(t, err)
	return cfg
}

func TestPaintBatchSingleBatchBuilds(t *testing.T) {
	plates, err := DefinePlates([]int{1})
	require.NoError(t, err)
	cfg := testConfig(t)

	tree, err := PaintBatch(plates, cfg)
	require.NoError(t, err)

	leaves := tree.Collect()
	require.NotEmpty(t, leaves)

	var sawRobotarm, sawWash, sawDisp bool
	for _, l := range leaves {
		switch l.Cmd.Kind {
		case command.KindRobotarm:
			sawRobotarm = true
		case command.KindFork:
			for _, il := range l.ForkInner() {
				switch il.Cmd.Kind {
				case command.KindWash:
					sawWash = true
				case command.KindDisp:
					sawDisp = true
				}
			}
		}
	}
	assert.True(t, sawRobotarm)
	assert.True(t, sawWash)
	assert.True(t, sawDisp)
}

func TestPaintBatchRejectsEmptyBatch(t *testing.T) {
	_, err := PaintBatch(nil, testConfig(t))
	assert.Error(t, err)
}

func TestCellPaintProgramTwoPlatesHasTestComm(t *testing.T) {
	cfg := testConfig(t)
	program, err := CellPaintProgram([]int{2}, cfg, nil)
	require.NoError(t, err)
	leaves := program.Collect()
	require.NotEmpty(t, leaves)
	assert.Equal(t, command.KindCheckpoint, leaves[0].Cmd.Kind)
	assert.Equal(t, "run", leaves[0].Cmd.Name)
	assert.Equal(t, command.KindFork, leaves[1].Cmd.Kind)
	assert.Equal(t, "test comm", leaves[1].Meta.Step)
}

func TestDefinePlatesRejectsOversizedBatch(t *testing.T) {
	_, err := DefinePlates([]int{1000})
	assert.Error(t, err)
}

func TestTopologicalOrderIsDeterministic(t *testing.T) {
	adj := map[chunkDesc]map[chunkDesc]bool{
		{"1", "s", "a"}: {{"1", "s", "b"}: true},
	}
	order := []chunkDesc{{"1", "s", "a"}, {"1", "s", "b"}}
	out1, err := topologicalOrder(order, adj)
	require.NoError(t, err)
	out2, err := topologicalOrder(order, adj)
	require.NoError(t, err)
	assert.Equal(t, out1, out2)
	assert.Equal(t, chunkDesc{"1", "s", "a"}, out1[0])
}

func TestTopologicalOrderDetectsCycle(t *testing.T) {
	a := chunkDesc{"1", "s", "a"}
	b := chunkDesc{"1", "s", "b"}
	adj := map[chunkDesc]map[chunkDesc]bool{
		a: {b: true},
		b: {a: true},
	}
	_, err := topologicalOrder([]chunkDesc{a, b}, adj)
	assert.Error(t, err)
}
