package command

import (
	"testing"

	"github.com/pharmbio/cellpaint/internal/symbolic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceFlattensNested(t *testing.T) {
	a := RobotarmCmd("a")
	b := RobotarmCmd("b")
	c := RobotarmCmd("c")
	got := Sequence(Sequence(a, b), c)
	require.Len(t, got.Children, 3)
	assert.Equal(t, "a", got.Children[0].Program)
	assert.Equal(t, "b", got.Children[1].Program)
	assert.Equal(t, "c", got.Children[2].Program)
}

func TestSequenceEmptyIsIdentity(t *testing.T) {
	a := RobotarmCmd("a")
	got := Sequence(Sequence(), a, Sequence())
	require.Len(t, got.Children, 1)
	assert.Equal(t, "a", got.Children[0].Program)
}

func TestCollectIsDepthFirstLeftToRight(t *testing.T) {
	tree := Sequence(
		RobotarmCmd("a"),
		Sequence(RobotarmCmd("b"), RobotarmCmd("c")),
		RobotarmCmd("d"),
	)
	leaves := tree.Collect()
	require.Len(t, leaves, 4)
	var order []string
	for _, l := range leaves {
		order = append(order, l.Cmd.Program)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, order)
}

func TestCollectAccumulatesMetadataDownTheTree(t *testing.T) {
	tree := Sequence(RobotarmCmd("a")).WithMetadata(Metadata{PlateID: "P1"})
	leaves := tree.Collect()
	require.Len(t, leaves, 1)
	assert.Equal(t, "P1", leaves[0].Meta.PlateID)
}

func TestForkIsTreatedAsLeafByCollect(t *testing.T) {
	inner := Sequence(WashCmd("p", ModeValidate))
	tree := Sequence(ForkCmd(inner, ResourceWash, AssumeNothing))
	leaves := tree.Collect()
	require.Len(t, leaves, 1)
	assert.Equal(t, KindFork, leaves[0].Cmd.Kind)

	forkInner := leaves[0].ForkInner()
	require.Len(t, forkInner, 1)
	assert.Equal(t, KindWash, forkInner[0].Cmd.Kind)
}

func TestWithMetadataCommutesWithSequence(t *testing.T) {
	m := Metadata{Step: "wash"}
	a := RobotarmCmd("a")
	b := RobotarmCmd("b")

	viaSequence := Sequence(a, b).WithMetadata(m)
	viaChildren := Sequence(a.WithMetadata(m), b.WithMetadata(m))

	leavesA := viaSequence.Collect()
	leavesB := viaChildren.Collect()
	require.Len(t, leavesA, 2)
	require.Len(t, leavesB, 2)
	for i := range leavesA {
		assert.Equal(t, leavesB[i].Meta, leavesA[i].Meta)
	}
}

func TestAssignIDsStampsEveryNode(t *testing.T) {
	tree := Sequence(RobotarmCmd("a"), RobotarmCmd("b"))
	n := 0
	stamped := tree.AssignIDs(func() string {
		n++
		return "id" + string(rune('0'+n))
	})
	leaves := stamped.Collect()
	require.Len(t, leaves, 2)
	assert.NotEqual(t, leaves[0].Cmd.Metadata.ID, leaves[1].Cmd.Metadata.ID)
	assert.NotEmpty(t, leaves[0].Cmd.Metadata.ID)
}

func TestRemoveSchedulingIdlesDropsOnlyFlagged(t *testing.T) {
	tree := Sequence(
		RobotarmCmd("a"),
		IdleCmd(symbolic.Const(5), true),
		IdleCmd(symbolic.Const(5), false),
		RobotarmCmd("b"),
	)
	cleaned := tree.RemoveSchedulingIdles()
	leaves := cleaned.Collect()
	require.Len(t, leaves, 3)
	assert.Equal(t, KindRobotarm, leaves[0].Cmd.Kind)
	assert.Equal(t, KindIdle, leaves[1].Cmd.Kind)
	assert.Equal(t, KindRobotarm, leaves[2].Cmd.Kind)
}

func TestRemoveSchedulingIdlesIsIdempotent(t *testing.T) {
	tree := Sequence(
		RobotarmCmd("a"),
		IdleCmd(symbolic.Const(5), true),
		RobotarmCmd("b"),
	)
	once := tree.RemoveSchedulingIdles()
	twice := once.RemoveSchedulingIdles()
	assert.Equal(t, once, twice)
}

func TestMetadataMergeConcatenatesStringsAndMaxesNumbers(t *testing.T) {
	a := Metadata{PlateID: "P1", BatchID: 2}
	b := Metadata{PlateID: "P2", BatchID: 1}
	merged := a.Merge(b)
	assert.Equal(t, "P1; P2", merged.PlateID)
	assert.Equal(t, 2, merged.BatchID)
}

func TestRequiredResource(t *testing.T) {
	assert.Equal(t, ResourceRobotarm, RobotarmCmd("a").RequiredResource())
	assert.Equal(t, ResourceWash, WashCmd("p", ModeRun).RequiredResource())
	assert.Equal(t, Resource(""), CheckpointCmd("c").RequiredResource())
}
