package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInterleavingCountsOccurrences(t *testing.T) {
	ilv, err := ParseInterleaving("t", `
		a -> b -> c
		a -> b -> c
	`)
	require.NoError(t, err)
	require.Len(t, ilv.Rows, 4)
	assert.Equal(t, Row{Index: 0, SubPart: "a -> b"}, ilv.Rows[0])
	assert.Equal(t, Row{Index: 0, SubPart: "b -> c"}, ilv.Rows[1])
	assert.Equal(t, Row{Index: 1, SubPart: "a -> b"}, ilv.Rows[2])
	assert.Equal(t, Row{Index: 1, SubPart: "b -> c"}, ilv.Rows[3])
}

func TestParseInterleavingRejectsSingleOccurrence(t *testing.T) {
	_, err := ParseInterleaving("t", `a -> b`)
	assert.Error(t, err)
}

func TestParseInterleavingRejectsUnequalCounts(t *testing.T) {
	_, err := ParseInterleaving("t", `
		a -> b
		a -> b
		a -> c
	`)
	assert.Error(t, err)
}

func TestBuiltinTemplatesParse(t *testing.T) {
	for name, ilv := range Templates {
		assert.NotEmpty(t, ilv.Rows, name)
		assert.Equal(t, name, ilv.Name)
	}
}

func TestLinSubParts(t *testing.T) {
	sp := Lin.SubParts()
	assert.True(t, sp["incu -> B21"])
	assert.True(t, sp["B21 -> wash"])
	assert.True(t, sp["wash -> disp"])
	assert.True(t, sp["disp -> B21"])
	assert.True(t, sp["B21 -> incu"])
}
