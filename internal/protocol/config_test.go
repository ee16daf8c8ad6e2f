package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIncuEntryMinutesSeconds(t *testing.T) {
	v := ParseIncuEntry("1:30")
	require.True(t, v.IsConst())
	assert.Equal(t, 90.0, v.Offset())
}

func TestParseIncuEntryBareSeconds(t *testing.T) {
	v := ParseIncuEntry("1200")
	require.True(t, v.IsConst())
	assert.Equal(t, 1200.0, v.Offset())
}

func TestParseIncuEntryVariableName(t *testing.T) {
	v := ParseIncuEntry("incu 1")
	assert.False(t, v.IsConst())
	assert.Equal(t, "incu 1", v.Name())
}

func TestMakeV3FiveStepLengths(t *testing.T) {
	cfg, err := MakeV3(MakeV3Options{IncuCSV: "1200,1200,1200,1200", Interleave: false, Six: false})
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"Mito", "PFA", "Triton", "Stains", "Final"}, cfg.StepNames)
	assert.Len(t, cfg.Incu, 5)
	assert.Equal(t, []string{"lin", "lin", "lin", "lin", "finlin"}, cfg.Interleavings)
}

func TestMakeV3SixStepInterleaved(t *testing.T) {
	cfg, err := MakeV3(MakeV3Options{IncuCSV: "1200", Interleave: true, Six: true})
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.StepNames, 6)
	assert.Equal(t, []string{"june", "june", "june", "june", "washjune", "finjune"}, cfg.Interleavings)
}

func TestMakeV3LastIncuIsZero(t *testing.T) {
	cfg, err := MakeV3(MakeV3Options{IncuCSV: "1200,1300,1400,1500", Interleave: false, Six: false})
	require.NoError(t, err)
	last := cfg.Incu[len(cfg.Incu)-1]
	require.True(t, last.IsConst())
	assert.Equal(t, 0.0, last.Offset())
}

func TestValidateRejectsMismatchedLength(t *testing.T) {
	cfg := ProtocolConfig{
		StepNames:     []string{"a", "b"},
		Wash:          []string{"w"},
		Prime:         []string{"", ""},
		PreDisp:       []string{"", ""},
		Disp:          []string{"", ""},
		Interleavings: []string{"lin", "lin"},
	}
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestValidateRejectsUnknownInterleaving(t *testing.T) {
	cfg, err := MakeV3(MakeV3Options{IncuCSV: "1200", Interleave: false, Six: false})
	require.NoError(t, err)
	cfg.Interleavings[0] = "nope"
	assert.Error(t, cfg.Validate())
}
