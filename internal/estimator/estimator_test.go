package estimator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromAveragesSamples(t *testing.T) {
	lines := strings.Join([]string{
		`{"source":"wash","arg":"p1","duration":10}`,
		`{"source":"wash","arg":"p1","duration":20}`,
		`{"source":"disp","arg":"p2","duration":5}`,
	}, "\n")
	table, err := loadFrom(strings.NewReader(lines))
	require.NoError(t, err)

	v, err := table.Estimate(SourceWash, "p1")
	require.NoError(t, err)
	assert.Equal(t, 15.0, v)

	v, err = table.Estimate(SourceDisp, "p2")
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)
}

func TestLoadFromSkipsMalformedLines(t *testing.T) {
	lines := strings.Join([]string{
		`not json`,
		`{"source":"wash","arg":"p1","duration":10}`,
		``,
	}, "\n")
	table, err := loadFrom(strings.NewReader(lines))
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())
}

func TestEstimateMissingKeyIsError(t *testing.T) {
	table := NewTable(nil)
	_, err := table.Estimate(SourceRobotarm, "nope")
	assert.ErrorIs(t, err, ErrNoEstimate)
}

func TestWithOverridesLayersOnTop(t *testing.T) {
	base := NewTable(map[Key]float64{{SourceWash, "a"}: 1})
	merged := base.WithOverrides(map[Key]float64{{SourceWash, "a"}: 2, {SourceDisp, "b"}: 3})

	v, err := merged.Estimate(SourceWash, "a")
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)

	v, err = merged.Estimate(SourceDisp, "b")
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	// base is untouched
	v, err = base.Estimate(SourceWash, "a")
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
}

func TestDefaultOverridesCoversKnownKeys(t *testing.T) {
	overrides := DefaultOverrides()
	assert.Equal(t, 0.5, overrides[Key{SourceRobotarm, "noop"}])
	assert.Equal(t, 1.1, overrides[Key{SourceIncu, "get_climate"}])
}
