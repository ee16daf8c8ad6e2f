package eventlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func TestCheckpointsAndDurations(t *testing.T) {
	log := Log{
		{CommandKind: "checkpoint", Name: "run", T: 10},
		{CommandKind: "duration", Name: "plate 1 incu", T: 20, T0: f64(10)},
		{CommandKind: "duration", Name: "plate 2 incu", T: 19, T0: f64(9.5)},
	}
	assert.Equal(t, map[string]float64{"run": 10}, log.Checkpoints())
	assert.Equal(t, 10.0, log.Durations()["plate 1 incu"])
	assert.Equal(t, 9.5, log.Durations()["plate 2 incu"])
}

func TestGroupDurationsStripsTrailingDigits(t *testing.T) {
	log := Log{
		{CommandKind: "duration", Name: "plate 1 incu 1", T: 70, T0: f64(10)},
		{CommandKind: "duration", Name: "plate 1 incu 2", T: 22, T0: f64(10)},
	}
	groups := log.GroupDurations()
	require.Len(t, groups, 1)
	for _, vs := range groups {
		assert.Len(t, vs, 2)
	}
}

func TestPPSecsFormatsMinutes(t *testing.T) {
	assert.Equal(t, "45.0s", PPSecs(45))
	assert.Equal(t, "1m05.0s", PPSecs(65))
}

func TestErrorsScansFromLastRunStart(t *testing.T) {
	log := Log{
		{Err: &Error{Message: "stale"}},
		{Metadata: Metadata{Section: "run-start"}},
		{Err: &Error{Message: "fresh"}},
	}
	errs := log.Errors(true)
	require.Len(t, errs, 1)
	assert.Equal(t, "fresh", errs[0].Err.Message)

	all := log.Errors(false)
	assert.Len(t, all, 2)
}

func TestGroupBySectionSplitsOnSectionMarker(t *testing.T) {
	log := Log{
		{T: 1},
		{T: 2, Metadata: Metadata{Section: "wash"}},
		{T: 3},
	}
	groups := log.GroupBySection("begin")
	require.Contains(t, groups, "begin")
	require.Contains(t, groups, "wash")
	assert.Len(t, groups["begin"], 1)
	assert.Len(t, groups["wash"], 2)
}

func TestNumPlates(t *testing.T) {
	log := Log{
		{Metadata: Metadata{}},
	}
	log[0].Metadata.PlateID = "3"
	log = append(log, Entry{Metadata: Metadata{}})
	log[1].Metadata.PlateID = "7"
	assert.Equal(t, 7, log.NumPlates())
}

func TestDropBoringRemovesValidateEntries(t *testing.T) {
	log := Log{
		{CommandKind: "wash", Name: "Validate"},
		{CommandKind: "wash", Name: "RunValidated"},
	}
	dropped := log.DropBoring()
	require.Len(t, dropped, 1)
	assert.Equal(t, "RunValidated", dropped[0].Name)
}

func TestWriterAppendAndFromJSONLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.jsonl")

	w := NewWriter(path)
	require.NoError(t, w.Append(Entry{CommandKind: "checkpoint", Name: "run", T: 1}))
	require.NoError(t, w.Append(Entry{CommandKind: "duration", Name: "plate 1 incu", T: 5, T0: f64(1)}))
	require.NoError(t, w.Close())

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, contents)

	log, err := FromJSONL(path)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, "run", log[0].Name)
	assert.Equal(t, 4.0, *log[1].Duration())
}
