package moves

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRegistryFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "moves.yaml")
	doc := `
"wash get to wash neu":
  moves:
    - name: approach
      data: [0.1, 0.2]
    - name: settle
      data: [0.3, 0.4]
"incu_get":
  moves: []
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	reg, err := LoadRegistryFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	ml, ok := reg.Get("wash get to wash neu")
	require.True(t, ok)
	require.Len(t, ml.Moves, 2)
	assert.Equal(t, "approach", ml.Moves[0].Name)
	assert.Equal(t, []float64{0.1, 0.2}, ml.Moves[0].Data)
}

func TestLoadRegistryFromFileMissing(t *testing.T) {
	_, err := LoadRegistryFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
