package moves

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *Registry {
	return NewRegistry(map[string]MoveList{
		"wash get to wash neu": {Name: "wash get to wash neu"},
		"incu_get":             {Name: "incu_get"},
	})
}

func TestRegistryGetAndHas(t *testing.T) {
	r := testRegistry()
	ml, ok := r.Get("incu_get")
	require.True(t, ok)
	assert.Equal(t, "incu_get", ml.Name)
	assert.True(t, r.Has("incu_get"))
	assert.False(t, r.Has("nope"))
	assert.Equal(t, 2, r.Len())
}

func TestRegistryDefensiveCopy(t *testing.T) {
	src := map[string]MoveList{"a": {Name: "a"}}
	r := NewRegistry(src)
	src["b"] = MoveList{Name: "b"}
	assert.False(t, r.Has("b"))
}

func TestMustHave(t *testing.T) {
	r := testRegistry()
	assert.NoError(t, r.MustHave("incu_get"))
	err := r.MustHave("missing")
	assert.ErrorIs(t, err, ErrUnknownProgram)
}

func TestRegistryNames(t *testing.T) {
	r := testRegistry()
	assert.ElementsMatch(t, []string{"wash get to wash neu", "incu_get"}, r.Names())
}
