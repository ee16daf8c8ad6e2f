package symbolic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstIsConst(t *testing.T) {
	c := Const(5)
	assert.True(t, c.IsConst())
	assert.Equal(t, "", c.Name())
	assert.Equal(t, 5.0, c.Offset())
}

func TestConstNegativePanics(t *testing.T) {
	assert.Panics(t, func() { Const(-1) })
}

func TestVarPlusShiftsOffset(t *testing.T) {
	v := Var("incu_0").Plus(30).Plus(5)
	assert.False(t, v.IsConst())
	assert.Equal(t, "incu_0", v.Name())
	assert.Equal(t, 35.0, v.Offset())
}

func TestResolveConst(t *testing.T) {
	v, err := Const(12.5).Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, 12.5, v)
}

func TestResolveVarMissing(t *testing.T) {
	_, err := Var("x").Resolve(map[string]float64{"y": 1})
	assert.Error(t, err)
}

func TestResolveVarWithOffset(t *testing.T) {
	v, err := Var("x").Plus(10).Resolve(map[string]float64{"x": 2})
	require.NoError(t, err)
	assert.Equal(t, 12.0, v)
}

func TestMustResolvePanicsOnMissing(t *testing.T) {
	assert.Panics(t, func() {
		Var("x").MustResolve(nil)
	})
}

func TestString(t *testing.T) {
	assert.Equal(t, "5", Const(5).String())
	assert.Equal(t, "x", Var("x").String())
	assert.Equal(t, "x+3", Var("x").Plus(3).String())
}
