package jit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunholo/extrt/internal/manifest"
	"github.com/sunholo/extrt/internal/valuetype"
)

func TestHiddenReturnForStructValues(t *testing.T) {
	sig := Signature{Return: valuetype.Matrix4x4, Args: []valuetype.ValueType{valuetype.Int32}}
	assert.True(t, sig.HiddenReturn())

	scalar := Signature{Return: valuetype.Int32, Args: []valuetype.ValueType{valuetype.Int32}}
	assert.False(t, scalar.HiddenReturn())
}

func TestLogicalArgCountExcludesHiddenPointer(t *testing.T) {
	sig := Signature{Return: valuetype.Int32, Args: []valuetype.ValueType{valuetype.Int32, valuetype.Float}}
	assert.Equal(t, 2, sig.LogicalArgCount())

	hidden := Signature{Return: valuetype.Matrix4x4, Args: []valuetype.ValueType{valuetype.Int32}}
	assert.Equal(t, 1, hidden.LogicalArgCount())
}

func TestCallbackGeneratorProducesNonZeroPointer(t *testing.T) {
	sig := Signature{
		CallingConvention: "cdecl",
		Return:            valuetype.Int32,
		Args:              []valuetype.ValueType{valuetype.Int32, valuetype.Float},
	}
	method := &manifest.Method{Name: "add"}

	var invoked bool
	handler := func(m *manifest.Method, userData uintptr, args []uint64, ret *Return) {
		invoked = true
	}

	ptr, err := CallbackGenerator{}.Generate(sig, method, 0, handler)
	require.NoError(t, err)
	assert.NotZero(t, ptr)
	// The trampoline is only invoked by foreign native code under the real
	// ABI; this test only confirms codegen succeeds and nothing panics.
	assert.False(t, invoked)
}

func TestCallbackGeneratorRejectsInvalidArgType(t *testing.T) {
	sig := Signature{
		Return: valuetype.Int32,
		Args:   []valuetype.ValueType{valuetype.Invalid},
	}
	_, err := CallbackGenerator{}.Generate(sig, &manifest.Method{}, 0, func(*manifest.Method, uintptr, []uint64, *Return) {})
	require.Error(t, err)
}

func TestCallbackGeneratorVoidReturnHasNoOutput(t *testing.T) {
	sig := Signature{Return: valuetype.Void, Args: []valuetype.ValueType{valuetype.Int32}}
	ptr, err := CallbackGenerator{}.Generate(sig, &manifest.Method{}, 0, func(*manifest.Method, uintptr, []uint64, *Return) {})
	require.NoError(t, err)
	assert.NotZero(t, ptr)
}
