package xerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInfersCategory(t *testing.T) {
	r := New(ResDepMissing, "resolution", "dependency not found")
	assert.Equal(t, CategoryDependency, r.Category)
	assert.False(t, r.Retryable)
}

func TestNewRetryableCode(t *testing.T) {
	r := New(LdrFileNotFound, "loading", "file missing")
	assert.True(t, r.Retryable)
}

func TestWrapAndAs(t *testing.T) {
	r := New(JitUnsupportedWidth, "jit", "unsupported width")
	err := Wrap(r)

	var wrapped error = errors.New("outer")
	wrapped = errors.Join(wrapped, err)

	got, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, JitUnsupportedWidth, got.Code)
}

func TestAsMissesPlainError(t *testing.T) {
	_, ok := As(errors.New("plain"))
	assert.False(t, ok)
}

func TestToJSONRoundTrips(t *testing.T) {
	r := New(PltLoadFailed, "platform", "dlopen failed").WithData("path", "/lib/foo.so")
	out, err := r.ToJSON(true)
	require.NoError(t, err)
	assert.Contains(t, out, "extrt.error/v1")
	assert.Contains(t, out, "PLT002")
}
