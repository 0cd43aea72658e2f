package uid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIsStableAndDistinct(t *testing.T) {
	a1 := New("/ext/a", "alpha")
	a2 := New("/ext/a", "alpha")
	b := New("/ext/b", "alpha")

	assert.Equal(t, a1, a2)
	assert.NotEqual(t, a1, b)
	assert.Equal(t, "alpha", a1.Name())
}

func TestZeroValue(t *testing.T) {
	var z UniqueId
	assert.True(t, z.IsZero())
	assert.False(t, New("x", "y").IsZero())
}

func TestKeyUniqueness(t *testing.T) {
	a := New("/ext/a", "alpha")
	b := New("/ext/b", "beta")
	assert.NotEqual(t, a.Key(), b.Key())
}
