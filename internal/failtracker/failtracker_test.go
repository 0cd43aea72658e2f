package failtracker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sunholo/extrt/internal/uid"
)

func TestMarkAndFailed(t *testing.T) {
	tr := New()
	a := uid.New("/ext/a", "a")
	assert.False(t, tr.Failed(a))
	tr.Mark(a)
	assert.True(t, tr.Failed(a))
}

func TestAnyFailed(t *testing.T) {
	tr := New()
	a := uid.New("/ext/a", "a")
	b := uid.New("/ext/b", "b")
	tr.Mark(b)

	id, ok := tr.AnyFailed([]uid.UniqueId{a, b})
	assert.True(t, ok)
	assert.Equal(t, b, id)

	_, ok = tr.AnyFailed([]uid.UniqueId{a})
	assert.False(t, ok)
}

func TestPropagateToDependents(t *testing.T) {
	tr := New()
	base := uid.New("/ext/base", "base")
	dependent := uid.New("/ext/dependent", "dependent")
	reverse := map[uid.UniqueId][]uid.UniqueId{
		base: {dependent},
	}

	tr.Mark(base)
	tr.PropagateToDependents(base, reverse)

	assert.True(t, tr.Failed(dependent))
}

func TestSnapshot(t *testing.T) {
	tr := New()
	a := uid.New("/ext/a", "a")
	b := uid.New("/ext/b", "b")
	tr.Mark(a)
	tr.Mark(b)

	snap := tr.Snapshot()
	assert.Len(t, snap, 2)
	assert.Contains(t, snap, a)
	assert.Contains(t, snap, b)
}
