package version

import "testing"

import "github.com/stretchr/testify/assert"
import "github.com/stretchr/testify/require"

func TestParseAndCompare(t *testing.T) {
	v1 := MustParse("1.2.3")
	v2 := MustParse("1.3.0")
	assert.True(t, v1.LessThan(v2))
	assert.False(t, v2.LessThan(v1))
	assert.True(t, v1.Equal(MustParse("1.2.3")))
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse("not-a-version")
	require.Error(t, err)
}

func TestConstraintBasicRange(t *testing.T) {
	c, err := ParseConstraint(">=1.0.0, <2.0.0")
	require.NoError(t, err)
	assert.True(t, c.Matches(MustParse("1.5.0")))
	assert.False(t, c.Matches(MustParse("2.0.0")))
	assert.False(t, c.Matches(MustParse("0.9.0")))
}

func TestConstraintDisjunction(t *testing.T) {
	c, err := ParseConstraint(">=1.0.0, <2.0.0 || >=3.0.0")
	require.NoError(t, err)
	assert.True(t, c.Matches(MustParse("1.5.0")))
	assert.True(t, c.Matches(MustParse("3.1.0")))
	assert.False(t, c.Matches(MustParse("2.5.0")))
}

func TestConstraintPrereleaseOptIn(t *testing.T) {
	// A plain range never matches a prerelease unless a comparator
	// explicitly anchors the same major.minor.patch with a prerelease tag.
	c, err := ParseConstraint(">=1.0.0, <2.0.0")
	require.NoError(t, err)
	assert.False(t, c.Matches(MustParse("1.5.0-beta.1")))

	anchored, err := ParseConstraint(">=1.5.0-alpha, <2.0.0")
	require.NoError(t, err)
	assert.True(t, anchored.Matches(MustParse("1.5.0-beta.1")))
}

func TestHighestMatching(t *testing.T) {
	c, err := ParseConstraint(">=1.0.0")
	require.NoError(t, err)
	candidates := []Version{MustParse("1.0.0"), MustParse("1.5.0"), MustParse("0.9.0")}
	best, ok := HighestMatching(c, candidates)
	require.True(t, ok)
	assert.Equal(t, "1.5.0", best.String())
}

func TestSortDescending(t *testing.T) {
	vs := []Version{MustParse("1.0.0"), MustParse("2.0.0"), MustParse("1.5.0")}
	SortDescending(vs)
	assert.Equal(t, []string{"2.0.0", "1.5.0", "1.0.0"}, []string{vs[0].String(), vs[1].String(), vs[2].String()})
}
