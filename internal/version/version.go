// Package version wraps semantic-version parsing and range matching for
// extension manifests, built on top of github.com/Masterminds/semver/v3 the
// same way the rest of the dependency pack pins that library for version
// constraints rather than hand-rolling comparison logic.
package version

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Version is a parsed semantic version: major.minor.patch plus optional
// prerelease identifiers and build metadata, ordered per SemVer precedence.
type Version struct {
	raw *semver.Version
}

// Parse parses a semantic version string.
func Parse(s string) (Version, error) {
	v, err := semver.NewVersion(strings.TrimSpace(s))
	if err != nil {
		return Version{}, fmt.Errorf("version: invalid version %q: %w", s, err)
	}
	return Version{raw: v}, nil
}

// MustParse parses a version, panicking on error. Intended for literals in
// tests and constant-like initialization, not for manifest input.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String renders the version in canonical form.
func (v Version) String() string {
	if v.raw == nil {
		return "0.0.0"
	}
	return v.raw.String()
}

// Compare returns -1, 0, or 1 per SemVer precedence.
func (v Version) Compare(other Version) int {
	return v.raw.Compare(other.raw)
}

// LessThan reports whether v sorts before other.
func (v Version) LessThan(other Version) bool { return v.Compare(other) < 0 }

// Equal reports SemVer-precedence equality (build metadata ignored).
func (v Version) Equal(other Version) bool { return v.Compare(other) == 0 }

// IsPrerelease reports whether the version carries a prerelease tag.
func (v Version) IsPrerelease() bool {
	return v.raw != nil && v.raw.Prerelease() != ""
}

// SamePatch reports whether two versions share major.minor.patch, ignoring
// prerelease and build metadata. Used by RangeSet's opt-in prerelease rule.
func (v Version) SamePatch(other Version) bool {
	return v.raw.Major() == other.raw.Major() &&
		v.raw.Minor() == other.raw.Minor() &&
		v.raw.Patch() == other.raw.Patch()
}

// Operator is a single range comparator.
type Operator string

const (
	OpLT Operator = "<"
	OpLE Operator = "<="
	OpGT Operator = ">"
	OpGE Operator = ">="
	OpEQ Operator = "="
)

// Comparator is one (operator, version) pair.
type Comparator struct {
	Op      Operator
	Version Version
}

func (c Comparator) matches(v Version) bool {
	cmp := v.Compare(c.Version)
	switch c.Op {
	case OpLT:
		return cmp < 0
	case OpLE:
		return cmp <= 0
	case OpGT:
		return cmp > 0
	case OpGE:
		return cmp >= 0
	case OpEQ:
		return cmp == 0
	default:
		return false
	}
}

// Conjunction is a set of comparators that must all match (an "and" group,
// e.g. ">=1.0.0, <2.0.0").
type Conjunction []Comparator

func (c Conjunction) matches(v Version) bool {
	for _, cmp := range c {
		if !cmp.matches(v) {
			return false
		}
	}
	return true
}

// hasPrereleaseAnchor reports whether any comparator in the conjunction
// names a version carrying the same (major,minor,patch) and a prerelease
// tag as v — the opt-in condition from spec.md §3.
func (c Conjunction) hasPrereleaseAnchor(v Version) bool {
	for _, cmp := range c {
		if cmp.Version.IsPrerelease() && cmp.Version.SamePatch(v) {
			return true
		}
	}
	return false
}

// Constraint is a disjunctive set of conjunctions ("or" of "and"s), e.g.
// ">=1.0.0, <2.0.0 || >=3.0.0".
type Constraint struct {
	raw          string
	conjunctions []Conjunction
}

// ParseConstraint parses a constraint string. Conjunctions are separated by
// "||"; comparators within a conjunction are comma-separated.
func ParseConstraint(s string) (Constraint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		s = "*"
	}
	var conjs []Conjunction
	for _, part := range strings.Split(s, "||") {
		conj, err := parseConjunction(part)
		if err != nil {
			return Constraint{}, err
		}
		conjs = append(conjs, conj)
	}
	return Constraint{raw: s, conjunctions: conjs}, nil
}

func parseConjunction(s string) (Conjunction, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return Conjunction{{Op: OpGE, Version: MustParse("0.0.0")}}, nil
	}
	var comparators []Comparator
	for _, term := range strings.Split(s, ",") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		op, rest := splitOperator(term)
		v, err := Parse(rest)
		if err != nil {
			return nil, fmt.Errorf("version: bad constraint term %q: %w", term, err)
		}
		comparators = append(comparators, Comparator{Op: op, Version: v})
	}
	if len(comparators) == 0 {
		return nil, fmt.Errorf("version: empty constraint term %q", s)
	}
	return comparators, nil
}

func splitOperator(term string) (Operator, string) {
	for _, op := range []Operator{OpLE, OpGE, OpLT, OpGT, OpEQ} {
		if strings.HasPrefix(term, string(op)) {
			return op, strings.TrimSpace(strings.TrimPrefix(term, string(op)))
		}
	}
	return OpEQ, term
}

// String returns the original constraint text.
func (c Constraint) String() string { return c.raw }

// Matches reports whether v satisfies the constraint: any conjunction
// matching is sufficient, but a prerelease version only participates in a
// conjunction that explicitly anchors a prerelease at the same patch level.
func (c Constraint) Matches(v Version) bool {
	for _, conj := range c.conjunctions {
		if !conj.matches(v) {
			continue
		}
		if v.IsPrerelease() && !conj.hasPrereleaseAnchor(v) {
			continue
		}
		return true
	}
	return false
}

// HighestMatching returns the highest version in candidates satisfying c,
// and whether any candidate matched.
func HighestMatching(c Constraint, candidates []Version) (Version, bool) {
	var best Version
	found := false
	for _, v := range candidates {
		if !c.Matches(v) {
			continue
		}
		if !found || best.LessThan(v) {
			best, found = v, true
		}
	}
	return best, found
}

// SortDescending sorts versions from highest to lowest precedence.
func SortDescending(vs []Version) {
	sort.Slice(vs, func(i, j int) bool { return vs[j].LessThan(vs[i]) })
}
