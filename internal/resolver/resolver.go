// Package resolver implements the dependency resolver (spec §4.2,
// component C5): version-constrained topological ordering over a
// heterogeneous graph including implicit language-module dependencies,
// with cycle detection, conflict/obsolete handling, and a structured
// diagnostic report. The topological-sort and cycle-detection shape is
// grounded on the teacher's internal/link/topo.go (DFS over a dependency
// map, cycle-path reporting via a canonical rotation); the fuzzy
// suggested-fix idiom is grounded on the teacher's
// internal/link/module_linker.go suggestModules/suggestExports helpers.
package resolver

import (
	"fmt"
	"sort"

	"github.com/sunholo/extrt/internal/extension"
	"github.com/sunholo/extrt/internal/manifest"
	"github.com/sunholo/extrt/internal/uid"
	"github.com/sunholo/extrt/internal/version"
)

// Problem classifies a DependencyIssue.
type Problem string

const (
	ProblemDuplicateName     Problem = "duplicate-name"
	ProblemLanguageModule    Problem = "language-module-missing"
	ProblemObsoleted         Problem = "obsoleted"
	ProblemConflict          Problem = "conflict"
	ProblemDependencyMissing Problem = "dependency-missing"
	ProblemVersionConflict   Problem = "version-conflict"
	ProblemCycle             Problem = "cycle"
)

// DependencyIssue is one diagnostic attached to an affected extension,
// optionally naming a second involved extension (spec §3).
type DependencyIssue struct {
	Affected       uid.UniqueId
	Involved       uid.UniqueId
	Problem        Problem
	Description    string
	SuggestedFixes []string
	IsBlocking     bool
}

// GetDetailedDescription renders the issue with its involved extension,
// mirroring original_source's DependencyIssue::GetDetailedDescription.
func (i DependencyIssue) GetDetailedDescription() string {
	if i.Involved.IsZero() {
		return i.Description
	}
	return fmt.Sprintf("%s (involving %s)", i.Description, i.Involved)
}

// ResolutionReport is the resolver's full output (spec §3).
type ResolutionReport struct {
	Issues                 map[uid.UniqueId][]DependencyIssue
	DependencyGraph        map[uid.UniqueId][]uid.UniqueId
	ReverseDependencyGraph map[uid.UniqueId][]uid.UniqueId
	LoadOrder              []uid.UniqueId
	IsLoadOrderValid       bool
}

func newReport() *ResolutionReport {
	return &ResolutionReport{
		Issues:                 make(map[uid.UniqueId][]DependencyIssue),
		DependencyGraph:        make(map[uid.UniqueId][]uid.UniqueId),
		ReverseDependencyGraph: make(map[uid.UniqueId][]uid.UniqueId),
	}
}

func (r *ResolutionReport) addIssue(affected uid.UniqueId, issue DependencyIssue) {
	r.Issues[affected] = append(r.Issues[affected], issue)
}

// candidate tracks per-extension working state during resolution.
type candidate struct {
	ext    *extension.Extension
	viable bool
	edges  []uid.UniqueId // dependency edges: this -> dep
}

// Resolve runs the full algorithm of spec §4.2 over already-Parsed
// extensions and returns a ResolutionReport.
func Resolve(extensions []*extension.Extension) ResolutionReport {
	report := newReport()
	byID := make(map[uid.UniqueId]*candidate, len(extensions))
	order := make([]uid.UniqueId, 0, len(extensions))
	for _, e := range extensions {
		byID[e.ID] = &candidate{ext: e, viable: true}
		order = append(order, e.ID)
	}
	sort.Slice(order, func(i, j int) bool { return byID[order[i]].ext.Manifest.Name < byID[order[j]].ext.Manifest.Name })

	// Step 1: duplicate names, keep highest version.
	byName := make(map[string][]uid.UniqueId)
	for _, id := range order {
		name := byID[id].ext.Manifest.Name
		byName[name] = append(byName[name], id)
	}
	for name, ids := range byName {
		if len(ids) <= 1 {
			continue
		}
		sort.Slice(ids, func(i, j int) bool {
			vi, _ := byID[ids[i]].ext.Manifest.ParsedVersion()
			vj, _ := byID[ids[j]].ext.Manifest.ParsedVersion()
			return vi.LessThan(vj)
		})
		winner := ids[len(ids)-1]
		for _, id := range ids[:len(ids)-1] {
			byID[id].viable = false
			report.addIssue(id, DependencyIssue{
				Affected:    id,
				Involved:    winner,
				Problem:     ProblemDuplicateName,
				Description: fmt.Sprintf("duplicate name %q: superseded by higher version %s", name, byID[winner].ext.Manifest.Version),
				IsBlocking:  true,
			})
			byID[id].ext.ForceState(extension.Unresolved)
		}
		_ = name
	}

	// Step 2: synthesize plugin -> language-module dependencies.
	moduleByLanguage := make(map[string]uid.UniqueId)
	for _, id := range order {
		c := byID[id]
		if !c.viable || c.ext.Manifest.Type != manifest.TypeModule {
			continue
		}
		moduleByLanguage[c.ext.Manifest.Language] = id
	}
	for _, id := range order {
		c := byID[id]
		if !c.viable || c.ext.Manifest.Type != manifest.TypePlugin {
			continue
		}
		modID, ok := moduleByLanguage[c.ext.Manifest.Language]
		if !ok {
			c.viable = false
			c.ext.ForceState(extension.Unresolved)
			report.addIssue(id, DependencyIssue{
				Affected:    id,
				Problem:     ProblemLanguageModule,
				Description: fmt.Sprintf("Language module '%s' is missing", c.ext.Manifest.Language),
				IsBlocking:  true,
			})
			continue
		}
		c.edges = append(c.edges, modID)
	}

	// Step 3: obsoletes.
	for _, id := range order {
		c := byID[id]
		if !c.viable {
			continue
		}
		for _, obsolete := range c.ext.Manifest.Obsoletes {
			for _, otherID := range byName[obsolete.Name] {
				if otherID == id || !byID[otherID].viable {
					continue
				}
				if !matchesConstraint(byID[otherID].ext, obsolete.Constraint) {
					continue
				}
				byID[otherID].viable = false
				byID[otherID].ext.ForceState(extension.Unresolved)
				report.addIssue(otherID, DependencyIssue{
					Affected:    otherID,
					Involved:    id,
					Problem:     ProblemObsoleted,
					Description: fmt.Sprintf("obsoleted by %s", c.ext.Manifest.Name),
					IsBlocking:  true,
				})
			}
		}
	}

	// Step 4: conflicts.
	for _, id := range order {
		c := byID[id]
		if !c.viable {
			continue
		}
		for _, conflict := range c.ext.Manifest.Conflicts {
			for _, otherID := range byName[conflict.Name] {
				if otherID == id || !byID[otherID].viable {
					continue
				}
				if !matchesConstraint(byID[otherID].ext, conflict.Constraint) {
					continue
				}
				report.addIssue(id, DependencyIssue{
					Affected:    id,
					Involved:    otherID,
					Problem:     ProblemConflict,
					Description: fmt.Sprintf("conflicts with %s", byID[otherID].ext.Manifest.Name),
					IsBlocking:  true,
				})
				c.viable = false
			}
		}
		if !c.viable {
			c.ext.ForceState(extension.Unresolved)
		}
	}

	// Step 5: dependency existence + version checks.
	for _, id := range order {
		c := byID[id]
		if !c.viable {
			continue
		}
		for _, dep := range c.ext.Manifest.Dependencies {
			candidates, exists := byName[dep.Name]
			if !exists || len(candidates) == 0 {
				if dep.Optional {
					continue
				}
				c.viable = false
				report.addIssue(id, DependencyIssue{
					Affected:       id,
					Problem:        ProblemDependencyMissing,
					Description:    fmt.Sprintf("Dependency '%s' not found", dep.Name),
					SuggestedFixes: suggestNames(dep.Name, allNames(byName)),
					IsBlocking:     true,
				})
				continue
			}
			matchID, available, ok := bestMatch(byID, candidates, dep.Constraint)
			if !ok {
				if dep.Optional {
					continue
				}
				c.viable = false
				report.addIssue(id, DependencyIssue{
					Affected:    id,
					Problem:     ProblemVersionConflict,
					Description: fmt.Sprintf("no version of '%s' satisfies constraint; available: %s, required: %s", dep.Name, available, dep.Constraint),
					IsBlocking:  true,
				})
				continue
			}
			c.edges = append(c.edges, matchID)
		}
		if !c.viable {
			c.ext.ForceState(extension.Unresolved)
		}
	}

	// Step 6: cycle detection (Tarjan SCC) over viable extensions.
	viableIDs := make([]uid.UniqueId, 0, len(order))
	for _, id := range order {
		if byID[id].viable {
			viableIDs = append(viableIDs, id)
		}
	}
	sccs := tarjanSCC(viableIDs, byID)
	cyclic := make(map[uid.UniqueId]bool)
	hasCycle := false
	for _, scc := range sccs {
		isSelfLoop := len(scc) == 1 && hasEdge(byID[scc[0]], scc[0])
		if len(scc) > 1 || isSelfLoop {
			hasCycle = true
			sort.Slice(scc, func(i, j int) bool { return byID[scc[i]].ext.Manifest.Name < byID[scc[j]].ext.Manifest.Name })
			cyclePath := append(append([]uid.UniqueId{}, scc...), scc[0])
			for _, id := range scc {
				cyclic[id] = true
				report.addIssue(id, DependencyIssue{
					Affected:    id,
					Problem:     ProblemCycle,
					Description: fmt.Sprintf("circular dependency: %s", renderCycle(cyclePath, byID)),
					IsBlocking:  true,
				})
			}
		}
	}
	for id := range cyclic {
		byID[id].viable = false
		byID[id].ext.ForceState(extension.Unresolved)
	}

	// Step 7: topological sort (Kahn's algorithm, module-first then name
	// as the deterministic tie-break) over the remaining acyclic subgraph.
	finalViable := make([]uid.UniqueId, 0, len(order))
	for _, id := range order {
		if byID[id].viable {
			finalViable = append(finalViable, id)
		}
	}
	loadOrder := topoSort(finalViable, byID)
	report.LoadOrder = loadOrder
	report.IsLoadOrderValid = !hasCycle

	// Step 8: dependency_graph / reverse_dependency_graph over viable ids.
	viableSet := make(map[uid.UniqueId]bool, len(finalViable))
	for _, id := range finalViable {
		viableSet[id] = true
	}
	for _, id := range finalViable {
		c := byID[id]
		deps := make([]uid.UniqueId, 0, len(c.edges))
		for _, d := range c.edges {
			if viableSet[d] {
				deps = append(deps, d)
			}
		}
		sort.Slice(deps, func(i, j int) bool { return deps[i].Name() < deps[j].Name() })
		report.DependencyGraph[id] = deps
		for _, d := range deps {
			report.ReverseDependencyGraph[d] = append(report.ReverseDependencyGraph[d], id)
		}
	}
	for id := range report.ReverseDependencyGraph {
		sort.Slice(report.ReverseDependencyGraph[id], func(i, j int) bool {
			return report.ReverseDependencyGraph[id][i].Name() < report.ReverseDependencyGraph[id][j].Name()
		})
	}

	return *report
}

func matchesConstraint(ext *extension.Extension, constraint string) bool {
	v, err := ext.Manifest.ParsedVersion()
	if err != nil {
		return false
	}
	if constraint == "" {
		return true
	}
	c, err := version.ParseConstraint(constraint)
	if err != nil {
		return false
	}
	return c.Matches(v)
}

func bestMatch(byID map[uid.UniqueId]*candidate, candidates []uid.UniqueId, constraint string) (uid.UniqueId, string, bool) {
	var versions []version.Version
	byVersion := make(map[string]uid.UniqueId)
	for _, id := range candidates {
		v, err := byID[id].ext.Manifest.ParsedVersion()
		if err != nil {
			continue
		}
		versions = append(versions, v)
		byVersion[v.String()] = id
	}
	if constraint == "" {
		if len(versions) == 0 {
			return uid.UniqueId{}, "", false
		}
		version.SortDescending(versions)
		return byVersion[versions[0].String()], versions[0].String(), true
	}
	c, err := version.ParseConstraint(constraint)
	if err != nil {
		return uid.UniqueId{}, describeVersions(versions), false
	}
	best, ok := version.HighestMatching(c, versions)
	if !ok {
		return uid.UniqueId{}, describeVersions(versions), false
	}
	return byVersion[best.String()], best.String(), true
}

func describeVersions(versions []version.Version) string {
	if len(versions) == 0 {
		return "none"
	}
	out := ""
	for i, v := range versions {
		if i > 0 {
			out += ", "
		}
		out += v.String()
	}
	return out
}

func allNames(byName map[string][]uid.UniqueId) []string {
	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// suggestNames ranks candidate names by length-difference to the missing
// name, preferring shared-prefix matches, mirroring the teacher's
// suggestModules/suggestExports fuzzy-match idiom (internal/link).
func suggestNames(missing string, candidates []string) []string {
	type scored struct {
		name  string
		score int
	}
	var scoredNames []scored
	for _, c := range candidates {
		diff := len(c) - len(missing)
		if diff < 0 {
			diff = -diff
		}
		score := diff
		if len(c) >= len(missing) && c[:min(len(c), len(missing))] == missing[:min(len(c), len(missing))] {
			score -= 100
		}
		scoredNames = append(scoredNames, scored{c, score})
	}
	sort.Slice(scoredNames, func(i, j int) bool { return scoredNames[i].score < scoredNames[j].score })
	var out []string
	for i, s := range scoredNames {
		if i >= 3 {
			break
		}
		out = append(out, fmt.Sprintf("did you mean %q?", s.name))
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func hasEdge(c *candidate, target uid.UniqueId) bool {
	for _, e := range c.edges {
		if e == target {
			return true
		}
	}
	return false
}

func renderCycle(path []uid.UniqueId, byID map[uid.UniqueId]*candidate) string {
	out := ""
	for i, id := range path {
		if i > 0 {
			out += " -> "
		}
		out += byID[id].ext.Manifest.Name
	}
	return out
}
