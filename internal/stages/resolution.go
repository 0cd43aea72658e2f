package stages

import (
	"fmt"
	"sort"

	"github.com/sunholo/extrt/internal/extension"
	"github.com/sunholo/extrt/internal/pipeline"
	"github.com/sunholo/extrt/internal/resolver"
	"github.com/sunholo/extrt/internal/uid"
)

// Shared context keys published by ResolutionStage for downstream stages
// and for the interactive shell's read-only introspection commands.
const (
	CtxDependencyGraph        = "dependency_graph"
	CtxReverseDependencyGraph = "reverse_dependency_graph"
	CtxLoadOrder              = "load_order"
	CtxResolutionReport       = "resolution_report"
)

// ResolutionStage is spec §4.4.2: a Barrier stage that runs the whole
// dependency resolver once over every Parsed extension, since resolution
// is inherently a whole-graph operation (duplicate names, cycles, and
// topological order cannot be decided one extension at a time).
type ResolutionStage struct {
	// HostPlatform is the running host's platform tag, checked against
	// each manifest's Platforms list before the extension enters the
	// resolver (spec §4.4.2: drop extensions failing whitelist/
	// blacklist/platform checks -> Disabled with a warning). Empty
	// disables the check, which the zero-value ResolutionStage does.
	HostPlatform string

	LastReport resolver.ResolutionReport
}

// NewResolutionStage returns a ResolutionStage whose LastReport becomes
// readable once ProcessAll has run, so Runtime can recover the load order
// without the pipeline executor needing to expose its internal Ctx.
func NewResolutionStage() *ResolutionStage { return &ResolutionStage{} }

func (*ResolutionStage) Name() string                            { return "resolution" }
func (*ResolutionStage) Kind() pipeline.Kind                     { return pipeline.KindBarrier }
func (*ResolutionStage) Required() bool                          { return true }
func (*ResolutionStage) ShouldProcess(*extension.Extension) bool { return true }

// ProcessAll transitions every Parsed extension through Resolving and into
// one of Resolved/Unresolved/Disabled/Skipped (spec §3), then publishes the
// resolution artifacts into ctx for later stages and shell inspection.
func (s *ResolutionStage) ProcessAll(items []*extension.Extension, ctx *pipeline.Ctx) ([]*extension.Extension, error) {
	byID := make(map[uid.UniqueId]*extension.Extension, len(items))
	var eligible []*extension.Extension
	var excludedByPlatform int
	for _, e := range items {
		byID[e.ID] = e
		if e.State() != extension.Parsed {
			continue
		}
		if s.HostPlatform != "" && e.Manifest != nil && !e.Manifest.SupportsPlatform(s.HostPlatform) {
			e.AddWarning(fmt.Sprintf("excluded: unsupported platform %s", s.HostPlatform))
			e.ForceState(extension.Disabled)
			excludedByPlatform++
			continue
		}
		if err := e.StartOperation(extension.Resolving); err != nil {
			return items, err
		}
		eligible = append(eligible, e)
	}

	report := resolver.Resolve(eligible)
	s.LastReport = report

	for _, e := range eligible {
		if e.State() == extension.Resolving {
			_ = e.EndOperation(extension.Resolved)
		}
	}

	ctx.Set(CtxDependencyGraph, report.DependencyGraph)
	ctx.Set(CtxReverseDependencyGraph, report.ReverseDependencyGraph)
	ctx.Set(CtxLoadOrder, report.LoadOrder)
	ctx.Set(CtxResolutionReport, report)

	if len(eligible) > 0 && (len(report.LoadOrder) == 0 || !report.IsLoadOrderValid) {
		filtered := len(items) - len(eligible)
		excluded := len(eligible) - len(report.LoadOrder)
		return items, fmt.Errorf(
			"resolution: load order %s (filtered=%d, excluded=%d, disabled_by_platform=%d)",
			loadOrderState(report), filtered, excluded, excludedByPlatform)
	}

	return s.reorder(items, byID, report.LoadOrder), nil
}

func loadOrderState(report resolver.ResolutionReport) string {
	if !report.IsLoadOrderValid {
		return "invalid (dependency cycle)"
	}
	return "empty"
}

// reorder places resolved extensions first, in load order, followed by
// every other extension sorted by display name, so the Loading stage's
// sequential pass naturally respects spec §4.2's ordering guarantee without
// needing to consult the graph itself.
func (s *ResolutionStage) reorder(items []*extension.Extension, byID map[uid.UniqueId]*extension.Extension, loadOrder []uid.UniqueId) []*extension.Extension {
	placed := make(map[uid.UniqueId]bool, len(loadOrder))
	out := make([]*extension.Extension, 0, len(items))
	for _, id := range loadOrder {
		if e, ok := byID[id]; ok {
			out = append(out, e)
			placed[id] = true
		}
	}
	var rest []*extension.Extension
	for _, e := range items {
		if !placed[e.ID] {
			rest = append(rest, e)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool { return rest[i].ID.Name() < rest[j].ID.Name() })
	return append(out, rest...)
}
