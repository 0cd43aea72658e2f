package stages

import (
	"fmt"

	"github.com/sunholo/extrt/internal/extension"
	"github.com/sunholo/extrt/internal/failtracker"
	"github.com/sunholo/extrt/internal/langmodule"
	"github.com/sunholo/extrt/internal/manifest"
	"github.com/sunholo/extrt/internal/pipeline"
	"github.com/sunholo/extrt/internal/uid"
)

// ExportingStage is spec §4.4.4: a Sequential stage that gives loaded
// plugins a chance to publish their exported methods to other extensions
// before anything starts running. A module has no export step of its own —
// it becomes Running the moment it is Loaded, since it exists to host
// plugins rather than to run logic itself (spec §3 state diagram:
// Loaded -> Running is a direct edge).
type ExportingStage struct {
	Tracker *failtracker.Tracker

	reverse map[uid.UniqueId][]uid.UniqueId
}

func (*ExportingStage) Name() string          { return "exporting" }
func (*ExportingStage) Kind() pipeline.Kind   { return pipeline.KindSequential }
func (*ExportingStage) Required() bool        { return false }
func (*ExportingStage) ContinueOnError() bool { return true }

func (*ExportingStage) ShouldProcess(e *extension.Extension) bool {
	return e.State() == extension.Loaded
}

func (s *ExportingStage) ProcessItem(e *extension.Extension, pos, total int, ctx *pipeline.Ctx) error {
	s.ensureGraphs(ctx)

	if s.Tracker != nil {
		if failedDep, blocked := s.Tracker.AnyFailed(s.dependencyEdges(ctx, e.ID)); blocked {
			e.AddError(fmt.Sprintf("Skipped: dependency '%s' failed", failedDep.Name()))
			e.ForceState(extension.Skipped)
			s.markFailed(e)
			return fmt.Errorf("dependency %s failed", failedDep)
		}
	}

	if e.Type == manifest.TypeModule {
		return e.SetState(extension.Running)
	}

	if err := e.StartOperation(extension.Exporting); err != nil {
		return err
	}

	if e.MethodTable.HasExport {
		module, ok := s.moduleFor(ctx, e)
		if !ok {
			e.AddError(fmt.Sprintf("exporting: language module %q unavailable", e.Manifest.Language))
			_ = e.EndOperation(extension.Failed)
			s.markFailed(e)
			return fmt.Errorf("language module %q unavailable", e.Manifest.Language)
		}
		if err := s.safeCall(e, "on_method_export", func() error {
			module.OnMethodExport(e)
			return nil
		}); err != nil {
			_ = e.EndOperation(extension.Failed)
			s.markFailed(e)
			return err
		}
	}

	return e.EndOperation(extension.Exported)
}

// markFailed records e as failed and immediately cascades that failure onto
// its direct dependents (spec §4.4.6), the same two-step the Loading stage
// performs on its own failure paths.
func (s *ExportingStage) markFailed(e *extension.Extension) {
	if s.Tracker == nil {
		return
	}
	s.Tracker.Mark(e.ID)
	s.Tracker.PropagateToDependents(e.ID, s.reverse)
}

func (s *ExportingStage) ensureGraphs(ctx *pipeline.Ctx) {
	if s.reverse != nil {
		return
	}
	if v, ok := ctx.Get(CtxReverseDependencyGraph); ok {
		s.reverse = v.(map[uid.UniqueId][]uid.UniqueId)
	} else {
		s.reverse = map[uid.UniqueId][]uid.UniqueId{}
	}
}

func (*ExportingStage) dependencyEdges(ctx *pipeline.Ctx, id uid.UniqueId) []uid.UniqueId {
	v, ok := ctx.Get(CtxDependencyGraph)
	if !ok {
		return nil
	}
	return v.(map[uid.UniqueId][]uid.UniqueId)[id]
}

func (*ExportingStage) moduleFor(ctx *pipeline.Ctx, e *extension.Extension) (langmodule.LanguageModule, bool) {
	v, ok := ctx.Get(CtxLanguageModules)
	if !ok {
		return nil, false
	}
	modules := v.(map[string]langmodule.LanguageModule)
	m, ok := modules[e.Manifest.Language]
	return m, ok
}

// safeCall mirrors loader.ExtensionLoader's panic-safety contract (spec
// §4.5) for the lifecycle calls this stage makes directly.
func (*ExportingStage) safeCall(e *extension.Extension, op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: recovered from panic in %s: %v", e.Manifest.Name, op, r)
		}
	}()
	return fn()
}
