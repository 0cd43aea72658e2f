package stages

import (
	"fmt"

	"github.com/sunholo/extrt/internal/extension"
	"github.com/sunholo/extrt/internal/failtracker"
	"github.com/sunholo/extrt/internal/langmodule"
	"github.com/sunholo/extrt/internal/pipeline"
	"github.com/sunholo/extrt/internal/uid"
)

// StartingStage is spec §4.4.5: the last Sequential stage, invoking a
// plugin's on_plugin_start (when its method table declares it) and then
// moving the plugin into Running, where the runtime's update loop takes
// over (spec §5).
type StartingStage struct {
	Tracker *failtracker.Tracker

	reverse map[uid.UniqueId][]uid.UniqueId
}

func (*StartingStage) Name() string          { return "starting" }
func (*StartingStage) Kind() pipeline.Kind   { return pipeline.KindSequential }
func (*StartingStage) Required() bool        { return false }
func (*StartingStage) ContinueOnError() bool { return true }

func (*StartingStage) ShouldProcess(e *extension.Extension) bool {
	return e.State() == extension.Exported
}

func (s *StartingStage) ProcessItem(e *extension.Extension, pos, total int, ctx *pipeline.Ctx) error {
	s.ensureGraphs(ctx)

	if s.Tracker != nil {
		if failedDep, blocked := s.Tracker.AnyFailed(s.dependencyEdges(ctx, e.ID)); blocked {
			e.AddError(fmt.Sprintf("Skipped: dependency '%s' failed", failedDep.Name()))
			e.ForceState(extension.Skipped)
			s.markFailed(e)
			return fmt.Errorf("dependency %s failed", failedDep)
		}
	}

	if err := e.StartOperation(extension.Starting); err != nil {
		return err
	}

	if e.MethodTable.HasStart {
		module, ok := s.moduleFor(ctx, e)
		if !ok {
			e.AddError(fmt.Sprintf("starting: language module %q unavailable", e.Manifest.Language))
			_ = e.EndOperation(extension.Failed)
			s.markFailed(e)
			return fmt.Errorf("language module %q unavailable", e.Manifest.Language)
		}
		if err := s.safeCall(e, "on_plugin_start", func() error {
			module.OnPluginStart(e)
			return nil
		}); err != nil {
			_ = e.EndOperation(extension.Failed)
			s.markFailed(e)
			return err
		}
	}

	if err := e.EndOperation(extension.Started); err != nil {
		return err
	}
	return e.SetState(extension.Running)
}

// markFailed records e as failed and immediately cascades that failure onto
// its direct dependents (spec §4.4.6), the same two-step the Loading stage
// performs on its own failure paths.
func (s *StartingStage) markFailed(e *extension.Extension) {
	if s.Tracker == nil {
		return
	}
	s.Tracker.Mark(e.ID)
	s.Tracker.PropagateToDependents(e.ID, s.reverse)
}

func (s *StartingStage) ensureGraphs(ctx *pipeline.Ctx) {
	if s.reverse != nil {
		return
	}
	if v, ok := ctx.Get(CtxReverseDependencyGraph); ok {
		s.reverse = v.(map[uid.UniqueId][]uid.UniqueId)
	} else {
		s.reverse = map[uid.UniqueId][]uid.UniqueId{}
	}
}

func (*StartingStage) dependencyEdges(ctx *pipeline.Ctx, id uid.UniqueId) []uid.UniqueId {
	v, ok := ctx.Get(CtxDependencyGraph)
	if !ok {
		return nil
	}
	return v.(map[uid.UniqueId][]uid.UniqueId)[id]
}

func (*StartingStage) moduleFor(ctx *pipeline.Ctx, e *extension.Extension) (langmodule.LanguageModule, bool) {
	v, ok := ctx.Get(CtxLanguageModules)
	if !ok {
		return nil, false
	}
	modules := v.(map[string]langmodule.LanguageModule)
	m, ok := modules[e.Manifest.Language]
	return m, ok
}

func (*StartingStage) safeCall(e *extension.Extension, op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: recovered from panic in %s: %v", e.Manifest.Name, op, r)
		}
	}()
	return fn()
}
