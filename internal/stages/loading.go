package stages

import (
	"fmt"
	"sync"
	"time"

	"github.com/sunholo/extrt/internal/extension"
	"github.com/sunholo/extrt/internal/failtracker"
	"github.com/sunholo/extrt/internal/langmodule"
	"github.com/sunholo/extrt/internal/loader"
	"github.com/sunholo/extrt/internal/manifest"
	"github.com/sunholo/extrt/internal/metrics"
	"github.com/sunholo/extrt/internal/pipeline"
	"github.com/sunholo/extrt/internal/uid"
)

// CtxLanguageModules publishes the language-name -> loaded module map so
// ExportingStage/StartingStage and the shell can inspect what is hosting
// what, without re-deriving it from the extension list.
const CtxLanguageModules = "language_modules"

// LoadingStage is spec §4.4.3: a Sequential stage that loads extensions in
// dependency order, skipping (and propagating failure to) any extension
// whose dependency already failed (spec §4.4.6 cascading failure).
type LoadingStage struct {
	Loader   *loader.ExtensionLoader
	Tracker  *failtracker.Tracker
	Metrics  *metrics.Collector
	Provider *langmodule.Provider

	mu      sync.Mutex
	modules map[string]langmodule.LanguageModule
	byID    map[uid.UniqueId]*extension.Extension
	reverse map[uid.UniqueId][]uid.UniqueId
}

// NewLoadingStage constructs a LoadingStage ready to run over one
// resolution's worth of extensions.
func NewLoadingStage(l *loader.ExtensionLoader, tracker *failtracker.Tracker, m *metrics.Collector, provider *langmodule.Provider) *LoadingStage {
	return &LoadingStage{
		Loader:   l,
		Tracker:  tracker,
		Metrics:  m,
		Provider: provider,
		modules:  make(map[string]langmodule.LanguageModule),
	}
}

func (*LoadingStage) Name() string          { return "loading" }
func (*LoadingStage) Kind() pipeline.Kind   { return pipeline.KindSequential }
func (*LoadingStage) Required() bool        { return false }
func (*LoadingStage) ContinueOnError() bool { return true }

func (s *LoadingStage) ShouldProcess(e *extension.Extension) bool {
	return e.State() == extension.Resolved
}

// ProcessItem loads one extension: modules first (guaranteed by
// ResolutionStage's load-order reordering, since every plugin carries a
// synthesized edge onto its language module), then plugins against the
// already-loaded module for their language.
func (s *LoadingStage) ProcessItem(e *extension.Extension, pos, total int, ctx *pipeline.Ctx) error {
	s.ensureGraphs(ctx)

	if failedDep, blocked := s.Tracker.AnyFailed(s.dependencyEdges(ctx, e.ID)); blocked {
		e.AddError(fmt.Sprintf("Skipped: dependency '%s' failed", failedDep.Name()))
		e.ForceState(extension.Skipped)
		s.Tracker.Mark(e.ID)
		s.Tracker.PropagateToDependents(e.ID, s.reverse)
		return fmt.Errorf("dependency %s failed", failedDep)
	}

	if err := e.StartOperation(extension.Loading); err != nil {
		return err
	}

	start := time.Now()
	var loadErr error
	switch e.Type {
	case manifest.TypeModule:
		loadErr = s.loadModule(e)
	case manifest.TypePlugin:
		loadErr = s.loadPlugin(e)
	default:
		loadErr = fmt.Errorf("loading: unknown extension type %q", e.Type)
	}
	elapsed := time.Since(start)
	if s.Metrics != nil {
		s.Metrics.RecordLoad(e.ID, elapsed, loadErr == nil)
	}

	if loadErr != nil {
		e.AddError(fmt.Sprintf("loading: %v", loadErr))
		_ = e.EndOperation(extension.Failed)
		s.Tracker.Mark(e.ID)
		s.Tracker.PropagateToDependents(e.ID, s.reverse)
		return loadErr
	}
	return e.EndOperation(extension.Loaded)
}

func (s *LoadingStage) loadModule(e *extension.Extension) error {
	module, err := s.Loader.LoadModule(e, s.Provider)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.modules[e.Manifest.Language] = module
	s.mu.Unlock()
	return nil
}

func (s *LoadingStage) loadPlugin(e *extension.Extension) error {
	s.mu.Lock()
	module, ok := s.modules[e.Manifest.Language]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("language module %q not loaded", e.Manifest.Language)
	}
	return s.Loader.LoadPlugin(e, module)
}

func (s *LoadingStage) ensureGraphs(ctx *pipeline.Ctx) {
	if s.reverse != nil {
		return
	}
	if v, ok := ctx.Get(CtxReverseDependencyGraph); ok {
		s.reverse = v.(map[uid.UniqueId][]uid.UniqueId)
	} else {
		s.reverse = map[uid.UniqueId][]uid.UniqueId{}
	}
	ctx.Set(CtxLanguageModules, s.modules)
}

// ModulesSnapshot returns the language-name -> module map assembled during
// loading, for Runtime to drive Update/Shutdown after the pipeline finishes.
func (s *LoadingStage) ModulesSnapshot() map[string]langmodule.LanguageModule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]langmodule.LanguageModule, len(s.modules))
	for k, v := range s.modules {
		out[k] = v
	}
	return out
}

func (s *LoadingStage) dependencyEdges(ctx *pipeline.Ctx, id uid.UniqueId) []uid.UniqueId {
	v, ok := ctx.Get(CtxDependencyGraph)
	if !ok {
		return nil
	}
	graph := v.(map[uid.UniqueId][]uid.UniqueId)
	return graph[id]
}
