// Package runtime is the orchestrator tying the discoverer, resolver,
// pipeline, and loader together into the host-facing API (spec §2 data
// flow, §5 concurrency model, §6.2 external interfaces): one Bootstrap
// call to bring a tree of extensions up, Update to drive the running ones
// each tick, and Shutdown to tear them down in reverse load order.
package runtime

import (
	"context"
	"fmt"
	hostos "runtime"
	"time"

	"github.com/sunholo/extrt/internal/config"
	"github.com/sunholo/extrt/internal/extension"
	"github.com/sunholo/extrt/internal/failtracker"
	"github.com/sunholo/extrt/internal/langmodule"
	"github.com/sunholo/extrt/internal/loader"
	"github.com/sunholo/extrt/internal/manifest"
	"github.com/sunholo/extrt/internal/metrics"
	"github.com/sunholo/extrt/internal/pipeline"
	"github.com/sunholo/extrt/internal/platformops"
	"github.com/sunholo/extrt/internal/rtlog"
	"github.com/sunholo/extrt/internal/stages"
	"github.com/sunholo/extrt/internal/uid"
)

// Runtime owns one pipeline run's worth of extensions plus everything
// needed to drive and retire them.
type Runtime struct {
	Config  config.Config
	Log     *rtlog.Logger
	Metrics *metrics.Collector

	tracker    *failtracker.Tracker
	loader     *loader.ExtensionLoader
	extensions []*extension.Extension
	byID       map[uid.UniqueId]*extension.Extension
	loadOrder  []uid.UniqueId
	modules    map[string]langmodule.LanguageModule
	lastReport pipeline.Report
}

// New constructs a Runtime over the given config, using purego's real
// dlopen/dlsym bindings as its PlatformOps (spec §4.6, Open Question E.2).
func New(cfg config.Config) *Runtime {
	ops := platformops.NewPuregoOps()
	l := loader.NewExtensionLoader(ops)
	l.PreferOwnSymbols = cfg.Loading.PreferOwnSymbols
	return &Runtime{
		Config:  cfg,
		Log:     rtlog.Default(),
		Metrics: metrics.New(),
		tracker: failtracker.New(),
		loader:  l,
	}
}

// Bootstrap discovers every extension under root, runs it through the full
// Parsing -> Resolution -> Loading -> Exporting -> Starting pipeline
// (SPEC_FULL §C.2's "run <root>" wizard flow), and leaves successfully
// started extensions in the Running state.
func (r *Runtime) Bootstrap(ctx context.Context, root string) error {
	discoverer := loader.NewDiscoverer(root)
	found, err := discoverer.Discover()
	if err != nil {
		return fmt.Errorf("runtime: bootstrap: %w", err)
	}

	for _, e := range found {
		name := e.ID.Name()
		if !r.Config.IsWhitelisted(name) || r.Config.IsBlacklisted(name) {
			e.ForceState(extension.Disabled)
			r.Log.Warn("extension %s excluded by security policy", name)
		}
	}
	r.extensions = found
	r.byID = make(map[uid.UniqueId]*extension.Extension, len(found))
	for _, e := range found {
		r.byID[e.ID] = e
	}

	provider := &langmodule.Provider{
		Log: func(level, msg string) { r.Log.Info("[%s] %s", level, msg) },
	}

	loadStage := stages.NewLoadingStage(r.loader, r.tracker, r.Metrics, provider)
	resolutionStage := stages.NewResolutionStage()
	resolutionStage.HostPlatform = hostos.GOOS
	exporting := &stages.ExportingStage{Tracker: r.tracker}
	starting := &stages.StartingStage{Tracker: r.tracker}

	executor := pipeline.NewExecutor(
		r.Config.EffectiveThreads(),
		stages.NewParsingStage(stages.ReadManifestFile(loader.ManifestPath)),
		resolutionStage,
		loadStage,
		exporting,
		starting,
	)

	result, report := executor.Run(ctx, r.extensions)
	r.extensions = result
	r.lastReport = report
	r.modules = loadStage.ModulesSnapshot()
	r.loadOrder = resolutionStage.LastReport.LoadOrder

	for _, e := range result {
		r.byID[e.ID] = e
		if e.State() == extension.Loaded || e.State() == extension.Loading {
			r.Log.Warn("extension %s stalled in %s", e.ID.Name(), e.State())
		}
	}

	if report.Stopped {
		return fmt.Errorf("runtime: pipeline halted at required stage %q", report.StoppedAt)
	}
	return nil
}

// Extensions returns the current extension list in pipeline order.
func (r *Runtime) Extensions() []*extension.Extension { return r.extensions }

// ByName finds an extension by its manifest-declared name, for the
// interactive shell's :extension command.
func (r *Runtime) ByName(name string) (*extension.Extension, bool) {
	for _, e := range r.extensions {
		if e.Manifest != nil && e.Manifest.Name == name {
			return e, true
		}
	}
	return nil, false
}

// Report returns the statistics of the most recent Bootstrap run.
func (r *Runtime) Report() pipeline.Report { return r.lastReport }

// Update drives one tick: every Running module with HasUpdate gets
// OnUpdate, and every Running plugin with HasUpdate gets OnPluginUpdate
// through its hosting module (spec §5 per-tick ordering: modules before
// the plugins they host).
func (r *Runtime) Update(dt time.Duration) {
	for _, e := range r.sortedRunning() {
		if e.Type != manifest.TypeModule || !e.MethodTable.HasUpdate {
			continue
		}
		module, ok := r.modules[e.Manifest.Language]
		if !ok {
			continue
		}
		r.safeUpdate(e, func() { module.OnUpdate(dt) })
	}
	for _, e := range r.sortedRunning() {
		if e.Type != manifest.TypePlugin || !e.MethodTable.HasUpdate {
			continue
		}
		module, ok := r.modules[e.Manifest.Language]
		if !ok {
			continue
		}
		r.safeUpdate(e, func() { module.OnPluginUpdate(e, dt) })
	}
}

func (r *Runtime) safeUpdate(e *extension.Extension, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			e.AddError(fmt.Sprintf("update: recovered from panic: %v", rec))
			r.Log.Error("extension %s panicked during update: %v", e.Manifest.Name, rec)
		}
	}()
	fn()
}

func (r *Runtime) sortedRunning() []*extension.Extension {
	var out []*extension.Extension
	for _, e := range r.extensions {
		if e.State() == extension.Running {
			out = append(out, e)
		}
	}
	return out
}

// Shutdown retires every Running extension in the reverse of its load
// order (spec §5: dependents end before their dependencies), invoking
// OnPluginEnd for plugins and Shutdown for modules, then unloading the
// underlying assembly.
func (r *Runtime) Shutdown() {
	order := r.reverseLoadOrder()
	for _, id := range order {
		e, ok := r.byID[id]
		if !ok || e.State() != extension.Running {
			continue
		}
		r.retire(e)
	}
}

func (r *Runtime) retire(e *extension.Extension) {
	if err := e.SetState(extension.Ending); err != nil {
		e.AddError(err.Error())
		return
	}
	module, hasModule := r.modules[e.Manifest.Language]
	if hasModule {
		switch e.Type {
		case manifest.TypePlugin:
			if e.MethodTable.HasEnd {
				r.safeUpdate(e, func() { module.OnPluginEnd(e) })
			}
		case manifest.TypeModule:
			r.safeUpdate(e, module.Shutdown)
		}
	}
	_ = e.SetState(extension.Ended)
	_ = e.SetState(extension.Terminating)
	if e.Assembly != nil {
		if err := e.Assembly.Unload(); err != nil {
			e.AddWarning(fmt.Sprintf("shutdown: unload: %v", err))
		}
	}
	_ = e.SetState(extension.Terminated)
}

func (r *Runtime) reverseLoadOrder() []uid.UniqueId {
	out := make([]uid.UniqueId, len(r.loadOrder))
	copy(out, r.loadOrder)
	if len(out) == 0 {
		for _, e := range r.extensions {
			out = append(out, e.ID)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
