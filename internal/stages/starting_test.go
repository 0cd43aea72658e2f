package stages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunholo/extrt/internal/extension"
	"github.com/sunholo/extrt/internal/failtracker"
	"github.com/sunholo/extrt/internal/langmodule"
	"github.com/sunholo/extrt/internal/manifest"
	"github.com/sunholo/extrt/internal/pipeline"
	"github.com/sunholo/extrt/internal/uid"
)

func exportedExtension(name, language string, hasStart bool) *extension.Extension {
	e := extension.New(uid.New("/ext/"+name, name), manifest.TypePlugin, "/ext/"+name)
	e.Manifest = &manifest.Manifest{Name: name, Language: language, Type: manifest.TypePlugin}
	e.MethodTable = extension.MethodTable{HasStart: hasStart}
	_ = e.SetState(extension.Discovered)
	_ = e.StartOperation(extension.Parsing)
	_ = e.EndOperation(extension.Parsed)
	_ = e.StartOperation(extension.Resolving)
	_ = e.EndOperation(extension.Resolved)
	_ = e.StartOperation(extension.Loading)
	_ = e.EndOperation(extension.Loaded)
	_ = e.StartOperation(extension.Exporting)
	_ = e.EndOperation(extension.Exported)
	return e
}

func TestStartingStageCallsOnPluginStartAndRuns(t *testing.T) {
	mod := &fakeModule{}
	stage := &StartingStage{}
	p := exportedExtension("greeter", "lua", true)
	ctx := ctxWithModules(map[string]langmodule.LanguageModule{"lua": mod})

	err := stage.ProcessItem(p, 0, 1, ctx)
	require.NoError(t, err)
	assert.True(t, mod.startCalled)
	assert.Equal(t, extension.Running, p.State())
}

func TestStartingStageSkipsStartWhenFlagClear(t *testing.T) {
	mod := &fakeModule{}
	stage := &StartingStage{}
	p := exportedExtension("greeter", "lua", false)
	ctx := ctxWithModules(map[string]langmodule.LanguageModule{"lua": mod})

	err := stage.ProcessItem(p, 0, 1, ctx)
	require.NoError(t, err)
	assert.False(t, mod.startCalled)
	assert.Equal(t, extension.Running, p.State())
}

func TestStartingStageSkipsWhenDependencyFailed(t *testing.T) {
	tracker := failtracker.New()
	stage := &StartingStage{Tracker: tracker}

	dep := exportedExtension("core", "lua", false)
	p := exportedExtension("greeter", "lua", false)
	tracker.Mark(dep.ID)

	ctx := &pipeline.Ctx{Shared: map[string]any{
		CtxLanguageModules:        map[string]langmodule.LanguageModule{},
		CtxDependencyGraph:        map[uid.UniqueId][]uid.UniqueId{p.ID: {dep.ID}},
		CtxReverseDependencyGraph: map[uid.UniqueId][]uid.UniqueId{},
	}}

	err := stage.ProcessItem(p, 0, 1, ctx)
	require.Error(t, err)
	assert.Equal(t, extension.Skipped, p.State())
	assert.True(t, tracker.Failed(p.ID))
}

func TestStartingStagePropagatesFailureToDependents(t *testing.T) {
	tracker := failtracker.New()
	stage := &StartingStage{Tracker: tracker}

	p := exportedExtension("greeter", "lua", true)
	dependent := uid.New("/ext/downstream", "downstream")

	ctx := &pipeline.Ctx{
		Shared: map[string]any{
			CtxLanguageModules:        map[string]langmodule.LanguageModule{},
			CtxDependencyGraph:        map[uid.UniqueId][]uid.UniqueId{},
			CtxReverseDependencyGraph: map[uid.UniqueId][]uid.UniqueId{p.ID: {dependent}},
		},
	}

	err := stage.ProcessItem(p, 0, 1, ctx)
	require.Error(t, err)
	assert.True(t, tracker.Failed(dependent))
}

func TestStartingStageFailsWhenModuleUnavailable(t *testing.T) {
	tracker := failtracker.New()
	stage := &StartingStage{Tracker: tracker}
	p := exportedExtension("greeter", "lua", true)

	err := stage.ProcessItem(p, 0, 1, ctxWithModules(nil))
	require.Error(t, err)
	assert.Equal(t, extension.Failed, p.State())
	assert.True(t, tracker.Failed(p.ID))
}
