package stages

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunholo/extrt/internal/extension"
	"github.com/sunholo/extrt/internal/failtracker"
	"github.com/sunholo/extrt/internal/langmodule"
	"github.com/sunholo/extrt/internal/manifest"
	"github.com/sunholo/extrt/internal/pipeline"
	"github.com/sunholo/extrt/internal/uid"
)

type fakeModule struct {
	exportCalled  bool
	startCalled   bool
	panicOnExport bool
}

func (m *fakeModule) Initialize(*langmodule.Provider, *extension.Extension) (langmodule.InitData, error) {
	return langmodule.InitData{}, nil
}
func (m *fakeModule) Shutdown()              {}
func (m *fakeModule) OnUpdate(time.Duration) {}
func (m *fakeModule) OnPluginLoad(*extension.Extension) (langmodule.LoadData, error) {
	return langmodule.LoadData{}, nil
}
func (m *fakeModule) OnPluginStart(*extension.Extension)                 { m.startCalled = true }
func (m *fakeModule) OnPluginUpdate(*extension.Extension, time.Duration) {}
func (m *fakeModule) OnPluginEnd(*extension.Extension)                   {}
func (m *fakeModule) OnMethodExport(*extension.Extension) {
	if m.panicOnExport {
		panic("boom")
	}
	m.exportCalled = true
}
func (m *fakeModule) IsDebugBuild() bool { return false }

func loadedExtension(name string, typ manifest.Type, language string, hasExport bool) *extension.Extension {
	e := extension.New(uid.New("/ext/"+name, name), typ, "/ext/"+name)
	e.Manifest = &manifest.Manifest{Name: name, Language: language, Type: typ}
	e.MethodTable = extension.MethodTable{HasExport: hasExport}
	_ = e.SetState(extension.Discovered)
	_ = e.StartOperation(extension.Parsing)
	_ = e.EndOperation(extension.Parsed)
	_ = e.StartOperation(extension.Resolving)
	_ = e.EndOperation(extension.Resolved)
	_ = e.StartOperation(extension.Loading)
	_ = e.EndOperation(extension.Loaded)
	return e
}

func ctxWithModules(mods map[string]langmodule.LanguageModule) *pipeline.Ctx {
	return &pipeline.Ctx{Shared: map[string]any{CtxLanguageModules: mods}}
}

func TestExportingStageModuleGoesStraightToRunning(t *testing.T) {
	stage := &ExportingStage{}
	m := loadedExtension("lua", manifest.TypeModule, "lua", false)
	err := stage.ProcessItem(m, 0, 1, ctxWithModules(nil))
	require.NoError(t, err)
	assert.Equal(t, extension.Running, m.State())
}

func TestExportingStageCallsOnMethodExportWhenFlagged(t *testing.T) {
	mod := &fakeModule{}
	stage := &ExportingStage{}
	p := loadedExtension("greeter", manifest.TypePlugin, "lua", true)
	ctx := ctxWithModules(map[string]langmodule.LanguageModule{"lua": mod})

	err := stage.ProcessItem(p, 0, 1, ctx)
	require.NoError(t, err)
	assert.True(t, mod.exportCalled)
	assert.Equal(t, extension.Exported, p.State())
}

func TestExportingStageSkipsExportWhenFlagClear(t *testing.T) {
	mod := &fakeModule{}
	stage := &ExportingStage{}
	p := loadedExtension("greeter", manifest.TypePlugin, "lua", false)
	ctx := ctxWithModules(map[string]langmodule.LanguageModule{"lua": mod})

	err := stage.ProcessItem(p, 0, 1, ctx)
	require.NoError(t, err)
	assert.False(t, mod.exportCalled)
	assert.Equal(t, extension.Exported, p.State())
}

func TestExportingStageFailsWhenModuleUnavailable(t *testing.T) {
	tracker := failtracker.New()
	stage := &ExportingStage{Tracker: tracker}
	p := loadedExtension("greeter", manifest.TypePlugin, "lua", true)

	err := stage.ProcessItem(p, 0, 1, ctxWithModules(nil))
	require.Error(t, err)
	assert.Equal(t, extension.Failed, p.State())
	assert.True(t, tracker.Failed(p.ID))
}

func TestExportingStageSkipsWhenDependencyFailed(t *testing.T) {
	tracker := failtracker.New()
	stage := &ExportingStage{Tracker: tracker}

	dep := loadedExtension("core", manifest.TypePlugin, "lua", false)
	p := loadedExtension("greeter", manifest.TypePlugin, "lua", false)
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

func TestExportingStagePropagatesFailureToDependents(t *testing.T) {
	tracker := failtracker.New()
	stage := &ExportingStage{Tracker: tracker}

	p := loadedExtension("greeter", manifest.TypePlugin, "lua", true)
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

func TestExportingStageRecoversFromPanic(t *testing.T) {
	mod := &fakeModule{panicOnExport: true}
	tracker := failtracker.New()
	stage := &ExportingStage{Tracker: tracker}
	p := loadedExtension("greeter", manifest.TypePlugin, "lua", true)
	ctx := ctxWithModules(map[string]langmodule.LanguageModule{"lua": mod})

	err := stage.ProcessItem(p, 0, 1, ctx)
	require.Error(t, err)
	assert.Equal(t, extension.Failed, p.State())
}
