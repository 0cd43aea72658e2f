package stages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunholo/extrt/internal/extension"
	"github.com/sunholo/extrt/internal/failtracker"
	"github.com/sunholo/extrt/internal/manifest"
	"github.com/sunholo/extrt/internal/pipeline"
	"github.com/sunholo/extrt/internal/uid"
)

func resolvedExtension(name string, typ manifest.Type, language string) *extension.Extension {
	e := extension.New(uid.New("/ext/"+name, name), typ, "/ext/"+name)
	e.Manifest = &manifest.Manifest{Name: name, Language: language, Type: typ}
	_ = e.SetState(extension.Discovered)
	_ = e.StartOperation(extension.Parsing)
	_ = e.EndOperation(extension.Parsed)
	_ = e.StartOperation(extension.Resolving)
	_ = e.EndOperation(extension.Resolved)
	return e
}

func TestLoadingStageSkipsWhenDependencyFailed(t *testing.T) {
	tracker := failtracker.New()
	stage := NewLoadingStage(nil, tracker, nil, nil)

	dep := resolvedExtension("core", manifest.TypePlugin, "lua")
	plugin := resolvedExtension("consumer", manifest.TypePlugin, "lua")
	tracker.Mark(dep.ID)

	ctx := &pipeline.Ctx{Shared: map[string]any{
		CtxDependencyGraph:        map[uid.UniqueId][]uid.UniqueId{plugin.ID: {dep.ID}},
		CtxReverseDependencyGraph: map[uid.UniqueId][]uid.UniqueId{},
	}}

	err := stage.ProcessItem(plugin, 0, 1, ctx)
	require.Error(t, err)
	assert.Equal(t, extension.Skipped, plugin.State())
	assert.True(t, tracker.Failed(plugin.ID))
}

func TestLoadingStagePluginFailsWhenModuleMissing(t *testing.T) {
	tracker := failtracker.New()
	stage := NewLoadingStage(nil, tracker, nil, nil)

	plugin := resolvedExtension("consumer", manifest.TypePlugin, "lua")
	ctx := &pipeline.Ctx{Shared: map[string]any{
		CtxDependencyGraph:        map[uid.UniqueId][]uid.UniqueId{},
		CtxReverseDependencyGraph: map[uid.UniqueId][]uid.UniqueId{},
	}}

	err := stage.ProcessItem(plugin, 0, 1, ctx)
	require.Error(t, err)
	assert.Equal(t, extension.Failed, plugin.State())
	assert.True(t, tracker.Failed(plugin.ID))
}

func TestLoadingStageShouldProcessOnlyResolved(t *testing.T) {
	stage := NewLoadingStage(nil, failtracker.New(), nil, nil)
	e := extension.New(uid.New("/ext/x", "x"), manifest.TypePlugin, "/ext/x")
	assert.False(t, stage.ShouldProcess(e))
	e2 := resolvedExtension("y", manifest.TypePlugin, "lua")
	assert.True(t, stage.ShouldProcess(e2))
}

func TestModulesSnapshotIsACopy(t *testing.T) {
	stage := NewLoadingStage(nil, failtracker.New(), nil, nil)
	snap := stage.ModulesSnapshot()
	assert.Empty(t, snap)
}
