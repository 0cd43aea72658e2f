package stages

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunholo/extrt/internal/extension"
	"github.com/sunholo/extrt/internal/manifest"
	"github.com/sunholo/extrt/internal/pipeline"
	"github.com/sunholo/extrt/internal/uid"
)

func discoveredExtension(name string) *extension.Extension {
	e := extension.New(uid.New("/ext/"+name, name), manifest.TypePlugin, "/ext/"+name)
	_ = e.SetState(extension.Discovered)
	return e
}

func TestParsingStageSuccess(t *testing.T) {
	validJSON := []byte(`{"name":"greeter","version":"1.0.0","language":"lua","type":"plugin","entry":"main.lua"}`)
	stage := NewParsingStage(func(*extension.Extension) ([]byte, error) {
		return validJSON, nil
	})

	e := discoveredExtension("greeter")
	ctx := &pipeline.Ctx{Shared: make(map[string]any)}
	err := stage.ProcessItem(e, ctx)
	require.NoError(t, err)
	assert.Equal(t, extension.Parsed, e.State())
	require.NotNil(t, e.Manifest)
	assert.Equal(t, "greeter", e.Manifest.Name)
}

func TestParsingStageCorruptedOnReadFailure(t *testing.T) {
	stage := NewParsingStage(func(*extension.Extension) ([]byte, error) {
		return nil, fmt.Errorf("no such file")
	})

	e := discoveredExtension("greeter")
	ctx := &pipeline.Ctx{Shared: make(map[string]any)}
	err := stage.ProcessItem(e, ctx)
	require.NoError(t, err)
	assert.Equal(t, extension.Corrupted, e.State())
	assert.NotEmpty(t, e.Errors)
}

func TestParsingStageCorruptedOnInvalidJSON(t *testing.T) {
	stage := NewParsingStage(func(*extension.Extension) ([]byte, error) {
		return []byte(`not json`), nil
	})

	e := discoveredExtension("greeter")
	ctx := &pipeline.Ctx{Shared: make(map[string]any)}
	err := stage.ProcessItem(e, ctx)
	require.NoError(t, err)
	assert.Equal(t, extension.Corrupted, e.State())
}

func TestParsingStageShouldProcessOnlyDiscovered(t *testing.T) {
	stage := NewParsingStage(nil)
	e := extension.New(uid.New("/ext/x", "x"), manifest.TypePlugin, "/ext/x")
	assert.False(t, stage.ShouldProcess(e))
	_ = e.SetState(extension.Discovered)
	assert.True(t, stage.ShouldProcess(e))
}
