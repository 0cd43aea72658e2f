package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONModule(t *testing.T) {
	data := []byte(`{
		"name": "lua-module",
		"version": "1.0.0",
		"language": "lua",
		"type": "module"
	}`)
	m, err := ParseJSON(data)
	require.NoError(t, err)
	assert.Equal(t, "lua-module", m.Name)
	assert.Equal(t, TypeModule, m.Type)
}

func TestParseJSONPluginRequiresEntry(t *testing.T) {
	data := []byte(`{
		"name": "my-plugin",
		"version": "1.0.0",
		"language": "lua",
		"type": "plugin"
	}`)
	_, err := ParseJSON(data)
	require.Error(t, err)
}

func TestParseJSONRejectsBadConstraint(t *testing.T) {
	data := []byte(`{
		"name": "my-plugin",
		"version": "1.0.0",
		"language": "lua",
		"type": "plugin",
		"entry": "main.lua",
		"dependencies": [{"name": "core", "constraint": "not-a-constraint!!"}]
	}`)
	_, err := ParseJSON(data)
	require.Error(t, err)
}

func TestSupportsPlatform(t *testing.T) {
	m := &Manifest{Platforms: nil}
	assert.True(t, m.SupportsPlatform("linux"))

	m2 := &Manifest{Platforms: []string{"linux", "darwin"}}
	assert.True(t, m2.SupportsPlatform("linux"))
	assert.False(t, m2.SupportsPlatform("windows"))
}

func TestDefaultRuntimePath(t *testing.T) {
	m := &Manifest{Name: "mymod"}
	assert.Equal(t, "/ext/mymod/bin/libmymod.so", m.DefaultRuntimePath("/ext/mymod", "so"))

	m2 := &Manifest{Name: "mymod", Runtime: "custom/path.so"}
	assert.Equal(t, "custom/path.so", m2.DefaultRuntimePath("/ext/mymod", "so"))
}

func TestDigestIsDeterministic(t *testing.T) {
	m := &Manifest{Name: "a", Version: "1.0.0", Language: "lua", Type: TypeModule}
	d1, err := m.Digest()
	require.NoError(t, err)
	d2, err := m.Digest()
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}

func TestParseJSONStripsUTF8BOM(t *testing.T) {
	withBOM := append([]byte{0xEF, 0xBB, 0xBF}, []byte(`{"name":"greeter","version":"1.0.0","language":"lua","type":"plugin","entry":"main.lua"}`)...)
	m, err := ParseJSON(withBOM)
	require.NoError(t, err)
	assert.Equal(t, "greeter", m.Name)
}

func TestHasVarargs(t *testing.T) {
	m := Method{VarIndex: NoVarIndex}
	assert.False(t, m.HasVarargs())
	m2 := Method{VarIndex: 2}
	assert.True(t, m2.HasVarargs())
}
