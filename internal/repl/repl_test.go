package repl

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sunholo/extrt/internal/config"
	"github.com/sunholo/extrt/internal/runtime"
)

func emptyShell() *Shell {
	return New(runtime.New(config.Default()))
}

func TestDispatchHelp(t *testing.T) {
	s := emptyShell()
	var buf bytes.Buffer
	s.dispatch(":help", &buf)
	assert.Contains(t, buf.String(), ":status")
	assert.Contains(t, buf.String(), ":extension")
}

func TestDispatchUnknownCommand(t *testing.T) {
	s := emptyShell()
	var buf bytes.Buffer
	s.dispatch(":nonsense", &buf)
	assert.Contains(t, buf.String(), "unknown command")
}

func TestDispatchStatusOnEmptyRuntime(t *testing.T) {
	s := emptyShell()
	var buf bytes.Buffer
	s.dispatch(":status", &buf)
	assert.Empty(t, buf.String())
}

func TestDispatchExtensionMissing(t *testing.T) {
	s := emptyShell()
	var buf bytes.Buffer
	s.dispatch(":extension ghost", &buf)
	assert.Contains(t, buf.String(), "no extension named")
}

func TestDispatchExtensionRequiresArgument(t *testing.T) {
	s := emptyShell()
	var buf bytes.Buffer
	s.dispatch(":extension", &buf)
	assert.True(t, strings.Contains(buf.String(), "usage"))
}

func TestDispatchReportOnEmptyRuntime(t *testing.T) {
	s := emptyShell()
	var buf bytes.Buffer
	s.dispatch(":report", &buf)
	assert.Empty(t, buf.String())
}
