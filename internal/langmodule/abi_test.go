package langmodule

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunholo/extrt/internal/extension"
	"github.com/sunholo/extrt/internal/manifest"
	"github.com/sunholo/extrt/internal/uid"
)

func TestReadVTableRejectsNull(t *testing.T) {
	_, err := ReadVTable(0)
	require.Error(t, err)
}

func TestReadVTableCopiesSlots(t *testing.T) {
	var raw [vtableSlotCount]uintptr
	raw[slotIsDebugBuild] = 0xabc
	vt, err := ReadVTable(uintptr(unsafe.Pointer(&raw)))
	require.NoError(t, err)
	assert.Equal(t, uintptr(0xabc), vt.slots[slotIsDebugBuild])
}

func TestCallWithNilSlotReturnsZero(t *testing.T) {
	vt := &VTable{}
	assert.Equal(t, uintptr(0), vt.call(slotShutdown))
}

func TestDecodeMethodTable(t *testing.T) {
	mt := decodeMethodTable(0x1 | 0x8)
	assert.True(t, mt.HasUpdate)
	assert.False(t, mt.HasStart)
	assert.False(t, mt.HasEnd)
	assert.True(t, mt.HasExport)
}

func TestProxyIsDebugBuildFalseWhenSlotUnset(t *testing.T) {
	var raw [vtableSlotCount]uintptr
	vt, err := ReadVTable(uintptr(unsafe.Pointer(&raw)))
	require.NoError(t, err)
	p := &Proxy{vt: vt, handles: newHandleTable()}
	assert.False(t, p.IsDebugBuild())
}

func TestProxyShutdownDoesNotPanicWithNilSlot(t *testing.T) {
	var raw [vtableSlotCount]uintptr
	vt, err := ReadVTable(uintptr(unsafe.Pointer(&raw)))
	require.NoError(t, err)
	p := &Proxy{vt: vt, handles: newHandleTable()}
	p.Shutdown()
}

func TestHandleTablePutGet(t *testing.T) {
	ht := newHandleTable()
	e := extension.New(uid.New("/ext/a", "a"), manifest.TypePlugin, "/ext/a")
	token := ht.put(e)
	assert.NotZero(t, token)

	got, ok := ht.get(token)
	require.True(t, ok)
	assert.Same(t, e, got)

	ht.release(token)
	_, ok = ht.get(token)
	assert.False(t, ok)
}
