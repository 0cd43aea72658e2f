// Package langmodule is the language-module ABI boundary the core
// consumes (spec §6.1): a shared library exports one C symbol,
// GetLanguageModule(), returning a pointer to a fixed v-table. Order and
// signatures of the v-table's nine slots are ABI-stable across the
// core/module boundary. This package defines the Go-side interface plus a
// purego-backed proxy that reads the v-table from raw memory and calls
// each slot through purego.SyscallN, the same trampoline primitive the
// pack's purego-dependent repos use to call into foreign C functions.
package langmodule

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/sunholo/extrt/internal/extension"
	"github.com/sunholo/extrt/internal/manifest"
)

// Provider is the host-services handle passed to a language module's
// initialize call. It is intentionally small: spec §6.1 treats it as an
// opaque collaborator the module uses to call back into the host.
type Provider struct {
	Log func(level, msg string)
}

// InitData is what a successful initialize() returns.
type InitData struct {
	MethodTable extension.MethodTable
}

// ResolvedMethod pairs a manifest method with the native address a
// language module resolved it to.
type ResolvedMethod struct {
	Method  manifest.Method
	Address uintptr
}

// LoadData is what a successful on_plugin_load() returns.
type LoadData struct {
	Methods     []ResolvedMethod
	UserData    uintptr
	MethodTable extension.MethodTable
}

// LanguageModule is the Go-side view of the nine-slot v-table described in
// spec §6.1.
type LanguageModule interface {
	Initialize(provider *Provider, selfExt *extension.Extension) (InitData, error)
	Shutdown()
	OnUpdate(dt time.Duration)
	OnPluginLoad(plugin *extension.Extension) (LoadData, error)
	OnPluginStart(plugin *extension.Extension)
	OnPluginUpdate(plugin *extension.Extension, dt time.Duration)
	OnPluginEnd(plugin *extension.Extension)
	OnMethodExport(plugin *extension.Extension)
	IsDebugBuild() bool
}

// vtableSlot indexes the nine ABI-stable v-table entries.
const (
	slotInitialize = iota
	slotShutdown
	slotOnUpdate
	slotOnPluginLoad
	slotOnPluginStart
	slotOnPluginUpdate
	slotOnPluginEnd
	slotOnMethodExport
	slotIsDebugBuild
	vtableSlotCount
)

// VTable reads the nine function-pointer slots out of the memory a
// GetLanguageModule() call returned, in the ABI-stable order spec §6.1
// fixes. Each slot is a raw function pointer invoked via purego.SyscallN.
type VTable struct {
	slots [vtableSlotCount]uintptr
}

// ReadVTable interprets ptr as the address of a contiguous array of
// vtableSlotCount function pointers.
func ReadVTable(ptr uintptr) (*VTable, error) {
	if ptr == 0 {
		return nil, fmt.Errorf("langmodule: GetLanguageModule returned null")
	}
	var vt VTable
	base := (*[vtableSlotCount]uintptr)(unsafe.Pointer(ptr)) //nolint:govet // reading a foreign C v-table by contract
	copy(vt.slots[:], base[:])
	return &vt, nil
}

// call invokes a v-table slot through purego's raw ABI trampoline.
func (vt *VTable) call(slot int, args ...uintptr) uintptr {
	fn := vt.slots[slot]
	if fn == 0 {
		return 0
	}
	return purego.SyscallN(fn, args...)
}

// Proxy adapts a raw VTable to the LanguageModule interface. Extension
// pointers and Provider are passed as opaque uintptr handles across the
// ABI boundary; a real module implementation is expected to treat them as
// stable identity tokens, matching how the core hands out `&Extension`
// references elsewhere (spec §3 Ownership).
type Proxy struct {
	vt      *VTable
	handles *handleTable
}

// NewProxy wraps a resolved v-table pointer as a LanguageModule.
func NewProxy(vtablePtr uintptr) (*Proxy, error) {
	vt, err := ReadVTable(vtablePtr)
	if err != nil {
		return nil, err
	}
	return &Proxy{vt: vt, handles: newHandleTable()}, nil
}

func (p *Proxy) Initialize(provider *Provider, selfExt *extension.Extension) (InitData, error) {
	providerHandle := p.handles.put(provider)
	extHandle := p.handles.put(selfExt)
	rc := p.vt.call(slotInitialize, providerHandle, extHandle)
	if rc == 0 {
		return InitData{}, fmt.Errorf("langmodule: initialize failed for %s", selfExt.Manifest.Name)
	}
	return InitData{MethodTable: decodeMethodTable(rc)}, nil
}

func (p *Proxy) Shutdown() { p.vt.call(slotShutdown) }

func (p *Proxy) OnUpdate(dt time.Duration) {
	p.vt.call(slotOnUpdate, uintptr(dt.Nanoseconds()))
}

func (p *Proxy) OnPluginLoad(plugin *extension.Extension) (LoadData, error) {
	extHandle := p.handles.put(plugin)
	rc := p.vt.call(slotOnPluginLoad, extHandle)
	if rc == 0 {
		return LoadData{}, fmt.Errorf("langmodule: on_plugin_load failed for %s", plugin.Manifest.Name)
	}
	return LoadData{MethodTable: decodeMethodTable(rc)}, nil
}

func (p *Proxy) OnPluginStart(plugin *extension.Extension) {
	p.vt.call(slotOnPluginStart, p.handles.put(plugin))
}

func (p *Proxy) OnPluginUpdate(plugin *extension.Extension, dt time.Duration) {
	p.vt.call(slotOnPluginUpdate, p.handles.put(plugin), uintptr(dt.Nanoseconds()))
}

func (p *Proxy) OnPluginEnd(plugin *extension.Extension) {
	p.vt.call(slotOnPluginEnd, p.handles.put(plugin))
}

func (p *Proxy) OnMethodExport(plugin *extension.Extension) {
	p.vt.call(slotOnMethodExport, p.handles.put(plugin))
}

func (p *Proxy) IsDebugBuild() bool {
	return p.vt.call(slotIsDebugBuild) != 0
}

// decodeMethodTable unpacks the four method-table bits a v-table call
// returns in its low nibble.
func decodeMethodTable(rc uintptr) extension.MethodTable {
	return extension.MethodTable{
		HasUpdate: rc&0x1 != 0,
		HasStart:  rc&0x2 != 0,
		HasEnd:    rc&0x4 != 0,
		HasExport: rc&0x8 != 0,
	}
}
