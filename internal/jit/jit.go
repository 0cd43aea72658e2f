// Package jit is the signature/ABI classification layer implementing
// spec §4.7 (callback generator) and §4.8 (call generator): bridging a
// language runtime's native calling convention to the core's uniform
// `(Method*, userdata, u64[] args, count, Return*)` representation.
//
// Go cannot emit or execute hand-rolled machine code at runtime without
// cgo and raw mmap/mprotect, which nothing in the retrieved pack does.
// github.com/ebitengine/purego — already pulled in for dlopen/dlsym in
// platformops — ships exactly the two primitives spec §4.7/§4.8 need:
// purego.NewCallback (wrap an arbitrary Go function as a host-ABI-callable
// C function pointer, the "callback" direction) and purego.RegisterFunc
// (bind a Go function variable to a raw C function pointer address using
// the host calling convention, the "call" direction). This package builds
// the concrete Go function value for a given Signature with reflect, the
// idiomatic-Go realization of the original's asmjit-based code generator
// (see Open Question E.2 for the full resolution).
package jit

import (
	"fmt"
	"math"
	"reflect"
	"sync"

	"github.com/ebitengine/purego"

	"github.com/sunholo/extrt/internal/manifest"
	"github.com/sunholo/extrt/internal/valuetype"
)

// Return is the uniform return slot a generic Handler writes into and a
// call-side reads from. Two u64 slots cover every case in spec §4.7 step 6
// (single register, split 64-bit halves on 32-bit targets, or a 128-bit
// struct split across two return registers).
type Return struct {
	Slots [2]uint64
}

// Handler is the fixed generic entry point every JIT callback ultimately
// calls: `handler(method, user_data, args, count, ret)` from spec §4.7.
type Handler func(method *manifest.Method, userData uintptr, args []uint64, ret *Return)

// Signature is the ABI description of one Method's call shape.
type Signature struct {
	CallingConvention string
	Return            valuetype.ValueType
	Args              []valuetype.ValueType
	VarIndex          uint8
}

// HiddenReturn reports whether Return is passed via a caller-allocated
// hidden first argument under the host ABI (spec §4.7 step 2).
func (s Signature) HiddenReturn() bool { return valuetype.IsHiddenParam(s.Return) }

// LogicalArgCount is the count the generic Handler observes: the ABI
// argument count minus one when the return is hidden (Open Question E.1 /
// spec §9's fixed resolution: `arg_count - (hidden ? 1 : 0)`).
func (s Signature) LogicalArgCount() int {
	abiArgCount := len(s.Args)
	if s.HiddenReturn() {
		abiArgCount++ // the hidden pointer is a real ABI argument prepended to Args
		return abiArgCount - 1
	}
	return abiArgCount
}

// runtimeMu guards the process-wide JIT state: purego callback generation isn't
// documented as goroutine-safe for concurrent NewCallback calls sharing
// trampoline slots, so — mirroring spec §4.7's "process singleton, code
// emission mutually excluded internally" — every Generate call taking the
// codegen path serializes on this mutex.
var runtimeMu sync.Mutex

// reflectKind classifies one ValueType into the Go type reflect should use
// for a callback/call-site slot: float64 for floating-point ABI args
// (routed through XMM/float registers), uintptr for everything else
// (general-purpose register or stack slot, sized to hold a pointer,
// integer up to 64 bits, or packed small struct).
func reflectKind(t valuetype.ValueType) reflect.Type {
	if valuetype.IsFloat(t) {
		return reflect.TypeOf(float64(0))
	}
	return reflect.TypeOf(uintptr(0))
}

func toU64(t valuetype.ValueType, v reflect.Value) uint64 {
	if valuetype.IsFloat(t) {
		return math.Float64bits(v.Float())
	}
	return uint64(v.Uint())
}

func fromU64(t valuetype.ValueType, slot uint64) reflect.Value {
	if valuetype.IsFloat(t) {
		return reflect.ValueOf(math.Float64frombits(slot))
	}
	return reflect.ValueOf(uintptr(slot))
}

// CallbackGenerator implements spec §4.7: given a Signature, produce a
// native function pointer that, when called by foreign code under that
// Signature's ABI, packs its arguments into a u64 slot array and invokes
// Handler.
type CallbackGenerator struct{}

// Generate builds the callback. method/userData are captured by the
// closure and handed to every invocation; this mirrors the original's
// per-Method trampoline (one generated function per exported method).
func (CallbackGenerator) Generate(sig Signature, method *manifest.Method, userData uintptr, handler Handler) (uintptr, error) {
	hidden := sig.HiddenReturn()
	abiArgs := sig.Args
	if hidden {
		abiArgs = append([]valuetype.ValueType{valuetype.Pointer}, abiArgs...)
	}
	for _, a := range abiArgs {
		if !valuetype.IsValid(a) {
			return 0, fmt.Errorf("jit: callback: invalid argument type")
		}
	}

	argTypes := make([]reflect.Type, len(abiArgs))
	for i, a := range abiArgs {
		argTypes[i] = reflectKind(a)
	}

	retKind := sig.Return
	var outTypes []reflect.Type
	if hidden {
		outTypes = []reflect.Type{reflectKind(valuetype.Pointer)}
	} else if retKind == valuetype.Void {
		outTypes = nil
	} else {
		outTypes = []reflect.Type{reflectKind(retKind)}
	}
	fnType := reflect.FuncOf(argTypes, outTypes, false)

	fnValue := reflect.MakeFunc(fnType, func(in []reflect.Value) []reflect.Value {
		slots := make([]uint64, len(abiArgs))
		startIdx := 0
		if hidden {
			startIdx = 1
		}
		for i := startIdx; i < len(abiArgs); i++ {
			slots[i-startIdx] = toU64(abiArgs[i], in[i])
		}
		count := sig.LogicalArgCount()
		ret := &Return{}
		handler(method, userData, slots[:count], ret)

		if hidden {
			// The hidden pointer (in[0]) is the caller's out-buffer; the
			// convention this runtime adopts is that Handler writes
			// through it directly via userData/out-of-band state, and
			// the generated trampoline returns the same pointer per
			// spec §4.7 step 6.
			return []reflect.Value{in[0]}
		}
		if retKind == valuetype.Void {
			return nil
		}
		return []reflect.Value{fromU64(retKind, ret.Slots[0])}
	})

	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	ptr := purego.NewCallback(fnValue.Interface())
	return ptr, nil
}

// CallGenerator implements spec §4.8: the inverse direction. It produces a
// function of fixed signature `(args []uint64, ret *Return)` that unpacks
// into a call of an arbitrary target function at targetAddr under sig's
// ABI.
type CallGenerator struct{}

// Generate binds a reflect-typed Go function variable to targetAddr via
// purego.RegisterFunc (the pack's idiom for calling a raw C function
// pointer with full calling-convention support, as opposed to SyscallN's
// integer-only argument list), then returns a closure performing the
// unpack-call-repack spec §4.8 describes.
func (CallGenerator) Generate(sig Signature, targetAddr uintptr) (func(args []uint64, ret *Return), error) {
	hidden := sig.HiddenReturn()
	abiArgs := sig.Args
	if hidden {
		abiArgs = append([]valuetype.ValueType{valuetype.Pointer}, abiArgs...)
	}

	argTypes := make([]reflect.Type, len(abiArgs))
	for i, a := range abiArgs {
		argTypes[i] = reflectKind(a)
	}
	var outTypes []reflect.Type
	if !hidden && sig.Return != valuetype.Void {
		outTypes = []reflect.Type{reflectKind(sig.Return)}
	}
	fnType := reflect.FuncOf(argTypes, outTypes, false)
	fnPtr := reflect.New(fnType)

	runtimeMu.Lock()
	purego.RegisterFunc(fnPtr.Interface(), targetAddr)
	runtimeMu.Unlock()

	fn := fnPtr.Elem()
	return func(args []uint64, ret *Return) {
		in := make([]reflect.Value, len(abiArgs))
		startIdx := 0
		if hidden {
			// The hidden out-buffer address lives in ret.Slots[0],
			// supplied by the caller per spec §4.8's "pass ret as the
			// first ABI argument" rule.
			in[0] = reflect.ValueOf(uintptr(ret.Slots[0]))
			startIdx = 1
		}
		for i := startIdx; i < len(abiArgs); i++ {
			in[i] = fromU64(abiArgs[i], args[i-startIdx])
		}
		out := fn.Call(in)
		if !hidden && sig.Return != valuetype.Void && len(out) == 1 {
			ret.Slots[0] = toU64(sig.Return, out[0])
		}
	}, nil
}
