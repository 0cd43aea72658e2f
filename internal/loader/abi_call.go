package loader

import "github.com/ebitengine/purego"

// callGetLanguageModule invokes the zero-argument, pointer-returning
// GetLanguageModule() C symbol (spec §6.1) via purego's raw syscall
// trampoline — no float/struct marshaling is needed for this one fixed
// signature, so the full jit.CallGenerator machinery would be overkill.
func callGetLanguageModule(symbolAddr uintptr) (uintptr, error) {
	ret := purego.SyscallN(symbolAddr)
	return ret, nil
}
