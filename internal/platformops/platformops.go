// Package platformops is the platform loader abstraction (spec §4.6,
// component C1): loading/unloading shared libraries, resolving symbols,
// and managing loader search paths, with capability queries so callers
// never get a silent no-op. Grounded on
// original_source/include/plugify/core/platform_ops.hpp's IPlatformOps
// interface and realized with github.com/ebitengine/purego's real
// dlopen/dlsym bindings — the library four manifests in the retrieved pack
// depend on for exactly this purpose (SPEC_FULL §B, Open Question E.2).
package platformops

import (
	"fmt"
)

// LoadFlag is a bitset of dlopen-style loader options (spec §4.6).
type LoadFlag uint32

const (
	Lazy LoadFlag = 1 << iota
	Now
	Global
	Local
	Deepbind
	NoUnload
	SearchUserDirs
	SearchSystem32
	SearchDllLoadDir
	DontResolveDllReferences
)

// Has reports whether f includes flag.
func (f LoadFlag) Has(flag LoadFlag) bool { return f&flag != 0 }

// Assembly is the owning handle to a loaded dynamic library plus symbol
// lookup (spec §2 component C2). It is reference-counted conceptually: an
// Extension that owns it keeps it alive for as long as any plugin's
// LanguageModule handle derived from it is in use (spec §3 Ownership).
type Assembly struct {
	path   string
	handle uintptr
	ops    PlatformOps
}

// Path returns the resolved path of the loaded library.
func (a *Assembly) Path() string { return a.path }

// Symbol resolves a named export from this assembly.
func (a *Assembly) Symbol(name string) (uintptr, error) {
	return a.ops.GetSymbol(a.handle, name)
}

// Unload releases the underlying library handle.
func (a *Assembly) Unload() error {
	if a.handle == 0 {
		return nil
	}
	err := a.ops.UnloadLibrary(a.handle)
	a.handle = 0
	return err
}

// PlatformOps is the single object providing load/unload/symbol-lookup and
// search-path management for dynamic libraries (spec §4.6).
type PlatformOps interface {
	LoadLibrary(path string, flags LoadFlag) (uintptr, error)
	UnloadLibrary(handle uintptr) error
	GetSymbol(handle uintptr, name string) (uintptr, error)
	GetLibraryPath(handle uintptr) (string, error)
	SupportsRuntimePathModification() bool
	SupportsLazyBinding() bool
	AddSearchPath(path string) error
	RemoveSearchPath(path string) error
}

// Load opens path with the given flags and wraps the resulting handle in
// an Assembly.
func Load(ops PlatformOps, path string, flags LoadFlag) (*Assembly, error) {
	handle, err := ops.LoadLibrary(path, flags)
	if err != nil {
		return nil, err
	}
	resolved, err := ops.GetLibraryPath(handle)
	if err != nil {
		resolved = path
	}
	return &Assembly{path: resolved, handle: handle, ops: ops}, nil
}

// ErrUnsupported is returned by capability-gated operations a platform
// does not implement; operations never silently succeed (spec §4.6).
type ErrUnsupported struct {
	Op string
}

func (e *ErrUnsupported) Error() string {
	return fmt.Sprintf("platformops: %s not supported on this platform", e.Op)
}
