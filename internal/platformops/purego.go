package platformops

import (
	"fmt"
	"sync"

	"github.com/ebitengine/purego"
)

// PuregoOps implements PlatformOps on top of purego's Dlopen/Dlsym/Dlclose,
// the real dynamic-loading primitives (not a hand-rolled cgo shim) that the
// pack's purego-dependent repos use for the same purpose.
type PuregoOps struct {
	mu          sync.RWMutex
	searchPaths []string
	pathByHandle map[uintptr]string
}

// NewPuregoOps constructs a PlatformOps backed by purego.
func NewPuregoOps() *PuregoOps {
	return &PuregoOps{pathByHandle: make(map[uintptr]string)}
}

func toDlopenFlags(flags LoadFlag) int {
	mode := purego.RTLD_NOW
	if flags.Has(Lazy) {
		mode = purego.RTLD_LAZY
	}
	if flags.Has(Global) {
		mode |= purego.RTLD_GLOBAL
	} else {
		mode |= purego.RTLD_LOCAL
	}
	return mode
}

// LoadLibrary opens path via purego.Dlopen. Deepbind/SearchUserDirs/
// SearchSystem32/SearchDllLoadDir/DontResolveDllReferences are Windows
// LoadLibraryExW flags with no POSIX dlopen equivalent; on this platform
// they are accepted (for manifest portability) but have no effect, which
// SupportsRuntimePathModification and SupportsLazyBinding report honestly
// rather than pretending full parity.
func (p *PuregoOps) LoadLibrary(path string, flags LoadFlag) (uintptr, error) {
	handle, err := purego.Dlopen(path, toDlopenFlags(flags))
	if err != nil {
		return 0, fmt.Errorf("platformops: dlopen %s: %w", path, err)
	}
	p.mu.Lock()
	p.pathByHandle[handle] = path
	p.mu.Unlock()
	return handle, nil
}

// UnloadLibrary releases a handle via purego.Dlclose.
func (p *PuregoOps) UnloadLibrary(handle uintptr) error {
	p.mu.Lock()
	delete(p.pathByHandle, handle)
	p.mu.Unlock()
	if err := purego.Dlclose(handle); err != nil {
		return fmt.Errorf("platformops: dlclose: %w", err)
	}
	return nil
}

// GetSymbol resolves a named export via purego.Dlsym.
func (p *PuregoOps) GetSymbol(handle uintptr, name string) (uintptr, error) {
	sym, err := purego.Dlsym(handle, name)
	if err != nil {
		return 0, fmt.Errorf("platformops: dlsym %s: %w", name, err)
	}
	return sym, nil
}

// GetLibraryPath returns the path this handle was opened with.
func (p *PuregoOps) GetLibraryPath(handle uintptr) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if path, ok := p.pathByHandle[handle]; ok {
		return path, nil
	}
	return "", fmt.Errorf("platformops: unknown handle")
}

// SupportsRuntimePathModification reports false: POSIX dlopen has no
// per-process search-path list to mutate (unlike Windows AddDllDirectory);
// AddSearchPath records paths for documentation/diagnostics only.
func (p *PuregoOps) SupportsRuntimePathModification() bool { return false }

// SupportsLazyBinding reports true: RTLD_LAZY is always honored by the
// platform's dynamic linker.
func (p *PuregoOps) SupportsLazyBinding() bool { return true }

// AddSearchPath records a directory the caller intends extensions to be
// found under. Since SupportsRuntimePathModification is false, this does
// not change the dynamic linker's search behavior; callers (e.g. the
// loader resolving manifest.directories) must pass absolute paths to
// LoadLibrary instead of relying on linker search order.
func (p *PuregoOps) AddSearchPath(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.searchPaths = append(p.searchPaths, path)
	return nil
}

// RemoveSearchPath removes a previously recorded search path.
func (p *PuregoOps) RemoveSearchPath(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, sp := range p.searchPaths {
		if sp == path {
			p.searchPaths = append(p.searchPaths[:i], p.searchPaths[i+1:]...)
			return nil
		}
	}
	return &ErrUnsupported{Op: fmt.Sprintf("remove-search-path(%s): not present", path)}
}

// SearchPaths returns a snapshot of recorded search paths.
func (p *PuregoOps) SearchPaths() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.searchPaths))
	copy(out, p.searchPaths)
	return out
}
