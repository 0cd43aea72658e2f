package loader

import (
	"fmt"
	"runtime"

	"github.com/sunholo/extrt/internal/extension"
	"github.com/sunholo/extrt/internal/langmodule"
	"github.com/sunholo/extrt/internal/manifest"
	"github.com/sunholo/extrt/internal/metrics"
	"github.com/sunholo/extrt/internal/platformops"
	"github.com/sunholo/extrt/internal/xerrors"
)

const getLanguageModuleSymbol = "GetLanguageModule"

// platformSuffix is used to build a manifest's default runtime path
// (spec §3: "<location>/bin/lib<name>.<platform-suffix>").
func platformSuffix() string {
	switch runtime.GOOS {
	case "windows":
		return "dll"
	case "darwin":
		return "dylib"
	default:
		return "so"
	}
}

// ExtensionLoader wraps Platform Ops + Assembly + the language-module ABI
// (spec §4.4.3, component C9): it produces language modules and plugins
// from resolved extensions and invokes every lifecycle callback through a
// panic-safe shim (spec §4.5).
type ExtensionLoader struct {
	Ops              platformops.PlatformOps
	Metrics          *metrics.Collector // optional; not read by the loader itself (LoadingStage records load metrics)
	PreferOwnSymbols bool
	DebugBuild       bool
}

// NewExtensionLoader constructs a loader over the given platform ops.
func NewExtensionLoader(ops platformops.PlatformOps) *ExtensionLoader {
	return &ExtensionLoader{Ops: ops}
}

func (l *ExtensionLoader) loadFlags() platformops.LoadFlag {
	flags := platformops.Lazy | platformops.Global | platformops.SearchUserDirs |
		platformops.SearchSystem32 | platformops.SearchDllLoadDir
	if l.PreferOwnSymbols {
		flags |= platformops.Deepbind
	}
	return flags
}

// LoadModule implements the Module half of spec §4.4.3's LoadingStage
// body: opens manifest.Runtime, resolves GetLanguageModule, validates
// debug-build compatibility, and calls initialize.
func (l *ExtensionLoader) LoadModule(ext *extension.Extension, provider *langmodule.Provider) (langmodule.LanguageModule, error) {
	if ext.Type != manifest.TypeModule {
		return nil, fmt.Errorf("loader: %s is not a module", ext.Manifest.Name)
	}

	if l.Ops.SupportsRuntimePathModification() {
		for _, dir := range ext.Manifest.Directories {
			if err := l.Ops.AddSearchPath(dir); err != nil {
				ext.AddWarning(fmt.Sprintf("add search path %s: %v", dir, err))
			}
		}
	}

	runtimePath := ext.Manifest.DefaultRuntimePath(ext.Location, platformSuffix())
	asm, err := platformops.Load(l.Ops, runtimePath, l.loadFlags())
	if err != nil {
		return nil, xerrors.Wrap(xerrors.New(xerrors.LdrFileNotFound, "loading", err.Error()))
	}
	ext.Assembly = asm

	symbolAddr, err := asm.Symbol(getLanguageModuleSymbol)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.New(xerrors.LdrSymbolMissing, "loading",
			fmt.Sprintf("%s: %s", ext.Manifest.Name, err.Error())))
	}

	var module langmodule.LanguageModule
	err = l.safeCall(ext, "GetLanguageModule", func() error {
		vtablePtr, callErr := callGetLanguageModule(symbolAddr)
		if callErr != nil {
			return callErr
		}
		proxy, proxyErr := langmodule.NewProxy(vtablePtr)
		if proxyErr != nil {
			return proxyErr
		}
		module = proxy
		return nil
	})
	if err != nil {
		return nil, err
	}

	if l.DebugBuild != module.IsDebugBuild() {
		return nil, xerrors.Wrap(xerrors.New(xerrors.LdrBuildMismatch, "loading",
			fmt.Sprintf("%s: build type mismatch", ext.Manifest.Name)))
	}

	var initData langmodule.InitData
	err = l.safeCall(ext, "initialize", func() error {
		var initErr error
		initData, initErr = module.Initialize(provider, ext)
		return initErr
	})
	if err != nil {
		return nil, xerrors.Wrap(xerrors.New(xerrors.LdrInitFailed, "loading", err.Error()))
	}

	ext.MethodTable = initData.MethodTable
	return module, nil
}

// LoadPlugin implements the Plugin half of spec §4.4.3's LoadingStage
// body: calls the hosting module's on_plugin_load and validates the
// returned method addresses against the manifest.
func (l *ExtensionLoader) LoadPlugin(ext *extension.Extension, module langmodule.LanguageModule) error {
	if ext.Type != manifest.TypePlugin {
		return fmt.Errorf("loader: %s is not a plugin", ext.Manifest.Name)
	}

	var loadData langmodule.LoadData
	err := l.safeCall(ext, "on_plugin_load", func() error {
		var loadErr error
		loadData, loadErr = module.OnPluginLoad(ext)
		return loadErr
	})
	if err != nil {
		return xerrors.Wrap(xerrors.New(xerrors.LdrInitFailed, "loading", err.Error()))
	}

	if len(loadData.Methods) != len(ext.Manifest.Methods) {
		return xerrors.Wrap(xerrors.New(xerrors.LdrMethodMismatch, "loading",
			fmt.Sprintf("%s: method table size mismatch: got %d, manifest declares %d",
				ext.Manifest.Name, len(loadData.Methods), len(ext.Manifest.Methods))).
			WithData("got", len(loadData.Methods)).
			WithData("want", len(ext.Manifest.Methods)))
	}

	mismatches := 0
	methodData := make([]extension.MethodAddress, 0, len(loadData.Methods))
	for i, resolved := range loadData.Methods {
		if resolved.Address == 0 {
			mismatches++
			if mismatches <= 10 {
				ext.AddWarning(fmt.Sprintf("method %q resolved to a null address", ext.Manifest.Methods[i].Name))
			}
			continue
		}
		methodData = append(methodData, extension.MethodAddress{
			Method:  ext.Manifest.Methods[i],
			Address: resolved.Address,
		})
	}
	if mismatches > 0 {
		if mismatches > 10 {
			ext.AddWarning(fmt.Sprintf("...and %d more method mismatches", mismatches-10))
		}
		return xerrors.Wrap(xerrors.New(xerrors.LdrMethodMismatch, "loading",
			fmt.Sprintf("%s: %d method(s) resolved to a null address", ext.Manifest.Name, mismatches)))
	}

	ext.UserData = loadData.UserData
	ext.MethodTable = loadData.MethodTable
	ext.MethodData = methodData
	return nil
}

// safeCall wraps a foreign-code invocation so a panic never unwinds across
// the core boundary (spec §4.5): it becomes a descriptive error naming the
// operation and the extension.
func (l *ExtensionLoader) safeCall(ext *extension.Extension, op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = xerrors.Wrap(xerrors.New(xerrors.LdrPanicRecovered, "loading",
				fmt.Sprintf("%s: recovered from panic in %s: %v", ext.Manifest.Name, op, r)))
		}
	}()
	return fn()
}
