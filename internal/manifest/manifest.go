// Package manifest is the typed representation of an extension's declared
// identity, dependencies, conflicts, obsoletes, exported methods,
// prototypes, and enums (spec §3 Manifest). Load/Validate/digest follow the
// teacher's internal/manifest package's shape; field content is entirely
// the extension-manifest domain.
package manifest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/text/unicode/norm"

	"github.com/sunholo/extrt/internal/schema"
	"github.com/sunholo/extrt/internal/valuetype"
	"github.com/sunholo/extrt/internal/version"
)

var bomUTF8 = []byte{0xEF, 0xBB, 0xBF}

// normalizeSource strips a UTF-8 BOM and applies NFC normalization, the
// same input-boundary cleanup the teacher's lexer applies to source files —
// manifest files are just as likely to cross editors and platforms.
func normalizeSource(data []byte) []byte {
	data = bytes.TrimPrefix(data, bomUTF8)
	if !norm.NFC.IsNormal(data) {
		data = norm.NFC.Bytes(data)
	}
	return data
}

// Type discriminates a module (hosts plugins) from a plugin (runs inside one).
type Type string

const (
	TypeModule Type = "module"
	TypePlugin Type = "plugin"
)

// Dependency names another extension this one needs to load first.
type Dependency struct {
	Name       string `json:"name" yaml:"name"`
	Constraint string `json:"constraint,omitempty" yaml:"constraint,omitempty"`
	Optional   bool   `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// Conflict names an extension that must not be present alongside this one.
type Conflict struct {
	Name       string `json:"name" yaml:"name"`
	Constraint string `json:"constraint,omitempty" yaml:"constraint,omitempty"`
}

// Obsolete names an extension this one supersedes.
type Obsolete struct {
	Name       string `json:"name" yaml:"name"`
	Constraint string `json:"constraint,omitempty" yaml:"constraint,omitempty"`
}

// Property describes a single value slot: a parameter, a return, or (for
// function-valued parameters) recurses into a nested Method prototype.
type Property struct {
	Type      valuetype.ValueType `json:"type" yaml:"type"`
	IsRef     bool                `json:"is_ref,omitempty" yaml:"is_ref,omitempty"`
	Prototype *Method             `json:"prototype,omitempty" yaml:"prototype,omitempty"`
	Enumerate *Enum               `json:"enumerate,omitempty" yaml:"enumerate,omitempty"`
}

// Enum is a named set of integer constants usable as a parameter's domain.
type Enum struct {
	Name   string       `json:"name" yaml:"name"`
	Values []EnumValue  `json:"values" yaml:"values"`
}

// EnumValue is one (name, value) pair within an Enum.
type EnumValue struct {
	Name  string `json:"name" yaml:"name"`
	Value int64  `json:"value" yaml:"value"`
}

// NoVarIndex is the sentinel meaning "this method takes no varargs".
const NoVarIndex = 0xFF

// Method describes one exported function: its calling convention, return
// type, and parameter list. Methods form a tree via Property.Prototype for
// function-valued parameters.
type Method struct {
	Name             string     `json:"name" yaml:"name"`
	FuncName         string     `json:"func_name" yaml:"func_name"`
	CallingConvention string    `json:"calling_convention" yaml:"calling_convention"`
	Return           Property   `json:"return" yaml:"return"`
	Params           []Property `json:"params,omitempty" yaml:"params,omitempty"`
	VarIndex         uint8      `json:"var_index" yaml:"var_index"`
}

// HasVarargs reports whether the method accepts a variable argument tail.
func (m Method) HasVarargs() bool { return m.VarIndex != NoVarIndex }

// Manifest is the immutable-after-parsing declaration of an extension.
type Manifest struct {
	Name        string   `json:"name" yaml:"name"`
	Version     string   `json:"version" yaml:"version"`
	Language    string   `json:"language" yaml:"language"`
	Type        Type     `json:"type" yaml:"type"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Author      string   `json:"author,omitempty" yaml:"author,omitempty"`
	Website     string   `json:"website,omitempty" yaml:"website,omitempty"`
	License     string   `json:"license,omitempty" yaml:"license,omitempty"`
	Platforms   []string `json:"platforms,omitempty" yaml:"platforms,omitempty"`

	Dependencies []Dependency `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Conflicts    []Conflict   `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`
	Obsoletes    []Obsolete   `json:"obsoletes,omitempty" yaml:"obsoletes,omitempty"`

	// Plugin-only.
	Entry   string   `json:"entry,omitempty" yaml:"entry,omitempty"`
	Methods []Method `json:"methods,omitempty" yaml:"methods,omitempty"`

	// Module-only.
	Runtime     string   `json:"runtime,omitempty" yaml:"runtime,omitempty"`
	Directories []string `json:"directories,omitempty" yaml:"directories,omitempty"`
}

// ParsedVersion parses the manifest's version string.
func (m *Manifest) ParsedVersion() (version.Version, error) {
	return version.Parse(m.Version)
}

// SupportsPlatform reports whether the manifest targets the given platform
// tag; an empty Platforms list means universal.
func (m *Manifest) SupportsPlatform(platform string) bool {
	if len(m.Platforms) == 0 {
		return true
	}
	for _, p := range m.Platforms {
		if p == platform {
			return true
		}
	}
	return false
}

// DefaultRuntimePath returns manifest.Runtime, or the conventional
// "<location>/bin/lib<name>.<suffix>" default when unset, per spec §3.
func (m *Manifest) DefaultRuntimePath(location, platformSuffix string) string {
	if m.Runtime != "" {
		return m.Runtime
	}
	return fmt.Sprintf("%s/bin/lib%s.%s", location, m.Name, platformSuffix)
}

// Validate checks structural well-formedness independent of any other
// extension (name/version present, type-specific required fields).
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("manifest: missing name")
	}
	if _, err := m.ParsedVersion(); err != nil {
		return fmt.Errorf("manifest %q: %w", m.Name, err)
	}
	switch m.Type {
	case TypeModule:
		if m.Language == "" {
			return fmt.Errorf("manifest %q: module must declare language", m.Name)
		}
	case TypePlugin:
		if m.Language == "" {
			return fmt.Errorf("manifest %q: plugin must declare language", m.Name)
		}
		if m.Entry == "" {
			return fmt.Errorf("manifest %q: plugin must declare entry", m.Name)
		}
	default:
		return fmt.Errorf("manifest %q: unknown type %q", m.Name, m.Type)
	}
	for _, dep := range m.Dependencies {
		if dep.Constraint == "" {
			continue
		}
		if _, err := version.ParseConstraint(dep.Constraint); err != nil {
			return fmt.Errorf("manifest %q: dependency %q: %w", m.Name, dep.Name, err)
		}
	}
	return nil
}

// ParseJSON is the default ManifestParser implementation (SPEC_FULL C.3):
// an ordinary JSON decoder, the concrete form the resolver's external
// collaborator interface expects.
func ParseJSON(data []byte) (*Manifest, error) {
	data = normalizeSource(data)
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: parse: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadJSONFile reads and parses a manifest file from disk.
func LoadJSONFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	return ParseJSON(data)
}

// Digest returns a deterministic content hash of the manifest, used by
// tooling to detect manifest drift between runs (adapted from the
// teacher's schema-digest pattern in internal/manifest/manifest.go).
func (m *Manifest) Digest() (string, error) {
	data, err := schema.MarshalDeterministic(m)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// AsJSON renders the manifest as deterministic JSON tagged with its schema
// version (schema.ManifestV1).
func (m *Manifest) AsJSON(compact bool) (string, error) {
	tagged := struct {
		Schema string `json:"schema"`
		*Manifest
	}{Schema: schema.ManifestV1, Manifest: m}
	data, err := schema.MarshalDeterministic(tagged)
	if err != nil {
		return "", err
	}
	formatted, err := schema.FormatJSONCompact(data, compact)
	if err != nil {
		return "", err
	}
	return string(formatted), nil
}
