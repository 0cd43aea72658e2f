// Package xerrors provides the runtime's structured error taxonomy: a
// closed set of phase-prefixed codes, a Report type that round-trips
// through errors.As the way the teacher's internal/errors package does, and
// the Category/retryable model from plugify's core/error.hpp layered on
// top. There is no separate error-kind type and no retry delay.
package xerrors

import (
	"errors"
	"fmt"

	"github.com/sunholo/extrt/internal/schema"
)

// Phase-prefixed error codes. Each constant belongs to exactly one phase.
const (
	CfgMissing      = "CFG001" // required configuration missing
	CfgInvalid      = "CFG002" // configuration failed validation

	ResDuplicateName   = "RES001"
	ResLangModMissing  = "RES002"
	ResObsoleted       = "RES003"
	ResConflict        = "RES004"
	ResDepMissing      = "RES005"
	ResVersionConflict = "RES006"
	ResCycle           = "RES007"
	ResInvalidOrder    = "RES008"

	LdrFileNotFound     = "LDR001"
	LdrInvalidManifest  = "LDR002"
	LdrSymbolMissing    = "LDR003"
	LdrBuildMismatch    = "LDR004"
	LdrInitFailed       = "LDR005"
	LdrModuleNotLoaded  = "LDR006"
	LdrMethodMismatch   = "LDR007"
	LdrDependencyFailed = "LDR008"
	LdrPanicRecovered   = "LDR009"

	ExpNotExported = "EXP001"
	ExpFailed      = "EXP002"

	StaFailed = "STA001"

	JitUnsupportedWidth = "JIT001"
	JitEmitFailed       = "JIT002"
	JitUnknownSignature = "JIT003"

	PltUnsupportedOp  = "PLT001"
	PltLoadFailed     = "PLT002"
	PltSymbolNotFound = "PLT003"
)

// Category groups codes by how callers should react.
type Category string

const (
	CategoryTransient     Category = "transient"
	CategoryConfiguration Category = "configuration"
	CategoryDependency    Category = "dependency"
	CategoryResource      Category = "resource"
	CategoryRuntime       Category = "runtime"
	CategoryValidation    Category = "validation"
)

// retryableCodes mirrors plugify's Error::Auto: codes where a retry might
// plausibly succeed (the underlying condition may resolve itself).
var retryableCodes = map[string]bool{
	LdrFileNotFound: true,
	LdrInitFailed:   true,
}

// Report is the canonical structured error for the runtime. It survives an
// errors.As() unwrap so callers can recover code/phase/data for tooling
// without string-matching messages.
type Report struct {
	Schema   string         `json:"schema"`
	Code     string         `json:"code"`
	Phase    string         `json:"phase"`
	Message  string         `json:"message"`
	Category Category       `json:"category"`
	Retryable bool          `json:"retryable"`
	Data     map[string]any `json:"data,omitempty"`
}

// New builds a Report, inferring category/retryable from the code via Auto
// semantics unless overridden by NewWithCategory.
func New(code, phase, message string) *Report {
	return NewWithCategory(code, phase, message, categoryFor(code))
}

// NewWithCategory builds a Report with an explicit category.
func NewWithCategory(code, phase, message string, category Category) *Report {
	return &Report{
		Schema:    schema.ErrorV1,
		Code:      code,
		Phase:     phase,
		Message:   message,
		Category:  category,
		Retryable: retryableCodes[code],
		Data:      map[string]any{},
	}
}

func categoryFor(code string) Category {
	switch {
	case len(code) >= 3 && code[:3] == "CFG":
		return CategoryConfiguration
	case len(code) >= 3 && code[:3] == "RES":
		return CategoryDependency
	case len(code) >= 3 && code[:3] == "LDR":
		return CategoryRuntime
	case len(code) >= 3 && code[:3] == "JIT":
		return CategoryRuntime
	case len(code) >= 3 && code[:3] == "PLT":
		return CategoryResource
	default:
		return CategoryValidation
	}
}

// WithData attaches structured data, returning the same Report for chaining.
func (r *Report) WithData(key string, value any) *Report {
	if r.Data == nil {
		r.Data = map[string]any{}
	}
	r.Data[key] = value
	return r
}

// ReportError wraps a Report as an error so it can flow through normal Go
// error-handling and still be recovered with errors.As.
type ReportError struct {
	Rep *Report
}

func (e *ReportError) Error() string {
	if e.Rep == nil {
		return "unknown error"
	}
	return fmt.Sprintf("%s: %s", e.Rep.Code, e.Rep.Message)
}

// Wrap turns a Report into an error.
func Wrap(r *Report) error {
	if r == nil {
		return nil
	}
	return &ReportError{Rep: r}
}

// As extracts a Report from an error chain.
func As(err error) (*Report, bool) {
	var re *ReportError
	if errors.As(err, &re) {
		return re.Rep, true
	}
	return nil, false
}

// ToJSON renders the report deterministically for tooling, sharing the
// sorted-key marshaler every structured artifact in the runtime uses.
func (r *Report) ToJSON(compact bool) (string, error) {
	data, err := schema.MarshalDeterministic(r)
	if err != nil {
		return "", err
	}
	formatted, err := schema.FormatJSONCompact(data, compact)
	if err != nil {
		return "", err
	}
	return string(formatted), nil
}
