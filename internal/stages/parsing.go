// Package stages implements the concrete pipeline stages (spec §4.4,
// component C8): Parsing, Resolution, Loading, Exporting, Starting.
package stages

import (
	"fmt"
	"os"

	"github.com/sunholo/extrt/internal/extension"
	"github.com/sunholo/extrt/internal/manifest"
	"github.com/sunholo/extrt/internal/pipeline"
)

// ManifestReader locates and reads the raw manifest bytes for an
// extension; the default implementation is loader.ManifestPath + os.ReadFile.
type ManifestReader func(ext *extension.Extension) ([]byte, error)

// ParsingStage is spec §4.4.1: a Transform stage that reads and parses
// each Discovered extension's manifest file.
type ParsingStage struct {
	pipeline.AlwaysProcess
	ReadManifest ManifestReader
	Parse        func([]byte) (*manifest.Manifest, error)
}

// NewParsingStage builds a ParsingStage with manifest.ParseJSON as the
// default parser.
func NewParsingStage(read ManifestReader) *ParsingStage {
	return &ParsingStage{ReadManifest: read, Parse: manifest.ParseJSON}
}

func (*ParsingStage) Name() string        { return "parsing" }
func (*ParsingStage) Kind() pipeline.Kind { return pipeline.KindTransform }
func (*ParsingStage) Required() bool      { return false }

func (s *ParsingStage) ShouldProcess(e *extension.Extension) bool {
	return e.State() == extension.Discovered
}

// ProcessItem reads the manifest file, parses it, and transitions the
// extension to Parsed on success or Corrupted on failure, appending the
// parser's message to errors either way a failure occurs.
func (s *ParsingStage) ProcessItem(e *extension.Extension, _ *pipeline.Ctx) error {
	if err := e.StartOperation(extension.Parsing); err != nil {
		return err
	}
	data, err := s.ReadManifest(e)
	if err != nil {
		e.AddError(fmt.Sprintf("parsing: %v", err))
		return e.EndOperation(extension.Corrupted)
	}
	m, err := s.Parse(data)
	if err != nil {
		e.AddError(fmt.Sprintf("parsing: %v", err))
		return e.EndOperation(extension.Corrupted)
	}
	e.Manifest = m
	return e.EndOperation(extension.Parsed)
}

// ReadManifestFile is the default ManifestReader: it looks up the
// manifest path by the loader's discovery convention and reads it.
func ReadManifestFile(manifestPath func(*extension.Extension) (string, error)) ManifestReader {
	return func(ext *extension.Extension) ([]byte, error) {
		path, err := manifestPath(ext)
		if err != nil {
			return nil, err
		}
		return os.ReadFile(path)
	}
}
