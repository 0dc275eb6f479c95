// Package adapter encodes how the REDCap API differs between releases.
//
// An Adapter covers a half-open range of REDCap versions and describes the
// features, operations and request parameters valid for that range. Each
// concrete adapter is built with NewBase, which fills every behavior the
// adapter does not override with a pass-through default.
package adapter

import (
	"github.com/hashicorp-forge/redcap/pkg/redcap/params"
	"github.com/hashicorp-forge/redcap/pkg/redcap/version"
)

// Operation names an API operation whose availability varies by release.
type Operation string

const (
	OpVersion         Operation = "version"
	OpProjectInfo     Operation = "project"
	OpProjectSettings Operation = "project_settings"
	OpMetadata        Operation = "metadata"
	OpInstruments     Operation = "instrument"
	OpFieldNames      Operation = "exportFieldNames"
	OpExportRecords   Operation = "record_export"
	OpImportRecords   Operation = "record_import"
	OpSurveyLink      Operation = "surveyLink"
	OpPDF             Operation = "pdf"
	OpUsers           Operation = "user"
	OpFileRepository  Operation = "fileRepository"
)

// FeatureSet describes the capabilities present in a release so callers can
// branch on capability instead of on version numbers.
type FeatureSet struct {
	RepeatingInstruments bool
	DataAccessGroups     bool
	FileRepository       bool
	ProjectSettings      bool
	FileInfo             bool
}

// Adapter is the behavior of one range of REDCap releases. Adapters are
// values: they are built once and never modified.
type Adapter struct {
	name     string
	versions version.Range
	features FeatureSet

	isOperationAvailable  func(Operation) bool
	transformExportParams func(params.Params) params.Params
	transformImportParams func(params.Params) params.Params
	defaultParams         func() params.Params
}

// Options are the overrides applied on top of the base adapter. Nil
// functions keep the base behavior.
type Options struct {
	Name     string
	Versions version.Range
	Features FeatureSet

	IsOperationAvailable  func(Operation) bool
	TransformExportParams func(params.Params) params.Params
	TransformImportParams func(params.Params) params.Params
	DefaultParams         func() params.Params
}

// NewBase builds an adapter from opts. The base behavior makes every
// operation available, passes parameters through unchanged, and adds no
// default parameters.
func NewBase(opts Options) Adapter {
	a := Adapter{
		name:                  opts.Name,
		versions:              opts.Versions,
		features:              opts.Features,
		isOperationAvailable:  func(Operation) bool { return true },
		transformExportParams: func(p params.Params) params.Params { return p },
		transformImportParams: func(p params.Params) params.Params { return p },
		defaultParams:         func() params.Params { return params.Params{} },
	}
	if opts.IsOperationAvailable != nil {
		a.isOperationAvailable = opts.IsOperationAvailable
	}
	if opts.TransformExportParams != nil {
		a.transformExportParams = opts.TransformExportParams
	}
	if opts.TransformImportParams != nil {
		a.transformImportParams = opts.TransformImportParams
	}
	if opts.DefaultParams != nil {
		a.defaultParams = opts.DefaultParams
	}
	return a
}

// Name returns the adapter name (e.g., "redcap-15").
func (a Adapter) Name() string { return a.name }

// Versions returns the range of releases the adapter covers.
func (a Adapter) Versions() version.Range { return a.versions }

// Features returns the adapter's capabilities.
func (a Adapter) Features() FeatureSet { return a.features }

// Supports reports whether v falls inside the adapter's range.
func (a Adapter) Supports(v version.Version) bool { return a.versions.Contains(v) }

// IsOperationAvailable reports whether op can be called on this release.
func (a Adapter) IsOperationAvailable(op Operation) bool {
	return a.isOperationAvailable(op)
}

// TransformExportParams adapts record export parameters. The input is not
// modified.
func (a Adapter) TransformExportParams(p params.Params) params.Params {
	return a.transformExportParams(p.Clone())
}

// TransformImportParams adapts record import parameters. The input is not
// modified.
func (a Adapter) TransformImportParams(p params.Params) params.Params {
	return a.transformImportParams(p.Clone())
}

// DefaultParams returns parameters added to every request unless the
// request sets them itself.
func (a Adapter) DefaultParams() params.Params {
	return a.defaultParams().Clone()
}

func (a Adapter) String() string {
	return a.name + " (" + a.versions.String() + ")"
}
