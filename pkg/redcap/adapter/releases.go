package adapter

import (
	"github.com/hashicorp-forge/redcap/pkg/redcap/params"
	"github.com/hashicorp-forge/redcap/pkg/redcap/version"
)

// Adapter names.
const (
	NameV14 = "redcap-14"
	NameV15 = "redcap-15"
	NameV16 = "redcap-16"
)

// jsonErrors asks REDCap to report errors as JSON. Without it some
// releases answer errors as XML.
func jsonErrors() params.Params {
	return params.Params{"returnFormat": "json"}
}

// V14 covers REDCap 14.x. The file repository and project settings
// endpoints do not exist yet, and record requests reject parameters
// introduced in 15.0.
func V14() Adapter {
	return NewBase(Options{
		Name:     NameV14,
		Versions: version.Between(version.New(14, 0, 0), version.New(15, 0, 0)),
		Features: FeatureSet{
			RepeatingInstruments: true,
			DataAccessGroups:     true,
		},
		IsOperationAvailable: func(op Operation) bool {
			return op != OpFileRepository && op != OpProjectSettings
		},
		TransformExportParams: func(p params.Params) params.Params {
			return p.Without("exportBlankForGrayFormStatus")
		},
		TransformImportParams: func(p params.Params) params.Params {
			return p.Without("backgroundProcess")
		},
		DefaultParams: jsonErrors,
	})
}

// V15 covers REDCap 15.x.
func V15() Adapter {
	return NewBase(Options{
		Name:     NameV15,
		Versions: version.Between(version.New(15, 0, 0), version.New(16, 0, 0)),
		Features: FeatureSet{
			RepeatingInstruments: true,
			DataAccessGroups:     true,
			FileRepository:       true,
			ProjectSettings:      true,
		},
		DefaultParams: jsonErrors,
	})
}

// V16 covers REDCap 16.0 and every later release. Unknown future majors
// are treated as compatible with it.
func V16() Adapter {
	return NewBase(Options{
		Name:     NameV16,
		Versions: version.AtLeast(version.New(16, 0, 0)),
		Features: FeatureSet{
			RepeatingInstruments: true,
			DataAccessGroups:     true,
			FileRepository:       true,
			ProjectSettings:      true,
			FileInfo:             true,
		},
		DefaultParams: jsonErrors,
	})
}
