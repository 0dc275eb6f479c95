package redcap

import (
	"fmt"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mitchellh/mapstructure"

	"github.com/hashicorp-forge/redcap/pkg/redcap/params"
)

// Record is one exported or imported record keyed by field name.
type Record = params.Record

// Request options, re-exported so callers need not import params.
type (
	ExportOptions     = params.ExportOptions
	ImportOptions     = params.ImportOptions
	MetadataOptions   = params.MetadataOptions
	SurveyLinkOptions = params.SurveyLinkOptions
	PDFOptions        = params.PDFOptions
)

// ProjectInfo describes the project the token belongs to.
//
// REDCap encodes booleans and numbers inconsistently across releases
// ("1", 1, true), so these models are decoded with weak typing.
type ProjectInfo struct {
	ProjectID                       int    `json:"project_id"`
	ProjectTitle                    string `json:"project_title"`
	CreationTime                    string `json:"creation_time"`
	ProductionTime                  string `json:"production_time"`
	InProduction                    bool   `json:"in_production"`
	ProjectLanguage                 string `json:"project_language"`
	Purpose                         int    `json:"purpose"`
	IsLongitudinal                  bool   `json:"is_longitudinal"`
	HasRepeatingInstrumentsOrEvents bool   `json:"has_repeating_instruments_or_events"`
	SurveysEnabled                  bool   `json:"surveys_enabled"`
	RecordAutonumberingEnabled      bool   `json:"record_autonumbering_enabled"`
	MissingDataCodes                string `json:"missing_data_codes"`

	// Extra holds attributes not modeled above.
	Extra map[string]any `json:"extra,omitempty,remain"`
}

// CreatedAt parses CreationTime.
func (p *ProjectInfo) CreatedAt() (time.Time, error) {
	if p.CreationTime == "" {
		return time.Time{}, fmt.Errorf("project has no creation time")
	}
	return dateparse.ParseIn(p.CreationTime, time.UTC)
}

// Instrument is one data collection instrument.
type Instrument struct {
	Name  string `json:"instrument_name"`
	Label string `json:"instrument_label"`
}

// Field is one row of the data dictionary.
type Field struct {
	FieldName                            string `json:"field_name"`
	FormName                             string `json:"form_name"`
	SectionHeader                        string `json:"section_header"`
	FieldType                            string `json:"field_type"`
	FieldLabel                           string `json:"field_label"`
	SelectChoicesOrCalculations          string `json:"select_choices_or_calculations"`
	FieldNote                            string `json:"field_note"`
	TextValidationTypeOrShowSliderNumber string `json:"text_validation_type_or_show_slider_number"`
	TextValidationMin                    string `json:"text_validation_min"`
	TextValidationMax                    string `json:"text_validation_max"`
	Identifier                           string `json:"identifier"`
	BranchingLogic                       string `json:"branching_logic"`
	RequiredField                        string `json:"required_field"`
	CustomAlignment                      string `json:"custom_alignment"`
	QuestionNumber                       string `json:"question_number"`
	MatrixGroupName                      string `json:"matrix_group_name"`
	MatrixRanking                        string `json:"matrix_ranking"`
	FieldAnnotation                      string `json:"field_annotation"`
}

// ExportFieldName maps a field (or checkbox choice) to its export column.
type ExportFieldName struct {
	OriginalFieldName string `json:"original_field_name"`
	ChoiceValue       string `json:"choice_value"`
	ExportFieldName   string `json:"export_field_name"`
}

// User is one project user.
type User struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	FirstName       string `json:"firstname"`
	LastName        string `json:"lastname"`
	Expiration      string `json:"expiration"`
	DataAccessGroup string `json:"data_access_group"`
	Design          bool   `json:"design"`
	UserRights      bool   `json:"user_rights"`
	DataExport      int    `json:"data_export"`
	APIExport       bool   `json:"api_export"`
	APIImport       bool   `json:"api_import"`
}

// RepositoryEntry is a file or folder in the project's file repository.
type RepositoryEntry struct {
	FolderID int    `json:"folder_id"`
	DocID    int    `json:"doc_id"`
	Name     string `json:"name"`
}

// IsFolder reports whether the entry is a folder.
func (e RepositoryEntry) IsFolder() bool {
	return e.FolderID != 0 && e.DocID == 0
}

// ImportResult is what an import returned, depending on returnContent.
type ImportResult struct {
	Count int      `json:"count,omitempty"`
	IDs   []string `json:"ids,omitempty"`
}

// weakDecode decodes a generic JSON value into out, converting between
// strings, numbers and booleans as needed.
func weakDecode(in any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}
