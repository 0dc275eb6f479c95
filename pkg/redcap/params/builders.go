package params

import (
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/hashicorp-forge/redcap/pkg/redcap/types"
)

// Format is the payload format of a request or response.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXML  Format = "xml"
)

// RecordType selects the record shape of an export or import.
type RecordType string

const (
	// RecordTypeFlat is one row per record (per event/instance).
	RecordTypeFlat RecordType = "flat"
	// RecordTypeEAV is one row per record-field-value.
	RecordTypeEAV RecordType = "eav"
)

// RawOrLabel selects coded values or their display labels.
type RawOrLabel string

const (
	RawValues   RawOrLabel = "raw"
	LabelValues RawOrLabel = "label"
)

// OverwriteBehavior controls how imported blanks treat existing values.
type OverwriteBehavior string

const (
	// OverwriteNormal ignores blank values in the import.
	OverwriteNormal OverwriteBehavior = "normal"
	// OverwriteAll lets blank values erase existing data.
	OverwriteAll OverwriteBehavior = "overwrite"
)

// ReturnContent selects what an import returns.
type ReturnContent string

const (
	ReturnCount   ReturnContent = "count"
	ReturnIDs     ReturnContent = "ids"
	ReturnAutoIDs ReturnContent = "auto_ids"
	ReturnNothing ReturnContent = "nothing"
)

// DateFormat is the date layout of imported values.
type DateFormat string

const (
	DateYMD DateFormat = "YMD"
	DateMDY DateFormat = "MDY"
	DateDMY DateFormat = "DMY"
)

// Content values understood by the API.
const (
	ContentVersion         = "version"
	ContentProject         = "project"
	ContentProjectSettings = "project_settings"
	ContentMetadata        = "metadata"
	ContentInstrument      = "instrument"
	ContentFieldNames      = "exportFieldNames"
	ContentRecord          = "record"
	ContentSurveyLink      = "surveyLink"
	ContentPDF             = "pdf"
	ContentUser            = "user"
	ContentFileRepository  = "fileRepository"
)

// ExportOptions configures a record export.
type ExportOptions struct {
	Format                       Format
	Type                         RecordType
	Records                      []types.RecordID
	Fields                       []types.FieldName
	Forms                        []types.InstrumentName
	Events                       []types.EventName
	RawOrLabel                   RawOrLabel
	RawOrLabelHeaders            RawOrLabel
	ExportCheckboxLabel          bool
	ExportSurveyFields           bool
	ExportDataAccessGroups       bool
	ExportBlankForGrayFormStatus bool
	FilterLogic                  string
	DateRangeBegin               types.Timestamp
	DateRangeEnd                 types.Timestamp
	CSVDelimiter                 string
}

// BuildExportParams returns the parameters for content=record, action=export.
// Unset options default to flat JSON with raw values.
func BuildExportParams(opts ExportOptions) (Params, error) {
	var result *multierror.Error
	format := orDefault(opts.Format, FormatJSON)
	result = checkFormat(result, "format", format)
	typ := orDefault(opts.Type, RecordTypeFlat)
	if typ != RecordTypeFlat && typ != RecordTypeEAV {
		result = multierror.Append(result, invalid("type", "must be flat or eav"))
	}
	rawOrLabel := orDefault(opts.RawOrLabel, RawValues)
	result = checkRawOrLabel(result, "rawOrLabel", rawOrLabel)
	headers := orDefault(opts.RawOrLabelHeaders, RawValues)
	result = checkRawOrLabel(result, "rawOrLabelHeaders", headers)
	if opts.CSVDelimiter != "" && format != FormatCSV {
		result = multierror.Append(result, invalid("csvDelimiter", "only applies to csv format"))
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	raw := Raw{
		"content":                      Str(ContentRecord),
		"action":                       Str("export"),
		"format":                       Str(string(format)),
		"type":                         Str(string(typ)),
		"rawOrLabel":                   Str(string(rawOrLabel)),
		"rawOrLabelHeaders":            Str(string(headers)),
		"exportCheckboxLabel":          boolParam(opts.ExportCheckboxLabel),
		"exportSurveyFields":           boolParam(opts.ExportSurveyFields),
		"exportDataAccessGroups":       boolParam(opts.ExportDataAccessGroups),
		"exportBlankForGrayFormStatus": boolParam(opts.ExportBlankForGrayFormStatus),
		"filterLogic":                  optional(opts.FilterLogic != "", opts.FilterLogic),
		"dateRangeBegin":               optional(!opts.DateRangeBegin.IsZero(), opts.DateRangeBegin.String()),
		"dateRangeEnd":                 optional(!opts.DateRangeEnd.IsZero(), opts.DateRangeEnd.String()),
		"csvDelimiter":                 optional(opts.CSVDelimiter != "", opts.CSVDelimiter),
	}
	setIndexed(raw, "records", toStrings(opts.Records))
	setIndexed(raw, "fields", toStrings(opts.Fields))
	setIndexed(raw, "forms", toStrings(opts.Forms))
	setIndexed(raw, "events", toStrings(opts.Events))

	return CleanParams(raw), nil
}

// Record is one record in an import payload, keyed by field name.
type Record map[string]any

// ImportOptions configures a record import.
type ImportOptions struct {
	Type              RecordType
	OverwriteBehavior OverwriteBehavior
	ReturnContent     ReturnContent
	DateFormat        DateFormat
	ForceAutoNumber   bool
	BackgroundProcess bool
}

// BuildImportParams returns the parameters for content=record, action=import.
// Records are sent as JSON. The default overwrite behavior is "normal",
// which never erases existing values with blanks.
func BuildImportParams(records []Record, opts ImportOptions) (Params, error) {
	var result *multierror.Error
	if len(records) == 0 {
		result = multierror.Append(result, invalid("data", "at least one record is required"))
	}
	typ := orDefault(opts.Type, RecordTypeFlat)
	if typ != RecordTypeFlat && typ != RecordTypeEAV {
		result = multierror.Append(result, invalid("type", "must be flat or eav"))
	}
	overwrite := orDefault(opts.OverwriteBehavior, OverwriteNormal)
	if overwrite != OverwriteNormal && overwrite != OverwriteAll {
		result = multierror.Append(result, invalid("overwriteBehavior", "must be normal or overwrite"))
	}
	returnContent := orDefault(opts.ReturnContent, ReturnCount)
	switch returnContent {
	case ReturnCount, ReturnIDs, ReturnAutoIDs, ReturnNothing:
	default:
		result = multierror.Append(result, invalid("returnContent", "must be count, ids, auto_ids or nothing"))
	}
	if returnContent == ReturnAutoIDs && !opts.ForceAutoNumber {
		result = multierror.Append(result, invalid("returnContent", "auto_ids requires forceAutoNumber"))
	}
	dateFormat := orDefault(opts.DateFormat, DateYMD)
	switch dateFormat {
	case DateYMD, DateMDY, DateDMY:
	default:
		result = multierror.Append(result, invalid("dateFormat", "must be YMD, MDY or DMY"))
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("error encoding records: %w", err)
	}

	return CleanParams(Raw{
		"content":           Str(ContentRecord),
		"action":            Str("import"),
		"format":            Str(string(FormatJSON)),
		"type":              Str(string(typ)),
		"overwriteBehavior": Str(string(overwrite)),
		"forceAutoNumber":   Str(fmt.Sprint(opts.ForceAutoNumber)),
		"backgroundProcess": boolParam(opts.BackgroundProcess),
		"dateFormat":        Str(string(dateFormat)),
		"returnContent":     Str(string(returnContent)),
		"data":              Str(string(data)),
	}), nil
}

// MetadataOptions narrows a data dictionary export.
type MetadataOptions struct {
	Fields []types.FieldName
	Forms  []types.InstrumentName
}

// BuildMetadataParams returns the parameters for content=metadata.
func BuildMetadataParams(opts MetadataOptions) Params {
	raw := jsonContent(ContentMetadata)
	setIndexed(raw, "fields", toStrings(opts.Fields))
	setIndexed(raw, "forms", toStrings(opts.Forms))
	return CleanParams(raw)
}

// BuildVersionParams returns the parameters for content=version.
func BuildVersionParams() Params {
	return CleanParams(jsonContent(ContentVersion))
}

// BuildProjectInfoParams returns the parameters for content=project.
func BuildProjectInfoParams() Params {
	return CleanParams(jsonContent(ContentProject))
}

// BuildProjectSettingsParams returns the parameters for content=project_settings.
func BuildProjectSettingsParams() Params {
	return CleanParams(jsonContent(ContentProjectSettings))
}

// BuildInstrumentParams returns the parameters for content=instrument.
func BuildInstrumentParams() Params {
	return CleanParams(jsonContent(ContentInstrument))
}

// BuildUserParams returns the parameters for content=user.
func BuildUserParams() Params {
	return CleanParams(jsonContent(ContentUser))
}

// BuildFieldNamesParams returns the parameters for content=exportFieldNames.
// A zero field lists every field.
func BuildFieldNamesParams(field types.FieldName) Params {
	raw := jsonContent(ContentFieldNames)
	raw["field"] = optional(!field.IsZero(), field.String())
	return CleanParams(raw)
}

// SurveyLinkOptions identifies one survey for one record.
type SurveyLinkOptions struct {
	Record         types.RecordID
	Instrument     types.InstrumentName
	Event          types.EventName
	RepeatInstance types.PositiveInt
}

// BuildSurveyLinkParams returns the parameters for content=surveyLink.
func BuildSurveyLinkParams(opts SurveyLinkOptions) (Params, error) {
	var result *multierror.Error
	if opts.Record.IsZero() {
		result = multierror.Append(result, invalid("record", "is required"))
	}
	if opts.Instrument.IsZero() {
		result = multierror.Append(result, invalid("instrument", "is required"))
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	return CleanParams(Raw{
		"content":         Str(ContentSurveyLink),
		"format":          Str(string(FormatJSON)),
		"record":          Str(opts.Record.String()),
		"instrument":      Str(opts.Instrument.String()),
		"event":           optional(!opts.Event.IsZero(), opts.Event.String()),
		"repeat_instance": optional(!opts.RepeatInstance.IsZero(), opts.RepeatInstance.String()),
	}), nil
}

// PDFOptions selects the record and instrument to render.
type PDFOptions struct {
	Record     types.RecordID
	Instrument types.InstrumentName
	Event      types.EventName
	Compact    bool
}

// BuildPDFParams returns the parameters for content=pdf.
func BuildPDFParams(opts PDFOptions) (Params, error) {
	if opts.Record.IsZero() {
		return nil, invalid("record", "is required")
	}
	return CleanParams(Raw{
		"content":        Str(ContentPDF),
		"record":         Str(opts.Record.String()),
		"instrument":     optional(!opts.Instrument.IsZero(), opts.Instrument.String()),
		"event":          optional(!opts.Event.IsZero(), opts.Event.String()),
		"compactDisplay": boolParam(opts.Compact),
	}), nil
}

// BuildFileRepositoryParams returns the parameters for listing a file
// repository folder. A zero folder lists the top level.
func BuildFileRepositoryParams(folder types.PositiveInt) Params {
	raw := jsonContent(ContentFileRepository)
	raw["action"] = Str("list")
	raw["folder_id"] = optional(!folder.IsZero(), folder.String())
	return CleanParams(raw)
}

func jsonContent(content string) Raw {
	return Raw{
		"content": Str(content),
		"format":  Str(string(FormatJSON)),
	}
}

func orDefault[T ~string](v, def T) T {
	if v == "" {
		return def
	}
	return v
}

func checkFormat(result *multierror.Error, field string, f Format) *multierror.Error {
	switch f {
	case FormatJSON, FormatCSV, FormatXML:
		return result
	}
	return multierror.Append(result, invalid(field, "must be json, csv or xml"))
}

func checkRawOrLabel(result *multierror.Error, field string, v RawOrLabel) *multierror.Error {
	if v == RawValues || v == LabelValues {
		return result
	}
	return multierror.Append(result, invalid(field, "must be raw or label"))
}

func invalid(field, reason string) error {
	return &types.ValidationError{Field: field, Reason: reason}
}
