// Package records holds the commands that read and write record data.
package records

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"

	"github.com/hashicorp-forge/redcap/internal/cmd/base"
	"github.com/hashicorp-forge/redcap/pkg/redcap"
	"github.com/hashicorp-forge/redcap/pkg/redcap/params"
	"github.com/hashicorp-forge/redcap/pkg/redcap/types"
)

type ExportCommand struct {
	*base.Command

	flagRecords      string
	flagFields       string
	flagForms        string
	flagEvents       string
	flagType         string
	flagRawOrLabel   string
	flagFilter       string
	flagBegin        string
	flagEnd          string
	flagExportFormat string
	flagOut          string
}

func (c *ExportCommand) Synopsis() string {
	return "Export records"
}

func (c *ExportCommand) Help() string {
	return `Usage: redcap export [options]

  Exports records. JSON exports are printed in the format chosen with
  -format. CSV and XML exports, and anything written with -out, are passed
  through exactly as the server returned them.` + c.Flags().Help()
}

func (c *ExportCommand) Flags() *base.FlagSet {
	f := c.NewClientFlagSet("export")
	f.StringVar(&c.flagRecords, "records", "", "Comma-separated record IDs.")
	f.StringVar(&c.flagFields, "fields", "", "Comma-separated field names.")
	f.StringVar(&c.flagForms, "forms", "", "Comma-separated instrument names.")
	f.StringVar(&c.flagEvents, "events", "", "Comma-separated unique event names.")
	f.StringVar(&c.flagType, "type", string(params.RecordTypeFlat), "Record shape: flat or eav.")
	f.StringVar(&c.flagRawOrLabel, "raw-or-label", string(params.RawValues), "Export raw values or labels.")
	f.StringVar(&c.flagFilter, "filter", "", "REDCap filter logic, such as [age] > 30.")
	f.StringVar(&c.flagBegin, "begin", "", "Only records changed at or after this time.")
	f.StringVar(&c.flagEnd, "end", "", "Only records changed before this time.")
	f.StringVar(&c.flagExportFormat, "export-format", string(params.FormatJSON), "Server format: json, csv or xml.")
	f.StringVar(&c.flagOut, "out", "", "Write the export to this file.")
	return f
}

func (c *ExportCommand) Run(args []string) int {
	defer c.Close()
	client, code := c.Connect(c.Flags(), args)
	if client == nil {
		return code
	}

	opts, err := c.options()
	if err != nil {
		return c.Fail("parsing flags", err)
	}

	ctx, cancel := base.Context()
	defer cancel()

	if opts.Format == params.FormatJSON && c.flagOut == "" {
		records, err := client.ExportRecords(ctx, opts)
		if err != nil {
			return c.Fail("exporting records", err)
		}
		return c.PrintResult(records)
	}

	body, err := client.ExportRecordsRaw(ctx, opts)
	if err != nil {
		return c.Fail("exporting records", err)
	}
	if c.flagOut == "" {
		c.UI.Output(string(body))
		return 0
	}
	if err := afero.WriteFile(c.FS(), c.flagOut, body, 0o644); err != nil {
		return c.Fail("writing export", err)
	}
	c.UI.Info(fmt.Sprintf("Wrote %d bytes to %s", len(body), c.flagOut))
	return 0
}

func (c *ExportCommand) options() (redcap.ExportOptions, error) {
	opts := redcap.ExportOptions{
		Format:      params.Format(c.flagExportFormat),
		Type:        params.RecordType(c.flagType),
		RawOrLabel:  params.RawOrLabel(c.flagRawOrLabel),
		FilterLogic: c.flagFilter,
	}

	var err error
	if opts.Records, err = base.ParseList(c.flagRecords, types.NewRecordID); err != nil {
		return opts, err
	}
	if opts.Fields, err = base.ParseList(c.flagFields, types.NewFieldName); err != nil {
		return opts, err
	}
	if opts.Forms, err = base.ParseList(c.flagForms, types.NewInstrumentName); err != nil {
		return opts, err
	}
	if opts.Events, err = base.ParseList(c.flagEvents, types.NewEventName); err != nil {
		return opts, err
	}
	if opts.DateRangeBegin, err = base.ParseOptional(c.flagBegin, timestamp("begin")); err != nil {
		return opts, err
	}
	if opts.DateRangeEnd, err = base.ParseOptional(c.flagEnd, timestamp("end")); err != nil {
		return opts, err
	}
	return opts, nil
}

func timestamp(field string) func(string) (types.Timestamp, error) {
	return func(s string) (types.Timestamp, error) { return types.NewTimestamp(field, s) }
}

type ImportCommand struct {
	*base.Command

	flagFile          string
	flagType          string
	flagOverwrite     bool
	flagReturnContent string
	flagAutoNumber    bool
	flagDateFormat    string
}

func (c *ImportCommand) Synopsis() string {
	return "Import records from a JSON file"
}

func (c *ImportCommand) Help() string {
	return `Usage: redcap import -file=<path> [options]

  Imports the records in a JSON array. Blank values leave existing data
  alone unless -overwrite is set. Imports are never retried once the server
  has answered.` + c.Flags().Help()
}

func (c *ImportCommand) Flags() *base.FlagSet {
	f := c.NewClientFlagSet("import")
	f.StringVar(&c.flagFile, "file", "", "JSON file holding an array of records. Required.")
	f.StringVar(&c.flagType, "type", string(params.RecordTypeFlat), "Record shape: flat or eav.")
	f.BoolVar(&c.flagOverwrite, "overwrite", false, "Let blank values erase existing data.")
	f.StringVar(&c.flagReturnContent, "return-content", string(params.ReturnCount),
		"What to return: count, ids, auto_ids or nothing.")
	f.BoolVar(&c.flagAutoNumber, "auto-number", false, "Let the server assign record IDs.")
	f.StringVar(&c.flagDateFormat, "date-format", string(params.DateYMD), "Date layout: YMD, MDY or DMY.")
	return f
}

func (c *ImportCommand) Run(args []string) int {
	defer c.Close()
	client, code := c.Connect(c.Flags(), args)
	if client == nil {
		return code
	}
	if c.flagFile == "" {
		c.UI.Error("-file is required")
		return 1
	}

	src, err := afero.ReadFile(c.FS(), c.flagFile)
	if err != nil {
		return c.Fail("reading records", err)
	}
	var records []redcap.Record
	if err := json.Unmarshal(src, &records); err != nil {
		return c.Fail("decoding records", err)
	}

	opts := redcap.ImportOptions{
		Type:              params.RecordType(c.flagType),
		OverwriteBehavior: params.OverwriteNormal,
		ReturnContent:     params.ReturnContent(c.flagReturnContent),
		DateFormat:        params.DateFormat(c.flagDateFormat),
		ForceAutoNumber:   c.flagAutoNumber,
	}
	if c.flagOverwrite {
		opts.OverwriteBehavior = params.OverwriteAll
	}

	ctx, cancel := base.Context()
	defer cancel()

	result, err := client.ImportRecords(ctx, records, opts)
	if err != nil {
		return c.Fail("importing records", err)
	}
	return c.PrintResult(result)
}

type FindUserCommand struct {
	*base.Command

	flagEmail string
	flagField string
}

func (c *FindUserCommand) Synopsis() string {
	return "Find the record holding an email address"
}

func (c *FindUserCommand) Help() string {
	return `Usage: redcap find-user -email=<address> [options]

  Prints the ID of the first record whose email field equals the address.
  Exits 1 when no record matches.` + c.Flags().Help()
}

func (c *FindUserCommand) Flags() *base.FlagSet {
	f := c.NewClientFlagSet("find-user")
	f.StringVar(&c.flagEmail, "email", "", "Email address to look up. Required.")
	f.StringVar(&c.flagField, "field", redcap.DefaultEmailField.String(), "Field holding the email address.")
	return f
}

func (c *FindUserCommand) Run(args []string) int {
	defer c.Close()
	client, code := c.Connect(c.Flags(), args)
	if client == nil {
		return code
	}

	email, err := types.NewEmail(c.flagEmail)
	if err != nil {
		return c.Fail("parsing -email", err)
	}
	field, err := base.ParseOptional(c.flagField, types.NewFieldName)
	if err != nil {
		return c.Fail("parsing -field", err)
	}

	ctx, cancel := base.Context()
	defer cancel()

	id, err := client.FindUserByEmail(ctx, email, field)
	if err != nil {
		return c.Fail("finding user", err)
	}
	c.UI.Output(id.String())
	return 0
}

type SurveyLinkCommand struct {
	*base.Command

	flagRecord     string
	flagInstrument string
	flagEvent      string
	flagInstance   string
}

func (c *SurveyLinkCommand) Synopsis() string {
	return "Print a record's survey link"
}

func (c *SurveyLinkCommand) Help() string {
	return `Usage: redcap survey-link -record=<id> -instrument=<name> [options]

  Prints the unique survey link of a record for a survey instrument.` + c.Flags().Help()
}

func (c *SurveyLinkCommand) Flags() *base.FlagSet {
	f := c.NewClientFlagSet("survey-link")
	f.StringVar(&c.flagRecord, "record", "", "Record ID. Required.")
	f.StringVar(&c.flagInstrument, "instrument", "", "Survey instrument name. Required.")
	f.StringVar(&c.flagEvent, "event", "", "Unique event name (longitudinal projects).")
	f.StringVar(&c.flagInstance, "instance", "", "Repeat instance number.")
	return f
}

func (c *SurveyLinkCommand) Run(args []string) int {
	defer c.Close()
	client, code := c.Connect(c.Flags(), args)
	if client == nil {
		return code
	}

	var (
		opts redcap.SurveyLinkOptions
		err  error
	)
	if opts.Record, err = base.ParseOptional(c.flagRecord, types.NewRecordID); err != nil {
		return c.Fail("parsing -record", err)
	}
	if opts.Instrument, err = base.ParseOptional(c.flagInstrument, types.NewInstrumentName); err != nil {
		return c.Fail("parsing -instrument", err)
	}
	if opts.Event, err = base.ParseOptional(c.flagEvent, types.NewEventName); err != nil {
		return c.Fail("parsing -event", err)
	}
	instance := func(s string) (types.PositiveInt, error) { return types.ParsePositiveInt("instance", s) }
	if opts.RepeatInstance, err = base.ParseOptional(c.flagInstance, instance); err != nil {
		return c.Fail("parsing -instance", err)
	}

	ctx, cancel := base.Context()
	defer cancel()

	link, err := client.ExportSurveyLink(ctx, opts)
	if err != nil {
		return c.Fail("exporting survey link", err)
	}
	c.UI.Output(link)
	return 0
}

type PDFCommand struct {
	*base.Command

	flagRecord     string
	flagInstrument string
	flagEvent      string
	flagCompact    bool
	flagOut        string
}

func (c *PDFCommand) Synopsis() string {
	return "Download a record's instruments as a PDF"
}

func (c *PDFCommand) Help() string {
	return `Usage: redcap pdf -record=<id> [options]

  Downloads the PDF rendering of a record's instruments. The file is
  written to -out, or to <record>.pdf when -out is not set.` + c.Flags().Help()
}

func (c *PDFCommand) Flags() *base.FlagSet {
	f := c.NewClientFlagSet("pdf")
	f.StringVar(&c.flagRecord, "record", "", "Record ID. Required.")
	f.StringVar(&c.flagInstrument, "instrument", "", "Only render this instrument.")
	f.StringVar(&c.flagEvent, "event", "", "Unique event name (longitudinal projects).")
	f.BoolVar(&c.flagCompact, "compact", false, "Omit fields without data.")
	f.StringVar(&c.flagOut, "out", "", "Output file.")
	return f
}

func (c *PDFCommand) Run(args []string) int {
	defer c.Close()
	client, code := c.Connect(c.Flags(), args)
	if client == nil {
		return code
	}

	opts := redcap.PDFOptions{Compact: c.flagCompact}
	var err error
	if opts.Record, err = base.ParseOptional(c.flagRecord, types.NewRecordID); err != nil {
		return c.Fail("parsing -record", err)
	}
	if opts.Instrument, err = base.ParseOptional(c.flagInstrument, types.NewInstrumentName); err != nil {
		return c.Fail("parsing -instrument", err)
	}
	if opts.Event, err = base.ParseOptional(c.flagEvent, types.NewEventName); err != nil {
		return c.Fail("parsing -event", err)
	}

	ctx, cancel := base.Context()
	defer cancel()

	pdf, err := client.ExportPDF(ctx, opts)
	if err != nil {
		return c.Fail("exporting PDF", err)
	}

	out := c.flagOut
	if out == "" {
		out = opts.Record.String() + ".pdf"
	}
	if err := afero.WriteFile(c.FS(), out, pdf, 0o644); err != nil {
		return c.Fail("writing PDF", err)
	}
	c.UI.Info(fmt.Sprintf("Wrote %d bytes to %s", len(pdf), out))
	return 0
}
