// Package project holds the commands that read project structure: its
// attributes, instruments, data dictionary and users.
package project

import (
	"github.com/hashicorp-forge/redcap/internal/cmd/base"
	"github.com/hashicorp-forge/redcap/pkg/redcap"
	"github.com/hashicorp-forge/redcap/pkg/redcap/types"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Show the project's attributes"
}

func (c *Command) Help() string {
	return `Usage: redcap project [options]

  Prints the attributes of the project the API token belongs to.` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	return c.NewClientFlagSet("project")
}

func (c *Command) Run(args []string) int {
	defer c.Close()
	client, code := c.Connect(c.Flags(), args)
	if client == nil {
		return code
	}
	ctx, cancel := base.Context()
	defer cancel()

	info, err := client.ExportProjectInfo(ctx)
	if err != nil {
		return c.Fail("exporting project", err)
	}
	return c.PrintResult(info)
}

type InstrumentsCommand struct {
	*base.Command
}

func (c *InstrumentsCommand) Synopsis() string {
	return "List the project's instruments"
}

func (c *InstrumentsCommand) Help() string {
	return `Usage: redcap instruments [options]

  Lists the data collection instruments of the project.` + c.Flags().Help()
}

func (c *InstrumentsCommand) Flags() *base.FlagSet {
	return c.NewClientFlagSet("instruments")
}

func (c *InstrumentsCommand) Run(args []string) int {
	defer c.Close()
	client, code := c.Connect(c.Flags(), args)
	if client == nil {
		return code
	}
	ctx, cancel := base.Context()
	defer cancel()

	instruments, err := client.ExportInstruments(ctx)
	if err != nil {
		return c.Fail("exporting instruments", err)
	}
	return c.PrintResult(instruments)
}

type MetadataCommand struct {
	*base.Command

	flagFields string
	flagForms  string
}

func (c *MetadataCommand) Synopsis() string {
	return "Export the data dictionary"
}

func (c *MetadataCommand) Help() string {
	return `Usage: redcap metadata [options]

  Exports the project's data dictionary, optionally narrowed to some fields
  or instruments.` + c.Flags().Help()
}

func (c *MetadataCommand) Flags() *base.FlagSet {
	f := c.NewClientFlagSet("metadata")
	f.StringVar(&c.flagFields, "fields", "", "Comma-separated field names.")
	f.StringVar(&c.flagForms, "forms", "", "Comma-separated instrument names.")
	return f
}

func (c *MetadataCommand) Run(args []string) int {
	defer c.Close()
	client, code := c.Connect(c.Flags(), args)
	if client == nil {
		return code
	}

	fields, err := base.ParseList(c.flagFields, types.NewFieldName)
	if err != nil {
		return c.Fail("parsing -fields", err)
	}
	forms, err := base.ParseList(c.flagForms, types.NewInstrumentName)
	if err != nil {
		return c.Fail("parsing -forms", err)
	}

	ctx, cancel := base.Context()
	defer cancel()

	dict, err := client.ExportMetadata(ctx, redcap.MetadataOptions{Fields: fields, Forms: forms})
	if err != nil {
		return c.Fail("exporting metadata", err)
	}
	return c.PrintResult(dict)
}

type FieldNamesCommand struct {
	*base.Command

	flagField string
}

func (c *FieldNamesCommand) Synopsis() string {
	return "List export column names"
}

func (c *FieldNamesCommand) Help() string {
	return `Usage: redcap field-names [options]

  Lists the export column name of every field. Checkbox fields have one
  column per choice.` + c.Flags().Help()
}

func (c *FieldNamesCommand) Flags() *base.FlagSet {
	f := c.NewClientFlagSet("field-names")
	f.StringVar(&c.flagField, "field", "", "Only list this field.")
	return f
}

func (c *FieldNamesCommand) Run(args []string) int {
	defer c.Close()
	client, code := c.Connect(c.Flags(), args)
	if client == nil {
		return code
	}

	var field types.FieldName
	if c.flagField != "" {
		var err error
		if field, err = types.NewFieldName(c.flagField); err != nil {
			return c.Fail("parsing -field", err)
		}
	}

	ctx, cancel := base.Context()
	defer cancel()

	names, err := client.ExportFieldNames(ctx, field)
	if err != nil {
		return c.Fail("exporting field names", err)
	}
	return c.PrintResult(names)
}

type UsersCommand struct {
	*base.Command
}

func (c *UsersCommand) Synopsis() string {
	return "List the project's users"
}

func (c *UsersCommand) Help() string {
	return `Usage: redcap users [options]

  Lists the users of the project and their rights.` + c.Flags().Help()
}

func (c *UsersCommand) Flags() *base.FlagSet {
	return c.NewClientFlagSet("users")
}

func (c *UsersCommand) Run(args []string) int {
	defer c.Close()
	client, code := c.Connect(c.Flags(), args)
	if client == nil {
		return code
	}
	ctx, cancel := base.Context()
	defer cancel()

	users, err := client.ExportUsers(ctx)
	if err != nil {
		return c.Fail("exporting users", err)
	}
	return c.PrintResult(users)
}

type SettingsCommand struct {
	*base.Command
}

func (c *SettingsCommand) Synopsis() string {
	return "Show the project's settings"
}

func (c *SettingsCommand) Help() string {
	return `Usage: redcap project-settings [options]

  Prints the project's settings. Requires REDCap 15 or later.` + c.Flags().Help()
}

func (c *SettingsCommand) Flags() *base.FlagSet {
	return c.NewClientFlagSet("project-settings")
}

func (c *SettingsCommand) Run(args []string) int {
	defer c.Close()
	client, code := c.Connect(c.Flags(), args)
	if client == nil {
		return code
	}
	ctx, cancel := base.Context()
	defer cancel()

	settings, err := client.ExportProjectSettings(ctx)
	if err != nil {
		return c.Fail("exporting project settings", err)
	}
	return c.PrintResult(settings)
}

type FilesCommand struct {
	*base.Command

	flagFolder int
}

func (c *FilesCommand) Synopsis() string {
	return "List a file repository folder"
}

func (c *FilesCommand) Help() string {
	return `Usage: redcap files [options]

  Lists a folder of the project's file repository, or the top level when
  -folder is not set. Requires REDCap 15 or later.` + c.Flags().Help()
}

func (c *FilesCommand) Flags() *base.FlagSet {
	f := c.NewClientFlagSet("files")
	f.IntVar(&c.flagFolder, "folder", 0, "Folder ID.")
	return f
}

func (c *FilesCommand) Run(args []string) int {
	defer c.Close()
	client, code := c.Connect(c.Flags(), args)
	if client == nil {
		return code
	}

	var folder types.PositiveInt
	if c.flagFolder != 0 {
		var err error
		if folder, err = types.NewPositiveInt("folder", c.flagFolder); err != nil {
			return c.Fail("parsing -folder", err)
		}
	}

	ctx, cancel := base.Context()
	defer cancel()

	entries, err := client.ExportFileRepository(ctx, folder)
	if err != nil {
		return c.Fail("listing files", err)
	}
	return c.PrintResult(entries)
}
