package cmd

import (
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/hashicorp-forge/redcap/internal/cmd/base"
	"github.com/hashicorp-forge/redcap/internal/cmd/commands/mock"
	"github.com/hashicorp-forge/redcap/internal/cmd/commands/project"
	"github.com/hashicorp-forge/redcap/internal/cmd/commands/records"
	"github.com/hashicorp-forge/redcap/internal/cmd/commands/server"
	"github.com/hashicorp-forge/redcap/internal/cmd/commands/version"
)

// Commands is the mapping of all available redcap commands.
var Commands map[string]cli.CommandFactory

func initCommands(log hclog.Logger, ui cli.Ui) {
	b := func() *base.Command { return base.NewCommand(log, ui) }

	Commands = map[string]cli.CommandFactory{
		"version": func() (cli.Command, error) {
			return &version.Command{Command: b()}, nil
		},

		"remote-version": func() (cli.Command, error) {
			return &server.RemoteVersionCommand{Command: b()}, nil
		},
		"check": func() (cli.Command, error) {
			return &server.CheckCommand{Command: b()}, nil
		},
		"features": func() (cli.Command, error) {
			return &server.FeaturesCommand{Command: b()}, nil
		},

		"project": func() (cli.Command, error) {
			return &project.Command{Command: b()}, nil
		},
		"project-settings": func() (cli.Command, error) {
			return &project.SettingsCommand{Command: b()}, nil
		},
		"instruments": func() (cli.Command, error) {
			return &project.InstrumentsCommand{Command: b()}, nil
		},
		"metadata": func() (cli.Command, error) {
			return &project.MetadataCommand{Command: b()}, nil
		},
		"field-names": func() (cli.Command, error) {
			return &project.FieldNamesCommand{Command: b()}, nil
		},
		"users": func() (cli.Command, error) {
			return &project.UsersCommand{Command: b()}, nil
		},
		"files": func() (cli.Command, error) {
			return &project.FilesCommand{Command: b()}, nil
		},

		"export": func() (cli.Command, error) {
			return &records.ExportCommand{Command: b()}, nil
		},
		"import": func() (cli.Command, error) {
			return &records.ImportCommand{Command: b()}, nil
		},
		"find-user": func() (cli.Command, error) {
			return &records.FindUserCommand{Command: b()}, nil
		},
		"survey-link": func() (cli.Command, error) {
			return &records.SurveyLinkCommand{Command: b()}, nil
		},
		"pdf": func() (cli.Command, error) {
			return &records.PDFCommand{Command: b()}, nil
		},

		"mock": func() (cli.Command, error) {
			return &mock.Command{Command: b()}, nil
		},
	}
}
