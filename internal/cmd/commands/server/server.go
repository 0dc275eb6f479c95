// Package server holds the commands that ask a REDCap server about itself.
package server

import (
	"reflect"

	"github.com/iancoleman/strcase"

	"github.com/hashicorp-forge/redcap/internal/cmd/base"
	"github.com/hashicorp-forge/redcap/pkg/redcap/adapter"
)

// RemoteVersionCommand prints the server's version string.
type RemoteVersionCommand struct {
	*base.Command
}

func (c *RemoteVersionCommand) Synopsis() string {
	return "Print the version of the REDCap server"
}

func (c *RemoteVersionCommand) Help() string {
	return `Usage: redcap remote-version [options]

  Prints the version the REDCap server reports, without checking that this
  client supports it.` + c.Flags().Help()
}

func (c *RemoteVersionCommand) Flags() *base.FlagSet {
	return c.NewClientFlagSet("remote-version")
}

func (c *RemoteVersionCommand) Run(args []string) int {
	defer c.Close()
	client, code := c.Connect(c.Flags(), args)
	if client == nil {
		return code
	}
	ctx, cancel := base.Context()
	defer cancel()

	v, err := client.ExportVersion(ctx)
	if err != nil {
		return c.Fail("exporting version", err)
	}
	c.UI.Output(v)
	return 0
}

// CheckCommand runs a health check.
type CheckCommand struct {
	*base.Command
}

func (c *CheckCommand) Synopsis() string {
	return "Check that the server is reachable and the token works"
}

func (c *CheckCommand) Help() string {
	return `Usage: redcap check [options]

  Contacts the server, detects its version, and reads the project to check
  the token. Exits 0 when healthy and 2 otherwise, printing a report that
  classifies the failure.` + c.Flags().Help()
}

func (c *CheckCommand) Flags() *base.FlagSet {
	return c.NewClientFlagSet("check")
}

func (c *CheckCommand) Run(args []string) int {
	defer c.Close()
	client, code := c.Connect(c.Flags(), args)
	if client == nil {
		return code
	}
	ctx, cancel := base.Context()
	defer cancel()

	report, err := client.Check(ctx)
	if err != nil {
		return c.Fail("checking server", err)
	}
	if err := c.Print(report); err != nil {
		return c.Fail("printing report", err)
	}
	if !report.Healthy() {
		return 2
	}
	return 0
}

// FeaturesCommand prints the capabilities of the server's release.
type FeaturesCommand struct {
	*base.Command
}

func (c *FeaturesCommand) Synopsis() string {
	return "Show which optional features the server supports"
}

func (c *FeaturesCommand) Help() string {
	return `Usage: redcap features [options]

  Detects the server's version and prints the adapter selected for it and
  the optional features that release supports.` + c.Flags().Help()
}

func (c *FeaturesCommand) Flags() *base.FlagSet {
	return c.NewClientFlagSet("features")
}

func (c *FeaturesCommand) Run(args []string) int {
	defer c.Close()
	client, code := c.Connect(c.Flags(), args)
	if client == nil {
		return code
	}
	ctx, cancel := base.Context()
	defer cancel()

	a, err := client.Adapter(ctx)
	if err != nil {
		return c.Fail("detecting version", err)
	}
	v, err := client.Version(ctx)
	if err != nil {
		return c.Fail("detecting version", err)
	}

	out := map[string]any{
		"version":  v.String(),
		"adapter":  a.Name(),
		"range":    a.Versions().String(),
		"features": FeatureMap(a.Features()),
	}
	return c.PrintResult(out)
}

// FeatureMap returns the flags of fs keyed by snake_case name.
func FeatureMap(fs adapter.FeatureSet) map[string]bool {
	v := reflect.ValueOf(fs)
	t := v.Type()
	out := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if v.Field(i).Kind() == reflect.Bool {
			out[strcase.ToSnake(t.Field(i).Name)] = v.Field(i).Bool()
		}
	}
	return out
}
