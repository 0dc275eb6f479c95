package version

import (
	"github.com/hashicorp-forge/redcap/internal/cmd/base"
	buildversion "github.com/hashicorp-forge/redcap/internal/version"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Print the version of this binary"
}

func (c *Command) Help() string {
	return `Usage: redcap version

  Prints the version of this binary. Use remote-version for the version of
  a REDCap server.`
}

func (c *Command) Run(args []string) int {
	c.UI.Output(buildversion.HumanVersion())
	return 0
}
