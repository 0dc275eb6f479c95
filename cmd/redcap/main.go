package main

import (
	"os"

	"github.com/hashicorp-forge/redcap/internal/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Args))
}
