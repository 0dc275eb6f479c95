package base

import (
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
)

// FlagSet wraps a flag.FlagSet with help output in the style of the other
// HashiCorp CLIs.
type FlagSet struct {
	*flag.FlagSet
}

// NewFlagSet wraps f. Parse errors are returned rather than printed.
func NewFlagSet(f *flag.FlagSet) *FlagSet {
	f.SetOutput(io.Discard)
	return &FlagSet{FlagSet: f}
}

// Help returns the options section of a command's help text.
func (f *FlagSet) Help() string {
	var flags []*flag.Flag
	f.VisitAll(func(fl *flag.Flag) { flags = append(flags, fl) })
	if len(flags) == 0 {
		return ""
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i].Name < flags[j].Name })

	var b strings.Builder
	b.WriteString("\n\nOptions:\n")
	for _, fl := range flags {
		b.WriteString("\n  -" + fl.Name)
		if fl.DefValue != "" && fl.DefValue != "false" {
			fmt.Fprintf(&b, "=%s", fl.DefValue)
		}
		b.WriteString("\n      " + strings.ReplaceAll(fl.Usage, "\n", "\n      ") + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
