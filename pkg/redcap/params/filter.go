package params

import (
	"strings"

	"github.com/hashicorp-forge/redcap/pkg/redcap/types"
)

// EscapeFilterLogicValue escapes s for use inside a double-quoted string
// literal in a REDCap filterLogic expression. Backslashes are escaped
// before quotes so the backslashes added for quotes are not doubled.
//
// Callers must escape exactly once; escaping an escaped value escapes it
// again.
func EscapeFilterLogicValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLikePattern escapes the wildcard characters of a SQL LIKE pattern
// (%, _ and the escape character itself). It is not a substitute for
// EscapeFilterLogicValue.
func EscapeLikePattern(s string) string {
	return likeEscaper.Replace(s)
}

// FilterEquals returns the expression [field] = "value" with value escaped.
func FilterEquals(field types.FieldName, value string) string {
	return `[` + field.String() + `] = "` + EscapeFilterLogicValue(value) + `"`
}
