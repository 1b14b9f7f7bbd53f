package frame

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/KeplerC/fog-rtx/internal/domain"
)

// rowColumn is the hidden positional column every table carries. Row indexes
// returned by InsertData and accepted by UpdateData are values of it.
const rowColumn = "__fog_row"

// TimestampColumn is the join key of MergeTablesWithTimestamp.
const TimestampColumn = "Timestamp"

// maxIdentifierLen is the maximum length allowed for a table or column name.
const maxIdentifierLen = 128

// columnTypeRe matches DuckDB type names, optionally with precision/scale and
// a trailing list marker: INTEGER, DECIMAL(10,2), FLOAT[], TIMESTAMP_NS.
var columnTypeRe = regexp.MustCompile(`(?i)^[A-Z][A-Z0-9_ ]*(?:\(\s*\d+\s*(?:,\s*\d+\s*)?\))?(?:\[\])?$`)

func validateName(kind, name string) error {
	if name == "" {
		return domain.ErrValidation("%s name is required", kind)
	}
	if len(name) > maxIdentifierLen {
		return domain.ErrValidation("%s name must be at most %d characters", kind, maxIdentifierLen)
	}
	if strings.HasPrefix(name, "__fog") {
		return domain.ErrValidation("%s name %q uses the reserved __fog prefix", kind, name)
	}
	return nil
}

func validateColumnType(typeName string) error {
	if strings.ContainsAny(typeName, ";-'\"\\") || !columnTypeRe.MatchString(typeName) {
		return domain.ErrValidation("column type %q is not a recognized type pattern", typeName)
	}
	return nil
}

// quoteIdent wraps a SQL identifier in double quotes, doubling embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteLiteral wraps a string value in single quotes, doubling embedded quotes.
func quoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func qualified(alias, column string) string {
	return fmt.Sprintf("%s.%s", alias, quoteIdent(column))
}
