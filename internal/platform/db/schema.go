package db

import (
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
)

var schemaPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateSchema rejects schema names that are not plain identifiers.
func ValidateSchema(schema string) error {
	if !schemaPattern.MatchString(schema) {
		return fmt.Errorf("invalid schema name %q", schema)
	}
	return nil
}

// quoteSchema returns the schema as a quoted SQL identifier.
func quoteSchema(schema string) string {
	return pgx.Identifier{schema}.Sanitize()
}
