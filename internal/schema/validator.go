package schema

import (
	"fmt"
	"strings"

	"github.com/rzpsarthak13/docshelf/internal/core"
)

// maxIdentifierLength is the shortest identifier limit among supported engines (PostgreSQL).
const maxIdentifierLength = 63

// ValidateTableName checks a table name before it is used in any statement.
// Quoting makes any name safe to interpolate; this only rejects names the
// engines cannot represent.
func ValidateTableName(table string) error {
	if strings.TrimSpace(table) == "" {
		return fmt.Errorf("%w: table name cannot be empty", core.ErrStatement)
	}
	if strings.ContainsRune(table, 0) {
		return fmt.Errorf("%w: table name cannot contain NUL", core.ErrStatement)
	}
	// idx_<table>__updatedAt must also fit.
	if len(table)+len("idx__")+len(core.FieldUpdatedAt) > maxIdentifierLength {
		return fmt.Errorf("%w: table name %q is too long", core.ErrStatement, table)
	}
	return nil
}

// ValidateDeclaration rejects declarations that cannot be laid out as columns.
func ValidateDeclaration(d Declaration) error {
	for name := range d {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: declared field name cannot be empty", core.ErrStatement)
		}
		if strings.ContainsRune(name, 0) {
			return fmt.Errorf("%w: declared field %q contains NUL", core.ErrStatement, name)
		}
		if core.IsReservedColumn(name) {
			return fmt.Errorf("%w: declared field %q collides with a reserved column", core.ErrStatement, name)
		}
	}
	return nil
}
