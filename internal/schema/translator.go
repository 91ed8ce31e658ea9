package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rzpsarthak13/docshelf/internal/core"
)

// Declaration maps a field name to its type descriptor.
type Declaration map[string]interface{}

// Column is a declared field resolved to its column type.
type Column struct {
	Name string
	Type core.ColumnType
}

// Columns returns the declared columns sorted by name.
func (d Declaration) Columns() []Column {
	cols := make([]Column, 0, len(d))
	for name, descriptor := range d {
		cols = append(cols, Column{Name: name, Type: MapFieldType(descriptor)})
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].Name < cols[j].Name })
	return cols
}

// SplitRecord separates a document into its declared fields and everything
// else. Reserved fields go to neither side.
func SplitRecord(doc core.Document, decl Declaration) (declared, extras core.Document) {
	declared = make(core.Document)
	extras = make(core.Document)
	for key, value := range doc {
		if core.IsReserved(key) {
			continue
		}
		if _, ok := decl[key]; ok {
			declared[key] = value
		} else {
			extras[key] = value
		}
	}
	return declared, extras
}

// BuildCreateTable returns the CREATE TABLE statement for a table. A nil
// declaration yields the schemaless layout.
func BuildCreateTable(d core.Dialect, table string, decl Declaration) (string, error) {
	t, err := NewTranslator(d, table, decl)
	if err != nil {
		return "", err
	}
	return t.CreateTable(), nil
}

// Translator builds every statement the document layer issues against one table.
type Translator struct {
	dialect core.Dialect
	table   string
	columns []Column
	hybrid  bool
}

// NewTranslator creates a translator for table. A nil declaration selects
// schemaless mode; any non-nil declaration selects hybrid mode.
func NewTranslator(d core.Dialect, table string, decl Declaration) (*Translator, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: dialect is required", core.ErrStatement)
	}
	if err := ValidateTableName(table); err != nil {
		return nil, err
	}
	t := &Translator{dialect: d, table: table}
	if decl != nil {
		if err := ValidateDeclaration(decl); err != nil {
			return nil, err
		}
		t.hybrid = true
		t.columns = decl.Columns()
	}
	return t, nil
}

// Mode returns the storage mode this translator lays rows out for.
func (t *Translator) Mode() core.StorageMode {
	if t.hybrid {
		return core.ModeHybrid
	}
	return core.ModeSchemaless
}

// TableName returns the unquoted table name.
func (t *Translator) TableName() string {
	return t.table
}

// DeclaredColumns returns the declared columns in storage order.
func (t *Translator) DeclaredColumns() []Column {
	return t.columns
}

// StorageColumns returns every physical column in insert order.
func (t *Translator) StorageColumns() []string {
	if !t.hybrid {
		return []string{core.FieldID, core.ColumnData, core.FieldCreatedAt, core.FieldUpdatedAt}
	}
	cols := make([]string, 0, len(t.columns)+4)
	for _, c := range t.columns {
		cols = append(cols, c.Name)
	}
	return append(cols, core.FieldID, core.ColumnExtras, core.FieldCreatedAt, core.FieldUpdatedAt)
}

// UpdateColumns returns the columns rewritten by an update, in bind order.
func (t *Translator) UpdateColumns() []string {
	if !t.hybrid {
		return []string{core.ColumnData, core.FieldUpdatedAt}
	}
	cols := make([]string, 0, len(t.columns)+2)
	for _, c := range t.columns {
		cols = append(cols, c.Name)
	}
	return append(cols, core.ColumnExtras, core.FieldUpdatedAt)
}

func (t *Translator) quoted() string {
	return t.dialect.QuoteIdent(t.table)
}

func (t *Translator) quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = t.dialect.QuoteIdent(n)
	}
	return out
}

// CreateTable returns the idempotent CREATE TABLE statement.
func (t *Translator) CreateTable() string {
	q := t.dialect.QuoteIdent
	jsonType := t.dialect.ColumnTypeName(core.ColumnJSON)
	ts := t.dialect.ColumnTypeName(core.ColumnTimestamp)

	defs := make([]string, 0, len(t.columns)+4)
	for _, c := range t.columns {
		defs = append(defs, fmt.Sprintf("%s %s", q(c.Name), t.dialect.ColumnTypeName(c.Type)))
	}
	defs = append(defs, fmt.Sprintf("%s %s NOT NULL PRIMARY KEY", q(core.FieldID), t.dialect.IDColumnType()))
	if t.hybrid {
		defs = append(defs, fmt.Sprintf("%s %s", q(core.ColumnExtras), jsonType))
	} else {
		defs = append(defs, fmt.Sprintf("%s %s NOT NULL", q(core.ColumnData), jsonType))
	}
	defs = append(defs,
		fmt.Sprintf("%s %s NOT NULL", q(core.FieldCreatedAt), ts),
		fmt.Sprintf("%s %s NOT NULL", q(core.FieldUpdatedAt), ts),
	)

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", t.quoted(), strings.Join(defs, ", "))
}

// IndexName returns the name of the secondary index on column.
func (t *Translator) IndexName(column string) string {
	return fmt.Sprintf("idx_%s_%s", t.table, column)
}

// CreateIndex returns the statement creating the non-unique index on column.
func (t *Translator) CreateIndex(column string) string {
	return fmt.Sprintf("CREATE INDEX %s ON %s (%s)",
		t.dialect.QuoteIdent(t.IndexName(column)), t.quoted(), t.dialect.QuoteIdent(column))
}

// Insert returns the INSERT statement binding StorageColumns in order.
func (t *Translator) Insert() string {
	cols := t.StorageColumns()
	marks := make([]string, len(cols))
	for i := range cols {
		marks[i] = t.dialect.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.quoted(), strings.Join(t.quoteAll(cols), ", "), strings.Join(marks, ", "))
}

// UpdateByID returns the UPDATE statement binding UpdateColumns then _id.
func (t *Translator) UpdateByID() string {
	cols := t.UpdateColumns()
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = %s", t.dialect.QuoteIdent(c), t.dialect.Placeholder(i+1))
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		t.quoted(), strings.Join(sets, ", "), t.dialect.QuoteIdent(core.FieldID), t.dialect.Placeholder(len(cols)+1))
}

func (t *Translator) selectColumns() string {
	return strings.Join(t.quoteAll(t.StorageColumns()), ", ")
}

// SelectAll returns the full-table read in fetch order.
func (t *Translator) SelectAll() string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s, %s",
		t.selectColumns(), t.quoted(), t.dialect.QuoteIdent(core.FieldCreatedAt), t.dialect.QuoteIdent(core.FieldID))
}

// SelectByID returns the single-row primary key lookup.
func (t *Translator) SelectByID() string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		t.selectColumns(), t.quoted(), t.dialect.QuoteIdent(core.FieldID), t.dialect.Placeholder(1))
}

// DeleteByID returns the single-row delete.
func (t *Translator) DeleteByID() string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		t.quoted(), t.dialect.QuoteIdent(core.FieldID), t.dialect.Placeholder(1))
}

// DeleteAll returns the statement removing every row.
func (t *Translator) DeleteAll() string {
	return fmt.Sprintf("DELETE FROM %s", t.quoted())
}

// Count returns the row count statement.
func (t *Translator) Count() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", t.quoted())
}

// DropTable returns the statement removing the table.
func (t *Translator) DropTable() string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", t.quoted())
}

// Optimize returns the dialect's storage maintenance statement.
func (t *Translator) Optimize() string {
	return t.dialect.OptimizeStatement(t.quoted())
}

// Analyze returns the dialect's statistics refresh statement.
func (t *Translator) Analyze() string {
	return t.dialect.AnalyzeStatement(t.quoted())
}
