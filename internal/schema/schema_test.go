package schema

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rzpsarthak13/docshelf/internal/core"
	"github.com/rzpsarthak13/docshelf/internal/dialect"
)

func TestMapFieldType(t *testing.T) {
	cases := []struct {
		descriptor interface{}
		want       core.ColumnType
	}{
		{"string", core.ColumnText},
		{"email", core.ColumnText},
		{"uuid", core.ColumnText},
		{"BIGINT", core.ColumnBigInt},
		{"int64", core.ColumnBigInt},
		{"int", core.ColumnInteger},
		{"INTEGER", core.ColumnInteger},
		{"number", core.ColumnFloat},
		{"float", core.ColumnFloat},
		{"decimal", core.ColumnFloat},
		{map[string]interface{}{"type": "boolean"}, core.ColumnBoolean},
		{FieldSpec{Type: "json"}, core.ColumnJSON},
		{"datetime", core.ColumnTimestamp},
		{"date", core.ColumnTimestamp},
		{"bytes", core.ColumnBinary},
		{"geometry", core.ColumnText},
		{42, core.ColumnText},
		{nil, core.ColumnText},
	}
	for _, tc := range cases {
		if got := MapFieldType(tc.descriptor); got != tc.want {
			t.Errorf("MapFieldType(%#v) = %v, want %v", tc.descriptor, got, tc.want)
		}
	}
}

func TestSplitRecord(t *testing.T) {
	doc := core.Document{
		core.FieldID:        "abc",
		core.FieldCreatedAt: "2024-01-01T00:00:00.000Z",
		"email":             "a@b.c",
		"age":               30.0,
		"tags":              []interface{}{"x"},
	}
	declared, extras := SplitRecord(doc, Declaration{"email": "string", "missing": "int"})

	if !reflect.DeepEqual(declared, core.Document{"email": "a@b.c"}) {
		t.Fatalf("unexpected declared part: %v", declared)
	}
	if !reflect.DeepEqual(extras, core.Document{"age": 30.0, "tags": []interface{}{"x"}}) {
		t.Fatalf("unexpected extras part: %v", extras)
	}
}

func TestValidateDeclaration(t *testing.T) {
	for _, name := range []string{core.FieldID, core.FieldCreatedAt, core.ColumnExtras, core.ColumnData, " "} {
		if err := ValidateDeclaration(Declaration{name: "string"}); !errors.Is(err, core.ErrStatement) {
			t.Errorf("declaring %q should fail with ErrStatement, got %v", name, err)
		}
	}
	if err := ValidateDeclaration(Declaration{"email": "string"}); err != nil {
		t.Fatalf("valid declaration rejected: %v", err)
	}
	if err := ValidateTableName(strings.Repeat("x", 60)); !errors.Is(err, core.ErrStatement) {
		t.Fatalf("long table name should be rejected, got %v", err)
	}
}

func TestSchemalessStatements(t *testing.T) {
	d, _ := dialect.Get("postgres")
	tr, err := NewTranslator(d, "notes", nil)
	if err != nil {
		t.Fatalf("NewTranslator: %v", err)
	}
	if tr.Mode() != core.ModeSchemaless {
		t.Fatalf("nil declaration should be schemaless")
	}

	want := `CREATE TABLE IF NOT EXISTS "notes" ("_id" VARCHAR(32) NOT NULL PRIMARY KEY, "_data" JSONB NOT NULL, ` +
		`"_createdAt" TIMESTAMPTZ(3) NOT NULL, "_updatedAt" TIMESTAMPTZ(3) NOT NULL)`
	if got := tr.CreateTable(); got != want {
		t.Fatalf("CreateTable:\n got %s\nwant %s", got, want)
	}

	if got := tr.Insert(); got != `INSERT INTO "notes" ("_id", "_data", "_createdAt", "_updatedAt") VALUES ($1, $2, $3, $4)` {
		t.Fatalf("Insert: %s", got)
	}
	if got := tr.UpdateByID(); got != `UPDATE "notes" SET "_data" = $1, "_updatedAt" = $2 WHERE "_id" = $3` {
		t.Fatalf("UpdateByID: %s", got)
	}
	if got := tr.SelectAll(); !strings.HasSuffix(got, `ORDER BY "_createdAt", "_id"`) {
		t.Fatalf("SelectAll must order by creation time: %s", got)
	}
	if got := tr.CreateIndex(core.FieldUpdatedAt); got != `CREATE INDEX "idx_notes__updatedAt" ON "notes" ("_updatedAt")` {
		t.Fatalf("CreateIndex: %s", got)
	}
	if got := tr.Optimize(); got != `VACUUM "notes"` {
		t.Fatalf("Optimize: %s", got)
	}
}

func TestHybridStatements(t *testing.T) {
	d, _ := dialect.Get("mysql")
	tr, err := NewTranslator(d, "users", Declaration{"name": "string", "age": "int"})
	if err != nil {
		t.Fatalf("NewTranslator: %v", err)
	}
	if tr.Mode() != core.ModeHybrid {
		t.Fatalf("declaration should select hybrid mode")
	}

	want := "CREATE TABLE IF NOT EXISTS `users` (`age` INT, `name` TEXT, `_id` VARCHAR(32) NOT NULL PRIMARY KEY, " +
		"`_extras` JSON, `_createdAt` DATETIME(3) NOT NULL, `_updatedAt` DATETIME(3) NOT NULL)"
	if got := tr.CreateTable(); got != want {
		t.Fatalf("CreateTable:\n got %s\nwant %s", got, want)
	}
	if got := tr.StorageColumns(); !reflect.DeepEqual(got, []string{"age", "name", "_id", "_extras", "_createdAt", "_updatedAt"}) {
		t.Fatalf("StorageColumns: %v", got)
	}
	if got := tr.UpdateByID(); got != "UPDATE `users` SET `age` = ?, `name` = ?, `_extras` = ?, `_updatedAt` = ? WHERE `_id` = ?" {
		t.Fatalf("UpdateByID: %s", got)
	}
	if got := tr.Analyze(); got != "ANALYZE TABLE `users`" {
		t.Fatalf("Analyze: %s", got)
	}

	// An empty declaration is still hybrid.
	empty, err := NewTranslator(d, "bare", Declaration{})
	if err != nil || empty.Mode() != core.ModeHybrid {
		t.Fatalf("empty declaration should be hybrid: %v", err)
	}
}

func TestQuotedTableName(t *testing.T) {
	d, _ := dialect.Get("sqlite")
	tr, err := NewTranslator(d, `Order "Items"`, nil)
	if err != nil {
		t.Fatalf("NewTranslator: %v", err)
	}
	if got := tr.DeleteAll(); got != `DELETE FROM "Order ""Items"""` {
		t.Fatalf("DeleteAll: %s", got)
	}
	if got := tr.DropTable(); got != `DROP TABLE IF EXISTS "Order ""Items"""` {
		t.Fatalf("DropTable: %s", got)
	}
}

func TestTypeMapperRoundTrip(t *testing.T) {
	tm := NewTypeMapper()

	v, err := tm.ToDBValue(42.0, core.ColumnInteger)
	if err != nil || v != int64(42) {
		t.Fatalf("ToDBValue int = %v, %v", v, err)
	}
	back, err := tm.FromDBValue(int64(42), core.ColumnInteger)
	if err != nil || back != 42.0 {
		t.Fatalf("FromDBValue int = %v, %v", back, err)
	}

	b, err := tm.FromDBValue(int64(1), core.ColumnBoolean)
	if err != nil || b != true {
		t.Fatalf("FromDBValue bool = %v, %v", b, err)
	}

	j, err := tm.ToDBValue(map[string]interface{}{"a": 1.0}, core.ColumnJSON)
	if err != nil || j != `{"a":1}` {
		t.Fatalf("ToDBValue json = %v, %v", j, err)
	}
	obj, err := tm.FromDBValue([]byte(`{"a":1}`), core.ColumnJSON)
	if err != nil || !reflect.DeepEqual(obj, map[string]interface{}{"a": 1.0}) {
		t.Fatalf("FromDBValue json = %v, %v", obj, err)
	}

	ts, err := tm.ToDBValue("2024-03-01T10:20:30.123Z", core.ColumnTimestamp)
	if err != nil {
		t.Fatalf("ToDBValue timestamp: %v", err)
	}
	s, err := tm.FromDBValue(ts, core.ColumnTimestamp)
	if err != nil || s != "2024-03-01T10:20:30.123Z" {
		t.Fatalf("FromDBValue timestamp = %v, %v", s, err)
	}

	if _, err := tm.ToDBValue("nope", core.ColumnFloat); err == nil {
		t.Fatal("non-numeric string should not convert to float")
	}
	if v, _ := tm.ToDBValue(nil, core.ColumnText); v != nil {
		t.Fatalf("nil should stay nil, got %v", v)
	}
}

func TestIntegerColumnsRejectLossyValues(t *testing.T) {
	tm := NewTypeMapper()
	cases := []struct {
		name  string
		value interface{}
		t     core.ColumnType
		want  interface{}
	}{
		{"integral float", 30.0, core.ColumnBigInt, int64(30)},
		{"integral string", "12", core.ColumnBigInt, int64(12)},
		{"exponent string", "1e3", core.ColumnBigInt, int64(1000)},
		{"min int64", float64(math.MinInt64), core.ColumnBigInt, int64(math.MinInt64)},
		{"max int32", float64(math.MaxInt32), core.ColumnInteger, int64(math.MaxInt32)},
		{"fraction", 30.7, core.ColumnBigInt, nil},
		{"fraction on int", 36.9, core.ColumnInteger, nil},
		{"fractional string", "2.5", core.ColumnBigInt, nil},
		{"fractional json number", json.Number("2.5"), core.ColumnBigInt, nil},
		{"above int64", 1e20, core.ColumnBigInt, nil},
		{"two to the 63", math.Pow(2, 63), core.ColumnBigInt, nil},
		{"below int64", -1e20, core.ColumnBigInt, nil},
		{"huge uint64", uint64(math.MaxUint64), core.ColumnBigInt, nil},
		{"above int32", float64(math.MaxInt32) + 1, core.ColumnInteger, nil},
		{"below int32", int64(math.MinInt32) - 1, core.ColumnInteger, nil},
		{"nan", math.NaN(), core.ColumnBigInt, nil},
	}
	for _, tc := range cases {
		got, err := tm.ToDBValue(tc.value, tc.t)
		if tc.want == nil {
			if err == nil {
				t.Errorf("%s: expected an error, got %v", tc.name, got)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("%s: ToDBValue = %v, %v, want %v", tc.name, got, err, tc.want)
		}
	}
}

func TestFormatTimestamp(t *testing.T) {
	loc := time.FixedZone("x", 3600)
	got := FormatTimestamp(time.Date(2024, 1, 2, 3, 4, 5, 6_000_000, loc))
	if got != "2024-01-02T02:04:05.006Z" {
		t.Fatalf("FormatTimestamp = %s", got)
	}
}
