package dialect

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestGetAliases(t *testing.T) {
	cases := map[string]string{
		"mysql":      "mysql",
		"MySQL":      "mysql",
		"postgres":   "postgres",
		"postgresql": "postgres",
		" pg ":       "postgres",
		"sqlite":     "sqlite",
		"sqlite3":    "sqlite",
	}
	for in, want := range cases {
		d, err := Get(in)
		if err != nil {
			t.Fatalf("Get(%q): %v", in, err)
		}
		if d.Name() != want {
			t.Errorf("Get(%q) = %s, want %s", in, d.Name(), want)
		}
	}
	if _, err := Get("oracle"); err == nil {
		t.Fatal("expected an error for an unknown dialect")
	}
	if names := Names(); len(names) != 3 {
		t.Fatalf("expected 3 registered dialects, got %v", names)
	}
}

func TestQuoteIdent(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"mysql", "users", "`users`"},
		{"mysql", "we`ird", "`we``ird`"},
		{"postgres", `Order "Items"`, `"Order ""Items"""`},
		{"sqlite", "plain", `"plain"`},
	}
	for _, tc := range cases {
		d, _ := Get(tc.name)
		if got := d.QuoteIdent(tc.in); got != tc.want {
			t.Errorf("%s.QuoteIdent(%q) = %s, want %s", tc.name, tc.in, got, tc.want)
		}
	}
}

func TestPlaceholders(t *testing.T) {
	pg, _ := Get("postgres")
	my, _ := Get("mysql")
	for n := 1; n <= 3; n++ {
		if got := pg.Placeholder(n); got != fmt.Sprintf("$%d", n) {
			t.Errorf("postgres placeholder %d = %s", n, got)
		}
		if got := my.Placeholder(n); got != "?" {
			t.Errorf("mysql placeholder %d = %s", n, got)
		}
	}
}

func TestErrorClassification(t *testing.T) {
	my := MySQL{}
	if !my.IsConstraint(fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1062})) {
		t.Error("mysql 1062 should be a constraint violation")
	}
	if !my.IsIndexExists(&mysql.MySQLError{Number: 1061}) {
		t.Error("mysql 1061 should mean the index exists")
	}
	if my.IsConstraint(errors.New("1062")) {
		t.Error("plain errors are not constraint violations")
	}

	pg := Postgres{}
	if !pg.IsConstraint(&pgconn.PgError{Code: "23505"}) {
		t.Error("23505 should be a constraint violation")
	}
	if !pg.IsIndexExists(&pgconn.PgError{Code: "42P07"}) {
		t.Error("42P07 should mean the index exists")
	}

	lite := SQLite{}
	if !lite.IsIndexExists(errors.New("index idx_t__createdAt already exists")) {
		t.Error("sqlite index-exists message not recognized")
	}
	if !lite.IsConstraint(errors.New("UNIQUE constraint failed: t._id")) {
		t.Error("sqlite unique message not recognized")
	}
	if lite.IsIndexExists(nil) || lite.IsConstraint(nil) {
		t.Error("nil errors must not classify")
	}
}
