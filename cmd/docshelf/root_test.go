package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "docshelf.yaml")
	body := fmt.Sprintf(`
database:
  type: sqlite
  path: %s
  max_open_conns: 2
metrics:
  enabled: false
`, filepath.Join(dir, "cli.db"))
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestParseObject(t *testing.T) {
	got, err := parseObject(`{"age": 30, "tags": ["a"]}`)
	if err != nil {
		t.Fatalf("parseObject: %v", err)
	}
	if got["age"] != float64(30) {
		t.Fatalf("unexpected age %v", got["age"])
	}

	empty, err := parseObject("  ")
	if err != nil || len(empty) != 0 {
		t.Fatalf("blank input should give an empty object, got %v, %v", empty, err)
	}

	for _, bad := range []string{"[1,2]", "{", "42"} {
		if _, err := parseObject(bad); err == nil {
			t.Errorf("parseObject(%q) should fail", bad)
		}
	}
}

func TestDocumentCommands(t *testing.T) {
	cfg := writeConfig(t)
	base := []string{"--config", cfg, "--table", "notes", "--env-file", ""}

	out, err := run(t, append(base, "set", `{"title": "first", "n": 1}`)...)
	if err != nil {
		t.Fatalf("set: %v\n%s", err, out)
	}
	var stored map[string]interface{}
	if err := json.Unmarshal([]byte(out), &stored); err != nil {
		t.Fatalf("set output is not a document: %v\n%s", err, out)
	}
	if id, _ := stored["_id"].(string); id == "" {
		t.Fatalf("stored document has no _id: %v", stored)
	}

	if _, err := run(t, append(base, "set", `{"title": "second", "n": 2}`)...); err != nil {
		t.Fatalf("set: %v", err)
	}

	out, err = run(t, append(base, "count")...)
	if err != nil || strings.TrimSpace(out) != "2" {
		t.Fatalf("count = %q, %v", out, err)
	}

	out, err = run(t, append(base, "update", `{"n": 2}`, `{"title": "changed"}`)...)
	if err != nil || !strings.Contains(out, "updated 1 document(s)") {
		t.Fatalf("update = %q, %v", out, err)
	}

	out, err = run(t, append(base, "get", `{"title": "changed"}`)...)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var docs []map[string]interface{}
	if err := json.Unmarshal([]byte(out), &docs); err != nil {
		t.Fatalf("get output is not a list: %v\n%s", err, out)
	}
	if len(docs) != 1 || docs[0]["n"] != float64(2) {
		t.Fatalf("unexpected get result: %v", docs)
	}

	out, err = run(t, append(base, "delete", `{"n": 1}`)...)
	if err != nil || !strings.Contains(out, "deleted 1 document(s)") {
		t.Fatalf("delete = %q, %v", out, err)
	}

	for _, op := range []string{"optimize", "analyze", "clear"} {
		if out, err := run(t, append(base, op)...); err != nil || !strings.Contains(out, op+": ok") {
			t.Fatalf("%s = %q, %v", op, out, err)
		}
	}
	out, err = run(t, append(base, "count")...)
	if err != nil || strings.TrimSpace(out) != "0" {
		t.Fatalf("count after clear = %q, %v", out, err)
	}
}

func TestTableFromEnvironment(t *testing.T) {
	cfg := writeConfig(t)
	t.Setenv("DOCSHELF_TABLE", "envtable")

	if _, err := run(t, "--config", cfg, "--env-file", "", "set", `{"a": true}`); err != nil {
		t.Fatalf("set with DOCSHELF_TABLE: %v", err)
	}
	out, err := run(t, "--config", cfg, "--env-file", "", "--table", "envtable", "count")
	if err != nil || strings.TrimSpace(out) != "1" {
		t.Fatalf("count = %q, %v", out, err)
	}
}

func TestMissingTable(t *testing.T) {
	cfg := writeConfig(t)
	if _, err := run(t, "--config", cfg, "--env-file", "", "count"); err == nil {
		t.Fatal("expected an error without a table")
	}
}

func TestInvalidArguments(t *testing.T) {
	cfg := writeConfig(t)
	if _, err := run(t, "--config", cfg, "--table", "x", "--env-file", "", "set", "not json"); err == nil {
		t.Fatal("expected an error for a non-JSON document")
	}
}
