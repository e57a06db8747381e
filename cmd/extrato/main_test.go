package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"extrato/internal/classifier"
)

const statement = `Data,Descrição,Valor
05/01/2025,IFOOD Restaurante,"-20,00"
05/01/2025,IFOOD Restaurante,"-20,00"
10/02/2025,Uber Trip,-10
20/02/2025,Hospital Sirio,"-1.000,00"
`

// cleanEnv isolates run from the developer's environment.
func cleanEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"AMQP_URL", "OUTPUT_FORMATS", "OUTPUT_DIR", "SQLITE_EXPORT_PATH", "CATEGORY_RULES_FILE", "DATA_SOURCE", "LOG_LEVEL", "LOG_FORMAT", "PORT", "GOOGLE_SPREADSHEET_ID", "GOOGLE_SHEET_RANGE", "MIN_OCCURRENCES"} {
		t.Setenv(k, "")
	}
}

func writeStatement(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "statement.csv")
	if err := os.WriteFile(path, []byte(statement), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRun_TextReport(t *testing.T) {
	cleanEnv(t)
	out, _, err := runCLI(t, "", "-input", writeStatement(t))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{"Statement analysis: statement.csv", "== Possible duplicates ==", "Hospital Sirio"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestRun_Stdin(t *testing.T) {
	cleanEnv(t)
	out, _, err := runCLI(t, statement, "-input", "-", "-format", "json")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var res map[string]any
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("stdout is not json: %v", err)
	}
	if res["source_name"] != "stdin" {
		t.Fatalf("unexpected source name %v", res["source_name"])
	}
}

func TestRun_FilesAndSQLite(t *testing.T) {
	cleanEnv(t)
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "db", "extrato.db")

	out, stderr, err := runCLI(t, "", "-input", writeStatement(t), "-format", "html,csv", "-out", dir, "-sqlite", dbPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != "" {
		t.Fatalf("nothing should go to stdout when -out is set, got %q", out)
	}
	for _, name := range []string{"statement.html", "statement.csv"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
		if !strings.Contains(stderr, name) {
			t.Errorf("stderr does not list %s", name)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil || n != 4 {
		t.Fatalf("expected 4 exported transactions, got %d (%v)", n, err)
	}
}

func TestRun_Filter(t *testing.T) {
	cleanEnv(t)
	out, _, err := runCLI(t, "", "-input", writeStatement(t), "-category", "Food", "-min", "10")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.Count(out, "IFOOD Restaurante") != 2 || strings.Contains(out, "Uber") {
		t.Fatalf("unexpected filtered output:\n%s", out)
	}
	if !strings.Contains(out, "2 transactions") || !strings.Contains(out, "-40.00") {
		t.Fatalf("missing totals line:\n%s", out)
	}
	if strings.Contains(out, "== Categories ==") {
		t.Fatal("filtered runs print only the matching transactions")
	}
}

func TestRun_InitRules(t *testing.T) {
	cleanEnv(t)
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if _, _, err := runCLI(t, "", "-init-rules", path); err != nil {
		t.Fatalf("run: %v", err)
	}
	rules, err := classifier.LoadRules(path)
	if err != nil {
		t.Fatalf("written rules do not load: %v", err)
	}
	if len(rules) != len(classifier.DefaultRules()) {
		t.Fatalf("expected %d rules, got %d", len(classifier.DefaultRules()), len(rules))
	}

	// The written file is usable with -rules.
	if _, _, err := runCLI(t, "", "-input", writeStatement(t), "-rules", path); err != nil {
		t.Fatalf("run with written rules: %v", err)
	}
}

func TestRun_Errors(t *testing.T) {
	cleanEnv(t)
	input := writeStatement(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no input", nil, "an input is required"},
		{"both inputs", []string{"-input", input, "-sheet", "A:C"}, "not both"},
		{"unknown format", []string{"-input", input, "-format", "pdf"}, "invalid output format"},
		{"bad filter", []string{"-input", input, "-from", "01/02/2025"}, "start_date must be YYYY-MM-DD"},
		{"missing file", []string{"-input", filepath.Join(t.TempDir(), "nope.csv")}, "no such file"},
		{"sheet without spreadsheet", []string{"-sheet", "A:C"}, "Spreadsheet ID is required"},
		{"stray argument", []string{"-input", input, "extra"}, "unexpected arguments"},
		{"several formats on stdout", []string{"-input", input, "-format", "text,json"}, "needs -out"},
		{"gob on stdout", []string{"-input", input, "-format", "gob"}, "gob output is binary"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, "", tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestRun_GobToFile(t *testing.T) {
	cleanEnv(t)
	dir := t.TempDir()
	if _, _, err := runCLI(t, "", "-input", writeStatement(t), "-format", "gob,json", "-out", dir); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, name := range []string{"statement.gob", "statement.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestRun_Due(t *testing.T) {
	cleanEnv(t)
	path := filepath.Join(t.TempDir(), "subscriptions.csv")
	data := "date,description,amount\n10/01/2025,Netflix.com,-39.90\n10/02/2025,Netflix.com,-39.90\n10/03/2025,Netflix.com,-39.90\n15/03/2025,Padaria,-5\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, "", "-input", path, "-due", "2025-04-15")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "Netflix.com") || !strings.Contains(out, "2025-04-10") || !strings.Contains(out, "monthly") {
		t.Fatalf("expected netflix due on 2025-04-10:\n%s", out)
	}
	if strings.Contains(out, "== Categories ==") {
		t.Fatal("-due prints only the due list")
	}

	out, _, err = runCLI(t, "", "-input", path, "-due", "2025-04-01")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "0 recurring payments due by 2025-04-01") {
		t.Fatalf("expected nothing due:\n%s", out)
	}

	if _, _, err := runCLI(t, "", "-input", path, "-due", "soon"); err == nil || !strings.Contains(err.Error(), "invalid -due date") {
		t.Fatalf("expected invalid date error, got %v", err)
	}
}
