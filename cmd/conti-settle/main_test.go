package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const fixture = "../../internal/rooms/testdata/fixture.json"

func TestRunSettleFromStdin(t *testing.T) {
	in := `[{"id":1,"title":"Hotel","amount":300,"payer":"a","participants":["a","b","c"]},
	        {"id":2,"title":"Train","amount":90,"payer":"b","participants":["b","c"]}]`
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"-in", "-"}, strings.NewReader(in), &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code %d, stderr %s", code, stderr.String())
	}
	want := `{"balances":[{"email":"a","balance":200},{"email":"b","balance":-55},{"email":"c","balance":-145}],` +
		`"payments":[{"from":"c","to":"a","amount":145},{"from":"b","to":"a","amount":55}]}`
	if got := strings.TrimSpace(stdout.String()); got != want {
		t.Errorf("output =\n%s\nwant\n%s", got, want)
	}
}

func TestRunSettleFilePretty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expenses.json")
	if err := os.WriteFile(path, []byte(`[{"id":1,"title":"x","amount":100,"payer":"a","participants":["a","b"]}]`), 0o600); err != nil {
		t.Fatal(err)
	}
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"-in", path, "-pretty"}, nil, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code %d, stderr %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "\n  \"balances\": [") {
		t.Errorf("output not indented: %s", stdout.String())
	}
}

func TestRunUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no mode", nil, 2},
		{"two modes", []string{"-in", "a.json", "-room", "x"}, 2},
		{"unknown flag", []string{"-nope"}, 2},
		{"missing file", []string{"-in", "/does/not/exist.json"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if got := run(context.Background(), tt.args, nil, &stdout, &stderr); got != tt.want {
				t.Errorf("exit code = %d, want %d (stderr %s)", got, tt.want, stderr.String())
			}
		})
	}
}

func TestRunSeedThenSettleRoom(t *testing.T) {
	t.Setenv("BACKEND", "sqlite")
	t.Setenv("SQLITE_DB_PATH", filepath.Join(t.TempDir(), "conti.db"))
	t.Setenv("AMQP_URL", "")
	t.Setenv("SEED_FILE", "")

	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"-seed", fixture}, nil, &stdout, &stderr); code != 0 {
		t.Fatalf("seed exit code %d, stderr %s", code, stderr.String())
	}
	if got := strings.TrimSpace(stdout.String()); got != "seeded 2 rooms and 2 expenses" {
		t.Errorf("seed output = %q", got)
	}

	stdout.Reset()
	if code := run(context.Background(), []string{"-room", "trip2024"}, nil, &stdout, &stderr); code != 0 {
		t.Fatalf("room exit code %d, stderr %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), `{"from":"carol@example.com","to":"alice@example.com","amount":145}`) {
		t.Errorf("room output = %s", stdout.String())
	}

	if code := run(context.Background(), []string{"-room", "missing"}, nil, &stdout, &stderr); code != 3 {
		t.Errorf("unknown room exit code = %d, want 3", code)
	}
}
