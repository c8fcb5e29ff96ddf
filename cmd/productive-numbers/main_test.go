package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/withObsrvr/productive-numbers/internal/checkpoint"
	"github.com/withObsrvr/productive-numbers/internal/config"
	"github.com/withObsrvr/productive-numbers/internal/search"
	"github.com/withObsrvr/productive-numbers/internal/storage"
)

func execArgs(t *testing.T, ctx context.Context, args ...string) error {
	t.Helper()
	root := newRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"config", fmt.Errorf("%w: bad", config.ErrInvalid), 1},
		{"canceled", context.Canceled, 0},
		{"sink", &search.Error{Kind: search.KindResultSink, Op: "append results", Err: errors.New("io")}, 1},
		{"final checkpoint", &search.Error{Kind: search.KindFinalCheckpoint, Op: "save", Err: errors.New("io")}, 1},
		{"other", errors.New("boom"), 1},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("%s: exitCode() = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	state := filepath.Join(dir, "state.json")
	output := filepath.Join(dir, "found.txt")
	mirrorDir := filepath.Join(dir, "mirror")
	if err := os.MkdirAll(mirrorDir, 0755); err != nil {
		t.Fatal(err)
	}

	err := execArgs(t, context.Background(), "run",
		"--start", "1",
		"--limit", "10000",
		"--chunk-size", "1000",
		"--workers", "2",
		"--state-file", state,
		"--output-file", output,
		"--mirror-url", "file://"+filepath.ToSlash(mirrorDir),
		"--mirror-prefix", "run/",
		"-q",
	)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	values, err := storage.ReadResults(output)
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != 69 {
		t.Errorf("found %d values, want 69", len(values))
	}

	m, err := checkpoint.NewManager(checkpoint.Config{Enabled: true, Path: state})
	if err != nil {
		t.Fatal(err)
	}
	st, err := m.Load(context.Background())
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if st.LastChecked != 10000 || st.FoundCount != 69 {
		t.Errorf("state = %+v", st)
	}
	fi, err := os.Stat(output)
	if err != nil {
		t.Fatal(err)
	}
	if st.ResultBytes != fi.Size() {
		t.Errorf("state result_bytes = %d, output is %d bytes", st.ResultBytes, fi.Size())
	}

	for _, name := range []string{"found.txt", "state.json"} {
		if _, err := os.Stat(filepath.Join(mirrorDir, "run", name)); err != nil {
			t.Errorf("%s not mirrored: %v", name, err)
		}
	}

	// A second invocation finds the search complete and leaves results alone.
	if err := execArgs(t, context.Background(), "--limit", "10000", "--state-file", state, "--output-file", output, "-q"); err != nil {
		t.Fatalf("second run: %v", err)
	}
	again, err := storage.ReadResults(output)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 69 {
		t.Errorf("second run changed results: %d values", len(again))
	}
}

func TestRunCommandInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	err := execArgs(t, context.Background(), "run",
		"--start", "500",
		"--limit", "100",
		"--state-file", filepath.Join(dir, "state.json"),
		"--output-file", filepath.Join(dir, "found.txt"),
		"-q",
	)
	if search.KindOf(err) != search.KindConfig {
		t.Fatalf("err = %v, want config kind", err)
	}
	if exitCode(err) != 1 {
		t.Errorf("exitCode() = %d, want 1", exitCode(err))
	}
	if _, statErr := os.Stat(filepath.Join(dir, "found.txt")); !os.IsNotExist(statErr) {
		t.Error("output file created despite invalid configuration")
	}
}

func TestAnalyzeCommand(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "found.txt")
	output := filepath.Join(dir, "splits.csv")
	if err := os.WriteFile(input, []byte("1\n12\n\n2026\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := execArgs(t, context.Background(), "analyze", "--input", input, "--output", output); err != nil {
		t.Fatalf("analyze: %v", err)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want header plus 4 splits:\n%s", len(lines), data)
	}
	if lines[0] != "Number;SplitPos;A;B;A×B+1;Prime;Digits" {
		t.Errorf("header = %q", lines[0])
	}
}

func TestAnalyzeCommandMalformed(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "found.txt")
	if err := os.WriteFile(input, []byte("12\nx\n"), 0644); err != nil {
		t.Fatal(err)
	}

	err := execArgs(t, context.Background(), "analyze", "--input", input, "--output", filepath.Join(dir, "out.csv"))
	if err == nil || !strings.Contains(err.Error(), ":2:") {
		t.Errorf("err = %v, want line 2 reported", err)
	}
}

func TestConfigInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search.yaml")
	if err := execArgs(t, context.Background(), "config", "init", path); err != nil {
		t.Fatalf("config init: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "chunk_size: 500000") {
		t.Errorf("config file missing chunk_size:\n%s", data)
	}
}

func TestRunsCommandRequiresDSN(t *testing.T) {
	err := execArgs(t, context.Background(), "runs")
	if search.KindOf(err) != search.KindConfig {
		t.Errorf("err = %v, want config kind", err)
	}
}
