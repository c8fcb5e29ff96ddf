package metadata

import (
	"context"
	"testing"
	"time"
)

func TestNewWriterNoop(t *testing.T) {
	w, err := NewWriter(context.Background(), CatalogConfig{})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if _, ok := w.(noopWriter); !ok {
		t.Fatalf("NewWriter() = %T, want noopWriter", w)
	}
	if err := w.RecordRun(context.Background(), RunRecord{RunID: "x"}); err != nil {
		t.Errorf("RecordRun: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestNewWriterBadDSN(t *testing.T) {
	_, err := NewWriter(context.Background(), CatalogConfig{PostgresDSN: "postgres://user@localhost:99999/db"})
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestRecordArgs(t *testing.T) {
	started := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := RunRecord{
		RunID:           "6f1c1f4e-3c52-4c3b-9d0e-0d4c1f7c0a11",
		StartedAt:       started,
		FinishedAt:      started.Add(90 * time.Second),
		RangeStart:      1,
		RangeEnd:        18446744073709551615,
		Limit:           18446744073709551615,
		ChunkSize:       500_000,
		Workers:         8,
		Checked:         18446744073709551614,
		Found:           33,
		FoundThisRun:    33,
		LastFound:       982,
		Elapsed:         90 * time.Second,
		ProducerVersion: "productive-numbers@dev",
	}

	args := recordArgs(rec)
	if len(args) != 17 {
		t.Fatalf("got %d args, want 17", len(args))
	}
	if args[4] != "18446744073709551615" {
		t.Errorf("range_end arg = %v", args[4])
	}
	if args[8] != "18446744073709551614" {
		t.Errorf("checked arg = %v", args[8])
	}
	if args[12] != int64(90_000) {
		t.Errorf("elapsed_ms arg = %v", args[12])
	}
	if args[15] != "" {
		t.Errorf("results_uri arg = %v", args[15])
	}
}
