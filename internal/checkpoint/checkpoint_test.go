package checkpoint

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newFileManager(t *testing.T) (Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	m, err := NewManager(Config{Enabled: true, Path: path})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m, path
}

func TestLoadMissing(t *testing.T) {
	m, _ := newFileManager(t)
	_, err := m.Load(context.Background())
	if !errors.Is(err, ErrNoCheckpoint) {
		t.Fatalf("Load() error = %v, want ErrNoCheckpoint", err)
	}
}

func TestSaveLoad(t *testing.T) {
	m, path := newFileManager(t)
	ctx := context.Background()

	st := NewState(1, 1_000_000)
	st.LastChecked = 500_000
	st.FoundCount = 42
	st.ResultBytes = 310
	if err := m.Save(ctx, st); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}

	got, err := m.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.LastChecked != 500_000 || got.Limit != 1_000_000 || got.FoundCount != 42 || got.ResultBytes != 310 {
		t.Errorf("Load() = %+v", got)
	}
	if got.Version != CurrentVersion {
		t.Errorf("Version = %d, want %d", got.Version, CurrentVersion)
	}
	if _, err := time.ParseInLocation(TimestampLayout, got.Timestamp, time.Local); err != nil {
		t.Errorf("timestamp %q does not parse: %v", got.Timestamp, err)
	}
}

func TestLoadMissingVersionDefaultsToOne(t *testing.T) {
	m, path := newFileManager(t)
	data := `{"last_checked": 10, "limit": 20, "found_count": 3, "timestamp": "2025-01-01 00:00:00"}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := m.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Version != 1 {
		t.Errorf("Version = %d, want 1", got.Version)
	}
	if got.ResultBytes != UnknownResultBytes {
		t.Errorf("ResultBytes = %d, want %d", got.ResultBytes, UnknownResultBytes)
	}
	if got.LastChecked != 10 || got.Limit != 20 || got.FoundCount != 3 {
		t.Errorf("Load() = %+v", got)
	}
}

func TestLoadEmptyResultFile(t *testing.T) {
	m, path := newFileManager(t)
	data := `{"last_checked": 10, "limit": 20, "found_count": 0, "timestamp": "", "result_bytes": 0}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := m.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ResultBytes != 0 {
		t.Errorf("ResultBytes = %d, want 0", got.ResultBytes)
	}
}

func TestSyncDir(t *testing.T) {
	dir := t.TempDir()
	if err := syncDir(dir); err != nil {
		t.Errorf("syncDir(%s): %v", dir, err)
	}
	if err := syncDir(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestLoadExplicitVersion(t *testing.T) {
	m, path := newFileManager(t)
	data := `{"last_checked": 10, "limit": 20, "found_count": 0, "timestamp": "", "version": 7}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := m.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Version != 7 {
		t.Errorf("Version = %d, want 7", got.Version)
	}
}

func TestLoadCorrupt(t *testing.T) {
	m, path := newFileManager(t)
	if err := os.WriteFile(path, []byte(`{"last_checked": 10, "limit":`), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := m.Load(context.Background())
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("Load() error = %v, want ErrCorrupt", err)
	}
}

func TestSaveOverwritesAtomically(t *testing.T) {
	m, path := newFileManager(t)
	ctx := context.Background()

	st := NewState(1, 100)
	for i := uint64(1); i <= 5; i++ {
		st.LastChecked = i * 10
		if err := m.Save(ctx, st); err != nil {
			t.Fatalf("Save #%d: %v", i, err)
		}
	}

	got, err := m.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.LastChecked != 50 {
		t.Errorf("LastChecked = %d, want 50", got.LastChecked)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only the checkpoint", len(entries))
	}
}

func TestStaleTempFileIgnored(t *testing.T) {
	m, path := newFileManager(t)
	ctx := context.Background()

	if err := m.Save(ctx, NewState(5, 100)); err != nil {
		t.Fatal(err)
	}
	// A crash between write and rename leaves only the temp file behind.
	if err := os.WriteFile(path+".tmp", []byte("{partial"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := m.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.LastChecked != 5 {
		t.Errorf("LastChecked = %d, want 5", got.LastChecked)
	}
}

func TestNoopManager(t *testing.T) {
	m, err := NewManager(Config{Enabled: false})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := m.Save(ctx, NewState(1, 2)); err != nil {
		t.Errorf("Save: %v", err)
	}
	if _, err := m.Load(ctx); !errors.Is(err, ErrNoCheckpoint) {
		t.Errorf("Load() error = %v, want ErrNoCheckpoint", err)
	}
}

func TestNewManagerRequiresPath(t *testing.T) {
	if _, err := NewManager(Config{Enabled: true}); err == nil {
		t.Error("expected error for empty path")
	}
}
