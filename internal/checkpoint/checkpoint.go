package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var (
	// ErrNoCheckpoint is returned when no checkpoint exists.
	ErrNoCheckpoint = errors.New("no checkpoint found")

	// ErrCorrupt is returned when a checkpoint exists but cannot be parsed.
	ErrCorrupt = errors.New("checkpoint corrupt")
)

// CurrentVersion is the format tag written with every checkpoint.
const CurrentVersion = 1

// TimestampLayout is the format of State.Timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// UnknownResultBytes marks a state that does not record the result file
// length, such as one written by an older release.
const UnknownResultBytes = -1

// State is the persisted search progress.
type State struct {
	LastChecked uint64 `json:"last_checked"`
	Limit       uint64 `json:"limit"`
	FoundCount  uint64 `json:"found_count"`
	Timestamp   string `json:"timestamp"`
	Version     uint32 `json:"version"`

	// ResultBytes is the result file length covering every hit below
	// LastChecked.
	ResultBytes int64 `json:"result_bytes"`
}

// NewState returns a fresh state starting at start.
func NewState(start, limit uint64) *State {
	return &State{
		LastChecked: start,
		Limit:       limit,
		Timestamp:   time.Now().Format(TimestampLayout),
		Version:     CurrentVersion,
	}
}

// UnmarshalJSON defaults Version to 1 and ResultBytes to UnknownResultBytes
// when the fields are absent.
func (s *State) UnmarshalJSON(data []byte) error {
	type alias State
	a := alias{Version: CurrentVersion, ResultBytes: UnknownResultBytes}
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*s = State(a)
	return nil
}

// Manager handles checkpoint persistence and retrieval.
type Manager interface {
	// Load reads the current checkpoint.
	Load(ctx context.Context) (*State, error)

	// Save persists the checkpoint. The state's timestamp is refreshed.
	Save(ctx context.Context, st *State) error
}

// Config configures the checkpoint manager.
type Config struct {
	Enabled bool
	Path    string // checkpoint file path
}

// NewManager creates a checkpoint manager based on configuration.
func NewManager(cfg Config) (Manager, error) {
	if !cfg.Enabled {
		return &noopManager{}, nil
	}
	if cfg.Path == "" {
		return nil, errors.New("checkpoint path required")
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create checkpoint directory %s: %w", dir, err)
		}
	}

	return &fileManager{path: cfg.Path}, nil
}

// fileManager persists checkpoints to a single local file.
type fileManager struct {
	path string
}

// Load reads the checkpoint from file.
func (m *fileManager) Load(ctx context.Context) (*State, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCheckpoint
		}
		return nil, fmt.Errorf("read checkpoint file: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrCorrupt, m.path, err)
	}

	return &st, nil
}

// Save writes the checkpoint to a temp file, syncs it and renames it over
// the target, so readers see either the old or the new state in full.
func (m *fileManager) Save(ctx context.Context, st *State) error {
	st.Timestamp = time.Now().Format(TimestampLayout)
	if st.Version == 0 {
		st.Version = CurrentVersion
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tempPath := m.path + ".tmp"
	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("write checkpoint temp file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("sync checkpoint temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("close checkpoint temp file: %w", err)
	}

	if err := os.Rename(tempPath, m.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename checkpoint file: %w", err)
	}

	return syncDir(filepath.Dir(m.path))
}

// syncDir makes a rename inside dir durable.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open checkpoint directory: %w", err)
	}
	defer d.Close()

	if err := d.Sync(); err != nil {
		return fmt.Errorf("sync checkpoint directory: %w", err)
	}
	return nil
}

// noopManager is a no-op checkpoint manager for when checkpointing is disabled.
type noopManager struct{}

func (m *noopManager) Load(ctx context.Context) (*State, error) {
	return nil, ErrNoCheckpoint
}

func (m *noopManager) Save(ctx context.Context, st *State) error {
	return nil
}
