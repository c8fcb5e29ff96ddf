package metadata

import (
	"time"
)

// RunRecord is one catalogued search run.
type RunRecord struct {
	RunID           string        `json:"run_id"`
	StartedAt       time.Time     `json:"started_at"`
	FinishedAt      time.Time     `json:"finished_at"`
	RangeStart      uint64        `json:"range_start"`
	RangeEnd        uint64        `json:"range_end"`
	Limit           uint64        `json:"limit"`
	ChunkSize       uint64        `json:"chunk_size"`
	Workers         int           `json:"workers"`
	Checked         uint64        `json:"checked"`
	Found           uint64        `json:"found"`
	FoundThisRun    uint64        `json:"found_this_run"`
	LastFound       uint64        `json:"last_found"`
	Elapsed         time.Duration `json:"elapsed"`
	Interrupted     bool          `json:"interrupted"`
	AlreadyComplete bool          `json:"already_complete"`
	ResultsURI      string        `json:"results_uri,omitempty"` // mirror location, if any
	ProducerVersion string        `json:"producer_version"`
}
