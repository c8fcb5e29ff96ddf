package search

import (
	"time"
)

// Chunk is a half-open candidate range [Start, End).
type Chunk struct {
	Start uint64
	End   uint64
}

// Len returns the number of candidates in the chunk.
func (c Chunk) Len() uint64 {
	return c.End - c.Start
}

// nextChunk returns the chunk starting at pos, clamped to limit.
func nextChunk(pos, size, limit uint64) Chunk {
	end := limit
	if limit-pos > size {
		end = pos + size
	}
	return Chunk{Start: pos, End: end}
}

// Phase is the scheduler's lifecycle position.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseResuming
	PhaseScanning
	PhaseDraining
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseResuming:
		return "resuming"
	case PhaseScanning:
		return "scanning"
	case PhaseDraining:
		return "draining"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// Progress is a point-in-time view of a running search.
type Progress struct {
	Phase     Phase
	Chunk     Chunk  // last committed chunk
	Position  uint64 // next candidate to scan
	Start     uint64
	Limit     uint64
	Found     uint64 // cumulative, including resumed state
	LastFound uint64 // zero until the first hit of this run
	Elapsed   time.Duration
}

// Summary describes a finished run.
type Summary struct {
	RunID           string
	Start           uint64 // first candidate scanned by this run
	End             uint64 // next candidate that would be scanned
	Limit           uint64
	Checked         uint64
	Found           uint64 // cumulative, including resumed state
	FoundThisRun    uint64
	LastFound       uint64
	Elapsed         time.Duration
	Rate            float64 // candidates per second
	Density         float64 // percent of checked candidates found this run
	Resumed         bool
	Interrupted     bool
	AlreadyComplete bool
}

// HasDensity reports whether Density is meaningful.
func (s *Summary) HasDensity() bool {
	return s.FoundThisRun > 0 && s.Checked > 0
}

func (s *Summary) finish(elapsed time.Duration) {
	s.Elapsed = elapsed
	s.Checked = s.End - s.Start
	if secs := elapsed.Seconds(); secs > 0 {
		s.Rate = float64(s.Checked) / secs
	}
	if s.HasDensity() {
		s.Density = float64(s.FoundThisRun) / float64(s.Checked) * 100
	}
}
