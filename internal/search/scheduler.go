// Package search drives the chunked, resumable scan for productive numbers.
//
// A Scheduler resumes from the last checkpoint, evaluates the range one chunk
// at a time across a fixed worker pool, appends hits to the result sink and
// persists progress periodically and once more at termination. Cancellation
// of the context passed to Run is observed between chunks.
package search

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/withObsrvr/productive-numbers/internal/checkpoint"
	"github.com/withObsrvr/productive-numbers/internal/logging"
	"github.com/withObsrvr/productive-numbers/internal/metrics"
	"github.com/withObsrvr/productive-numbers/internal/storage"
)

// DefaultCheckpointInterval is used when Options.CheckpointInterval is zero.
const DefaultCheckpointInterval = 5 * time.Second

// Options configures a run.
type Options struct {
	Start              uint64
	Limit              uint64
	ChunkSize          uint64
	Workers            int
	Fresh              bool
	CheckpointInterval time.Duration
	LogHits            bool // log every hit at info level
}

// SinkFactory opens the result sink once the start state is known.
// committed is the sink size recorded by the resumed checkpoint, or
// checkpoint.UnknownResultBytes when the run does not continue from one.
type SinkFactory func(committed int64) (storage.ResultSink, error)

// LocalSinks opens an append-only result file at path. On resume, bytes
// past the checkpointed length are dropped first; they hold hits from
// chunks that were never checkpointed and will be found again.
func LocalSinks(path string) SinkFactory {
	return func(committed int64) (storage.ResultSink, error) {
		if committed != checkpoint.UnknownResultBytes {
			dropped, err := storage.TruncateTo(path, committed)
			if err != nil {
				return nil, err
			}
			if dropped > 0 {
				logging.Component("search").Warn("dropped uncommitted results",
					"path", path,
					"committed_bytes", committed,
					"dropped_bytes", dropped,
				)
			}
		}
		return storage.OpenLocalSink(path)
	}
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithMetrics records run metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithLogger replaces the default component logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// WithRunID sets the run's correlation ID.
func WithRunID(id string) Option {
	return func(s *Scheduler) { s.runID = id }
}

// WithProgress calls fn from the control goroutine after every committed chunk.
func WithProgress(fn func(Progress)) Option {
	return func(s *Scheduler) { s.progress = fn }
}

// Scheduler runs one search.
type Scheduler struct {
	opts     Options
	pred     Predicate
	sinks    SinkFactory
	ckpt     checkpoint.Manager
	metrics  *metrics.Metrics
	log      *slog.Logger
	runID    string
	progress func(Progress)

	phase     atomic.Int32
	found     atomic.Uint64
	lastFound atomic.Uint64
}

// New creates a scheduler. Options must already be validated.
func New(opts Options, pred Predicate, sinks SinkFactory, ckpt checkpoint.Manager, options ...Option) *Scheduler {
	if opts.CheckpointInterval <= 0 {
		opts.CheckpointInterval = DefaultCheckpointInterval
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	s := &Scheduler{
		opts:  opts,
		pred:  pred,
		sinks: sinks,
		ckpt:  ckpt,
	}
	for _, o := range options {
		o(s)
	}
	if s.runID == "" {
		s.runID = logging.GenerateRunID()
	}
	if s.log == nil {
		s.log = logging.Component("search")
	}
	s.log = s.log.With("run_id", s.runID)
	return s
}

// Phase returns the current lifecycle phase. Safe for concurrent use.
func (s *Scheduler) Phase() Phase {
	return Phase(s.phase.Load())
}

// Run scans until the limit is reached or ctx is canceled, and returns the
// run summary. A canceled run is not an error. The summary is also returned
// alongside result sink and final checkpoint errors.
func (s *Scheduler) Run(ctx context.Context) (*Summary, error) {
	began := time.Now()
	s.setPhase(PhaseResuming)

	st, resumed := s.resume(ctx)

	if st.Limit != s.opts.Limit {
		if resumed {
			s.log.Info("limit changed", "saved_limit", st.Limit, "limit", s.opts.Limit)
		}
		st.Limit = s.opts.Limit
	}

	from := max(st.LastChecked, s.opts.Start)
	limit := s.opts.Limit
	baseFound := st.FoundCount

	s.found.Store(baseFound)
	s.metrics.SetRange(from, limit)

	sum := &Summary{
		RunID:   s.runID,
		Start:   from,
		End:     from,
		Limit:   limit,
		Found:   baseFound,
		Resumed: resumed,
	}

	if from >= limit {
		s.log.Info("search already complete", "limit", limit)
		sum.AlreadyComplete = true
		sum.finish(time.Since(began))
		s.setPhase(PhaseDone)
		return sum, nil
	}

	committed := int64(checkpoint.UnknownResultBytes)
	if resumed {
		committed = st.ResultBytes
	}
	sink, err := s.sinks(committed)
	if err != nil {
		s.setPhase(PhaseDone)
		return nil, newError(KindResultSink, "open result sink", err)
	}

	s.log.Info("search started",
		"start", from,
		"limit", limit,
		"candidates", limit-from,
		"chunk_size", s.opts.ChunkSize,
		"workers", s.opts.Workers,
	)

	s.setPhase(PhaseScanning)
	pos, scanErr := s.scan(ctx, sink, st, from, limit, began)

	s.setPhase(PhaseDraining)
	sum.End = pos
	sum.Found = s.found.Load()
	sum.FoundThisRun = sum.Found - baseFound
	sum.LastFound = s.lastFound.Load()
	sum.Interrupted = pos < limit && ctx.Err() != nil

	closeErr := sink.Close()
	switch {
	case scanErr != nil:
		sum.finish(time.Since(began))
		s.setPhase(PhaseDone)
		return sum, scanErr
	case closeErr != nil:
		sum.finish(time.Since(began))
		s.setPhase(PhaseDone)
		return sum, newError(KindResultSink, "close result sink", closeErr)
	}

	st.LastChecked = pos
	st.FoundCount = sum.Found
	st.ResultBytes = sink.Size()
	if err := s.ckpt.Save(context.WithoutCancel(ctx), st); err != nil {
		s.metrics.IncCheckpointFailures("final")
		sum.finish(time.Since(began))
		s.setPhase(PhaseDone)
		return sum, newError(KindFinalCheckpoint, "save final checkpoint", err)
	}
	s.metrics.IncCheckpointSaves()

	sum.finish(time.Since(began))
	s.setPhase(PhaseDone)
	return sum, nil
}

// resume picks the starting state. Missing, corrupt and unreadable
// checkpoints all fall back to a fresh state.
func (s *Scheduler) resume(ctx context.Context) (*checkpoint.State, bool) {
	if s.opts.Fresh {
		s.log.Info("fresh run, ignoring saved state")
		return checkpoint.NewState(s.opts.Start, s.opts.Limit), false
	}

	st, err := s.ckpt.Load(ctx)
	switch {
	case err == nil:
		s.log.Info("resuming from checkpoint",
			"last_checked", st.LastChecked,
			"limit", st.Limit,
			"found", st.FoundCount,
			"saved_at", st.Timestamp,
		)
		return st, true
	case errors.Is(err, checkpoint.ErrNoCheckpoint):
		s.log.Info("no saved state, starting new search")
	case errors.Is(err, checkpoint.ErrCorrupt):
		s.log.Warn("saved state is corrupt, starting new search", "error", err)
	default:
		s.log.Warn("saved state unreadable, starting new search", "error", err)
	}
	return checkpoint.NewState(s.opts.Start, s.opts.Limit), false
}

// scan evaluates chunks until limit or cancellation and returns the next
// unscanned position.
func (s *Scheduler) scan(ctx context.Context, sink storage.ResultSink, st *checkpoint.State, from, limit uint64, began time.Time) (uint64, error) {
	pos := from
	lastSave := time.Now()

	for pos < limit {
		if ctx.Err() != nil {
			s.log.Info("interrupt received, stopping at chunk boundary", "position", pos)
			return pos, nil
		}

		chunk := nextChunk(pos, s.opts.ChunkSize, limit)
		chunkLog := logging.ChunkLogger(s.log, chunk.Start, chunk.End)
		chunkLog.Debug("processing chunk")

		t0 := time.Now()
		hits, err := evaluateChunk(s.pred, chunk, s.opts.Workers)
		if err != nil {
			return pos, newError(KindInternal, "evaluate chunk", err)
		}

		if len(hits) > 0 {
			if err := sink.Append(ctx, hits); err != nil {
				return pos, newError(KindResultSink, "append results", err)
			}
			s.found.Add(uint64(len(hits)))
			s.lastFound.Store(hits[len(hits)-1])

			if s.opts.LogHits {
				for _, n := range hits {
					s.log.Info("found productive number", "n", n)
				}
			}
		}

		pos = chunk.End
		s.metrics.ObserveChunk(chunk.Len(), uint64(len(hits)), pos, time.Since(t0))
		chunkLog.Debug("chunk committed", "hits", len(hits), "duration", time.Since(t0))

		if s.progress != nil {
			s.progress(Progress{
				Phase:     PhaseScanning,
				Chunk:     chunk,
				Position:  pos,
				Start:     from,
				Limit:     limit,
				Found:     s.found.Load(),
				LastFound: s.lastFound.Load(),
				Elapsed:   time.Since(began),
			})
		}

		if time.Since(lastSave) >= s.opts.CheckpointInterval {
			st.LastChecked = pos
			st.FoundCount = s.found.Load()
			st.ResultBytes = sink.Size()
			if err := s.ckpt.Save(ctx, st); err != nil {
				s.metrics.IncCheckpointFailures("periodic")
				s.log.Warn("failed to save checkpoint", "position", pos, "error", err)
			} else {
				s.metrics.IncCheckpointSaves()
				s.log.Debug("checkpoint saved", "position", pos)
			}
			lastSave = time.Now()
		}
	}

	return pos, nil
}

func (s *Scheduler) setPhase(p Phase) {
	s.phase.Store(int32(p))
}
