package metadata

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// PostgresWriter implements Writer using PostgreSQL.
// Unsigned 64-bit values are stored as NUMERIC(20,0) and passed as text.
type PostgresWriter struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewPostgresWriter connects to the catalog and creates the schema.
func NewPostgresWriter(ctx context.Context, cfg CatalogConfig) (*PostgresWriter, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}

	poolCfg.MaxConns = 2
	poolCfg.MinConns = 0
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	w := &PostgresWriter{
		pool: pool,
		log:  slog.With("component", "catalog"),
	}

	if err := w.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	w.log.Info("connected to PostgreSQL catalog")
	return w, nil
}

// initSchema creates the productive_runs table if it doesn't exist.
func (w *PostgresWriter) initSchema(ctx context.Context) error {
	if _, err := w.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// RecordRun inserts or replaces the row for rec.RunID.
func (w *PostgresWriter) RecordRun(ctx context.Context, rec RunRecord) error {
	query := `
		INSERT INTO productive_runs (
			run_id, started_at, finished_at, range_start, range_end, search_limit,
			chunk_size, workers, checked, found, found_this_run, last_found,
			elapsed_ms, interrupted, already_complete, results_uri, producer_version
		)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7, $8,
			$9::numeric, $10::numeric, $11::numeric, $12::numeric, $13, $14, $15, NULLIF($16, ''), $17)
		ON CONFLICT (run_id)
		DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			range_end = EXCLUDED.range_end,
			checked = EXCLUDED.checked,
			found = EXCLUDED.found,
			found_this_run = EXCLUDED.found_this_run,
			last_found = EXCLUDED.last_found,
			elapsed_ms = EXCLUDED.elapsed_ms,
			interrupted = EXCLUDED.interrupted,
			results_uri = EXCLUDED.results_uri
	`

	_, err := w.pool.Exec(ctx, query, recordArgs(rec)...)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	w.log.Info("recorded run", "run_id", rec.RunID, "found", rec.Found)
	return nil
}

// recordArgs returns RecordRun's positional parameters.
func recordArgs(rec RunRecord) []any {
	u := func(v uint64) string { return strconv.FormatUint(v, 10) }
	return []any{
		rec.RunID,
		rec.StartedAt,
		rec.FinishedAt,
		u(rec.RangeStart),
		u(rec.RangeEnd),
		u(rec.Limit),
		int64(rec.ChunkSize),
		rec.Workers,
		u(rec.Checked),
		u(rec.Found),
		u(rec.FoundThisRun),
		u(rec.LastFound),
		rec.Elapsed.Milliseconds(),
		rec.Interrupted,
		rec.AlreadyComplete,
		rec.ResultsURI,
		rec.ProducerVersion,
	}
}

// RecentRuns returns up to n runs, most recently finished first.
func (w *PostgresWriter) RecentRuns(ctx context.Context, n int) ([]RunRecord, error) {
	query := `
		SELECT run_id::text, started_at, finished_at,
			range_start::text, range_end::text, search_limit::text,
			chunk_size, workers, checked::text, found::text,
			found_this_run::text, last_found::text, elapsed_ms,
			interrupted, already_complete, COALESCE(results_uri, ''), producer_version
		FROM productive_runs
		ORDER BY finished_at DESC
		LIMIT $1
	`

	rows, err := w.pool.Query(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	out, err := pgx.CollectRows(rows, scanRun)
	if err != nil {
		return nil, fmt.Errorf("scan runs: %w", err)
	}
	return out, nil
}

func scanRun(row pgx.CollectableRow) (RunRecord, error) {
	var (
		rec                               RunRecord
		start, end, limit, checked, found string
		foundThisRun, lastFound           string
		chunkSize, elapsedMS              int64
	)
	err := row.Scan(
		&rec.RunID, &rec.StartedAt, &rec.FinishedAt,
		&start, &end, &limit,
		&chunkSize, &rec.Workers, &checked, &found,
		&foundThisRun, &lastFound, &elapsedMS,
		&rec.Interrupted, &rec.AlreadyComplete, &rec.ResultsURI, &rec.ProducerVersion,
	)
	if err != nil {
		return RunRecord{}, err
	}

	for _, f := range []struct {
		dst *uint64
		src string
	}{
		{&rec.RangeStart, start},
		{&rec.RangeEnd, end},
		{&rec.Limit, limit},
		{&rec.Checked, checked},
		{&rec.Found, found},
		{&rec.FoundThisRun, foundThisRun},
		{&rec.LastFound, lastFound},
	} {
		v, err := strconv.ParseUint(f.src, 10, 64)
		if err != nil {
			return RunRecord{}, fmt.Errorf("parse %q: %w", f.src, err)
		}
		*f.dst = v
	}
	rec.ChunkSize = uint64(chunkSize)
	rec.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	return rec, nil
}

// Close releases database connections.
func (w *PostgresWriter) Close() error {
	w.pool.Close()
	return nil
}
