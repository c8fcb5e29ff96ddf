package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/withObsrvr/productive-numbers/internal/checkpoint"
	"github.com/withObsrvr/productive-numbers/internal/config"
	"github.com/withObsrvr/productive-numbers/internal/hostinfo"
	"github.com/withObsrvr/productive-numbers/internal/logging"
	"github.com/withObsrvr/productive-numbers/internal/metadata"
	"github.com/withObsrvr/productive-numbers/internal/metrics"
	"github.com/withObsrvr/productive-numbers/internal/primality"
	"github.com/withObsrvr/productive-numbers/internal/productive"
	"github.com/withObsrvr/productive-numbers/internal/search"
	"github.com/withObsrvr/productive-numbers/internal/sieve"
	"github.com/withObsrvr/productive-numbers/internal/storage"
)

// progressInterval throttles info-level progress lines.
const progressInterval = 10 * time.Second

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run or resume the search (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd)
		},
	}
	addRunFlags(cmd)
	return cmd
}

func addRunFlags(cmd *cobra.Command) {
	d := config.Defaults()
	fs := cmd.Flags()

	fs.String("config", "", "YAML configuration file")
	fs.Uint64P("start", "s", d.Search.Start, "first number to check (>= 1)")
	fs.Uint64P("limit", "l", d.Search.Limit, "exclusive upper bound of the search")
	fs.String("state-file", d.Files.StateFile, "progress state file")
	fs.String("output-file", d.Files.OutputFile, "file receiving productive numbers")
	fs.Uint64("chunk-size", d.Search.ChunkSize, fmt.Sprintf("candidates per parallel chunk (%d-%d)", config.MinChunkSize, config.MaxChunkSize))
	fs.Bool("fresh", false, "ignore saved state and start from --start")
	fs.BoolP("quiet", "q", false, "only log warnings and errors")
	fs.CountP("verbose", "v", "verbosity (-v logs every hit, -vv adds debug output)")
	fs.Int("workers", d.Search.Workers, "worker goroutines per chunk (0 = one per CPU)")
	fs.Duration("checkpoint-interval", d.Search.CheckpointInterval, "minimum time between periodic state saves")
	fs.String("log-format", d.Log.Format, "log format: text or json")
	fs.String("log-level", d.Log.Level, "log level override: debug, info, warn, error")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	fs.String("mirror-url", "", "bucket URL receiving result and state copies (file://, mem://, s3://, gs://)")
	fs.String("mirror-prefix", "", "key prefix inside the mirror bucket")
	fs.Bool("mirror-compress", false, "zstd-compress the mirrored result file")
	fs.String("catalog-dsn", "", "PostgreSQL DSN for the run catalog")
}

// loadConfig merges defaults, the --config file and cmd's flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	v := viper.New()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return config.Config{}, err
	}
	path, _ := cmd.Flags().GetString("config")
	return config.Load(v, path)
}

func runSearch(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logging.Setup(logging.Config{
		Format: cfg.Log.Format,
		Level:  logging.LevelFor(cfg.Log.Level, cfg.Log.Verbosity, cfg.Log.Quiet),
	})

	runID := logging.GenerateRunID()
	ctx := cmd.Context()
	log := logging.Component("main").With("run_id", runID)

	workers := cfg.Search.WorkerCount()
	log.Info("productive-numbers starting",
		"version", Version,
		"git_sha", GitSHA,
		"start", cfg.Search.Start,
		"limit", cfg.Search.Limit,
		"chunk_size", cfg.Search.ChunkSize,
		"workers", workers,
		"output_file", cfg.Files.OutputFile,
		"state_file", cfg.Files.StateFile,
	)
	log.Info("host", "host", hostinfo.Collect(ctx))

	var m *metrics.Metrics
	if cfg.Metrics.Address != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m = metrics.New(reg)

		go func() {
			log.Info("metrics server listening", "address", cfg.Metrics.Address)
			if err := metrics.StartServer(ctx, cfg.Metrics.Address, reg); err != nil {
				log.Error("metrics server failed", "error", err)
			}
		}()
	}

	ckpt, err := checkpoint.NewManager(checkpoint.Config{Enabled: true, Path: cfg.Files.StateFile})
	if err != nil {
		return fmt.Errorf("create checkpoint manager: %w", err)
	}

	// Build the sieve before any worker starts.
	small := sieve.Shared()
	log.Debug("sieve ready", "limit", small.Max(), "primes", small.Count())
	pred := productive.New(primality.New(small))

	sched := search.New(
		search.Options{
			Start:              cfg.Search.Start,
			Limit:              cfg.Search.Limit,
			ChunkSize:          cfg.Search.ChunkSize,
			Workers:            workers,
			Fresh:              cfg.Search.Fresh,
			CheckpointInterval: cfg.Search.CheckpointInterval,
			LogHits:            cfg.Log.Verbosity >= 1 && !cfg.Log.Quiet,
		},
		pred,
		search.LocalSinks(cfg.Files.OutputFile),
		ckpt,
		search.WithRunID(runID),
		search.WithMetrics(m),
		search.WithProgress(progressLogger(log)),
	)

	stop := context.AfterFunc(ctx, func() {
		log.Info("stop requested", "phase", sched.Phase().String())
	})
	defer stop()

	began := time.Now()
	sum, runErr := sched.Run(ctx)
	if sum != nil {
		logSummary(log, sum, cfg.Files.StateFile)
	}
	if runErr != nil {
		return runErr
	}

	// Publishing happens after an interrupt too, so it must outlive ctx.
	postCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Minute)
	defer cancel()

	resultsURI := mirrorResults(postCtx, log, cfg)
	recordRun(postCtx, log, cfg, runRecord(sum, cfg, workers, began, resultsURI))
	return nil
}

// progressLogger returns a progress callback that logs at most once per
// progressInterval.
func progressLogger(log *slog.Logger) func(search.Progress) {
	var last time.Time
	return func(p search.Progress) {
		if time.Since(last) < progressInterval {
			return
		}
		last = time.Now()

		done := p.Position - p.Start
		total := p.Limit - p.Start
		attrs := []any{
			"position", p.Position,
			"percent", fmt.Sprintf("%.2f", float64(done)/float64(total)*100),
			"found", p.Found,
		}
		if p.LastFound > 0 {
			attrs = append(attrs, "last_found", p.LastFound)
		}
		if secs := p.Elapsed.Seconds(); secs > 0 && done > 0 {
			rate := float64(done) / secs
			eta := time.Duration(float64(p.Limit-p.Position) / rate * float64(time.Second))
			attrs = append(attrs, "rate_per_sec", fmt.Sprintf("%.0f", rate), "eta", eta.Round(time.Second).String())
		}
		log.Info("progress", attrs...)
	}
}

func logSummary(log *slog.Logger, sum *search.Summary, stateFile string) {
	if sum.AlreadyComplete {
		log.Info("search already complete", "limit", sum.Limit, "found", sum.Found)
		return
	}

	attrs := []any{
		"checked", sum.Checked,
		"found", sum.Found,
		"found_this_run", sum.FoundThisRun,
		"elapsed", sum.Elapsed.Round(time.Millisecond).String(),
		"rate_per_sec", fmt.Sprintf("%.0f", sum.Rate),
	}
	if sum.HasDensity() {
		attrs = append(attrs, "density_pct", fmt.Sprintf("%.6f", sum.Density))
	}
	log.Info("search summary", attrs...)

	if sum.Interrupted {
		log.Info("state saved, run again to continue where the search stopped",
			"state_file", stateFile,
			"position", sum.End,
		)
		return
	}
	log.Info("search completed successfully")
}

// mirrorResults copies the result and state files to the configured bucket
// and returns the result file's URI. Failures are logged only.
func mirrorResults(ctx context.Context, log *slog.Logger, cfg config.Config) string {
	if cfg.Mirror.URL == "" {
		return ""
	}

	mirror, err := storage.OpenMirror(ctx, storage.MirrorConfig{
		URL:      cfg.Mirror.URL,
		Prefix:   cfg.Mirror.Prefix,
		Compress: cfg.Mirror.Compress,
	})
	if err != nil {
		log.Warn("failed to open mirror", "url", cfg.Mirror.URL, "error", err)
		return ""
	}
	defer mirror.Close()

	res, err := mirror.Publish(ctx, cfg.Files.OutputFile, cfg.Files.StateFile)
	if err != nil {
		log.Warn("failed to mirror results", "url", cfg.Mirror.URL, "error", err)
		return ""
	}

	uri := mirror.URI(res.ResultsKey)
	log.Info("results mirrored",
		"results", uri,
		"state", mirror.URI(res.StateKey),
		"bytes", res.Bytes,
	)
	return uri
}

func runRecord(sum *search.Summary, cfg config.Config, workers int, began time.Time, resultsURI string) metadata.RunRecord {
	return metadata.RunRecord{
		RunID:           sum.RunID,
		StartedAt:       began,
		FinishedAt:      time.Now(),
		RangeStart:      sum.Start,
		RangeEnd:        sum.End,
		Limit:           sum.Limit,
		ChunkSize:       cfg.Search.ChunkSize,
		Workers:         workers,
		Checked:         sum.Checked,
		Found:           sum.Found,
		FoundThisRun:    sum.FoundThisRun,
		LastFound:       sum.LastFound,
		Elapsed:         sum.Elapsed,
		Interrupted:     sum.Interrupted,
		AlreadyComplete: sum.AlreadyComplete,
		ResultsURI:      resultsURI,
		ProducerVersion: "productive-numbers@" + Version,
	}
}

// recordRun writes rec to the run catalog. Failures are logged only.
func recordRun(ctx context.Context, log *slog.Logger, cfg config.Config, rec metadata.RunRecord) {
	if cfg.Catalog.PostgresDSN == "" {
		return
	}

	w, err := metadata.NewWriter(ctx, metadata.CatalogConfig{PostgresDSN: cfg.Catalog.PostgresDSN})
	if err != nil {
		log.Warn("failed to connect to run catalog", "error", err)
		return
	}
	defer w.Close()

	if err := w.RecordRun(ctx, rec); err != nil {
		log.Warn("failed to record run", "error", err)
	}
}
