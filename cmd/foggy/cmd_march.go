package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/dd0wney/cluso-foggy/pkg/config"
	"github.com/dd0wney/cluso-foggy/pkg/health"
	"github.com/dd0wney/cluso-foggy/pkg/logging"
	"github.com/dd0wney/cluso-foggy/pkg/metrics"
	"github.com/dd0wney/cluso-foggy/pkg/results"
	"github.com/dd0wney/cluso-foggy/pkg/sweep"
	"github.com/spf13/cobra"
)

// S3 credentials are read from the environment only.
const (
	envS3AccessKeyID     = "FOGGY_S3_ACCESS_KEY_ID"
	envS3SecretAccessKey = "FOGGY_S3_SECRET_ACCESS_KEY"
)

func newMarchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "march",
		Short: "Run every walk of an experiment",
		Long: `Run every combination of graph, walker factor, variation factor, steps
factor, capacity factor and repetition in an experiment file.

Each run writes its matrices to <output.dir>/<sim_id>/ and appends one line to
runs.jsonl plus one line per node to nodes.jsonl. Runs are also saved to
PostgreSQL and uploaded to S3 when the experiment configures them.`,
		Example: `  foggy march -c experiment.yaml
  foggy march -c experiment.yaml --tui --concurrency 4
  foggy march -c experiment.yaml --metrics :9100`,
		Args: cobra.NoArgs,
		RunE: runMarch,
	}

	cmd.Flags().StringP("config", "c", "experiment.yaml", "Experiment file")
	cmd.Flags().Bool("tui", false, "Show a progress view instead of logging to stderr")
	cmd.Flags().String("metrics", "", "Serve /metrics, /healthz and /readyz on this address (overrides metrics.listen)")
	cmd.Flags().Int("concurrency", 1, "Runs marching at once")
	return cmd
}

func runMarch(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	tui, _ := cmd.Flags().GetBool("tui")
	metricsAddr, _ := cmd.Flags().GetString("metrics")
	concurrency, _ := cmd.Flags().GetInt("concurrency")

	exp, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(exp.Output.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var logOut io.Writer = cmd.ErrOrStderr()
	if tui {
		f, err := os.OpenFile(filepath.Join(exp.Output.Dir, "foggy.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger := newLogger(cmd, logOut, exp.Logging.Level)

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	reg := metrics.NewRegistry()
	runner, closeSinks, err := newRunner(ctx, exp, reg, logger)
	if err != nil {
		return err
	}
	defer closeSinks()
	runner.Concurrency = concurrency

	total := len(exp.Runs())
	var tally runTally
	runner.Progress = tally.observe

	if metricsAddr == "" {
		metricsAddr = exp.Metrics.Listen
	}
	if metricsAddr != "" {
		checker := health.NewChecker()
		checker.RegisterLiveness("sweep", health.SweepCheck(func() (int, int, int) {
			done, failed := tally.counts()
			return done, failed, total
		}))
		checker.RegisterLiveness("memory", health.MemoryCheck(0))
		checker.RegisterReadiness("output", health.DirCheck(exp.Output.Dir))
		for _, s := range runner.Stores {
			if pg, ok := s.(*results.PGStore); ok {
				checker.RegisterReadiness("postgres", health.PingCheck(pg.Ping))
			}
		}

		srv := serveHTTP(metricsAddr, reg, checker, logger)
		defer shutdown(srv)
	}

	if tui {
		if err := runWithProgress(ctx, runner, total, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d runs written to %s\n", total, exp.Output.Dir)
		return nil
	}

	records, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d runs written to %s\n", len(records), exp.Output.Dir)
	return nil
}

// newRunner wires the result sinks the experiment asks for. The returned
// function closes them.
func newRunner(ctx context.Context, exp *config.Experiment, reg *metrics.Registry, logger logging.Logger) (*sweep.Runner, func(), error) {
	var stores []results.Store
	closeAll := func() {
		for _, s := range stores {
			if err := s.Close(); err != nil {
				logger.Warn("failed to close store", logging.Error(err))
			}
		}
	}

	jsonl, err := results.NewJSONLStore(exp.Output.Dir, reg)
	if err != nil {
		return nil, nil, err
	}
	stores = append(stores, jsonl)

	if exp.Output.Postgres != "" {
		pg, err := results.NewPGStore(ctx, exp.Output.Postgres, reg)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		stores = append(stores, pg)
		logger.Info("saving runs to postgres")
	}

	var uploader *results.S3Uploader
	if s3 := exp.Output.S3; s3.Bucket != "" {
		uploader, err = results.NewS3Uploader(ctx, results.S3Options{
			Bucket:          s3.Bucket,
			Prefix:          s3.Prefix,
			Region:          s3.Region,
			Endpoint:        s3.Endpoint,
			AccessKeyID:     os.Getenv(envS3AccessKeyID),
			SecretAccessKey: os.Getenv(envS3SecretAccessKey),
		}, reg, logger)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		logger.Info("uploading runs to s3", logging.String("bucket", s3.Bucket))
	}

	return &sweep.Runner{
		Experiment: exp,
		Writer:     results.NewWriter(exp.Output.Dir, reg),
		Stores:     stores,
		Uploader:   uploader,
		Metrics:    reg,
		Logger:     logger,
	}, closeAll, nil
}

// runTally counts finished runs for the health endpoint.
type runTally struct {
	done   atomic.Int64
	failed atomic.Int64
}

func (t *runTally) observe(ev sweep.Event) {
	switch {
	case ev.Done && ev.Err != nil:
		t.failed.Add(1)
	case ev.Done:
		t.done.Add(1)
	}
}

func (t *runTally) counts() (done, failed int) {
	return int(t.done.Load()), int(t.failed.Load())
}

// serveHTTP exposes /metrics and, when checker is set, /healthz and /readyz.
func serveHTTP(addr string, reg *metrics.Registry, checker *health.Checker, logger logging.Logger) *http.Server {
	mux := http.NewServeMux()
	if reg != nil {
		mux.Handle("/metrics", reg.Handler())
	}
	if checker != nil {
		checker.Register(mux)
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("serving http", logging.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", logging.Error(err))
		}
	}()
	return srv
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}
