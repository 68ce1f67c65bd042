package results

import (
	"context"
	"fmt"
	"time"

	"github.com/dd0wney/cluso-foggy/pkg/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgPool is the part of *pgxpool.Pool the store uses.
type pgPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Ping(ctx context.Context) error
	Close()
}

// PGStore saves records into the foggy_runs and foggy_nodes tables.
type PGStore struct {
	pool    pgPool
	metrics *metrics.Registry
}

// NewPGStore connects to databaseURL and creates the tables if needed.
func NewPGStore(ctx context.Context, databaseURL string, m *metrics.Registry) (*PGStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 4
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	s := &PGStore{pool: pool, metrics: m}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return s, nil
}

// EnsureSchema creates the tables if they don't exist.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS foggy_runs (
		sim_id TEXT PRIMARY KEY,
		walk_setup TEXT NOT NULL,
		walk_type TEXT NOT NULL,
		walker_dist TEXT NOT NULL,
		walkers INTEGER NOT NULL,
		variation INTEGER NOT NULL,
		visit_value TEXT NOT NULL,
		walker_factor DOUBLE PRECISION NOT NULL,
		variation_factor DOUBLE PRECISION NOT NULL,
		steps_factor DOUBLE PRECISION NOT NULL,
		steps INTEGER NOT NULL,
		time_points INTEGER NOT NULL,
		transient INTEGER NOT NULL,
		graph_name TEXT NOT NULL,
		graph_type TEXT,
		directed BOOLEAN NOT NULL,
		nodes INTEGER NOT NULL,
		edges INTEGER NOT NULL,
		capacity TEXT,
		capacity_factor DOUBLE PRECISION,
		seed TEXT NOT NULL,
		workers INTEGER NOT NULL,
		dispatch TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL,
		dropped_total INTEGER NOT NULL,
		remaining INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS foggy_nodes (
		sim_id TEXT NOT NULL REFERENCES foggy_runs(sim_id) ON DELETE CASCADE,
		node_id BIGINT NOT NULL,
		degree DOUBLE PRECISION NOT NULL,
		in_degree DOUBLE PRECISION NOT NULL,
		out_degree DOUBLE PRECISION NOT NULL,
		mean_activity DOUBLE PRECISION NOT NULL,
		std_activity DOUBLE PRECISION NOT NULL,
		internal_std DOUBLE PRECISION NOT NULL,
		external_std DOUBLE PRECISION NOT NULL,
		capacity DOUBLE PRECISION,
		mean_rejected DOUBLE PRECISION NOT NULL,
		std_rejected DOUBLE PRECISION NOT NULL,
		total_rejected BIGINT NOT NULL,
		PRIMARY KEY (sim_id, node_id)
	);

	CREATE INDEX IF NOT EXISTS idx_foggy_runs_graph ON foggy_runs(graph_name);
	CREATE INDEX IF NOT EXISTS idx_foggy_runs_walk_type ON foggy_runs(walk_type);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

const insertRun = `
	INSERT INTO foggy_runs (sim_id, walk_setup, walk_type, walker_dist, walkers, variation,
		visit_value, walker_factor, variation_factor, steps_factor, steps, time_points, transient,
		graph_name, graph_type, directed, nodes, edges, capacity, capacity_factor, seed, workers,
		dispatch, started_at, finished_at, dropped_total, remaining)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
		$19, $20, $21, $22, $23, $24, $25, $26, $27)
`

const insertNode = `
	INSERT INTO foggy_nodes (sim_id, node_id, degree, in_degree, out_degree, mean_activity,
		std_activity, internal_std, external_std, capacity, mean_rejected, std_rejected, total_rejected)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`

// SaveRun inserts the run and its nodes in one batch.
func (s *PGStore) SaveRun(ctx context.Context, run RunRecord, nodes []NodeRecord) error {
	batch := &pgx.Batch{}
	batch.Queue(insertRun,
		run.SimID, run.WalkSetup, run.WalkType, run.WalkerDist, run.Walkers, run.Variation,
		run.VisitValue, run.WalkerFactor, run.VariationFactor, run.StepsFactor, run.Steps,
		run.TimePoints, run.Transient, run.GraphName, run.GraphType, run.Directed, run.Nodes,
		run.Edges, nullString(run.Capacity), nullFloat(run.Capacity != "", run.CapacityFactor),
		fmt.Sprint(run.Seed), run.Workers, run.Dispatch, run.StartedAt, run.FinishedAt,
		run.DroppedTotal, run.Remaining,
	)
	for _, n := range nodes {
		batch.Queue(insertNode,
			run.SimID, n.NodeID, n.Degree, n.InDegree, n.OutDegree, n.MeanActivity,
			n.StdActivity, n.InternalStd, n.ExternalStd, nullFloat(run.Capacity != "", n.Capacity),
			n.MeanRejected, n.StdRejected, n.TotalRejected,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	var err error
	for i := 0; i < batch.Len() && err == nil; i++ {
		_, err = results.Exec()
	}
	if cerr := results.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		s.metrics.RecordResults("postgres", 0, err)
		return fmt.Errorf("failed to save run %s: %w", run.SimID, err)
	}
	s.metrics.RecordResults("postgres", 0, nil)
	return nil
}

// Ping checks database connectivity.
func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullFloat(valid bool, v float64) *float64 {
	if !valid {
		return nil
	}
	return &v
}
