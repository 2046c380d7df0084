package sink

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

// PostgresConfig configures the Postgres-backed sink.
type PostgresConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
	MinConns int
	MaxConns int

	BatchSize     int
	FlushInterval time.Duration
	BufferSize    int
}

// DefaultPostgresConfig returns sensible defaults for the batching knobs.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		Port:          5432,
		SSLMode:       "prefer",
		MinConns:      2,
		MaxConns:      10,
		BatchSize:     1000,
		FlushInterval: time.Second,
		BufferSize:    10000,
	}
}

// ConnString builds a pgx connection string.
func (c PostgresConfig) ConnString() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Name, c.User, c.Password, c.SSLMode,
	)
}

// Connect creates and pings a connection pool.
func Connect(ctx context.Context, cfg PostgresConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// PostgresSink batches rows per table and flushes them to Postgres on a
// size or interval trigger. Append never touches the database.
type PostgresSink struct {
	cfg    PostgresConfig
	db     *pgxpool.Pool
	logger *slog.Logger

	input *Buffer[Row]

	cancel context.CancelFunc
	group  *errgroup.Group

	metricsMu sync.Mutex
	metrics   PostgresMetrics
}

// PostgresMetrics counts sink activity.
type PostgresMetrics struct {
	RowsWritten    int64
	BatchesFlushed int64
	WriteErrors    int64
}

// NewPostgresSink creates a PostgresSink over an existing pool.
func NewPostgresSink(cfg PostgresConfig, db *pgxpool.Pool, logger *slog.Logger) *PostgresSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresSink{
		cfg:    cfg,
		db:     db,
		logger: logger,
		input:  NewBuffer[Row](cfg.BufferSize),
	}
}

// Append queues the row for the writer goroutine.
func (s *PostgresSink) Append(row Row) {
	s.input.Push(row)
}

// Start launches the writer goroutine.
func (s *PostgresSink) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	s.group, ctx = errgroup.WithContext(ctx)

	s.group.Go(func() error {
		return s.writeLoop(ctx)
	})

	s.logger.Info("postgres sink started",
		"batch_size", s.cfg.BatchSize,
		"flush_interval", s.cfg.FlushInterval,
	)
	return nil
}

// Stop flushes remaining rows and shuts the writer down.
func (s *PostgresSink) Stop(ctx context.Context) error {
	s.logger.Info("stopping postgres sink")

	if s.cancel != nil {
		s.cancel()
	}
	s.input.Close()

	done := make(chan struct{})
	go func() {
		s.group.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("postgres sink stop timed out")
	}

	// Final drain
	s.flush(context.Background(), s.input.Drain(0))
	return nil
}

// Stats returns a copy of the current counters.
func (s *PostgresSink) Stats() PostgresMetrics {
	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()
	return s.metrics
}

// writeLoop drains the buffer on the flush interval and writes batches.
func (s *PostgresSink) writeLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for {
				rows := s.input.Drain(s.cfg.BatchSize)
				if len(rows) == 0 {
					break
				}
				s.flush(ctx, rows)
				if len(rows) < s.cfg.BatchSize {
					break
				}
			}
		}
	}
}

// flush groups rows by table and writes one batch per table.
func (s *PostgresSink) flush(ctx context.Context, rows []Row) {
	if len(rows) == 0 {
		return
	}

	byTable := make(map[string][]Row)
	for _, r := range rows {
		byTable[r.Table()] = append(byTable[r.Table()], r)
	}

	batch := &pgx.Batch{}
	for table, tableRows := range byTable {
		stmt := insertStatement(table, tableRows[0].Columns())
		for _, r := range tableRows {
			batch.Queue(stmt, r.Values()...)
		}
	}

	results := s.db.SendBatch(ctx, batch)
	var written, failed int64
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			failed++
			s.logger.Warn("batch insert failed", "error", err)
		} else {
			written++
		}
	}
	results.Close()

	s.metricsMu.Lock()
	s.metrics.RowsWritten += written
	s.metrics.WriteErrors += failed
	s.metrics.BatchesFlushed++
	s.metricsMu.Unlock()
}

// insertStatement builds "INSERT INTO t (a, b) VALUES ($1, $2)".
func insertStatement(table string, columns []string) string {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)
}
