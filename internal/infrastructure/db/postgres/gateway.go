package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/baechuer/pension-service/internal/domain"
	"github.com/baechuer/pension-service/internal/logger"
)

var (
	dbQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pension_service",
			Name:      "db_queries_total",
			Help:      "Total number of database operations by outcome",
		},
		[]string{"outcome"}, // ok, no_rows, timeout, unavailable, unique_violation, failed
	)

	dbRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pension_service",
			Name:      "db_retries_total",
			Help:      "Total number of retried database operations",
		},
	)

	dbQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pension_service",
			Name:      "db_query_duration_seconds",
			Help:      "Database operation duration in seconds, retries included",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)
)

const maxBackoff = 5 * time.Second

// Opener returns a fresh, connected pool. The gateway calls it at startup and
// again whenever a transient failure forces the pool to be recreated.
type Opener func(ctx context.Context) (*sql.DB, error)

type PoolConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// PgxOpener opens a database/sql pool on the pgx driver and pings it.
func PgxOpener(pc PoolConfig) Opener {
	return func(ctx context.Context) (*sql.DB, error) {
		if pc.DSN == "" {
			return nil, fmt.Errorf("empty DB DSN")
		}
		db, err := sql.Open("pgx", pc.DSN)
		if err != nil {
			return nil, err
		}

		db.SetMaxOpenConns(pc.MaxOpenConns)
		db.SetMaxIdleConns(pc.MaxIdleConns)
		idle, life := pc.ConnMaxIdleTime, pc.ConnMaxLifetime
		if idle == 0 {
			idle = 5 * time.Minute
		}
		if life == 0 {
			life = 60 * time.Minute
		}
		db.SetConnMaxIdleTime(idle)
		db.SetConnMaxLifetime(life)

		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}
}

type Options struct {
	ConnectTimeout     time.Duration
	QueryTimeout       time.Duration
	MaxRetries         int
	RetryBackoff       time.Duration
	SlowQueryThreshold time.Duration
}

func (o *Options) withDefaults() {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 5 * time.Second
	}
	if o.QueryTimeout <= 0 {
		o.QueryTimeout = 10 * time.Second
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 200 * time.Millisecond
	}
	if o.SlowQueryThreshold <= 0 {
		o.SlowQueryThreshold = time.Second
	}
}

// Stats is a snapshot of pool utilization and cumulative query counters.
type Stats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDuration       time.Duration

	Queries     int64
	Errors      int64
	Retries     int64
	Reconnects  int64
	SlowQueries int64
}

// Gateway owns the connection pool. Every repository receives it explicitly.
// All failures it returns are *domain.Error values with db_* codes, except
// sql.ErrNoRows which passes through untouched.
type Gateway struct {
	open Opener
	opts Options
	log  zerolog.Logger

	mu     sync.RWMutex
	db     *sql.DB
	gen    uint64
	closed bool

	queries     atomic.Int64
	errors      atomic.Int64
	retries     atomic.Int64
	reconnects  atomic.Int64
	slowQueries atomic.Int64
}

// New opens the initial pool and fails fast if the database is unreachable.
func New(ctx context.Context, open Opener, opts Options) (*Gateway, error) {
	opts.withDefaults()
	g := &Gateway{
		open: open,
		opts: opts,
		log:  logger.Component("db_gateway"),
	}

	cctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	db, err := open(cctx)
	if err != nil {
		return nil, domain.ErrDBUnavailable(err)
	}
	g.db = db
	return g, nil
}

func (g *Gateway) current() (*sql.DB, uint64, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return nil, g.gen, errors.New("sql: database is closed")
	}
	return g.db, g.gen, nil
}

// reconnect replaces the pool that failed at generation failedGen. When
// several callers observe the same failure only the first one reopens.
func (g *Gateway) reconnect(ctx context.Context, failedGen uint64) {
	g.mu.Lock()
	if g.closed || g.gen != failedGen {
		g.mu.Unlock()
		return
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.opts.ConnectTimeout)
	db, err := g.open(cctx)
	cancel()
	if err != nil {
		g.mu.Unlock()
		g.log.Warn().Err(err).Uint64("generation", failedGen).Msg("pool recreation failed")
		return
	}

	old := g.db
	g.db = db
	g.gen++
	gen := g.gen
	g.mu.Unlock()

	g.reconnects.Add(1)
	g.log.Info().Uint64("generation", gen).Msg("connection pool recreated")

	// Close waits for in-flight queries on the old pool, so never under the lock.
	if old != nil {
		if err := old.Close(); err != nil {
			g.log.Debug().Err(err).Msg("closing previous pool")
		}
	}
}

// retry runs fn against the current pool, retrying transient failures with
// exponential backoff and a fresh pool between attempts.
func (g *Gateway) retry(ctx context.Context, fn func(db *sql.DB) error) error {
	backoff := g.opts.RetryBackoff
	for attempt := 0; ; attempt++ {
		db, gen, err := g.current()
		if err == nil {
			err = fn(db)
		}
		if err == nil || errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if ctx.Err() != nil || attempt >= g.opts.MaxRetries || !IsTransient(err) {
			return err
		}
		if g.isClosed() {
			return err
		}

		g.retries.Add(1)
		dbRetriesTotal.Inc()
		g.log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_retries", g.opts.MaxRetries).
			Dur("backoff", backoff).
			Msg("transient database error, retrying")

		g.reconnect(ctx, gen)

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (g *Gateway) isClosed() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.closed
}

func (g *Gateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, g.opts.QueryTimeout)
}

// Exec runs a statement and returns the number of affected rows.
func (g *Gateway) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	start := time.Now()
	qctx, cancel := g.withTimeout(ctx)
	defer cancel()

	var n int64
	err := g.retry(qctx, func(db *sql.DB) error {
		res, err := db.ExecContext(qctx, query, args...)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, g.finish(qctx, query, start, err)
}

// Query runs query and hands the rows to scan. The gateway always closes the
// rows. scan may run again after a transient failure and must reset whatever
// it accumulates.
func (g *Gateway) Query(ctx context.Context, query string, args []any, scan func(*sql.Rows) error) error {
	start := time.Now()
	qctx, cancel := g.withTimeout(ctx)
	defer cancel()

	err := g.retry(qctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(qctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		if err := scan(rows); err != nil {
			return err
		}
		return rows.Err()
	})
	return g.finish(qctx, query, start, err)
}

// QueryRow scans a single row into dest. sql.ErrNoRows is returned as is.
func (g *Gateway) QueryRow(ctx context.Context, query string, args []any, dest ...any) error {
	start := time.Now()
	qctx, cancel := g.withTimeout(ctx)
	defer cancel()

	err := g.retry(qctx, func(db *sql.DB) error {
		return db.QueryRowContext(qctx, query, args...).Scan(dest...)
	})
	return g.finish(qctx, query, start, err)
}

// WithTx begins a transaction, runs fn and commits. It rolls back when fn
// returns an error or panics. fn must use the context it is given, which
// carries the query timeout. Only BeginTx is retried; once statements have
// run inside the transaction a failure is final.
func (g *Gateway) WithTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx *sql.Tx) error) error {
	start := time.Now()
	qctx, cancel := g.withTimeout(ctx)
	defer cancel()

	var tx *sql.Tx
	if err := g.retry(qctx, func(db *sql.DB) error {
		var berr error
		tx, berr = db.BeginTx(qctx, opts)
		return berr
	}); err != nil {
		return g.finish(qctx, "BEGIN", start, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(qctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			g.log.Warn().Err(rbErr).Msg("rollback failed")
		}
		return g.finish(qctx, "TX", start, err)
	}
	if err := tx.Commit(); err != nil {
		return g.finish(qctx, "COMMIT", start, fmt.Errorf("commit tx: %w", err))
	}
	return g.finish(qctx, "TX", start, nil)
}

// Ping is the liveness check used by /health.
func (g *Gateway) Ping(ctx context.Context) error {
	var one int
	return g.QueryRow(ctx, "SELECT 1", nil, &one)
}

func (g *Gateway) Stats() Stats {
	s := Stats{
		Queries:     g.queries.Load(),
		Errors:      g.errors.Load(),
		Retries:     g.retries.Load(),
		Reconnects:  g.reconnects.Load(),
		SlowQueries: g.slowQueries.Load(),
	}
	db, _, err := g.current()
	if err != nil || db == nil {
		return s
	}
	ps := db.Stats()
	s.MaxOpenConnections = ps.MaxOpenConnections
	s.OpenConnections = ps.OpenConnections
	s.InUse = ps.InUse
	s.Idle = ps.Idle
	s.WaitCount = ps.WaitCount
	s.WaitDuration = ps.WaitDuration
	return s
}

func (g *Gateway) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	db := g.db
	g.mu.Unlock()

	if db == nil {
		return nil
	}
	return db.Close()
}

// finish records metrics, logs slow and failed operations and classifies err.
func (g *Gateway) finish(ctx context.Context, query string, start time.Time, err error) error {
	elapsed := time.Since(start)
	g.queries.Add(1)
	dbQueryDuration.Observe(elapsed.Seconds())

	if elapsed >= g.opts.SlowQueryThreshold {
		g.slowQueries.Add(1)
		g.log.Warn().
			Str("query", summarize(query)).
			Int64("duration_ms", elapsed.Milliseconds()).
			Msg("slow query")
	}

	out := g.classify(ctx, err)
	dbQueriesTotal.WithLabelValues(outcome(out)).Inc()

	var de *domain.Error
	if out != nil && !errors.Is(out, sql.ErrNoRows) && errors.As(out, &de) && strings.HasPrefix(de.Code, "db_") {
		g.errors.Add(1)
		ev := g.log.Warn()
		if de.Kind == domain.KindInternal {
			ev = g.log.Error()
		}
		ev.Err(err).
			Str("code", de.Code).
			Str("sqlstate", SQLState(err)).
			Str("query", summarize(query)).
			Int64("duration_ms", elapsed.Milliseconds()).
			Msg("database operation failed")
	}
	return out
}

func (g *Gateway) classify(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return err
	}
	// Errors produced by callers inside a transaction are already classified.
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}

	switch {
	case isTimeout(ctx, err):
		return domain.ErrDBTimeout(err)
	case SQLState(err) == "23505":
		return domain.ErrDBUniqueViolation(err)
	case IsTransient(err):
		return domain.ErrDBUnavailable(err)
	default:
		return domain.ErrDBQueryFailed(err)
	}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if ctx.Err() != nil {
		return true
	}
	return pgconn.Timeout(err)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, sql.ErrNoRows):
		return "no_rows"
	case domain.Is(err, "db_timeout"):
		return "timeout"
	case domain.Is(err, "db_unavailable"):
		return "unavailable"
	case domain.Is(err, "db_unique_violation"):
		return "unique_violation"
	case domain.Is(err, "db_query_failed"):
		return "failed"
	default:
		return "rejected"
	}
}

// IsTransient reports whether err is a connection-level failure worth
// retrying on a fresh pool.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	if strings.Contains(err.Error(), "sql: database is closed") {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"): // connection exception
			return true
		case pgErr.Code == "57P01", pgErr.Code == "57P02", pgErr.Code == "57P03":
			return true
		}
		return false
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// SQLState returns the Postgres error code carried by err, or "".
func SQLState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// ConstraintName returns the violated constraint carried by err, or "".
func ConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

func summarize(query string) string {
	q := strings.Join(strings.Fields(query), " ")
	if len(q) > 120 {
		q = q[:120] + "..."
	}
	return q
}
