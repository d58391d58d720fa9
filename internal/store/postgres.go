package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgchurn/pgchurn/internal/config"
	"github.com/pgchurn/pgchurn/internal/runner"
)

// minIdleConns is the warm floor kept under the pool so the first wave of
// workers does not pay connection setup cost.
const minIdleConns = 5

// connectTimeout bounds the initial ping.
const connectTimeout = 15 * time.Second

// Store runs churn statements against one PostgreSQL table through a shared
// connection pool. All methods are safe for concurrent use.
type Store struct {
	pool         *pgxpool.Pool
	table        string
	queryTimeout time.Duration

	sampleSQL string
	readSQL   string
	writeSQL  string
}

// ConnString builds a postgres URL from the connection settings. The
// credentials go through url.UserPassword so special characters survive.
func ConnString(cfg *config.Config) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Database,
	}
	if cfg.Username != "" {
		u.User = url.User(cfg.Username)
		if cfg.Password != "" {
			u.User = url.UserPassword(cfg.Username, cfg.Password)
		}
	}
	if cfg.SSLMode != "" {
		q := url.Values{}
		q.Set("sslmode", cfg.SSLMode)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// Connect opens a connection pool and verifies it with a ping. The pool is
// sized MaxConns = cfg.PoolSize with a small idle floor.
func Connect(ctx context.Context, cfg *config.Config) (*Store, error) {
	if !config.ValidTableName(cfg.Table) {
		return nil, fmt.Errorf("table %q is not a valid identifier", cfg.Table)
	}

	poolCfg, err := pgxpool.ParseConfig(ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.PoolSize)
	poolCfg.MinConns = minIdleConns
	if poolCfg.MinConns > poolCfg.MaxConns {
		poolCfg.MinConns = poolCfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to %s/%s: %w",
			net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)), cfg.Database, err)
	}

	return &Store{
		pool:         pool,
		table:        cfg.Table,
		queryTimeout: cfg.QueryTimeout,
		sampleSQL:    fmt.Sprintf("SELECT vin FROM %s ORDER BY RANDOM() LIMIT 1", cfg.Table),
		readSQL:      fmt.Sprintf("SELECT vin, entries_compressed, brand FROM %s WHERE vin = $1", cfg.Table),
		writeSQL:     fmt.Sprintf("UPDATE %s SET entries_compressed = $1, updated_at = NOW() WHERE vin = $2", cfg.Table),
	}, nil
}

// Table returns the table name this store operates on.
func (s *Store) Table() string {
	return s.table
}

// PoolStat returns a snapshot of the connection pool counters.
func (s *Store) PoolStat() *pgxpool.Stat {
	return s.pool.Stat()
}

// Close releases all pooled connections.
func (s *Store) Close() {
	s.pool.Close()
}

// opContext bounds one statement, standing in for a server-side statement
// timeout.
func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

// RandomKey samples one VIN uniformly at random. ORDER BY RANDOM() scans
// the table; that cost is part of the workload being measured.
//
// Errors other than an empty table come back unwrapped so the metrics
// layer sees the concrete pgx error type.
func (s *Store) RandomKey(ctx context.Context) (string, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var vin string
	err := s.pool.QueryRow(ctx, s.sampleSQL).Scan(&vin)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", &runner.NoKeysError{Table: s.table}
	}
	if err != nil {
		return "", err
	}
	return vin, nil
}

// Read fetches the record for key.
func (s *Store) Read(ctx context.Context, key string) (*runner.Record, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rec := &runner.Record{}
	err := s.pool.QueryRow(ctx, s.readSQL, key).Scan(&rec.Key, &rec.Payload, &rec.Brand)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &runner.KeyVanishedError{Key: key}
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Write replaces the record's payload and bumps updated_at. The affected
// row count is deliberately not checked: a row deleted between read and
// write makes the UPDATE a no-op, which is just another lost-update race.
func (s *Store) Write(ctx context.Context, key string, payload []byte) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.pool.Exec(ctx, s.writeSQL, payload, key)
	return err
}
