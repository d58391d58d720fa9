package store

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
)

// insertBatchSize rows go into each pipelined insert during population.
const insertBatchSize = 1000

// minReadyRows is the row count below which an existing table gets topped
// up instead of being accepted as-is.
const minReadyRows = 1000

// StatusFunc receives human-readable progress lines during setup.
type StatusFunc func(format string, args ...interface{})

// SetupOptions control schema creation and population.
type SetupOptions struct {
	InitialRecords int        // rows the table should hold before a run
	PayloadSize    int        // bytes of random blob per row
	Recreate       bool       // drop an existing table first
	Status         StatusFunc // optional progress output
}

// Setup brings the vehicle table into a runnable state. A missing table is
// created and populated; an existing one is dropped first when Recreate is
// set, topped up when it holds fewer than minReadyRows rows, and otherwise
// left alone.
func (s *Store) Setup(ctx context.Context, opts SetupOptions) error {
	status := opts.Status
	if status == nil {
		status = func(string, ...interface{}) {}
	}
	if opts.PayloadSize <= 0 {
		opts.PayloadSize = 1024
	}

	exists, err := s.tableExists(ctx)
	if err != nil {
		return fmt.Errorf("check table %q: %w", s.table, err)
	}

	if exists && opts.Recreate {
		status("Dropping existing table %q...", s.table)
		if err := s.exec(ctx, "DROP TABLE "+s.table); err != nil {
			return fmt.Errorf("drop table %q: %w", s.table, err)
		}
		exists = false
	}

	if !exists {
		status("Creating table %q...", s.table)
		if err := s.createTable(ctx); err != nil {
			return err
		}
		return s.populate(ctx, opts, status)
	}

	count, err := s.rowCount(ctx)
	if err != nil {
		return fmt.Errorf("count rows in %q: %w", s.table, err)
	}
	if count < minReadyRows {
		status("Adding more test data (current: %d rows)...", count)
		return s.populate(ctx, opts, status)
	}
	status("Table %q ready (%d records)", s.table, count)
	return nil
}

func (s *Store) createTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE %s (
		vin VARCHAR(17) PRIMARY KEY,
		brand VARCHAR(50) NOT NULL,
		country CHAR(2) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		entries_compressed BYTEA NOT NULL,
		is_fleet_vehicle BOOLEAN DEFAULT false
	)`, s.table)
	if err := s.exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table %q: %w", s.table, err)
	}

	for _, col := range []string{"brand", "country"} {
		idx := fmt.Sprintf("CREATE INDEX idx_%s_%s ON %s(%s)", s.table, col, s.table, col)
		if err := s.exec(ctx, idx); err != nil {
			return fmt.Errorf("create %s index on %q: %w", col, s.table, err)
		}
	}
	return nil
}

// populate inserts generated vehicles until the table holds
// opts.InitialRecords rows. VIN collisions are skipped via ON CONFLICT, so
// the final count can land slightly under the target.
func (s *Store) populate(ctx context.Context, opts SetupOptions, status StatusFunc) error {
	count, err := s.rowCount(ctx)
	if err != nil {
		return fmt.Errorf("count rows in %q: %w", s.table, err)
	}
	needed := opts.InitialRecords - count
	if needed <= 0 {
		return nil
	}
	status("Generating %d vehicle records...", needed)

	insertSQL := fmt.Sprintf(`INSERT INTO %s
		(vin, brand, country, entries_compressed, is_fleet_vehicle, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (vin) DO NOTHING`, s.table)

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	for done := 0; done < needed; done += insertBatchSize {
		n := insertBatchSize
		if rest := needed - done; rest < n {
			n = rest
		}

		batch := &pgx.Batch{}
		for j := 0; j < n; j++ {
			v := randomVehicle(rnd, count+done+j)
			// Each queued row needs its own buffer; the batch holds all
			// of them until it is sent.
			payload := make([]byte, opts.PayloadSize)
			_, _ = rnd.Read(payload)
			batch.Queue(insertSQL, v.VIN, v.Brand, v.Country, payload, v.Fleet)
		}

		if err := s.sendBatch(ctx, batch); err != nil {
			return fmt.Errorf("insert batch at row %d: %w", count+done, err)
		}
	}

	final, err := s.rowCount(ctx)
	if err != nil {
		return fmt.Errorf("count rows in %q: %w", s.table, err)
	}
	status("Table populated: %d total records", final)
	return nil
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	results := s.pool.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return err
		}
	}
	return results.Close()
}

func (s *Store) exec(ctx context.Context, sql string, args ...interface{}) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	_, err := s.pool.Exec(ctx, sql, args...)
	return err
}

func (s *Store) tableExists(ctx context.Context) (bool, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)",
		s.table).Scan(&exists)
	return exists, err
}

func (s *Store) rowCount(ctx context.Context) (int, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var count int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+s.table).Scan(&count)
	return count, err
}
