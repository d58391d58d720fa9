// Package store implements the PostgreSQL vehicle store that churn runs
// hammer.
//
// The store package owns everything that touches the database: the pgx
// connection pool, the three statements of one read-modify-write attempt,
// and the schema setup that creates and populates the vehicle table.
//
// # Connecting
//
// [Connect] builds a pool from the connection settings and verifies it with
// a ping before returning:
//
//	st, err := store.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer st.Close()
//
// A failed ping is a setup failure; nothing retries it.
//
// # Attempt Statements
//
// [Store.RandomKey], [Store.Read] and [Store.Write] implement
// [runner.Store]. Each statement runs under its own timeout derived from
// the configured query timeout. Errors come back unwrapped so the metrics
// layer can bucket them by concrete type and SQLSTATE.
//
// # Setup
//
// [Store.Setup] creates the vehicle table when it does not exist and
// populates it in batched inserts up to the configured row count. Existing
// tables with a reasonable row count are left untouched, so repeated runs
// against the same database skip the expensive population step.
package store
