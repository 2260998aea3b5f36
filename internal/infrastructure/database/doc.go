// Package database provides SQLite database connectivity for the Gray Logic Shelly service.
//
// The database holds the lifecycle journal only. The device registry itself
// is never persisted and is rebuilt from CoIoT traffic on every start.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations (additive-only)
//   - A single pooled connection and lifecycle management
//   - STRICT mode enforcement for type safety
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Performance Characteristics:
//   - WAL mode allows concurrent reads during writes
//   - Busy timeout prevents lock contention errors
//   - Connection pooling reduces overhead
//
// Usage:
//
//	db, err := database.Open(database.ConfigFrom(cfg.Database))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	applied, err := db.Migrate(ctx)
//	if err != nil {
//	    return err
//	}
//
// Migration Strategy:
//
// Migrations are forward-only *.up.sql files embedded by the migrations
// package. The journal is disposable history, so a bad schema is fixed by
// a new migration rather than a rollback:
//   - New columns must be NULLABLE or have DEFAULT values
//   - Never DROP or RENAME columns
package database
