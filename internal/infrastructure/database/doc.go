// Package database provides SQLite connectivity for rulewalk.
//
// The database holds three things:
//   - the local rule registry (rules, rule_tags, rule_runs) used by the
//     "local" registry backend
//   - the walk audit trail (audit_logs)
//   - schema_migrations bookkeeping
//
// All queries use parameterised statements. The database file is created
// with 0600 permissions.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive-only; files are embedded by the migrations
// package and applied in version order.
package database
