// Package migration applies versioned SQL migrations to SQLite databases.
//
// Migrations are read from an fs.FS, usually an embedded directory, and must
// be named {version}_{description}.sql (for example "001_polls.sql").
// Versions must form a contiguous sequence. Each migration runs inside a
// transaction and is recorded in the schema_migrations table together with a
// sha256 checksum of its contents; a recorded migration whose file contents
// later change is reported as ErrChecksumMismatch instead of being re-run.
//
// Example usage:
//
//	db, err := migration.Open(migration.DefaultSQLiteConfig("scheduler.db"))
//	manager := migration.NewManager(migration.NewFSScanner(files, "migrations"), migration.NewSQLiteExecutor(db), logger)
//	if _, err := manager.Run(ctx); err != nil {
//		return err
//	}
package migration
