// Package database owns the birdhouse SQLite file.
//
// Open applies the connection pragmas (WAL, busy timeout, immediate write
// locks, and a synchronous level that defaults to FULL so outlet state
// survives a power cut mid-write). Migrate applies the SQL files embedded by
// the top-level migrations package, one transaction each, and MigrateDown
// reverts the newest. All timestamps are stored as text in TimeLayout.
//
//	db, err := database.Open(database.Config{Path: "/var/lib/birdhouse/birdhouse.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// New columns must be nullable or carry a default, so a down migration
// never has to guess at data.
package database
