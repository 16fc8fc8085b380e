// Package database provides the SQLite connection that holds the bridge's
// small amount of persistent state (the boot marker used for double-reset
// detection and the update history).
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    log.Fatal(err)
//	}
package database
