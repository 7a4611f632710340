// Package database opens the node's SQLite journal.
//
// The journal holds the GPIO pin requests and OTA requests received over
// the control topic. It is small, local and written by a single process,
// so the connection pool is limited to one connection and WAL mode is
// optional.
//
// Schema files live in the top-level migrations package, which registers
// them via MigrationsFS on import:
//
//	import _ "github.com/nerrad567/gray-logic-node/migrations"
//
//	db, err := database.Open(cfg)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
