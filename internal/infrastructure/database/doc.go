// Package database opens the SQLite file that backs the client's local
// storage and keeps its schema current.
//
// The schema is a single key/value table owned by the credential store.
// Removing the file is the same as clearing browser storage: the next start
// recreates it empty and the user is signed out.
//
//	db, err := database.Open(cfg.Storage)
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//
//	if _, err := db.Migrate(ctx, migrations.FS); err != nil {
//		return err
//	}
package database
