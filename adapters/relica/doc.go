// Package relica stores chat messages and device tokens through the
// github.com/coregx/relica query builder, on MySQL, PostgreSQL or SQLite.
//
// This package implements the livechat persistence interfaces:
//   - MessageRepository
//   - DeviceTokenRepository
//
// The schema is created by livechat.ApplyMigrations.
//
// Example usage:
//
//	import (
//	    "database/sql"
//	    "github.com/coregx/livechat"
//	    "github.com/coregx/livechat/adapters/relica"
//	    _ "github.com/mattn/go-sqlite3"
//	)
//
//	db, err := sql.Open("sqlite3", "chat.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := livechat.ApplyMigrations(ctx, db, "sqlite3"); err != nil {
//	    log.Fatal(err)
//	}
//
//	// driverName should be "mysql", "postgres", or "sqlite3"
//	repos := relica.NewRepositories(db, "sqlite3")
//
//	store, err := livechat.NewMessageStore(
//	    livechat.WithMessageRepository(repos.Message),
//	    livechat.WithDeviceTokenRepository(repos.DeviceToken),
//	)
package relica
