// Package gormstore provides livechat repository implementations on top of GORM.
//
// It is an alternative to the relica adapter for deployments that already
// run GORM against PostgreSQL. The schema is created with GORM AutoMigrate
// and is compatible with the tables from livechat.ApplyMigrations.
//
// Example usage:
//
//	db, err := gormstore.OpenPostgres(dsn)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	repos, err := gormstore.NewRepositories(db)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store, err := livechat.NewMessageStore(
//	    livechat.WithMessageRepository(repos.Message),
//	    livechat.WithDeviceTokenRepository(repos.DeviceToken),
//	)
package gormstore
