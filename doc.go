// Package livechat provides the core of a real-time chat service: durable
// message storage, in-memory fan-out to live subscribers and best-effort push
// notifications to offline devices.
//
// Works both as a library for embedding in your application AND as a standalone
// server with REST API and WebSocket live feed (cmd/chat-server).
//
// # Features
//
//   - Durable, append-only message log with store-assigned IDs and timestamps
//   - Live fan-out with per-subscriber bounded queues (drop-oldest, never blocks)
//   - Push fan-out to every registered device with bounded concurrency and retry
//   - Client session with backfill, de-duplication and ordered local view
//   - Options Pattern for service configuration
//   - Pluggable architecture: bring your own Logger, EventObserver, PushProvider
//   - Multi-Database Support: MySQL, PostgreSQL, SQLite via Relica adapters, PostgreSQL via GORM
//   - Embedded Migrations for easy database setup
//
// # Quick Start
//
// Apply the schema and create the repositories:
//
//	db, _ := sql.Open("sqlite3", "chat.db")
//	if err := livechat.ApplyMigrations(ctx, db, "sqlite3"); err != nil {
//	    log.Fatal(err)
//	}
//	repos := relica.NewRepositories(db, "sqlite3")
//
// Wire the services:
//
//	store, _ := livechat.NewMessageStore(
//	    livechat.WithMessageRepository(repos.Message),
//	    livechat.WithDeviceTokenRepository(repos.DeviceToken),
//	)
//	hub, _ := livechat.NewSubscriptionHub()
//	gateway, _ := livechat.NewChatGateway(
//	    livechat.WithStore(store),
//	    livechat.WithHub(hub),
//	)
//
// Follow the conversation:
//
//	session, _ := livechat.NewClientSession(gateway)
//	if err := session.Initialize(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Cleanup()
//
//	_, err := session.SendMessage(ctx, "Alice", "hello")
//	for msg := range session.Updates() {
//	    fmt.Printf("%s: %s\n", msg.Nickname, msg.Text)
//	}
//
// # Message Flow
//
//  1. POST
//     ChatGateway.PostMessage → MessageStore.Append (validate, stamp, persist)
//
//  2. LIVE
//     → SubscriptionHub.Broadcast → one bounded queue per live subscriber
//
//  3. PUSH (background, best effort)
//     → PushFanoutService.NotifyAll → every registered device token
//
// A message that fails validation or persistence is never broadcast or pushed.
// A push failure never fails the post.
//
// # Ordering
//
// Appends and broadcasts happen under one lock, so every subscriber receives
// messages in storage order. CreatedUTC never goes backwards relative to ID.
// A subscriber that falls more than a full queue behind loses its oldest
// pending messages rather than slowing down the publisher.
//
// # Database Schema
//
//	livechat_message       - Chat messages (id, nickname, text, created_utc)
//	livechat_device_token  - Push device tokens (id, token, platform, created_at)
package livechat
