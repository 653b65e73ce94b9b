// Package audit provides PostgreSQL-backed storage for moderation events.
// Chat text itself is ephemeral and never persisted; the audit trail records
// only enforcement actions (warnings, shadowing, room closures) with a short
// excerpt for moderator review.
package audit

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Actions recorded in the audit trail.
const (
	ActionShadowed      = "shadowed"
	ActionWarned        = "warned"
	ActionRoomClosed    = "room_closed"
	ActionShadowLimited = "shadow_limited"
)

// maxExcerptLen bounds how much message text is retained per event.
const maxExcerptLen = 120

// Event is a single enforcement action to be persisted.
type Event struct {
	UserID   string
	RoomKind string // "community" or "private"
	Category string // classifier category at the time of the action
	Action   string
	Excerpt  string
}

// Store manages moderation events in PostgreSQL. A nil Store drops all
// events, so the gateway can run without a database configured.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL with the given DSN, runs pending migrations,
// and returns a ready store.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: ping: %w", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// runMigrations applies the embedded migrations to the connected database.
func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("audit: migration source: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("audit: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("audit: migrate init: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("audit: migrate up: %w", err)
	}
	return nil
}

// Record inserts a moderation event. It is best effort: failures are logged
// and swallowed so that a database outage never blocks the chat path.
// Callers on the hot path should invoke it from a goroutine.
func (s *Store) Record(ctx context.Context, ev Event) {
	if s == nil {
		return
	}

	const query = `
		INSERT INTO moderation_events (user_id, room_kind, category, action, excerpt)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := s.db.ExecContext(ctx, query,
		ev.UserID, ev.RoomKind, ev.Category, ev.Action, truncateExcerpt(ev.Excerpt),
	); err != nil {
		log.Printf("[audit] insert event user=%s action=%s: %v", ev.UserID, ev.Action, err)
	}
}

// truncateExcerpt bounds the retained message text to maxExcerptLen bytes.
func truncateExcerpt(text string) string {
	if len(text) > maxExcerptLen {
		return text[:maxExcerptLen]
	}
	return text
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}
