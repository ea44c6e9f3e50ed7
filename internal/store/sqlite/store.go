// Package sqlite provides a SQLite-backed session store.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver registered as "sqlite"

	"github.com/DTPriya20/click-gait/internal/store"
	"github.com/DTPriya20/click-gait/pkg/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Config holds database configuration.
type Config struct {
	Path     string        // Path to SQLite database file
	MaxConns int           // Maximum number of open connections (default: 4)
	TTL      time.Duration // Sessions untouched for longer are ignored and purged; 0 keeps them forever
}

// Store persists session states in a single table keyed by session key.
type Store struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewStore opens the database, applies pragmas and runs migrations.
func NewStore(cfg Config) (*Store, error) {
	// busy_timeout is per connection, so it goes in the DSN rather than an Exec.
	dsn := cfg.Path + "?_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, ttl: cfg.TTL, now: time.Now}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// m is not closed: closing it would close db.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	version, _, err := m.Version()
	if err == nil {
		log.Debug().Uint("version", version).Msg("SQLite session schema ready")
	}
	return nil
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, key string) (*models.SessionState, error) {
	const query = `SELECT state FROM sessions WHERE session_key = ? AND updated_at_epoch >= ? LIMIT 1`

	var data []byte
	err := s.db.QueryRowContext(ctx, query, key, s.cutoff()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return store.DecodeStateJSON(data)
}

// Put implements store.Store.
func (s *Store) Put(ctx context.Context, key string, state *models.SessionState) error {
	data, err := store.EncodeStateJSON(state)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO sessions (session_key, state, updated_at_epoch)
		VALUES (?, ?, ?)
		ON CONFLICT(session_key) DO UPDATE SET
			state = excluded.state,
			updated_at_epoch = excluded.updated_at_epoch
	`
	if _, err := s.db.ExecContext(ctx, query, key, string(data), s.now().UnixMilli()); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM sessions WHERE session_key = ?`
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpired deletes sessions older than the TTL and returns the count.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	const query = `DELETE FROM sessions WHERE updated_at_epoch < ?`
	res, err := s.db.ExecContext(ctx, query, s.cutoff())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// cutoff is the oldest live updated_at_epoch, in milliseconds.
func (s *Store) cutoff() int64 {
	if s.ttl <= 0 {
		return 0
	}
	return s.now().Add(-s.ttl).UnixMilli()
}
