// Package postgres provides a GORM-backed PostgreSQL session store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/DTPriya20/click-gait/internal/store"
	"github.com/DTPriya20/click-gait/pkg/models"
)

// SessionRecord is one persisted session.
type SessionRecord struct {
	SessionKey     string `gorm:"primaryKey;type:text"`
	State          string `gorm:"type:text;not null"`
	UpdatedAtEpoch int64  `gorm:"index:idx_gait_sessions_updated;not null"`
}

func (SessionRecord) TableName() string { return "gait_sessions" }

// Config holds database configuration.
type Config struct {
	DSN      string          // PostgreSQL connection string
	MaxConns int             // Maximum number of open connections (default: 4)
	TTL      time.Duration   // Sessions untouched for longer are ignored; 0 keeps them forever
	LogLevel logger.LogLevel // GORM log level (logger.Silent for production)
}

// Store persists session states through GORM.
type Store struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewStore connects, configures the pool and runs migrations.
func NewStore(cfg Config) (*Store, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger:      logger.Default.LogMode(cfg.LogLevel),
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, ttl: cfg.TTL, now: time.Now}, nil
}

// runMigrations applies the schema with gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "001_gait_sessions",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&SessionRecord{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("gait_sessions")
			},
		},
	})
	return m.Migrate()
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, key string) (*models.SessionState, error) {
	var rec SessionRecord
	err := s.db.WithContext(ctx).
		Where("session_key = ? AND updated_at_epoch >= ?", key, s.cutoff()).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return store.DecodeStateJSON([]byte(rec.State))
}

// Put implements store.Store.
func (s *Store) Put(ctx context.Context, key string, state *models.SessionState) error {
	data, err := store.EncodeStateJSON(state)
	if err != nil {
		return err
	}
	rec := SessionRecord{
		SessionKey:     key,
		State:          string(data),
		UpdatedAtEpoch: s.now().UnixMilli(),
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"state", "updated_at_epoch"}),
		}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).
		Where("session_key = ?", key).
		Delete(&SessionRecord{}).Error
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpired deletes sessions older than the TTL and returns the count.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Where("updated_at_epoch < ?", s.cutoff()).
		Delete(&SessionRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) cutoff() int64 {
	if s.ttl <= 0 {
		return 0
	}
	return s.now().Add(-s.ttl).UnixMilli()
}
