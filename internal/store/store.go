// Package store wraps the shared PostgreSQL database behind per-entity
// repository methods. The database is both the durable state and the implicit
// work queue: every collector discovers work through the Find* predicates and
// retires it by filling the column the predicate selects on.
package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cmdrvl/tokenscout/pkg/store"
)

// Config holds database connection configuration.
type Config struct {
	// DSN is the PostgreSQL connection string.
	DSN string

	// MaxOpenConns is the maximum number of open connections.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime.
	ConnMaxLifetime time.Duration

	// LogLevel is the gorm log level.
	LogLevel logger.LogLevel
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		LogLevel:        logger.Warn,
	}
}

// Store provides access to the shared database.
type Store struct {
	db *gorm.DB
}

// New opens a database connection and returns a Store.
//
// Returns:
//   - *Store: the connected store
//   - error: nil on success, connection error on failure
func New(cfg Config) (*Store, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(cfg.LogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Store{db: db}, nil
}

// DB returns the underlying gorm handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Migrate runs auto-migration for the given models. With no arguments it
// migrates the full record set.
func (s *Store) Migrate(models ...interface{}) error {
	if len(models) == 0 {
		models = []interface{}{
			&store.Token{},
			&store.Contract{},
			&store.TwitterUser{},
			&store.Tweet{},
			&store.OwnerTx{},
		}
	}
	return s.db.AutoMigrate(models...)
}

// Transaction runs fn inside a database transaction.
func (s *Store) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
