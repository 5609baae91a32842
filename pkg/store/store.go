package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store persists users, rooms, participants, and the client directory.
// One implementation covers both backends; everything above the store
// talks GORM and never sees which driver is underneath.
type Store struct {
	db     *gorm.DB
	config *Config
}

// New opens the configured database, migrates the schema, and returns
// a ready Store. A nil config gets the full set of defaults, which
// means a SQLite file under the user's configuration directory.
func New(config *Config) (*Store, error) {
	if config == nil {
		config = &Config{}
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store configuration: %w", err)
	}

	dialector, err := openDialector(config)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		// GORM's default logger prints every slow query to stderr;
		// the store reports errors through its callers instead.
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap sql.DB: %w", err)
	}
	switch config.Type {
	case DatabaseTypePostgres:
		sqlDB.SetMaxOpenConns(config.Postgres.MaxOpenConns)
		sqlDB.SetMaxIdleConns(config.Postgres.MaxIdleConns)
	case DatabaseTypeSQLite:
		// SQLite allows one writer at a time, and the pure-Go driver gives
		// every pooled connection its own database for :memory: paths.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(allModels()...); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Store{db: db, config: config}, nil
}

// openDialector builds the GORM driver for the configured backend.
func openDialector(cfg *Config) (gorm.Dialector, error) {
	switch cfg.Type {
	case DatabaseTypeSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		// WAL keeps readers unblocked during writes, and the busy
		// timeout rides out short lock contention between a running
		// server and CLI commands sharing the file.
		return sqlite.Open(cfg.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"), nil

	case DatabaseTypePostgres:
		return postgres.Open(cfg.Postgres.DSN()), nil

	default:
		return nil, fmt.Errorf("unknown database type %q", cfg.Type)
	}
}

// DB exposes the underlying GORM handle for tests and one-off queries.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close releases the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("unwrap sql.DB: %w", err)
	}
	return sqlDB.Close()
}
