package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DatabaseType selects the storage backend.
type DatabaseType string

const (
	// DatabaseTypeSQLite keeps everything in one local file and needs
	// no external services. It is the default.
	DatabaseTypeSQLite DatabaseType = "sqlite"

	// DatabaseTypePostgres points the store at a PostgreSQL server so
	// several application servers can share one directory.
	DatabaseTypePostgres DatabaseType = "postgres"
)

// Config selects and configures the database backend.
//
// The same store backs both the application server (users, rooms,
// participants) and the shared client directory, so every server
// process pointed at the same database sees the same state.
type Config struct {
	// Type selects the backend: sqlite or postgres.
	Type DatabaseType `mapstructure:"type" yaml:"type"`

	// Path is the SQLite database file (sqlite only).
	Path string `mapstructure:"path" yaml:"path,omitempty"`

	// Postgres holds connection settings (postgres only).
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres,omitempty"`
}

// PostgresConfig carries the connection settings for a PostgreSQL backend.
type PostgresConfig struct {
	Host         string `mapstructure:"host"           yaml:"host"`
	Port         int    `mapstructure:"port"           yaml:"port"`
	Database     string `mapstructure:"database"       yaml:"database"`
	User         string `mapstructure:"user"           yaml:"user"`
	Password     string `mapstructure:"password"       yaml:"password,omitempty"`
	SSLMode      string `mapstructure:"ssl_mode"       yaml:"ssl_mode"` // disable, require, verify-ca, verify-full
	MaxOpenConns int    `mapstructure:"max_open_conns" yaml:"max_open_conns,omitempty"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" yaml:"max_idle_conns,omitempty"`
}

// DSN renders the keyword/value connection string the postgres driver expects.
func (c *PostgresConfig) DSN() string {
	parts := []string{
		"host=" + c.Host,
		fmt.Sprintf("port=%d", c.Port),
		"user=" + c.User,
		"password=" + c.Password,
		"dbname=" + c.Database,
	}
	if c.SSLMode != "" {
		parts = append(parts, "sslmode="+c.SSLMode)
	}
	return strings.Join(parts, " ")
}

// ApplyDefaults fills in anything left unset. A zero Config comes out
// as a SQLite store under the user's configuration directory.
func (c *Config) ApplyDefaults() {
	if c.Type == "" {
		c.Type = DatabaseTypeSQLite
	}

	switch c.Type {
	case DatabaseTypeSQLite:
		if c.Path == "" {
			c.Path = filepath.Join(userConfigDir(), "classmux", "classmux.db")
		}
	case DatabaseTypePostgres:
		pg := &c.Postgres
		if pg.Port == 0 {
			pg.Port = 5432
		}
		if pg.SSLMode == "" {
			pg.SSLMode = "disable"
		}
		if pg.MaxOpenConns == 0 {
			pg.MaxOpenConns = 25
		}
		if pg.MaxIdleConns == 0 {
			pg.MaxIdleConns = 5
		}
	}
}

// Validate rejects configuration that New would fail to open anyway,
// with a clearer message than the driver would give.
func (c *Config) Validate() error {
	switch c.Type {
	case DatabaseTypeSQLite:
		if c.Path == "" {
			return fmt.Errorf("sqlite database path is required")
		}
	case DatabaseTypePostgres:
		required := []struct{ name, value string }{
			{"host", c.Postgres.Host},
			{"database", c.Postgres.Database},
			{"user", c.Postgres.User},
		}
		for _, field := range required {
			if field.value == "" {
				return fmt.Errorf("postgres %s is required", field.name)
			}
		}
	default:
		return fmt.Errorf("unknown database type %q", c.Type)
	}
	return nil
}

// userConfigDir resolves the per-user configuration directory, falling
// back to the working directory when the environment gives no home.
func userConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return dir
}
