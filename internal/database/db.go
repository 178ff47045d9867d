package database

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gorm.io/gorm"
)

// Config contains database connection options. The same shape serves the
// platform catalog and, with the database name swapped via ForDatabase,
// scoped tenant connections.
type Config struct {
	Driver   string
	Path     string // SQLite database path when Driver == sqlite
	DSN      string // Optional DSN override
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	Options  map[string]string

	// Elevated credentials for administrative statements (CREATE DATABASE,
	// GRANT). Empty means the runtime credentials are the best we have.
	AdminUser     string
	AdminPassword string
}

// Open initialises a gorm.DB using the provided configuration.
func Open(cfg Config) (*gorm.DB, error) {
	driver := strings.ToLower(cfg.Driver)
	if driver == "" {
		driver = "sqlite"
	}

	switch driver {
	case "sqlite":
		return openSQLite(cfg)
	case "postgres":
		return openPostgres(cfg)
	case "mysql":
		return openMySQL(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// ForDatabase returns a copy of the configuration targeting the named
// database. The DSN override is dropped so the per-driver builders substitute
// the new name; for sqlite the database maps to a sibling file of the
// configured path.
func (c Config) ForDatabase(name string) Config {
	cpy := c
	cpy.DSN = ""
	cpy.Name = name

	if strings.EqualFold(strings.TrimSpace(c.Driver), "sqlite") || strings.TrimSpace(c.Driver) == "" {
		dir := filepath.Dir(c.Path)
		if c.Path == "" || strings.EqualFold(c.Path, ":memory:") {
			cpy.Path = ""
		} else {
			cpy.Path = filepath.Join(dir, name+".sqlite")
		}
	}
	return cpy
}

// WithAdminCredentials returns a copy using the elevated credentials, when
// configured. ok reports whether distinct admin credentials were available.
func (c Config) WithAdminCredentials() (Config, bool) {
	if strings.TrimSpace(c.AdminUser) == "" {
		return c, false
	}

	cpy := c
	cpy.DSN = ""
	cpy.User = c.AdminUser
	cpy.Password = c.AdminPassword
	return cpy, true
}

// AutoMigrateAndSeed convenience helper used during application start-up.
func AutoMigrateAndSeed(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	if err := AutoMigrate(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if err := SeedData(db); err != nil {
		return fmt.Errorf("seed data: %w", err)
	}

	return nil
}
