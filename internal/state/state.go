// Package state owns the local SQLite database that holds everything the
// console persists between restarts: the encrypted session token, browser
// sessions, and the auth audit trail.
package state

import (
	"database/sql"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB wraps the gorm handle for the local state database.
type DB struct {
	Gorm *gorm.DB
}

// Open opens (creating if needed) the SQLite database at the given path.
func Open(path string) (*DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	return &DB{Gorm: db}, nil
}

// SQL exposes the underlying database/sql handle for libraries that need it.
func (d *DB) SQL() (*sql.DB, error) {
	return d.Gorm.DB()
}

// Close closes the underlying connection pool.
func (d *DB) Close() error {
	sqlDB, err := d.Gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
