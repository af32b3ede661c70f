package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/readiness-backend/internal/platform/logger"
)

// OpenSQLite opens a SQLite database at path (":memory:" when empty). The
// pool is pinned to one connection so in-memory databases are shared and
// writers never contend for the file lock.
func OpenSQLite(path string, log *logger.Logger) (*gorm.DB, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = ":memory:"
	}
	db, err := gorm.Open(sqlite.Open(path), gormConfig(log))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %q: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	if log != nil {
		log.Info("opened sqlite", "path", path)
	}
	return db, nil
}
