package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLConfig selects a gorm dialect. DSN wins over Path; Path only applies to sqlite.
type SQLConfig struct {
	Driver string
	DSN    string
	Path   string
}

// OpenSQL opens a gorm connection for sqlite, postgres or mysql.
func OpenSQL(cfg SQLConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		db, err := gorm.Open(sqlite.Open(sqliteDSN(cfg)), gormCfg)
		if err != nil {
			return nil, err
		}
		// sqlite allows a single writer; serialize through one connection.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres store requires sql.dsn")
		}
		return gorm.Open(postgres.Open(cfg.DSN), gormCfg)
	case "mysql":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("mysql store requires sql.dsn")
		}
		return gorm.Open(mysql.Open(cfg.DSN), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}
}

func sqliteDSN(cfg SQLConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	path := strings.TrimSpace(cfg.Path)
	if path == "" || strings.EqualFold(path, ":memory:") {
		return "file::memory:?cache=shared"
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", filepath.ToSlash(path))
}
