package db

import (
	"fmt"
	"strings"

	"github.com/smallbiznis/turfkeeper/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// sqlite runs the api and the task worker against one file, so writers wait
// on each other instead of failing, and cascades from gdd_models are enforced.
const sqliteParams = "_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"

func Dialect(cfg config.Config) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.DBType)) {
	case "mysql":
		return mysql.Open(fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBHost,
			cfg.DBPort,
			cfg.DBName,
		)), nil
	case "postgres", "postgresql":
		return postgres.Open(fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			cfg.DBHost,
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBName,
			cfg.DBPort,
			cfg.DBSSLMode,
		)), nil
	case "sqlite":
		return sqlite.Open(SQLiteDSN(cfg.DBName)), nil
	default:
		return nil, fmt.Errorf("unsupported %s type", cfg.DBType)
	}
}

func SQLiteDSN(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "turfkeeper.db"
	}
	if strings.Contains(name, "?") {
		return name
	}
	return name + "?" + sqliteParams
}

func IsPostgres(dbType string) bool {
	switch strings.ToLower(strings.TrimSpace(dbType)) {
	case "postgres", "postgresql":
		return true
	default:
		return false
	}
}
