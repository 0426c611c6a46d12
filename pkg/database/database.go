package database

import (
	"fmt"
	"strings"

	"github.com/AveryLor/BiasBreaker-sub000/pkg/config"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the DSN in DATABASE_URL. "sqlite:<path>" selects SQLite,
// anything else is handed to the Postgres driver.
func Open(cfg *config.Config) (*gorm.DB, error) {
	return OpenDSN(cfg.DatabaseURL)
}

func OpenDSN(dsn string) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}

	var dialector gorm.Dialector
	if path, ok := strings.CutPrefix(dsn, "sqlite:"); ok {
		dialector = sqlite.Open(path)
	} else {
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}
