package database

import (
	"context"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/micromeda/micromeda-server/logging"
)

// sqliteDB is the SQLite handle used for local deployments.
type sqliteDB struct{ *gorm.DB }

func (db *sqliteDB) initialize(ctx context.Context, cfg dbConfig) {
	logging.Info(ctx, "open sqlite %s", cfg.DBName)

	var err error
	db.DB, err = OpenSQLite(cfg.DBName)
	if err != nil {
		logging.Error(ctx, "sqlite init err %v", err)
		panic(err)
	}
}

func (db *sqliteDB) finalize() {
	closeGorm(db.DB)
}

func (db *sqliteDB) db() *gorm.DB {
	return db.DB
}

// OpenSQLite opens (or creates) a SQLite database file.
func OpenSQLite(path string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

// Close releases a database opened with OpenSQLite.
func Close(db *gorm.DB) {
	closeGorm(db)
}
