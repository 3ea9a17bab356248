package database

import (
	"context"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	// MySQL driver.
	_ "github.com/jinzhu/gorm/dialects/mysql"
	// Google Cloud SQL MySQL driver.
	_ "github.com/GoogleCloudPlatform/cloudsql-proxy/proxy/dialers/mysql"

	"github.com/micromeda/micromeda-server/logging"
)

// mysqlDB is the concrete MySQL handle to a SQL database.
type mysqlDB struct{ *gorm.DB }

func (db *mysqlDB) initialize(ctx context.Context, cfg dbConfig) {
	params := "charset=utf8mb4&parseTime=True&loc=UTC"
	host := fmt.Sprintf("tcp(%s:%s)", cfg.Address, cfg.Port)
	if cfg.Dialect == "cloudsqlmysql" {
		// Registered by the cloudsql-proxy dialer import.
		host = fmt.Sprintf("cloudsql(%s)", cfg.Address)
	}
	dbSource := fmt.Sprintf("%s:%s@%s/%s?%s", cfg.Username, cfg.Password,
		host, cfg.DBName, params)
	logging.Info(ctx, "open mysql %s@%s/%s", cfg.Username, host, cfg.DBName)

	var err error
	db.DB, err = gorm.Open(mysql.Open(dbSource), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		logging.Error(ctx, "mysql init err %v", err)
		panic(err)
	}
}

// finalize closes the MySQL connection pool.
func (db *mysqlDB) finalize() {
	closeGorm(db.DB)
}

// db returns the MySQL GORM database handle.
func (db *mysqlDB) db() *gorm.DB {
	return db.DB
}

func closeGorm(db *gorm.DB) {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		logging.Error(context.Background(), "Failed to obtain database handle: %v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		logging.Error(context.Background(), "Failed to close database handle: %v", err)
	}
}
