package database

import (
	"context"
	"fmt"
	"runtime/debug"

	"gorm.io/gorm"

	"github.com/micromeda/micromeda-server/config"
	"github.com/micromeda/micromeda-server/dao/uploadRecordDao"
	"github.com/micromeda/micromeda-server/logging"
)

// DB is the interface handle to a SQL database.
type DB interface {
	initialize(ctx context.Context, cfg dbConfig)
	finalize()
	db() *gorm.DB
}

// dbConfig is the config to connect to a SQL database.
type dbConfig struct {
	// The dialect of the SQL database.
	Dialect string

	// The username used to login to the database.
	Username string

	// The password used to login to the database.
	Password string

	// The address of the database service to connect to.
	Address string

	// The port of the database service to connect to.
	Port string

	// The name of the database to connect to. For sqlite this is the file.
	DBName string
}

// Global database interface, nil when the database is disabled.
var dbIntf DB

// SetDB installs an already opened database, used by tests.
func SetDB(db *gorm.DB) {
	dbIntf = &sqliteDB{db}
}

// Initialize initializes the upload record database when it is enabled.
func Initialize(ctx context.Context) {
	if !config.GetBool("DATABASE_ENABLED") {
		logging.Info(ctx, "database disabled, upload records are not kept")
		return
	}

	dialect := config.GetString("DATABASE_DIALECT")
	switch dialect {
	case "mysql", "cloudsqlmysql":
		dbIntf = &mysqlDB{}
	case "sqlite":
		dbIntf = &sqliteDB{}
	default:
		panic(fmt.Sprintf("invalid dialect %q", dialect))
	}

	cfg := dbConfig{
		Dialect:  dialect,
		Username: config.GetString("DATABASE_USERNAME"),
		Password: config.GetString("DATABASE_PASSWORD"),
		Address:  config.GetString("DATABASE_HOST"),
		Port:     config.GetString("DATABASE_PORT"),
		DBName:   config.GetString("DATABASE_NAME"),
	}

	dbIntf.initialize(ctx, cfg)

	if err := uploadRecordDao.Migrate(dbIntf.db()); err != nil {
		logging.Error(ctx, "Failed to migrate upload records: %v", err)
		panic(err)
	}
}

// Finalize closes the database handle if there is one.
func Finalize() {
	if dbIntf == nil {
		return
	}
	dbIntf.finalize()
	dbIntf = nil
}

// Enabled reports whether a database is available.
func Enabled() bool {
	return dbIntf != nil
}

// GetDB returns the GORM database instance, nil when disabled.
func GetDB() *gorm.DB {
	if dbIntf == nil {
		return nil
	}
	return dbIntf.db()
}

// DBTransactionFunc is the function pointer type to pass to database
// transaction executor functions.
type DBTransactionFunc func(tx *gorm.DB) error

// Transaction executes the provided function as a transaction,
// and automatically performs commit / rollback accordingly.
func Transaction(ctx context.Context, db *gorm.DB, txFunc DBTransactionFunc) (err error) {
	tx := db.Begin()
	if err = tx.Error; err != nil {
		logging.Error(ctx, "Failed to begin transaction: %v", err)
		return err
	}

	defer func() {
		var recovered interface{}
		if recovered = recover(); recovered != nil {
			logging.Error(ctx, "\x1b[31m%v\n[Stack Trace]\n%s\x1b[m", recovered, debug.Stack())
			err = fmt.Errorf("transaction panicked: %v", recovered)
		}

		if recovered != nil || err != nil {
			if rerr := tx.Rollback().Error; rerr != nil {
				logging.Error(ctx, "Failed to rollback transaction: %v", rerr)
			}
		}
	}()

	if err = txFunc(tx); err != nil {
		logging.Error(ctx, "Failed to execute transaction: %v", err)
		return err
	}

	if err = tx.Commit().Error; err != nil {
		logging.Error(ctx, "Failed to commit transaction: %v", err)
		return err
	}

	return nil
}
