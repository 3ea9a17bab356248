package uploadRecordDao

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/micromeda/micromeda-server/models/dbModels"
)

const table = "upload_record"

// QueryModel set query condition, used by queryChain()
type QueryModel struct {
	ResultKey     *string
	ExpiresBefore *time.Time
	Limit         int
}

// Migrate creates the upload record table.
func Migrate(db *gorm.DB) error {
	return db.Table(table).AutoMigrate(&dbModels.UploadRecordModel{})
}

// New a row
func New(db *gorm.DB, model *dbModels.UploadRecordModel) (int, error) {
	err := db.Table(table).
		Create(model).Error

	if err != nil {
		return 0, err
	}
	return 1, nil
}

// Get return a record, nil when nothing matches
func Get(tx *gorm.DB, query *QueryModel) (*dbModels.UploadRecordModel, error) {
	result := &dbModels.UploadRecordModel{}
	err := tx.Table(table).
		Scopes(queryChain(query)).
		Take(result).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Gets return records
func Gets(tx *gorm.DB, query *QueryModel) ([]dbModels.UploadRecordModel, error) {
	result := make([]dbModels.UploadRecordModel, 0)
	err := tx.Table(table).
		Scopes(queryChain(query)).
		Order(table + ".created_at DESC").
		Scan(&result).Error

	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes the matching records and returns how many were removed.
func Delete(tx *gorm.DB, query *QueryModel) (int64, error) {
	if query.ResultKey == nil && query.ExpiresBefore == nil {
		return 0, errors.New("refusing to delete without condition")
	}
	result := tx.Table(table).
		Scopes(queryChain(query)).
		Delete(&dbModels.UploadRecordModel{})
	return result.RowsAffected, result.Error
}

func queryChain(query *QueryModel) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.
			Scopes(resultKeyEqualScope(query.ResultKey)).
			Scopes(expiresBeforeScope(query.ExpiresBefore)).
			Scopes(limitScope(query.Limit))
	}
}

func resultKeyEqualScope(resultKey *string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if resultKey != nil {
			return db.Where(table+".result_key = ?", *resultKey)
		}
		return db
	}
}

func expiresBeforeScope(expiresBefore *time.Time) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if expiresBefore != nil {
			return db.Where(table+".expires_at < ?", *expiresBefore)
		}
		return db
	}
}

func limitScope(limit int) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if limit > 0 {
			return db.Limit(limit)
		}
		return db
	}
}
