package dbModels

import "time"

type UploadRecordModel struct {
	ID          uint64    `gorm:"column:id; primaryKey"`
	ResultKey   string    `gorm:"column:result_key; uniqueIndex; size:64"`
	FileName    string    `gorm:"column:file_name"`
	SampleCount int       `gorm:"column:sample_count"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	ExpiresAt   time.Time `gorm:"column:expires_at; index"`
}
