package common

import "errors"

var (
	ErrNoSuchProperty      = errors.New("no such genome property")
	ErrNoSuchStep          = errors.New("no such step")
	ErrNoSuchSample        = errors.New("no such sample")
	ErrResultsNotFound     = errors.New("results not found")
	ErrFileNotAllowed      = errors.New("file type not allowed")
	ErrNoFile              = errors.New("no file part")
	ErrEmptyFileName       = errors.New("no selected file")
	ErrInvalidMicromeda    = errors.New("invalid micromeda file")
	ErrRedisNotInitialized = errors.New("redis connection client not initialized")
	ErrDatabaseDisabled    = errors.New("database is disabled")
	ErrNoSuchUploadRecord  = errors.New("no such upload record")
	ErrLockNotAcquired     = errors.New("lock not acquired")
)
