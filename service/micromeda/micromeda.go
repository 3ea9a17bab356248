package micromeda

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/micromeda/micromeda-server/cache/resultrao"
	"github.com/micromeda/micromeda-server/common"
	"github.com/micromeda/micromeda-server/dao/uploadRecordDao"
	"github.com/micromeda/micromeda-server/database"
	"github.com/micromeda/micromeda-server/genprop"
	"github.com/micromeda/micromeda-server/logging"
	micromedaFile "github.com/micromeda/micromeda-server/micromeda"
	"github.com/micromeda/micromeda-server/models/dbModels"
	"github.com/micromeda/micromeda-server/results"
)

type MicromedaIntf interface {
	GetProperty(ctx context.Context, propertyID string) (*genprop.PropertyInfo, error)
	GetProperties(ctx context.Context, propertyIDs []string) map[string]genprop.PropertyInfo
	GetAllProperties(ctx context.Context) map[string]genprop.PropertyInfo
	GetResultTree(ctx context.Context, resultKey string) (*results.TreeJSON, error)
	UploadResults(ctx context.Context, fileName, path string) (string, error)
	GetFasta(ctx context.Context, resultKey, propertyID string, stepNumber int, topOnly bool) (string, error)
	GetUploadRecord(ctx context.Context, resultKey string) (*dbModels.UploadRecordModel, error)
	PurgeExpired(ctx context.Context, uploadFolder string) (int, int64, error)
}

type MicromedaImpl struct {
	Tree           *genprop.Tree
	DefaultResults *results.Results
	Store          *resultrao.Store
}

func New(tree *genprop.Tree, defaultResults *results.Results, store *resultrao.Store) MicromedaIntf {
	return &MicromedaImpl{
		Tree:           tree,
		DefaultResults: defaultResults,
		Store:          store,
	}
}

func (impl *MicromedaImpl) GetProperty(ctx context.Context, propertyID string) (*genprop.PropertyInfo, error) {
	property := impl.Tree.Get(propertyID)
	if property == nil {
		logging.Debug(ctx, "[GetProperty] no such property %s", propertyID)
		return nil, fmt.Errorf("%w: %s", common.ErrNoSuchProperty, propertyID)
	}
	info := genprop.Info(property)
	return &info, nil
}

func (impl *MicromedaImpl) GetProperties(ctx context.Context, propertyIDs []string) map[string]genprop.PropertyInfo {
	infos := map[string]genprop.PropertyInfo{}
	for _, id := range propertyIDs {
		if property := impl.Tree.Get(id); property != nil {
			infos[property.ID] = genprop.Info(property)
		}
	}
	return infos
}

func (impl *MicromedaImpl) GetAllProperties(ctx context.Context) map[string]genprop.PropertyInfo {
	infos := make(map[string]genprop.PropertyInfo, impl.Tree.Len())
	for _, property := range impl.Tree.Properties() {
		infos[property.ID] = genprop.Info(property)
	}
	return infos
}

func (impl *MicromedaImpl) lookup(ctx context.Context, resultKey string) (*results.Results, error) {
	result, err := impl.Store.Get(ctx, resultKey, impl.DefaultResults)
	if err != nil {
		logging.Error(ctx, "[lookup] failed to fetch results %s: %v", resultKey, err)
		return nil, err
	}
	if result == nil {
		return nil, common.ErrResultsNotFound
	}
	return result, nil
}

func (impl *MicromedaImpl) GetResultTree(ctx context.Context, resultKey string) (*results.TreeJSON, error) {
	result, err := impl.lookup(ctx, resultKey)
	if err != nil {
		return nil, err
	}
	document := result.ToJSON()
	return &document, nil
}

// UploadResults loads the micromeda file saved at path, caches the results
// and removes the file.
func (impl *MicromedaImpl) UploadResults(ctx context.Context, fileName, path string) (string, error) {
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logging.Warn(ctx, "[UploadResults] failed to remove %s: %v", path, err)
		}
	}()

	if !micromedaFile.AllowedFile(fileName) {
		return "", fmt.Errorf("%w: %s", common.ErrFileNotAllowed, fileName)
	}

	result, err := micromedaFile.Load(ctx, path, impl.Tree)
	if err != nil {
		logging.Error(ctx, "[UploadResults] failed to load %s: %v", fileName, err)
		return "", fmt.Errorf("%w: %v", common.ErrInvalidMicromeda, err)
	}

	key, err := impl.Store.Put(ctx, result)
	if err != nil {
		logging.Error(ctx, "[UploadResults] failed to cache results: %v", err)
		return "", err
	}

	if database.Enabled() {
		now := time.Now().UTC()
		record := &dbModels.UploadRecordModel{
			ResultKey:   key,
			FileName:    filepath.Base(fileName),
			SampleCount: len(result.SampleNames()),
			CreatedAt:   now,
			ExpiresAt:   now.Add(impl.Store.TTL()),
		}
		if _, err := uploadRecordDao.New(database.GetDB(), record); err != nil {
			// The results are usable without their record.
			logging.Error(ctx, "[UploadResults] failed to record upload %s: %v", key, err)
		}
	}

	logging.Info(ctx, "[UploadResults] cached %d samples of %s as %s",
		len(result.SampleNames()), fileName, key)
	return key, nil
}

func (impl *MicromedaImpl) GetFasta(ctx context.Context, resultKey, propertyID string, stepNumber int, topOnly bool) (string, error) {
	result, err := impl.lookup(ctx, resultKey)
	if err != nil {
		return "", err
	}
	return result.Fasta(propertyID, stepNumber, topOnly)
}

func (impl *MicromedaImpl) GetUploadRecord(ctx context.Context, resultKey string) (*dbModels.UploadRecordModel, error) {
	if !database.Enabled() {
		return nil, common.ErrDatabaseDisabled
	}
	record, err := uploadRecordDao.Get(database.GetDB(), &uploadRecordDao.QueryModel{
		ResultKey: &resultKey,
	})
	if err != nil {
		logging.Error(ctx, "[GetUploadRecord] failed to get record %s: %v", resultKey, err)
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: %s", common.ErrNoSuchUploadRecord, resultKey)
	}
	return record, nil
}

// PurgeExpired removes upload files older than the results TTL and expired
// upload records. It returns the number of files and records removed.
func (impl *MicromedaImpl) PurgeExpired(ctx context.Context, uploadFolder string) (int, int64, error) {
	cutoff := time.Now().Add(-impl.Store.TTL())

	files := 0
	entries, err := os.ReadDir(uploadFolder)
	if err != nil && !os.IsNotExist(err) {
		return 0, 0, err
	}
	for _, entry := range entries {
		if entry.IsDir() || !micromedaFile.AllowedFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(uploadFolder, entry.Name())
		if err := os.Remove(path); err != nil {
			logging.Warn(ctx, "[PurgeExpired] failed to remove %s: %v", path, err)
			continue
		}
		files++
	}

	var records int64
	if database.Enabled() {
		now := time.Now().UTC()
		records, err = uploadRecordDao.Delete(database.GetDB(), &uploadRecordDao.QueryModel{
			ExpiresBefore: &now,
		})
		if err != nil {
			return files, 0, err
		}
	}
	return files, records, nil
}
