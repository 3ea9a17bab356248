package micromedaDao

import (
	"gorm.io/gorm"

	"github.com/micromeda/micromeda-server/models/dbModels"
)

const (
	sampleTable  = "sample"
	proteinTable = "protein"
	matchTable   = "interproscan_match"
)

const batchSize = 3000

// Migrate creates the micromeda tables.
func Migrate(db *gorm.DB) error {
	if err := db.Table(sampleTable).AutoMigrate(&dbModels.SampleModel{}); err != nil {
		return err
	}
	if err := db.Table(proteinTable).AutoMigrate(&dbModels.ProteinModel{}); err != nil {
		return err
	}
	return db.Table(matchTable).AutoMigrate(&dbModels.InterProScanMatchModel{})
}

// NewSample inserts a sample and fills its ID.
func NewSample(db *gorm.DB, model *dbModels.SampleModel) error {
	return db.Table(sampleTable).Create(model).Error
}

// NewProtein inserts a protein and fills its ID.
func NewProtein(db *gorm.DB, model *dbModels.ProteinModel) error {
	return db.Table(proteinTable).Create(model).Error
}

// NewMatches inserts matches in batches.
func NewMatches(db *gorm.DB, models []*dbModels.InterProScanMatchModel) (int, error) {
	if len(models) == 0 {
		return 0, nil
	}
	if err := db.Table(matchTable).CreateInBatches(models, batchSize).Error; err != nil {
		return 0, err
	}
	return len(models), nil
}

// GetSamples returns the samples ordered by id.
func GetSamples(db *gorm.DB) ([]dbModels.SampleModel, error) {
	result := make([]dbModels.SampleModel, 0)
	err := db.Table(sampleTable).
		Order(sampleTable + ".id ASC").
		Scan(&result).Error
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetMatches returns every match joined with its protein and sample.
func GetMatches(db *gorm.DB) ([]dbModels.MatchRow, error) {
	result := make([]dbModels.MatchRow, 0)
	err := db.Table(matchTable).
		Select(sampleTable + ".name AS sample_name, " +
			proteinTable + ".identifier AS protein_name, " +
			matchTable + ".signature_accession, " +
			matchTable + ".expected_value").
		Joins("JOIN " + proteinTable + " ON " + proteinTable + ".id = " + matchTable + ".protein_id").
		Joins("JOIN " + sampleTable + " ON " + sampleTable + ".id = " + proteinTable + ".sample_id").
		Order(matchTable + ".id ASC").
		Scan(&result).Error
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetSequences returns the non empty protein sequences with their sample.
func GetSequences(db *gorm.DB) ([]dbModels.SequenceRow, error) {
	result := make([]dbModels.SequenceRow, 0)
	err := db.Table(proteinTable).
		Select(sampleTable + ".name AS sample_name, " +
			proteinTable + ".identifier AS protein_name, " +
			proteinTable + ".sequence").
		Joins("JOIN " + sampleTable + " ON " + sampleTable + ".id = " + proteinTable + ".sample_id").
		Where(proteinTable + ".sequence <> ''").
		Scan(&result).Error
	if err != nil {
		return nil, err
	}
	return result, nil
}
