package dbModels

// SampleModel is a genome or metagenome of a micromeda file.
type SampleModel struct {
	ID   uint64 `gorm:"column:id; primaryKey"`
	Name string `gorm:"column:name; uniqueIndex"`
}

// ProteinModel is a protein of a sample.
type ProteinModel struct {
	ID         uint64 `gorm:"column:id; primaryKey"`
	SampleID   uint64 `gorm:"column:sample_id; index"`
	Identifier string `gorm:"column:identifier"`
	Sequence   string `gorm:"column:sequence"`
}

// InterProScanMatchModel is a signature hit on a protein.
type InterProScanMatchModel struct {
	ID                 uint64  `gorm:"column:id; primaryKey"`
	ProteinID          uint64  `gorm:"column:protein_id; index"`
	SignatureAccession string  `gorm:"column:signature_accession"`
	ExpectedValue      float64 `gorm:"column:expected_value"`
}

// MatchRow is an InterProScan match joined with its protein and sample.
// ExpectedValue is nil when the column is NULL.
type MatchRow struct {
	SampleName         string   `gorm:"column:sample_name"`
	ProteinName        string   `gorm:"column:protein_name"`
	SignatureAccession string   `gorm:"column:signature_accession"`
	ExpectedValue      *float64 `gorm:"column:expected_value"`
}

// SequenceRow is a protein sequence joined with its sample.
type SequenceRow struct {
	SampleName  string `gorm:"column:sample_name"`
	ProteinName string `gorm:"column:protein_name"`
	Sequence    string `gorm:"column:sequence"`
}
