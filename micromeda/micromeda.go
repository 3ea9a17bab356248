// Package micromeda reads and writes micromeda files: SQLite databases
// holding samples, their proteins and the InterProScan matches on them.
package micromeda

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/gorm"

	"github.com/micromeda/micromeda-server/common"
	"github.com/micromeda/micromeda-server/dao/micromedaDao"
	"github.com/micromeda/micromeda-server/database"
	"github.com/micromeda/micromeda-server/genprop"
	"github.com/micromeda/micromeda-server/logging"
	"github.com/micromeda/micromeda-server/models/dbModels"
	"github.com/micromeda/micromeda-server/results"
)

var allowedExtensions = map[string]bool{
	"micro":   true,
	"sqlite":  true,
	"sqlite3": true,
}

var requiredTables = []string{"sample", "protein", "interproscan_match"}

// AllowedFile reports whether the uploaded file name has a micro, sqlite or
// sqlite3 extension.
func AllowedFile(filename string) bool {
	index := strings.LastIndex(filename, ".")
	if index < 0 {
		return false
	}
	return allowedExtensions[strings.ToLower(filename[index+1:])]
}

// SanitizePath expands shell variables and a leading "~" and returns the
// absolute path.
func SanitizePath(path string) (string, error) {
	path = os.ExpandEnv(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}

// sqliteDSN returns a SQLite URI for path. The path is escaped so that
// "?", "#" and "%" in file names stay part of the name.
func sqliteDSN(path, query string) string {
	return (&url.URL{Scheme: "file", Path: path, RawQuery: query}).String()
}

// Load reads a micromeda file and computes its results against the tree.
func Load(ctx context.Context, path string, tree *genprop.Tree) (*results.Results, error) {
	sanitized, err := SanitizePath(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(sanitized); err != nil {
		return nil, err
	}

	db, err := database.OpenSQLite(sqliteDSN(sanitized, "mode=ro"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidMicromeda, err)
	}
	defer database.Close(db)

	for _, table := range requiredTables {
		if !db.Migrator().HasTable(table) {
			return nil, fmt.Errorf("%w: missing table %s", common.ErrInvalidMicromeda, table)
		}
	}

	samples, err := micromedaDao.GetSamples(db)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidMicromeda, err)
	}
	matchRows, err := micromedaDao.GetMatches(db)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidMicromeda, err)
	}
	sequenceRows, err := micromedaDao.GetSequences(db)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidMicromeda, err)
	}

	sampleNames := make([]string, 0, len(samples))
	for _, sample := range samples {
		sampleNames = append(sampleNames, sample.Name)
	}
	matches := make([]results.Match, 0, len(matchRows))
	for _, row := range matchRows {
		// A match without e-value ranks after every scored one.
		expectedValue := math.Inf(1)
		if row.ExpectedValue != nil {
			expectedValue = *row.ExpectedValue
		}
		matches = append(matches, results.Match{
			SampleName:         row.SampleName,
			ProteinName:        row.ProteinName,
			SignatureAccession: row.SignatureAccession,
			ExpectedValue:      expectedValue,
		})
	}
	sequences := map[string]map[string]string{}
	for _, row := range sequenceRows {
		if sequences[row.SampleName] == nil {
			sequences[row.SampleName] = map[string]string{}
		}
		sequences[row.SampleName][row.ProteinName] = row.Sequence
	}

	logging.Info(ctx, "loaded micromeda file %s: %d samples, %d matches",
		filepath.Base(sanitized), len(sampleNames), len(matches))
	return results.New(tree, sampleNames, matches, sequences), nil
}

// File is the content of a micromeda file to write.
type File struct {
	Samples []Sample
}

// Sample is a sample and its proteins.
type Sample struct {
	Name     string
	Proteins []Protein
}

// Protein is a protein, its optional sequence and its matches.
type Protein struct {
	Identifier string
	Sequence   string
	Matches    []SignatureMatch
}

// SignatureMatch is a signature hit with its expected value.
type SignatureMatch struct {
	SignatureAccession string
	ExpectedValue      float64
}

// Write creates a micromeda file at path. An existing file is replaced.
func Write(ctx context.Context, path string, file *File) error {
	sanitized, err := SanitizePath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(sanitized); err != nil && !os.IsNotExist(err) {
		return err
	}

	db, err := database.OpenSQLite(sqliteDSN(sanitized, ""))
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := micromedaDao.Migrate(db); err != nil {
		return err
	}

	return database.Transaction(ctx, db, func(tx *gorm.DB) error {
		for _, sample := range file.Samples {
			sampleModel := &dbModels.SampleModel{Name: sample.Name}
			if err := micromedaDao.NewSample(tx, sampleModel); err != nil {
				return err
			}

			var matches []*dbModels.InterProScanMatchModel
			for _, protein := range sample.Proteins {
				proteinModel := &dbModels.ProteinModel{
					SampleID:   sampleModel.ID,
					Identifier: protein.Identifier,
					Sequence:   protein.Sequence,
				}
				if err := micromedaDao.NewProtein(tx, proteinModel); err != nil {
					return err
				}
				for _, match := range protein.Matches {
					matches = append(matches, &dbModels.InterProScanMatchModel{
						ProteinID:          proteinModel.ID,
						SignatureAccession: match.SignatureAccession,
						ExpectedValue:      match.ExpectedValue,
					})
				}
			}
			if _, err := micromedaDao.NewMatches(tx, matches); err != nil {
				return err
			}
		}
		return nil
	})
}
