package service

import (
	"context"
	"fmt"
	"os"

	"github.com/micromeda/micromeda-server/cache"
	"github.com/micromeda/micromeda-server/cache/resultrao"
	"github.com/micromeda/micromeda-server/config"
	"github.com/micromeda/micromeda-server/genprop"
	"github.com/micromeda/micromeda-server/logging"
	micromedaFile "github.com/micromeda/micromeda-server/micromeda"
	"github.com/micromeda/micromeda-server/results"
	"github.com/micromeda/micromeda-server/service/micromeda"
)

var Impl ServiceImpl

type ServiceImpl struct {
	MicromedaIntf micromeda.MicromedaIntf
}

// Initialize parses the genome properties database, loads the default
// results and wires the results store to Redis.
func Initialize(ctx context.Context) {
	tree, err := LoadTree(ctx, config.GetString("GENOME_PROPERTIES_FILE"))
	if err != nil {
		logging.Critical(ctx, "failed to load genome properties: %v", err)
		panic(err)
	}

	var defaultResults *results.Results
	if path := config.GetString("DEFAULT_RESULTS_FILE"); path != "" {
		defaultResults, err = micromedaFile.Load(ctx, path, tree)
		if err != nil {
			logging.Critical(ctx, "failed to load default results %s: %v", path, err)
			panic(err)
		}
	}

	redisInstance, err := cache.GetRedis()
	if err != nil {
		panic(err)
	}
	store, err := resultrao.NewStoreWithSource(redisInstance, tree,
		config.GetSeconds("RESULTS_CACHE_TTL_SECONDS"), config.GetInt("RESULTS_LRU_SIZE"))
	if err != nil {
		panic(err)
	}

	Impl.MicromedaIntf = micromeda.New(tree, defaultResults, store)
}

func Finalize(ctx context.Context) {
	Impl.MicromedaIntf = nil
}

// LoadTree parses the genome properties flat file at path.
func LoadTree(ctx context.Context, path string) (*genprop.Tree, error) {
	sanitized, err := micromedaFile.SanitizePath(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(sanitized)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	tree, err := genprop.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", sanitized, err)
	}
	logging.Info(ctx, "loaded %d genome properties from %s", tree.Len(), sanitized)
	return tree, nil
}
