package cli

import (
	"context"
	"fmt"

	"github.com/semdex/semdex/config"
	"github.com/semdex/semdex/embedder"
	"github.com/semdex/semdex/indexer"
	"github.com/semdex/semdex/store"
)

// openProject resolves the project root and loads its configuration.
func openProject() (string, *config.Config, error) {
	projectRoot, err := config.FindProjectRoot()
	if err != nil {
		return "", nil, err
	}

	cfg, err := config.Load(projectRoot)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return projectRoot, cfg, nil
}

// buildManager assembles the embedder, store and index manager for a
// project. The caller owns the returned closer.
func buildManager(ctx context.Context, projectRoot string, cfg *config.Config) (*indexer.Manager, func(), error) {
	emb, err := embedder.New(cfg.Embedder)
	if err != nil {
		return nil, nil, err
	}

	storeCfg := cfg.Store
	if storeCfg.Backend == "qdrant" && storeCfg.Qdrant.Collection == "" {
		storeCfg.Qdrant.Collection = store.SanitizeCollectionName(projectRoot)
	}

	st, err := store.New(ctx, storeCfg)
	if err != nil {
		emb.Close()
		return nil, nil, err
	}

	closer := func() {
		st.Close()
		emb.Close()
	}

	return indexer.NewManager(projectRoot, cfg, st, emb), closer, nil
}
