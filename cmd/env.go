package main

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/org-intel/internal/model"
	"github.com/sells-group/org-intel/internal/normalize"
	"github.com/sells-group/org-intel/internal/orchestrator"
	"github.com/sells-group/org-intel/internal/resolve"
	"github.com/sells-group/org-intel/internal/source"
	"github.com/sells-group/org-intel/internal/store"
)

// allSourceTypes is the registration order for source adapters.
var allSourceTypes = []model.SourceType{
	model.SourceFiling,
	model.SourceWebsite,
	model.SourceNews,
}

// parseSourceTypes maps --sources flag values onto source types. An
// empty list means every registered source.
func parseSourceTypes(names []string) ([]model.SourceType, error) {
	var out []model.SourceType
	for _, n := range names {
		n = strings.TrimSpace(strings.ToLower(n))
		if n == "" {
			continue
		}
		typ := model.SourceType(n)
		switch typ {
		case model.SourceFiling, model.SourceWebsite, model.SourceNews:
			out = append(out, typ)
		default:
			return nil, eris.Errorf("unknown source type %q", n)
		}
	}
	return out, nil
}

// engineEnv bundles the wired dependencies behind every command.
type engineEnv struct {
	Store  store.Store
	Engine *orchestrator.Engine
}

func (e *engineEnv) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("store close", zap.Error(err))
	}
}

// openStore opens the configured backend without wiring the engine, for
// commands that only read or migrate.
func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "", "sqlite":
		st, err := store.NewSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initEngine wires the store, normalizer, resolver and sources into an
// Engine. Extraction comes from the configured extractor service, or
// from local candidate files when no service URL is set.
func initEngine(ctx context.Context) (*engineEnv, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	tax, err := normalize.LoadTaxonomy(cfg.Titles.TaxonomyPath)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	resolver := resolve.New(st, resolve.Config{
		NameSimilarity:      cfg.Resolve.NameSimilarityThreshold,
		CompanySimilarity:   cfg.Resolve.CompanySimilarityThreshold,
		AmbiguousConfidence: cfg.Resolve.AmbiguousConfidence,
	})

	sources, err := buildSources()
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	eng := orchestrator.New(cfg, st, normalize.New(tax), resolver, sources...)
	return &engineEnv{Store: st, Engine: eng}, nil
}

func buildSources() ([]orchestrator.Source, error) {
	var all []orchestrator.Source
	for _, typ := range allSourceTypes {
		if cfg.Sources.ExtractorURL != "" {
			src, err := source.NewHTTP(cfg.Sources.ExtractorURL, cfg.Sources.UserAgent, typ)
			if err != nil {
				return nil, err
			}
			all = append(all, src)
			continue
		}
		all = append(all, source.NewFile(cfg.Sources.CandidatesDir, typ))
	}
	return all, nil
}
