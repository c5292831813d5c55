package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/fitscore/internal/adapters/embedstore"
	"github.com/okian/fitscore/internal/adapters/imagesource"
	"github.com/okian/fitscore/internal/adapters/repository"
	"github.com/okian/fitscore/internal/config"
	"github.com/okian/fitscore/internal/domain/candidates"
	"github.com/okian/fitscore/internal/domain/embedding"
	"github.com/okian/fitscore/internal/domain/ownerlock"
	"github.com/okian/fitscore/internal/domain/recommend"
	"github.com/okian/fitscore/internal/domain/scoring"
	"github.com/okian/fitscore/internal/domain/weights"
	"github.com/okian/fitscore/pkg/logger"
)

// Pipeline is the generation stack built from configuration.
type Pipeline struct {
	Store     repository.Store
	Generator *recommend.Generator
	Weights   string // bundle version

	cache *embedstore.Store
}

// NewPipeline opens storage, loads weights and builds the generator.
func NewPipeline(ctx context.Context, cfg *config.Config, l logger.Logger) (*Pipeline, error) {
	if l == nil {
		l = logger.Get()
	}
	p := &Pipeline{}

	var err error
	if cfg.DatabasePath == "" {
		l.Info(ctx, "using in-memory store")
		p.Store = repository.NewMemoryStore()
	} else {
		l.Info(ctx, "using sqlite store", logger.String("path", cfg.DatabasePath))
		p.Store, err = repository.NewSQLiteStore(ctx, cfg.DatabasePath, repository.WithLogger(l.Named("repository")))
		if err != nil {
			return nil, err
		}
	}

	bundle, err := loadWeights(ctx, cfg, l)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	p.Weights = bundle.Version

	emb, scorer, err := bundle.Build(scoring.WithScaledScores(cfg.ScaleAttentionScores))
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("build model: %w", err)
	}

	cacheOpts := []embedstore.Option{embedstore.WithInMemory(cfg.EmbedCachePath == "")}
	p.cache, err = embedstore.Open(cfg.EmbedCachePath, cacheOpts...)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	cached := embedding.NewCached(emb, p.cache, bundle.Version, embedding.WithCacheLogger(l.Named("embedding")))

	opts := []recommend.Option{
		recommend.WithBatchSize(cfg.BatchSize),
		recommend.WithCandidateGenerator(candidates.New(candidates.WithMaxCandidates(cfg.MaxCandidates))),
		recommend.WithLocks(ownerlock.New()),
		recommend.WithEmbedConcurrency(cfg.EmbedConcurrency),
		recommend.WithLogger(l.Named("recommend")),
	}
	p.Generator = recommend.New(p.Store, imagesource.NewDir(cfg.ImageRoot), cached, scorer, opts...)

	l.Info(ctx, "generation pipeline ready",
		logger.String("weights", bundle.Version),
		logger.Int("width", scorer.Width()),
		logger.Int("slots", scorer.Slots()),
		logger.String("imageRoot", cfg.ImageRoot))
	return p, nil
}

func loadWeights(ctx context.Context, cfg *config.Config, l logger.Logger) (*weights.Bundle, error) {
	if cfg.WeightsPath != "" {
		b, err := weights.Load(cfg.WeightsPath)
		if err != nil {
			return nil, fmt.Errorf("load weights: %w", err)
		}
		return b, nil
	}
	l.Warn(ctx, "no weights_path configured; scores come from seeded random weights",
		logger.Any("seed", cfg.WeightsSeed))
	dims := scoring.DefaultDims(cfg.BackboneWidth)
	dims.Hidden, dims.Projection = cfg.HiddenWidth, cfg.ProjectionWidth
	started := time.Now()
	b, err := weights.RandomWithDims(cfg.ImageResolution, dims, cfg.WeightsSeed)
	if err != nil {
		return nil, fmt.Errorf("seed weights: %w", err)
	}
	l.Debug(ctx, "seeded weights", logger.Duration("took", time.Since(started)))
	return b, nil
}

// Close releases the store and the embedding cache.
func (p *Pipeline) Close() error {
	var errs []error
	if p.cache != nil {
		errs = append(errs, p.cache.Close())
	}
	if p.Store != nil {
		errs = append(errs, p.Store.Close())
	}
	return errors.Join(errs...)
}
