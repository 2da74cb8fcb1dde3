// Package app wires configuration into a ready review service for the
// binaries under cmd/.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/spacesedan/sentimen/config"
	"github.com/spacesedan/sentimen/internal/clients"
	"github.com/spacesedan/sentimen/internal/db"
	"github.com/spacesedan/sentimen/internal/inference"
	"github.com/spacesedan/sentimen/internal/lexicon"
	"github.com/spacesedan/sentimen/internal/metrics"
	"github.com/spacesedan/sentimen/internal/preprocess"
	"github.com/spacesedan/sentimen/internal/review"
	"github.com/spacesedan/sentimen/internal/sentiment"
)

type App struct {
	Service *review.Service
	Metrics *metrics.Metrics
	closers []func()
}

// Close releases clients and model sessions in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// Build assembles the service described by cfg. Optional backends that fail
// to connect are logged and skipped; the core artifacts load lazily on the
// first request.
func Build(ctx context.Context, cfg config.Config, reg prometheus.Registerer) (*App, error) {
	a := &App{Metrics: metrics.New(reg)}

	analyzer, err := NewAnalyzer(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if c, ok := analyzer.Predictor().(interface{ Close() error }); ok {
		a.closers = append(a.closers, func() {
			if err := c.Close(); err != nil {
				slog.Warn("[App] Failed to close predictor", slog.String("error", err.Error()))
			}
		})
	}

	var cache review.ResultCache
	local, err := review.NewLocalCache(cfg.CacheSize, cfg.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("[App] failed to create local cache: %w", err)
	}
	cache = local
	if cfg.ValkeyAddr != "" {
		vc, err := clients.NewValkeyClient(clients.ValkeyOptions{
			Address:  cfg.ValkeyAddr,
			Password: cfg.ValkeyPassword,
			TLS:      cfg.ValkeyTLS,
			TTL:      cfg.CacheTTL,
		})
		if err != nil {
			slog.Warn("[App] Valkey unavailable, using local cache only", slog.String("error", err.Error()))
		} else {
			cache = review.NewLayeredCache(local, vc)
			a.closers = append(a.closers, vc.Close)
		}
	}

	var records review.RecordStore
	if cfg.DynamoTable != "" {
		client, err := clients.GetDynamoDBClient(ctx, cfg.DynamoEndpoint)
		if err != nil {
			slog.Warn("[App] DynamoDB unavailable, review records will not be stored", slog.String("error", err.Error()))
		} else {
			records = db.NewReviewStore(client, cfg.DynamoTable, cfg.RecordTTL)
		}
	}

	a.Service = review.NewService(analyzer, review.Options{
		Cache:   cache,
		Records: records,
		Metrics: a.Metrics,
	})
	slog.Info("[App] Review service configured",
		slog.String("engine", cfg.Engine),
		slog.String("predictor", analyzer.Predictor().Name()))
	return a, nil
}

// NewAnalyzer pairs the configured predictor with its normalizer. The
// stopword lexicon is only loaded for the vectorized profile.
func NewAnalyzer(ctx context.Context, cfg config.Config) (*sentiment.Analyzer, error) {
	var lex *lexicon.Lexicon
	if cfg.Profile() == preprocess.ProfileVectorized {
		var err error
		lex, err = lexicon.Load(ctx, lexicon.ProviderFor(cfg.CorpusDir), cfg.Language)
		if err != nil {
			return nil, err
		}
	}
	p, err := NewPredictor(cfg, lex)
	if err != nil {
		return nil, err
	}
	return sentiment.NewAnalyzer(lex, p)
}

func NewPredictor(cfg config.Config, lex *lexicon.Lexicon) (sentiment.Predictor, error) {
	switch cfg.Engine {
	case config.EngineSequence:
		return inference.NewSequencePredictor(inference.SequenceConfig{
			ModelPath: SequenceModelPath(cfg),
			LabelMap:  cfg.SequenceLabels,
		}), nil
	case config.EngineVectorized:
		if lex == nil {
			return nil, fmt.Errorf("[App] vectorized engine needs a stopword lexicon")
		}
		return inference.NewVectorPredictor(inference.VectorConfig{
			VectorizerPath: cfg.VectorizerPath,
			Models:         cfg.Models,
			LexiconVersion: lex.Version(),
		})
	default:
		return nil, fmt.Errorf("[App] unknown engine %q", cfg.Engine)
	}
}

// SequenceModelPath is SEQUENCE_MODEL_PATH, or where fetch-model stores
// SEQUENCE_MODEL under MODEL_DIR.
func SequenceModelPath(cfg config.Config) string {
	if cfg.SequenceModelPath != "" {
		return cfg.SequenceModelPath
	}
	return filepath.Join(cfg.ModelDir, strings.ReplaceAll(cfg.SequenceModel, "/", "_"))
}
