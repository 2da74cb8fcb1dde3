// Package review is the application layer around the sentiment analyzer: it
// validates requests, caches results and persists review records.
package review

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spacesedan/sentimen/internal/artifacts"
	"github.com/spacesedan/sentimen/internal/errs"
	"github.com/spacesedan/sentimen/internal/metrics"
	"github.com/spacesedan/sentimen/internal/models"
	"github.com/spacesedan/sentimen/internal/preprocess"
	"github.com/spacesedan/sentimen/internal/sentiment"
)

// ResultCache stores classification results by cache key.
type ResultCache interface {
	Get(ctx context.Context, key string) (models.ReviewResult, bool, error)
	Set(ctx context.Context, key string, result models.ReviewResult) error
}

// RecordStore persists classified reviews.
type RecordStore interface {
	Put(ctx context.Context, results []models.ReviewResult) error
}

type Options struct {
	Cache   ResultCache
	Records RecordStore
	Metrics *metrics.Metrics
	Now     func() time.Time
	NewID   func() string
}

type Service struct {
	analyzer *sentiment.Analyzer
	engine   string
	cache    ResultCache
	records  RecordStore
	metrics  *metrics.Metrics
	now      func() time.Time
	newID    func() string
}

func NewService(analyzer *sentiment.Analyzer, opts Options) *Service {
	s := &Service{
		analyzer: analyzer,
		engine:   analyzer.Predictor().Profile().String(),
		cache:    opts.Cache,
		records:  opts.Records,
		metrics:  opts.Metrics,
		now:      opts.Now,
		newID:    opts.NewID,
	}
	if s.cache == nil {
		s.cache = NopCache{}
	}
	if s.records == nil {
		s.records = NopRecords{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

func (s *Service) Engine() string { return s.engine }

// Ready loads the model artifacts. It returns the same error on every call
// once a load has failed.
func (s *Service) Ready(ctx context.Context) error {
	err := s.analyzer.Predictor().Load(ctx)
	s.reportState()
	return err
}

// Models lists the models Compare runs, when the engine supports it.
func (s *Service) Models() []string {
	if m, ok := s.analyzer.Predictor().(interface{ Models() []string }); ok {
		return m.Models()
	}
	return nil
}

func (s *Service) Normalize(text string) preprocess.Text {
	return s.analyzer.Normalize(text)
}

func (s *Service) Classify(ctx context.Context, req models.ReviewRequest) (models.ReviewResult, error) {
	start := s.now()
	res, err := s.classify(ctx, req)
	s.observe("classify", start, err)
	return res, err
}

func (s *Service) classify(ctx context.Context, req models.ReviewRequest) (models.ReviewResult, error) {
	if err := validate(req); err != nil {
		return models.ReviewResult{}, err
	}
	if err := s.Ready(ctx); err != nil {
		return models.ReviewResult{}, err
	}

	normalized := s.analyzer.Normalize(req.Text)
	key := CacheKey(s.analyzer.Predictor().Name(), normalized)

	if cached, ok := s.lookup(ctx, key); ok {
		cached.ReviewID = s.reviewID(req)
		cached.Source = req.Source
		cached.Text = req.Text
		cached.Timestamp = s.now()
		cached.Cached = true
		s.count(cached)
		s.persist(ctx, []models.ReviewResult{cached})
		return cached, nil
	}

	r, err := s.analyzer.AnalyzeNormalized(ctx, normalized)
	if err != nil {
		return models.ReviewResult{}, err
	}
	result := s.toRecord(req, r)
	s.count(result)

	if err := s.cache.Set(ctx, key, result); err != nil {
		slog.Warn("[ReviewService] Failed to cache result",
			slog.String("review_id", result.ReviewID),
			slog.String("error", err.Error()))
	}
	s.persist(ctx, []models.ReviewResult{result})
	return result, nil
}

// Compare runs every configured model on one normalization of the review.
func (s *Service) Compare(ctx context.Context, req models.ReviewRequest) (models.ComparisonResult, error) {
	start := s.now()
	res, err := s.compare(ctx, req)
	s.observe("compare", start, err)
	return res, err
}

func (s *Service) compare(ctx context.Context, req models.ReviewRequest) (models.ComparisonResult, error) {
	if err := validate(req); err != nil {
		return models.ComparisonResult{}, err
	}
	if err := s.Ready(ctx); err != nil {
		return models.ComparisonResult{}, err
	}

	results, err := s.analyzer.Compare(ctx, req.Text)
	if err != nil {
		return models.ComparisonResult{}, err
	}

	id := s.reviewID(req)
	out := models.ComparisonResult{ReviewID: id, Text: req.Text}
	for _, r := range results {
		rec := s.toRecord(req, r)
		rec.ReviewID = id
		s.count(rec)
		out.Normalized = rec.Normalized
		out.Results = append(out.Results, rec)
	}
	return out, nil
}

// CacheKey identifies a prediction by engine, artifact versions and the
// normalized text.
func CacheKey(predictor string, text preprocess.Text) string {
	sum := sha256.Sum256([]byte(predictor + "|" + string(text)))
	return "sentimen:result:" + hex.EncodeToString(sum[:])
}

func validate(req models.ReviewRequest) error {
	if strings.TrimSpace(req.Text) == "" {
		return errs.ErrEmptyInput
	}
	return nil
}

func (s *Service) reviewID(req models.ReviewRequest) string {
	if req.ReviewID != "" {
		return req.ReviewID
	}
	return s.newID()
}

func (s *Service) toRecord(req models.ReviewRequest, r sentiment.Result) models.ReviewResult {
	return models.ReviewResult{
		ReviewID:      s.reviewID(req),
		Source:        req.Source,
		Text:          req.Text,
		Normalized:    string(r.Normalized),
		Engine:        s.engine,
		Model:         r.Model,
		Class:         int(r.Class),
		Category:      r.Label.Category,
		Label:         r.Label.Display,
		Emoji:         r.Label.Emoji,
		Note:          r.Label.Note,
		Confidence:    r.Confidence,
		HasConfidence: r.HasConfidence,
		Timestamp:     s.now(),
	}
}

func (s *Service) lookup(ctx context.Context, key string) (models.ReviewResult, bool) {
	r, ok, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		slog.Warn("[ReviewService] Cache lookup failed", slog.String("error", err.Error()))
		s.cacheResult("error")
		return models.ReviewResult{}, false
	case ok:
		s.cacheResult("hit")
	default:
		s.cacheResult("miss")
	}
	return r, ok
}

// persist writes records on a best-effort basis; a storage outage must not
// fail classification.
func (s *Service) persist(ctx context.Context, results []models.ReviewResult) {
	outcome := "ok"
	if err := s.records.Put(ctx, results); err != nil {
		outcome = "error"
		slog.Error("[ReviewService] Failed to persist review records",
			slog.Int("count", len(results)),
			slog.String("error", err.Error()))
	}
	if s.metrics != nil {
		s.metrics.RecordWrites.WithLabelValues(outcome).Add(float64(len(results)))
	}
}

func (s *Service) count(r models.ReviewResult) {
	if s.metrics != nil {
		s.metrics.Predictions.WithLabelValues(s.engine, r.Model, r.Category).Inc()
	}
}

func (s *Service) cacheResult(result string) {
	if s.metrics != nil {
		s.metrics.CacheLookups.WithLabelValues(result).Inc()
	}
}

func (s *Service) observe(op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.Requests.WithLabelValues(op, Outcome(err)).Inc()
	s.metrics.Latency.WithLabelValues(op).Observe(s.now().Sub(start).Seconds())
}

func (s *Service) reportState() {
	if s.metrics == nil {
		return
	}
	if st, ok := s.analyzer.Predictor().(interface{ State() artifacts.State }); ok {
		s.metrics.ArtifactState.WithLabelValues(s.engine).Set(float64(st.State()))
	}
}

// Outcome classifies an error for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errs.ErrEmptyInput):
		return "empty_input"
	case errors.Is(err, sentiment.ErrComparisonUnsupported):
		return "unsupported"
	case errs.IsSchemaMismatch(err):
		return "schema_mismatch"
	}
	if _, ok := errs.IsSetup(err); ok {
		return "setup_error"
	}
	return "error"
}
