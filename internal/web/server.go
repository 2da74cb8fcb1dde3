// Package web serves the review form and a small JSON API over the review
// service.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/russross/blackfriday/v2"
	"golang.org/x/time/rate"

	"github.com/spacesedan/sentimen/internal/errs"
	"github.com/spacesedan/sentimen/internal/metrics"
	"github.com/spacesedan/sentimen/internal/models"
	"github.com/spacesedan/sentimen/internal/sentiment"
)

const (
	pageTitle       = "Analisis Sentimen Ulasan Shopee"
	placeholder     = "Contoh: Barangnya lumayan bagus, tapi pengiriman agak lama..."
	emptyTextNotice = "Silakan masukkan teks ulasan terlebih dahulu."

	maxBodyBytes = 64 << 10
)

//go:embed templates/*.html
var templateFS embed.FS

// ReviewService is what the handlers need from review.Service.
type ReviewService interface {
	Engine() string
	Ready(ctx context.Context) error
	Classify(ctx context.Context, req models.ReviewRequest) (models.ReviewResult, error)
	Compare(ctx context.Context, req models.ReviewRequest) (models.ComparisonResult, error)
}

type Options struct {
	// RateLimit is requests per second across all classification endpoints.
	RateLimit int
	RateBurst int
	Metrics   *metrics.Metrics
	// Gatherer backs /metrics. Nil means the default registry.
	Gatherer prometheus.Gatherer
}

type Server struct {
	svc      ReviewService
	limiter  *rate.Limiter
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	tmpl     *template.Template
}

func NewServer(svc ReviewService, opts Options) (*Server, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("[Web] failed to parse templates: %w", err)
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 20
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = opts.RateLimit * 2
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		svc:      svc,
		limiter:  rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst),
		metrics:  opts.Metrics,
		gatherer: opts.Gatherer,
		tmpl:     tmpl,
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.Handle("POST /analyze", s.limit(http.HandlerFunc(s.handleAnalyze)))
	mux.Handle("POST /api/v1/classify", s.limit(http.HandlerFunc(s.handleClassify)))
	mux.Handle("POST /api/v1/compare", s.limit(http.HandlerFunc(s.handleCompare)))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return mux
}

func (s *Server) limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			if s.metrics != nil {
				s.metrics.RateLimited.Inc()
			}
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type resultView struct {
	Summary       template.HTML
	Category      string
	Confidence    float64
	HasConfidence bool
	Model         string
	Cached        bool
}

type page struct {
	Title       string
	Placeholder string
	Engine      string
	Text        string
	Notice      string
	Error       string
	Result      *resultView
}

func (s *Server) newPage() page {
	return page{Title: pageTitle, Placeholder: placeholder, Engine: s.svc.Engine()}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, s.newPage())
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	p := s.newPage()
	p.Text = r.PostFormValue("text")
	if strings.TrimSpace(p.Text) == "" {
		p.Notice = emptyTextNotice
		s.render(w, http.StatusOK, p)
		return
	}

	res, err := s.svc.Classify(r.Context(), models.ReviewRequest{Source: "web", Text: p.Text})
	if err != nil {
		status, msg := describe(err)
		slog.Error("[Web] Analysis failed", slog.String("error", err.Error()))
		p.Error = msg
		s.render(w, status, p)
		return
	}
	p.Result = &resultView{
		Summary:       summarize(res),
		Category:      res.Category,
		Confidence:    res.Confidence,
		HasConfidence: res.HasConfidence,
		Model:         res.Model,
		Cached:        res.Cached,
	}
	s.render(w, http.StatusOK, p)
}

func (s *Server) render(w http.ResponseWriter, status int, p page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.tmpl.ExecuteTemplate(w, "index.html", p); err != nil {
		slog.Error("[Web] Failed to render page", slog.String("error", err.Error()))
	}
}

// summarize renders the label and its note. The text comes from the fixed
// label table, never from user input.
func summarize(res models.ReviewResult) template.HTML {
	md := fmt.Sprintf("### %s %s\n\n%s\n", res.Emoji, res.Label, res.Note)
	return template.HTML(blackfriday.Run([]byte(md), blackfriday.WithNoExtensions()))
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	res, err := s.svc.Classify(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	res, err := s.svc.Compare(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ready(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"engine": s.svc.Engine(),
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "engine": s.svc.Engine()})
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (models.ReviewRequest, bool) {
	var req models.ReviewRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return req, false
	}
	return req, true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, msg := describe(err)
	if status >= http.StatusInternalServerError {
		slog.Error("[Web] Request failed", slog.String("error", err.Error()))
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

// describe maps an error to an HTTP status and a message for the user.
func describe(err error) (int, string) {
	if se, ok := errs.IsSetup(err); ok {
		return http.StatusServiceUnavailable, setupMessage(se)
	}
	switch {
	case errors.Is(err, errs.ErrEmptyInput):
		return http.StatusBadRequest, emptyTextNotice
	case errors.Is(err, sentiment.ErrComparisonUnsupported):
		return http.StatusNotImplemented, "Perbandingan model hanya tersedia untuk mesin vectorized."
	case errs.IsSchemaMismatch(err):
		return http.StatusInternalServerError, "⚠️ Artefak model tidak cocok satu sama lain: " + err.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "Permintaan dibatalkan."
	default:
		return http.StatusInternalServerError, "Terjadi kesalahan saat menganalisis ulasan."
	}
}

func setupMessage(se *errs.SetupError) string {
	name := string(se.Resource)
	if se.Path != "" {
		name = filepath.Base(se.Path)
	}
	return fmt.Sprintf("⚠️ File '%s' tidak ditemukan atau tidak dapat dibaca! Pastikan artefak %s tersedia.", name, se.Resource)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("[Web] Failed to encode response", slog.String("error", err.Error()))
	}
}
