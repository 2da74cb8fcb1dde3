// Package config assembles the service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spacesedan/sentimen/internal/inference"
	"github.com/spacesedan/sentimen/internal/lexicon"
	"github.com/spacesedan/sentimen/internal/preprocess"
)

const (
	EngineVectorized = "vectorized"
	EngineSequence   = "sequence"
)

type Config struct {
	Env      string
	LogLevel string

	Engine string
	// VectorizerPath and Models configure the vectorized engine.
	VectorizerPath string
	Models         []inference.ModelSpec
	// SequenceModelPath is a local ONNX model directory for the sequence
	// engine. SequenceModel is the Hugging Face name fetched into ModelDir.
	SequenceModelPath string
	SequenceModel     string
	ModelDir          string
	// SequenceLabels maps model labels to binary class indices. Nil uses
	// the predictor's defaults.
	SequenceLabels map[string]int

	Language  string
	CorpusDir string
	CorpusURL string

	CacheSize      int
	CacheTTL       time.Duration
	ValkeyAddr     string
	ValkeyPassword string
	ValkeyTLS      bool

	DynamoTable    string
	DynamoEndpoint string
	// RecordTTL sets expires_at on stored records. Zero keeps them.
	RecordTTL time.Duration

	HTTPAddr  string
	RateLimit int
	RateBurst int
}

// Load reads the configuration from the process environment. Call LoadEnv
// first to pull in the .env file for the current APP_ENV.
func Load() (Config, error) {
	artifactDir := getEnv("ARTIFACT_DIR", "artifacts")

	models, err := ParseModels(getEnv("MODELS", "model_sentiment="+filepath.Join(artifactDir, "model_sentiment.json")))
	if err != nil {
		return Config{}, err
	}

	labels, err := ParseLabelMap(getEnv("SEQUENCE_LABELS", ""))
	if err != nil {
		return Config{}, err
	}

	rateLimit := getEnvInt("RATE_LIMIT", 20)
	cfg := Config{
		Env:      Env(),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		Engine:            strings.ToLower(getEnv("ENGINE", EngineVectorized)),
		VectorizerPath:    getEnv("VECTORIZER_PATH", filepath.Join(artifactDir, "vectorizer_tfidf.json")),
		Models:            models,
		SequenceModelPath: getEnv("SEQUENCE_MODEL_PATH", ""),
		SequenceModel:     getEnv("SEQUENCE_MODEL", inference.DefaultSequenceModel),
		ModelDir:          getEnv("MODEL_DIR", "./models"),
		SequenceLabels:    labels,

		Language:  getEnv("STOPWORD_LANGUAGE", lexicon.DefaultLanguage),
		CorpusDir: getEnv("CORPUS_DIR", ""),
		CorpusURL: getEnv("CORPUS_URL", lexicon.DefaultCorpusURL),

		CacheSize:      getEnvInt("CACHE_SIZE", 4096),
		CacheTTL:       getEnvDuration("CACHE_TTL", time.Hour),
		ValkeyAddr:     getEnv("VALKEY_INIT_ADDRESS", ""),
		ValkeyPassword: getEnv("VALKEY_PASSWORD", ""),
		ValkeyTLS:      getEnvBool("VALKEY_TLS", false),

		DynamoTable:    getEnv("DYNAMODB_TABLE", ""),
		DynamoEndpoint: getEnv("DYNAMODB_ENDPOINT", ""),
		RecordTTL:      getEnvDuration("DYNAMODB_RECORD_TTL", 0),

		HTTPAddr:  ":" + getEnv("PORT", "8080"),
		RateLimit: rateLimit,
		RateBurst: getEnvInt("RATE_BURST", rateLimit*2),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Engine {
	case EngineVectorized, EngineSequence:
	default:
		return fmt.Errorf("[Config] unknown ENGINE %q (want %s or %s)", c.Engine, EngineVectorized, EngineSequence)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("[Config] CACHE_TTL must not be negative")
	}
	if c.RecordTTL < 0 {
		return fmt.Errorf("[Config] DYNAMODB_RECORD_TTL must not be negative")
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("[Config] RATE_LIMIT must be positive")
	}
	return nil
}

// Profile is the normalization profile the configured engine expects.
func (c Config) Profile() preprocess.Profile {
	if c.Engine == EngineSequence {
		return preprocess.ProfileSequence
	}
	return preprocess.ProfileVectorized
}

// ParseModels reads a comma separated list of name=path pairs. A bare path
// is named after its file.
func ParseModels(s string) ([]inference.ModelSpec, error) {
	var specs []inference.ModelSpec
	seen := map[string]bool{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, path, ok := strings.Cut(part, "=")
		if !ok {
			path = name
			name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		name, path = strings.TrimSpace(name), strings.TrimSpace(path)
		if name == "" || path == "" {
			return nil, fmt.Errorf("[Config] invalid model entry %q", part)
		}
		if seen[name] {
			return nil, fmt.Errorf("[Config] duplicate model name %q", name)
		}
		seen[name] = true
		specs = append(specs, inference.ModelSpec{Name: name, Path: path})
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("[Config] MODELS is empty")
	}
	if len(specs) > inference.MaxCompareModels {
		return nil, fmt.Errorf("[Config] at most %d models are supported, got %d", inference.MaxCompareModels, len(specs))
	}
	return specs, nil
}

// ParseLabelMap reads a comma separated list of label=index pairs, e.g.
// "NEGATIVE=0,POSITIVE=1". Indices are binary classes. An empty string
// yields nil.
func ParseLabelMap(s string) (map[string]int, error) {
	var labels map[string]int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		name = strings.ToUpper(strings.TrimSpace(name))
		if !ok || name == "" {
			return nil, fmt.Errorf("[Config] invalid label entry %q", part)
		}
		index, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || index < 0 || index > 1 {
			return nil, fmt.Errorf("[Config] label %q needs index 0 or 1, got %q", name, value)
		}
		if _, dup := labels[name]; dup {
			return nil, fmt.Errorf("[Config] duplicate label %q", name)
		}
		if labels == nil {
			labels = map[string]int{}
		}
		labels[name] = index
	}
	return labels, nil
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
