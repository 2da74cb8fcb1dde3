package config

import (
	"testing"
	"time"

	"github.com/spacesedan/sentimen/internal/preprocess"
)

func TestParseModels(t *testing.T) {
	tests := []struct {
		in    string
		names []string
		err   bool
		desc  string
	}{
		{"logreg=a/logreg.json", []string{"logreg"}, false, "Single named model"},
		{"logreg=a.json, svm=b.json ,nb=c.json", []string{"logreg", "svm", "nb"}, false, "Three models with spaces"},
		{"artifacts/model_sentiment.json", []string{"model_sentiment"}, false, "Bare path is named after the file"},
		{"", nil, true, "Empty list"},
		{"a=x.json,a=y.json", nil, true, "Duplicate names"},
		{"a=", nil, true, "Missing path"},
		{"a=1,b=2,c=3,d=4", nil, true, "Too many models"},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			specs, err := ParseModels(tt.in)
			if tt.err {
				if err == nil {
					t.Fatalf("expected error, got %+v", specs)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(specs) != len(tt.names) {
				t.Fatalf("got %d specs, want %d", len(specs), len(tt.names))
			}
			for i, name := range tt.names {
				if specs[i].Name != name {
					t.Errorf("spec[%d] = %q, want %q", i, specs[i].Name, name)
				}
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"ENGINE", "MODELS", "ARTIFACT_DIR", "VECTORIZER_PATH", "CACHE_TTL", "PORT", "RATE_LIMIT", "RATE_BURST"} {
		t.Setenv(key, "")
	}
	t.Setenv("ENGINE", "vectorized")
	t.Setenv("ARTIFACT_DIR", "artifacts")
	t.Setenv("MODELS", "model_sentiment=artifacts/model_sentiment.json")
	t.Setenv("VECTORIZER_PATH", "artifacts/vectorizer_tfidf.json")
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("addr = %q", cfg.HTTPAddr)
	}
	if cfg.CacheTTL != time.Hour {
		t.Errorf("ttl = %s, want 1h", cfg.CacheTTL)
	}
	if cfg.RateLimit != 20 || cfg.RateBurst != 40 {
		t.Errorf("rate = %d/%d", cfg.RateLimit, cfg.RateBurst)
	}
	if cfg.Profile() != preprocess.ProfileVectorized {
		t.Errorf("profile = %s", cfg.Profile())
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENGINE", "Sequence")
	t.Setenv("MODELS", "a=x.json")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("VALKEY_TLS", "true")
	t.Setenv("RATE_LIMIT", "5")
	t.Setenv("RATE_BURST", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Engine != EngineSequence || cfg.Profile() != preprocess.ProfileSequence {
		t.Errorf("engine = %q", cfg.Engine)
	}
	if cfg.CacheTTL != 90*time.Second || !cfg.ValkeyTLS || cfg.RateBurst != 7 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadRejectsUnknownEngine(t *testing.T) {
	t.Setenv("ENGINE", "bert")
	t.Setenv("MODELS", "a=x.json")
	if _, err := Load(); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseLabelMap(t *testing.T) {
	tests := []struct {
		in   string
		want map[string]int
		err  bool
		desc string
	}{
		{"", nil, false, "Empty uses defaults"},
		{"negative=0, Positive=1", map[string]int{"NEGATIVE": 0, "POSITIVE": 1}, false, "Names are uppercased"},
		{"LABEL_0=0,LABEL_1=1,", map[string]int{"LABEL_0": 0, "LABEL_1": 1}, false, "Trailing comma"},
		{"NEGATIVE", nil, true, "Missing index"},
		{"=1", nil, true, "Missing name"},
		{"NEUTRAL=2", nil, true, "Index outside the binary scheme"},
		{"POSITIVE=yes", nil, true, "Index is not a number"},
		{"pos=1,POS=0", nil, true, "Duplicate label"},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got, err := ParseLabelMap(tt.in)
			if tt.err {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %d, want %d", k, got[k], v)
				}
			}
			if tt.want == nil && got != nil {
				t.Errorf("expected nil map, got %v", got)
			}
		})
	}
}

func TestLoadSequenceLabels(t *testing.T) {
	t.Setenv("MODELS", "a=x.json")
	t.Setenv("SEQUENCE_LABELS", "NEGATIF=0,POSITIF=1")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SequenceLabels["POSITIF"] != 1 || len(cfg.SequenceLabels) != 2 {
		t.Errorf("labels = %v", cfg.SequenceLabels)
	}

	t.Setenv("SEQUENCE_LABELS", "NEUTRAL=2")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for a non-binary label index")
	}
}
