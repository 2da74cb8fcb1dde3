package lexicon

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spacesedan/sentimen/internal/errs"
)

func TestLoadEmbedded(t *testing.T) {
	lex, err := Load(context.Background(), EmbeddedCorpus{}, DefaultLanguage)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := len(lex.EffectiveStopwords()); got != 744 {
		t.Errorf("effective stopwords = %d, want 744", got)
	}
	if lex.Version() != "2" {
		t.Errorf("version = %q, want 2", lex.Version())
	}

	for _, w := range []string{"yang", "dan", "sekali", "adalah"} {
		if !lex.IsStopword(w) {
			t.Errorf("%q should be a stopword", w)
		}
	}
}

func TestRetainedNeverStopwords(t *testing.T) {
	lex, err := Load(context.Background(), EmbeddedCorpus{}, DefaultLanguage)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	effective := lex.EffectiveStopwords()
	for _, term := range lex.Retained() {
		if _, ok := effective[term]; ok {
			t.Errorf("retained term %q present in effective stopwords", term)
		}
	}

	for _, term := range []string{"tidak", "bukan", "agak", "tapi", "lama", "kurang", "saja", "cukup"} {
		if lex.IsStopword(term) {
			t.Errorf("%q must survive stopword filtering", term)
		}
	}
}

func TestEffectiveStopwordsIsCopy(t *testing.T) {
	lex := New("xx", "1", []string{"a", "b"}, nil)
	set := lex.EffectiveStopwords()
	delete(set, "a")
	if !lex.IsStopword("a") {
		t.Fatal("mutating the returned set changed the lexicon")
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	emptyDir := t.TempDir()
	path := filepath.Join(emptyDir, "corpora", "stopwords", "indonesian")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		desc     string
		provider CorpusProvider
		language string
	}{
		{"missing directory corpus", DirCorpus{Dir: dir}, DefaultLanguage},
		{"empty directory corpus", DirCorpus{Dir: emptyDir}, DefaultLanguage},
		{"language not embedded", EmbeddedCorpus{}, "klingon"},
		{"nil provider", nil, DefaultLanguage},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			_, err := Load(context.Background(), tt.provider, tt.language)
			se, ok := errs.IsSetup(err)
			if !ok {
				t.Fatalf("expected SetupError, got %v", err)
			}
			if se.Resource != errs.ResourceStopwords {
				t.Errorf("resource = %q, want stopwords", se.Resource)
			}
		})
	}
}

func TestDirCorpus(t *testing.T) {
	dir := t.TempDir()
	path := DirCorpus{Dir: dir}.Source("indonesian")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("yang\r\ndan\n\ntidak\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	lex, err := Load(context.Background(), ProviderFor(dir), "indonesian")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := lex.Stopwords(); len(got) != 2 || got[0] != "dan" || got[1] != "yang" {
		t.Errorf("stopwords = %v, want [dan yang]", got)
	}
}

func TestParseRetainedTerms(t *testing.T) {
	tests := []struct {
		desc    string
		doc     string
		wantErr bool
	}{
		{"valid", "version: \"1\"\nterms:\n  negators: [tidak]\n", false},
		{"missing version", "terms:\n  negators: [tidak]\n", true},
		{"multi-word term", "version: \"1\"\nterms:\n  hedges: [\"not bad\"]\n", true},
		{"uppercase term", "version: \"1\"\nterms:\n  hedges: [Tidak]\n", true},
		{"unknown field", "version: \"1\"\nextra: 1\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			_, err := ParseRetainedTerms([]byte(tt.doc))
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFetcher(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("stopwords/indonesian")
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("yang\ndan\n"))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	dir := t.TempDir()
	path, err := NewFetcher(srv.URL).Fetch(context.Background(), dir, "indonesian")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !(DirCorpus{Dir: dir}).Installed("indonesian") {
		t.Fatalf("corpus not installed at %s", path)
	}

	if _, err := NewFetcher(srv.URL).Fetch(context.Background(), dir, "english"); err == nil {
		t.Fatal("expected error for language missing from archive")
	}
}
