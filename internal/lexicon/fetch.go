package lexicon

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spacesedan/sentimen/internal/errs"
)

const (
	DefaultCorpusURL = "https://raw.githubusercontent.com/nltk/nltk_data/gh-pages/packages/corpora/stopwords.zip"

	fetchRetries   = 4
	initialBackoff = 1 * time.Second
	maxArchiveSize = 64 << 20
)

// Fetcher downloads the NLTK stopwords package into an NLTK-style data
// directory. It is a one-time setup step and is never run while serving.
type Fetcher struct {
	Client  *http.Client
	URL     string
	backoff time.Duration
}

func NewFetcher(url string) *Fetcher {
	if url == "" {
		url = DefaultCorpusURL
	}
	return &Fetcher{
		Client:  &http.Client{Timeout: 60 * time.Second},
		URL:     url,
		backoff: initialBackoff,
	}
}

// Fetch installs the list for language under dir and returns its path.
func (f *Fetcher) Fetch(ctx context.Context, dir, language string) (string, error) {
	target := DirCorpus{Dir: dir}.Source(language)
	slog.Info("[CorpusFetcher] Downloading stopword corpus",
		slog.String("url", f.URL),
		slog.String("language", language))

	archive, err := f.download(ctx)
	if err != nil {
		return "", errs.Setup(errs.ResourceStopwords, f.URL, err)
	}

	data, err := extract(archive, "stopwords/"+language)
	if err != nil {
		return "", errs.Setup(errs.ResourceStopwords, f.URL, err)
	}
	words, err := parseWordList(data)
	if err != nil || len(words) == 0 {
		return "", errs.Setup(errs.ResourceStopwords, f.URL, fmt.Errorf("corpus for %q is empty", language))
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", errs.Setup(errs.ResourceStopwords, target, err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", errs.Setup(errs.ResourceStopwords, target, err)
	}

	slog.Info("[CorpusFetcher] Stopword corpus installed",
		slog.String("path", target),
		slog.Int("words", len(words)))
	return target, nil
}

func (f *Fetcher) download(ctx context.Context) ([]byte, error) {
	backoff := f.backoff
	var lastErr error

	for attempt := 0; attempt < fetchRetries; attempt++ {
		body, err := f.get(ctx)
		if err == nil {
			return body, nil
		}
		lastErr = err

		slog.Warn("[CorpusFetcher] Download failed, will retry",
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("download failed after %d attempts: %w", fetchRetries, lastErr)
}

func (f *Fetcher) get(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status code %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxArchiveSize))
}

func extract(archive []byte, name string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("corpus archive is not a zip: %w", err)
	}
	for _, file := range zr.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s not found in corpus archive", name)
}
