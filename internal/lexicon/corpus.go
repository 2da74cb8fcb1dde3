package lexicon

import (
	"bufio"
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spacesedan/sentimen/internal/errs"
)

//go:embed data/indonesian
var embedded embed.FS

// CorpusProvider supplies the base stopword list for a language.
type CorpusProvider interface {
	Load(ctx context.Context, language string) ([]string, error)
	// Source describes where the list for language is read from, for logs and errors.
	Source(language string) string
}

// EmbeddedCorpus serves the stopword lists compiled into the binary.
type EmbeddedCorpus struct{}

func (EmbeddedCorpus) Source(language string) string {
	return "embedded:" + language
}

func (e EmbeddedCorpus) Load(_ context.Context, language string) ([]string, error) {
	f, err := embedded.Open("data/" + language)
	if err != nil {
		return nil, errs.Setup(errs.ResourceStopwords, e.Source(language), err)
	}
	defer f.Close()
	return readWordList(f)
}

// DirCorpus reads stopword lists laid out like an NLTK data directory:
// <Dir>/corpora/stopwords/<language>.
type DirCorpus struct {
	Dir string
}

func (d DirCorpus) Source(language string) string {
	return filepath.Join(d.Dir, "corpora", "stopwords", language)
}

func (d DirCorpus) Load(_ context.Context, language string) ([]string, error) {
	path := d.Source(language)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errs.Setup(errs.ResourceStopwords, path,
				fmt.Errorf("corpus not installed, run `sentimen fetch-corpus`"))
		}
		return nil, errs.Setup(errs.ResourceStopwords, path, err)
	}
	defer f.Close()

	words, err := readWordList(f)
	if err != nil {
		return nil, errs.Setup(errs.ResourceStopwords, path, err)
	}
	return words, nil
}

// Installed reports whether the list for language is present on disk.
func (d DirCorpus) Installed(language string) bool {
	_, err := os.Stat(d.Source(language))
	return err == nil
}

// ProviderFor returns a DirCorpus when dir is set, else the embedded lists.
func ProviderFor(dir string) CorpusProvider {
	if dir == "" {
		return EmbeddedCorpus{}
	}
	return DirCorpus{Dir: dir}
}

// readWordList parses one word per line, skipping blank lines.
func readWordList(r io.Reader) ([]string, error) {
	var words []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		w := strings.TrimSpace(sc.Text())
		if w == "" {
			continue
		}
		words = append(words, w)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("[Lexicon] failed to read word list: %w", err)
	}
	return words, nil
}

func parseWordList(data []byte) ([]string, error) {
	return readWordList(bytes.NewReader(data))
}
