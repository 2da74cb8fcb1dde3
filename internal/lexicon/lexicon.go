// Package lexicon builds the stopword set used by the review normalizer.
//
// The effective set is the base stopword corpus for a language minus a
// curated list of retained terms (negators, hedges and quality words) that
// look like filler but decide polarity. A Lexicon is built once at startup and
// never mutated afterwards.
package lexicon

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/spacesedan/sentimen/internal/errs"
)

const DefaultLanguage = "indonesian"

type Lexicon struct {
	language  string
	version   string
	stopwords map[string]struct{}
	retained  map[string]struct{}
}

// Load reads the base corpus from provider and subtracts the embedded
// retained terms. A missing or empty corpus is a setup error; filtering is
// never silently disabled.
func Load(ctx context.Context, provider CorpusProvider, language string) (*Lexicon, error) {
	retained, err := DefaultRetainedTerms()
	if err != nil {
		return nil, err
	}
	return LoadWith(ctx, provider, language, retained)
}

// LoadWith is Load with an explicit retained-term list.
func LoadWith(ctx context.Context, provider CorpusProvider, language string, retained *RetainedTerms) (*Lexicon, error) {
	if provider == nil {
		return nil, errs.Setup(errs.ResourceStopwords, "", fmt.Errorf("no corpus provider configured"))
	}

	base, err := provider.Load(ctx, language)
	if err != nil {
		return nil, err
	}
	if len(base) == 0 {
		return nil, errs.Setup(errs.ResourceStopwords, provider.Source(language),
			fmt.Errorf("corpus for %q is empty", language))
	}

	lex := New(language, retained.Version, base, retained.All())
	slog.Info("[Lexicon] Stopwords loaded",
		slog.String("language", language),
		slog.String("source", provider.Source(language)),
		slog.String("retained_version", lex.version),
		slog.Int("base", len(base)),
		slog.Int("effective", len(lex.stopwords)))
	return lex, nil
}

// New builds a lexicon from explicit word lists.
func New(language, version string, base, retained []string) *Lexicon {
	lex := &Lexicon{
		language:  language,
		version:   version,
		stopwords: make(map[string]struct{}, len(base)),
		retained:  make(map[string]struct{}, len(retained)),
	}
	for _, w := range retained {
		lex.retained[w] = struct{}{}
	}
	for _, w := range base {
		if _, keep := lex.retained[w]; keep {
			continue
		}
		lex.stopwords[w] = struct{}{}
	}
	return lex
}

func (l *Lexicon) Language() string { return l.language }

// Version is the retained-term list version this lexicon was built with.
func (l *Lexicon) Version() string { return l.version }

func (l *Lexicon) IsStopword(token string) bool {
	_, ok := l.stopwords[token]
	return ok
}

// EffectiveStopwords returns a copy of the effective stopword set.
func (l *Lexicon) EffectiveStopwords() map[string]struct{} {
	out := make(map[string]struct{}, len(l.stopwords))
	for w := range l.stopwords {
		out[w] = struct{}{}
	}
	return out
}

// Stopwords returns the effective set as a sorted slice.
func (l *Lexicon) Stopwords() []string {
	return sortedKeys(l.stopwords)
}

// Retained returns the retained terms in sorted order.
func (l *Lexicon) Retained() []string {
	return sortedKeys(l.retained)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for w := range m {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}
