package lexicon

import (
	"bytes"
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

//go:embed data/retained_terms.yaml
var retainedYAML []byte

// RetainedTerms is the versioned list of words never treated as stopwords.
// Training exports and the serving binary must agree on Version.
type RetainedTerms struct {
	Version  string              `yaml:"version"`
	Language string              `yaml:"language"`
	Terms    map[string][]string `yaml:"terms"`
}

// All returns every retained term across groups, deduplicated and sorted.
func (r *RetainedTerms) All() []string {
	seen := make(map[string]struct{})
	for _, group := range r.Terms {
		for _, t := range group {
			seen[t] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// Groups returns the group names in sorted order.
func (r *RetainedTerms) Groups() []string {
	out := make([]string, 0, len(r.Terms))
	for g := range r.Terms {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// DefaultRetainedTerms parses the embedded retained-term list.
func DefaultRetainedTerms() (*RetainedTerms, error) {
	return ParseRetainedTerms(retainedYAML)
}

// ParseRetainedTerms decodes a retained-term document. Unknown fields are
// rejected, and so are multi-word entries: tokens never contain spaces, so
// such an entry could never match.
func ParseRetainedTerms(data []byte) (*RetainedTerms, error) {
	var r RetainedTerms
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("[Lexicon] failed to parse retained terms: %w", err)
	}
	if r.Version == "" {
		return nil, fmt.Errorf("[Lexicon] retained terms have no version")
	}
	for group, terms := range r.Terms {
		for _, t := range terms {
			if t == "" || strings.ContainsFunc(t, unicode.IsSpace) || t != strings.ToLower(t) {
				return nil, fmt.Errorf("[Lexicon] invalid retained term %q in group %q", t, group)
			}
		}
	}
	return &r, nil
}
