// Package preprocess turns raw review text into the normalized form the
// classifiers were trained on.
//
// Two profiles exist. ProfileVectorized reproduces the training-time cleaning
// used for the TF-IDF models, step for step; any change to the order of the
// steps below desynchronizes serving from training without raising an error.
// ProfileSequence is the lighter cleaning fed to transformer models, which
// need context words and therefore skip stopword removal.
package preprocess

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/spacesedan/sentimen/internal/lexicon"
)

// Text is normalized review text: lowercase, single-space separated tokens,
// no leading or trailing whitespace. The empty Text is valid.
type Text string

type Profile int

const (
	ProfileVectorized Profile = iota
	ProfileSequence
)

func (p Profile) String() string {
	switch p {
	case ProfileVectorized:
		return "vectorized"
	case ProfileSequence:
		return "sequence"
	default:
		return fmt.Sprintf("profile(%d)", int(p))
	}
}

func ParseProfile(s string) (Profile, error) {
	switch s {
	case "vectorized":
		return ProfileVectorized, nil
	case "sequence":
		return ProfileSequence, nil
	default:
		return 0, fmt.Errorf("unknown normalization profile %q", s)
	}
}

// space matches the characters Python's str.isspace accepts, which is what
// the training pipeline split on. It is wider than RE2's \s.
const space = `\t\n\v\f\r \x{1c}-\x{1f}\x{85}\p{Z}`

var (
	urlPattern      = regexp.MustCompile(`(?:http|www)[^` + space + `]+`)
	digitPattern    = regexp.MustCompile(`\p{Nd}`)
	nonWordPattern  = regexp.MustCompile(`[^\p{L}\p{N}_` + space + `]`)
	nonAlphaPattern = regexp.MustCompile(`[^a-z` + space + `]`)
	spacePattern    = regexp.MustCompile(`[` + space + `]+`)
)

type Normalizer struct {
	profile Profile
	lex     *lexicon.Lexicon
}

// New builds a normalizer for profile. The vectorized profile requires a
// lexicon; the sequence profile ignores it.
func New(profile Profile, lex *lexicon.Lexicon) (*Normalizer, error) {
	switch profile {
	case ProfileVectorized:
		if lex == nil {
			return nil, fmt.Errorf("[Normalizer] vectorized profile needs a stopword lexicon")
		}
	case ProfileSequence:
	default:
		return nil, fmt.Errorf("[Normalizer] unsupported profile %s", profile)
	}
	return &Normalizer{profile: profile, lex: lex}, nil
}

func (n *Normalizer) Profile() Profile { return n.profile }

func (n *Normalizer) Normalize(raw string) Text {
	if n.profile == ProfileSequence {
		return normalizeSequence(raw)
	}

	tokens := strings.Split(Clean(raw), " ")
	kept := tokens[:0]
	for _, tok := range tokens {
		if tok == "" || n.lex.IsStopword(tok) {
			continue
		}
		kept = append(kept, tok)
	}
	return Text(strings.Join(kept, " "))
}

// Clean applies the vectorized profile up to, but excluding, stopword removal.
func Clean(raw string) string {
	s := lower(raw)
	s = urlPattern.ReplaceAllString(s, "")
	s = digitPattern.ReplaceAllString(s, "")
	s = nonWordPattern.ReplaceAllString(s, " ")
	return collapse(s)
}

func normalizeSequence(raw string) Text {
	s := lower(raw)
	s = nonAlphaPattern.ReplaceAllString(s, "")
	return Text(collapse(s))
}

// lower uses full Unicode case mapping (İ becomes i + U+0307), matching the
// training pipeline rather than Go's rune-by-rune strings.ToLower.
// Casers are stateful, so one is built per call.
func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}

func collapse(s string) string {
	return strings.Trim(spacePattern.ReplaceAllString(s, " "), " ")
}

// Tokens splits normalized text into its tokens.
func Tokens(t Text) []string {
	if t == "" {
		return nil
	}
	return strings.Split(string(t), " ")
}
