package artifacts

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/spacesedan/sentimen/internal/errs"
	"github.com/spacesedan/sentimen/internal/preprocess"
)

const (
	FormatTFIDF = "tfidf/v1"

	// defaultTokenPattern is scikit-learn's default; it is the only pattern
	// supported.
	defaultTokenPattern = `(?u)\b\w\w+\b`
)

// FeatureVector is the fixed-length output of the vectorizer. It is read-only
// once produced.
type FeatureVector struct {
	values []float64
}

func NewFeatureVector(values []float64) FeatureVector {
	return FeatureVector{values: append([]float64(nil), values...)}
}

func (v FeatureVector) Dim() int { return len(v.values) }

func (v FeatureVector) At(i int) float64 { return v.values[i] }

// Values returns a copy of the vector.
func (v FeatureVector) Values() []float64 {
	return append([]float64(nil), v.values...)
}

func (v FeatureVector) NonZero() int {
	n := 0
	for _, x := range v.values {
		if x != 0 {
			n++
		}
	}
	return n
}

// Checksum hashes the exact bit pattern of the vector.
func (v FeatureVector) Checksum() string {
	h := sha256.New()
	var buf [8]byte
	for _, x := range v.values {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(x))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

type tfidfFile struct {
	Format         string         `json:"format"`
	Vocabulary     map[string]int `json:"vocabulary"`
	IDF            []float64      `json:"idf"`
	Norm           *string        `json:"norm"`
	UseIDF         *bool          `json:"use_idf"`
	SublinearTF    bool           `json:"sublinear_tf"`
	Binary         bool           `json:"binary"`
	NgramRange     []int          `json:"ngram_range"`
	StopWords      []string       `json:"stop_words"`
	TokenPattern   string         `json:"token_pattern"`
	LexiconVersion string         `json:"lexicon_version"`
}

// Vectorizer is a fitted TF-IDF transform with a fixed vocabulary.
type Vectorizer struct {
	vocabulary     map[string]int
	idf            []float64
	norm           string
	sublinearTF    bool
	binary         bool
	minN, maxN     int
	stopWords      map[string]struct{}
	lexiconVersion string
}

func LoadVectorizer(path string) (*Vectorizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Setup(errs.ResourceVectorizer, path, err)
	}
	v, err := ParseVectorizer(data)
	if err != nil {
		return nil, errs.Setup(errs.ResourceVectorizer, path, err)
	}
	return v, nil
}

func ParseVectorizer(data []byte) (*Vectorizer, error) {
	var f tfidfFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("corrupt vectorizer artifact: %w", err)
	}
	if f.Format != FormatTFIDF {
		return nil, fmt.Errorf("unsupported vectorizer format %q", f.Format)
	}
	if f.TokenPattern != "" && f.TokenPattern != defaultTokenPattern {
		return nil, fmt.Errorf("unsupported token pattern %q", f.TokenPattern)
	}

	dim := len(f.Vocabulary)
	if dim == 0 {
		return nil, fmt.Errorf("vectorizer has an empty vocabulary")
	}
	seen := make([]bool, dim)
	for term, idx := range f.Vocabulary {
		if idx < 0 || idx >= dim || seen[idx] {
			return nil, fmt.Errorf("vocabulary index %d for %q is invalid", idx, term)
		}
		seen[idx] = true
	}

	v := &Vectorizer{
		vocabulary:     f.Vocabulary,
		norm:           "l2",
		sublinearTF:    f.SublinearTF,
		binary:         f.Binary,
		minN:           1,
		maxN:           1,
		lexiconVersion: f.LexiconVersion,
	}

	if f.UseIDF == nil || *f.UseIDF {
		if len(f.IDF) != dim {
			return nil, fmt.Errorf("idf has %d weights for %d terms", len(f.IDF), dim)
		}
		v.idf = f.IDF
	}

	if f.Norm != nil {
		switch *f.Norm {
		case "l1", "l2":
			v.norm = *f.Norm
		case "", "none":
			v.norm = ""
		default:
			return nil, fmt.Errorf("unsupported norm %q", *f.Norm)
		}
	}

	if len(f.NgramRange) != 0 {
		if len(f.NgramRange) != 2 || f.NgramRange[0] < 1 || f.NgramRange[0] > f.NgramRange[1] {
			return nil, fmt.Errorf("invalid ngram range %v", f.NgramRange)
		}
		v.minN, v.maxN = f.NgramRange[0], f.NgramRange[1]
	}

	if len(f.StopWords) > 0 {
		v.stopWords = make(map[string]struct{}, len(f.StopWords))
		for _, w := range f.StopWords {
			v.stopWords[w] = struct{}{}
		}
	}
	return v, nil
}

func (v *Vectorizer) Dim() int { return len(v.vocabulary) }

// LexiconVersion is the retained-term version recorded at training time, if any.
func (v *Vectorizer) LexiconVersion() string { return v.lexiconVersion }

// Transform maps normalized text to its TF-IDF vector. Empty text, or text
// with no known terms, yields the zero vector.
func (v *Vectorizer) Transform(text preprocess.Text) FeatureVector {
	values := make([]float64, v.Dim())
	for _, term := range v.terms(string(text)) {
		if idx, ok := v.vocabulary[term]; ok {
			values[idx]++
		}
	}

	for i, tf := range values {
		if tf == 0 {
			continue
		}
		if v.binary {
			tf = 1
		}
		if v.sublinearTF {
			tf = 1 + math.Log(tf)
		}
		if v.idf != nil {
			tf *= v.idf[i]
		}
		values[i] = tf
	}

	normalize(values, v.norm)
	return FeatureVector{values: values}
}

// terms produces the n-grams counted against the vocabulary.
func (v *Vectorizer) terms(text string) []string {
	tokens := wordTokens(text)
	if v.stopWords != nil {
		kept := tokens[:0]
		for _, t := range tokens {
			if _, stop := v.stopWords[t]; !stop {
				kept = append(kept, t)
			}
		}
		tokens = kept
	}
	if v.maxN == 1 {
		return tokens
	}

	var out []string
	if v.minN == 1 {
		out = append(out, tokens...)
	}
	for n := max(v.minN, 2); n <= v.maxN; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}

// wordTokens returns maximal runs of at least two word characters, which is
// what the default token pattern matches.
func wordTokens(text string) []string {
	var tokens []string
	start := -1
	flush := func(end int) {
		if start >= 0 && utf8.RuneCountInString(text[start:end]) >= 2 {
			tokens = append(tokens, text[start:end])
		}
		start = -1
	}
	for i, r := range text {
		if isWord(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(text))
	return tokens
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

func normalize(values []float64, norm string) {
	var total float64
	switch norm {
	case "l2":
		for _, x := range values {
			total += x * x
		}
		total = math.Sqrt(total)
	case "l1":
		for _, x := range values {
			total += math.Abs(x)
		}
	default:
		return
	}
	if total == 0 {
		return
	}
	for i := range values {
		values[i] /= total
	}
}
