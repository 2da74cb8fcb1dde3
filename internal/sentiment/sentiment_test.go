package sentiment

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spacesedan/sentimen/internal/errs"
	"github.com/spacesedan/sentimen/internal/lexicon"
	"github.com/spacesedan/sentimen/internal/preprocess"
)

func TestMapClass(t *testing.T) {
	tests := []struct {
		scheme  Scheme
		index   int
		display string
		class   Class
		desc    string
	}{
		{SchemeThreeClass, 0, "NEGATIF", Negative, "Three-class negative"},
		{SchemeThreeClass, 1, "NETRAL", Neutral, "Three-class neutral"},
		{SchemeThreeClass, 2, "POSITIF", Positive, "Three-class positive"},
		{SchemeBinary, 0, "NEGATIF", Negative, "Binary negative"},
		{SchemeBinary, 1, "POSITIF", Positive, "Binary positive"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			first, err := MapClass(tt.scheme, tt.index)
			if err != nil {
				t.Fatalf("MapClass: %v", err)
			}
			if first.Display != tt.display || first.Class != tt.class {
				t.Errorf("got %+v, want %s/%s", first, tt.display, tt.class)
			}
			if first.Category != tt.class.String() || first.Note == "" {
				t.Errorf("incomplete label %+v", first)
			}
			second, _ := MapClass(tt.scheme, tt.index)
			if first != second {
				t.Errorf("MapClass is not stable: %+v vs %+v", first, second)
			}
		})
	}
}

func TestMapClassOutOfRange(t *testing.T) {
	tests := []struct {
		scheme Scheme
		index  int
		desc   string
	}{
		{SchemeThreeClass, 5, "Index past three-class range"},
		{SchemeThreeClass, -1, "Negative index"},
		{SchemeBinary, 2, "Index past binary range"},
		{Scheme(7), 0, "Unknown scheme"},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			label, err := MapClass(tt.scheme, tt.index)
			if !errs.IsSchemaMismatch(err) {
				t.Fatalf("expected SchemaMismatchError, got %v", err)
			}
			if label.Display != "" {
				t.Errorf("out-of-range index produced label %+v", label)
			}
		})
	}
}

type fakePredictor struct {
	profile preprocess.Profile
	scheme  Scheme
	index   int
	seen    []preprocess.Text
	err     error
}

func (f *fakePredictor) Name() string                   { return "fake" }
func (f *fakePredictor) Profile() preprocess.Profile    { return f.profile }
func (f *fakePredictor) Scheme() Scheme                 { return f.scheme }
func (f *fakePredictor) Load(ctx context.Context) error { return nil }

func (f *fakePredictor) Predict(_ context.Context, text preprocess.Text) (Prediction, error) {
	f.seen = append(f.seen, text)
	if f.err != nil {
		return Prediction{}, f.err
	}
	return Prediction{Index: f.index, Model: "fake", Confidence: 87.5, HasConfidence: true}, nil
}

type fakeComparer struct {
	fakePredictor
}

func (f *fakeComparer) Compare(_ context.Context, text preprocess.Text) ([]Prediction, error) {
	f.seen = append(f.seen, text)
	return []Prediction{{Index: 0, Model: "a"}, {Index: 2, Model: "b"}}, nil
}

func testLexicon(t *testing.T) *lexicon.Lexicon {
	t.Helper()
	lex, err := lexicon.Load(context.Background(), lexicon.EmbeddedCorpus{}, lexicon.DefaultLanguage)
	if err != nil {
		t.Fatal(err)
	}
	return lex
}

func TestAnalyzerSelectsProfile(t *testing.T) {
	lex := testLexicon(t)
	input := "Barangnya lumayan bagus, tapi pengiriman yang agak lama..."

	vec := &fakePredictor{profile: preprocess.ProfileVectorized, scheme: SchemeThreeClass, index: 1}
	a, err := NewAnalyzer(lex, vec)
	if err != nil {
		t.Fatal(err)
	}
	res, err := a.Analyze(context.Background(), input)
	if err != nil {
		t.Fatal(err)
	}
	if vec.seen[0] != "barangnya lumayan bagus tapi pengiriman agak lama" {
		t.Errorf("vectorized predictor saw %q", vec.seen[0])
	}
	if res.Label.Display != "NETRAL" || res.Input != input || !res.HasConfidence {
		t.Errorf("result = %+v", res)
	}

	seq := &fakePredictor{profile: preprocess.ProfileSequence, scheme: SchemeBinary, index: 1}
	a, err = NewAnalyzer(nil, seq)
	if err != nil {
		t.Fatal(err)
	}
	res, err = a.Analyze(context.Background(), input)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(seq.seen[0]), "yang") {
		t.Errorf("sequence predictor should keep stopwords, saw %q", seq.seen[0])
	}
	if res.Class != Positive {
		t.Errorf("class = %s, want positive", res.Class)
	}
}

func TestAnalyzerEmptyInput(t *testing.T) {
	p := &fakePredictor{profile: preprocess.ProfileVectorized, scheme: SchemeThreeClass, index: 1}
	a, _ := NewAnalyzer(testLexicon(t), p)

	if _, err := a.Analyze(context.Background(), ""); err != nil {
		t.Fatalf("empty input should not error: %v", err)
	}
	if p.seen[0] != "" {
		t.Errorf("predictor saw %q, want empty text", p.seen[0])
	}
}

func TestAnalyzerErrors(t *testing.T) {
	lex := testLexicon(t)

	bad := &fakePredictor{profile: preprocess.ProfileVectorized, scheme: SchemeThreeClass, index: 5}
	a, _ := NewAnalyzer(lex, bad)
	if _, err := a.Analyze(context.Background(), "bagus"); !errs.IsSchemaMismatch(err) {
		t.Errorf("expected SchemaMismatchError, got %v", err)
	}

	setup := errs.Setup(errs.ResourceModel, "model.json", errors.New("missing"))
	failing := &fakePredictor{profile: preprocess.ProfileVectorized, err: setup}
	a, _ = NewAnalyzer(lex, failing)
	if _, err := a.Analyze(context.Background(), "bagus"); !errors.Is(err, setup) {
		t.Errorf("expected setup error, got %v", err)
	}

	if _, err := NewAnalyzer(nil, &fakePredictor{profile: preprocess.ProfileVectorized}); err == nil {
		t.Error("vectorized predictor without lexicon should fail")
	}
	if _, err := NewAnalyzer(lex, nil); err == nil {
		t.Error("nil predictor should fail")
	}
}

func TestAnalyzerCompare(t *testing.T) {
	lex := testLexicon(t)

	single := &fakePredictor{profile: preprocess.ProfileVectorized, scheme: SchemeThreeClass}
	a, _ := NewAnalyzer(lex, single)
	if _, err := a.Compare(context.Background(), "bagus"); !errors.Is(err, ErrComparisonUnsupported) {
		t.Fatalf("expected ErrComparisonUnsupported, got %v", err)
	}

	cmp := &fakeComparer{fakePredictor{profile: preprocess.ProfileVectorized, scheme: SchemeThreeClass}}
	a, _ = NewAnalyzer(lex, cmp)
	results, err := a.Compare(context.Background(), "Jelek sekali!")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].Class != Negative || results[1].Class != Positive {
		t.Fatalf("results = %+v", results)
	}
	if len(cmp.seen) != 1 {
		t.Errorf("text normalized %d times, want once", len(cmp.seen))
	}
}
