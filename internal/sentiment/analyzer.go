package sentiment

import (
	"context"
	"errors"
	"fmt"

	"github.com/spacesedan/sentimen/internal/lexicon"
	"github.com/spacesedan/sentimen/internal/preprocess"
)

var ErrComparisonUnsupported = errors.New("predictor does not support model comparison")

// Prediction is a model's raw answer: a class index in the predictor's
// Scheme plus an optional confidence in percent.
type Prediction struct {
	Index         int
	Confidence    float64
	HasConfidence bool
	Model         string
}

// Predictor is the inference contract. Implementations own their artifacts,
// load them at most once, and refuse to predict after a failed load.
type Predictor interface {
	// Name identifies the engine and artifact versions, e.g. for cache keys.
	Name() string
	// Profile is the normalization the model was trained with.
	Profile() preprocess.Profile
	Scheme() Scheme
	Load(ctx context.Context) error
	Predict(ctx context.Context, text preprocess.Text) (Prediction, error)
}

// Comparer is implemented by predictors that can run several models on the
// same input.
type Comparer interface {
	Compare(ctx context.Context, text preprocess.Text) ([]Prediction, error)
}

type Result struct {
	Input         string          `json:"input"`
	Normalized    preprocess.Text `json:"normalized"`
	Class         Class           `json:"class"`
	Label         Label           `json:"label"`
	Confidence    float64         `json:"confidence,omitempty"`
	HasConfidence bool            `json:"has_confidence"`
	Model         string          `json:"model"`
}

// Analyzer runs raw text through the normalizer that matches its predictor,
// then maps the prediction to a label.
//
// Empty text is not rejected here. It normalizes to "" and for the TF-IDF
// engine becomes the zero vector, which a linear model classifies by its
// intercepts alone. Callers facing users should reject empty input first.
type Analyzer struct {
	normalizer *preprocess.Normalizer
	predictor  Predictor
}

func NewAnalyzer(lex *lexicon.Lexicon, predictor Predictor) (*Analyzer, error) {
	if predictor == nil {
		return nil, fmt.Errorf("[Analyzer] predictor is required")
	}
	n, err := preprocess.New(predictor.Profile(), lex)
	if err != nil {
		return nil, err
	}
	return &Analyzer{normalizer: n, predictor: predictor}, nil
}

func (a *Analyzer) Predictor() Predictor { return a.predictor }

func (a *Analyzer) Normalize(raw string) preprocess.Text {
	return a.normalizer.Normalize(raw)
}

func (a *Analyzer) Analyze(ctx context.Context, raw string) (Result, error) {
	res, err := a.AnalyzeNormalized(ctx, a.Normalize(raw))
	res.Input = raw
	return res, err
}

// AnalyzeNormalized predicts on text that has already been normalized with
// this analyzer's profile.
func (a *Analyzer) AnalyzeNormalized(ctx context.Context, text preprocess.Text) (Result, error) {
	p, err := a.predictor.Predict(ctx, text)
	if err != nil {
		return Result{Normalized: text}, err
	}
	return a.result(text, p)
}

// Compare runs every model of a comparing predictor on one normalization of raw.
func (a *Analyzer) Compare(ctx context.Context, raw string) ([]Result, error) {
	c, ok := a.predictor.(Comparer)
	if !ok {
		return nil, ErrComparisonUnsupported
	}

	text := a.Normalize(raw)
	preds, err := c.Compare(ctx, text)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(preds))
	for _, p := range preds {
		r, err := a.result(text, p)
		if err != nil {
			return nil, err
		}
		r.Input = raw
		results = append(results, r)
	}
	return results, nil
}

func (a *Analyzer) result(text preprocess.Text, p Prediction) (Result, error) {
	label, err := MapClass(a.predictor.Scheme(), p.Index)
	if err != nil {
		return Result{Normalized: text}, fmt.Errorf("[Analyzer] model %s: %w", p.Model, err)
	}
	return Result{
		Normalized:    text,
		Class:         label.Class,
		Label:         label,
		Confidence:    p.Confidence,
		HasConfidence: p.HasConfidence,
		Model:         p.Model,
	}, nil
}
