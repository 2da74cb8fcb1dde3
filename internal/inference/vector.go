// Package inference holds the two Predictor implementations: a TF-IDF
// vectorizer feeding one or more linear models, and a transformer sequence
// classifier run through hugot.
package inference

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spacesedan/sentimen/internal/artifacts"
	"github.com/spacesedan/sentimen/internal/errs"
	"github.com/spacesedan/sentimen/internal/preprocess"
	"github.com/spacesedan/sentimen/internal/sentiment"
)

const MaxCompareModels = 3

// ModelSpec names a linear model artifact on disk.
type ModelSpec struct {
	Name string
	Path string
}

type VectorConfig struct {
	VectorizerPath string
	// Models are run in order; the first one answers Predict.
	Models []ModelSpec
	// LexiconVersion, when set, must equal the version recorded in the
	// vectorizer artifact.
	LexiconVersion string
}

// classifier is the part of artifacts.LinearModel the predictor relies on.
type classifier interface {
	Decide(v artifacts.FeatureVector) (artifacts.Decision, error)
	NFeatures() int
	Classes() []int
	Version() string
}

type namedModel struct {
	name  string
	model classifier
}

type vectorBundle struct {
	vectorizer *artifacts.Vectorizer
	models     []namedModel
}

// VectorPredictor classifies normalized text with a TF-IDF vectorizer and
// linear models that share its output.
type VectorPredictor struct {
	names          []string
	lexiconVersion string
	bundle         *artifacts.Handle[*vectorBundle]
}

func NewVectorPredictor(cfg VectorConfig) (*VectorPredictor, error) {
	if err := checkModelCount(len(cfg.Models)); err != nil {
		return nil, err
	}
	names := make([]string, len(cfg.Models))
	for i, m := range cfg.Models {
		names[i] = m.Name
	}

	p := &VectorPredictor{names: names, lexiconVersion: cfg.LexiconVersion}
	p.bundle = artifacts.NewHandle("vectorized", func(ctx context.Context) (*vectorBundle, error) {
		vec, err := artifacts.LoadVectorizer(cfg.VectorizerPath)
		if err != nil {
			return nil, err
		}
		b := &vectorBundle{vectorizer: vec}
		for _, spec := range cfg.Models {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			m, err := artifacts.LoadLinearModel(spec.Path)
			if err != nil {
				return nil, err
			}
			b.models = append(b.models, namedModel{name: spec.Name, model: m})
		}
		if err := p.validate(b); err != nil {
			return nil, err
		}
		return b, nil
	})
	return p, nil
}

// NewVectorPredictorFrom wraps artifacts that are already in memory. Models
// are named after their artifact name, or model-N when it is empty.
func NewVectorPredictorFrom(lexiconVersion string, vec *artifacts.Vectorizer, models ...*artifacts.LinearModel) (*VectorPredictor, error) {
	if err := checkModelCount(len(models)); err != nil {
		return nil, err
	}
	b := &vectorBundle{vectorizer: vec}
	for i, m := range models {
		name := m.Name()
		if name == "" {
			name = fmt.Sprintf("model-%d", i+1)
		}
		b.models = append(b.models, namedModel{name: name, model: m})
	}
	return newReady(lexiconVersion, b)
}

func newReady(lexiconVersion string, b *vectorBundle) (*VectorPredictor, error) {
	p := &VectorPredictor{lexiconVersion: lexiconVersion}
	for _, nm := range b.models {
		p.names = append(p.names, nm.name)
	}
	if err := p.validate(b); err != nil {
		return nil, err
	}
	p.bundle = artifacts.Ready("vectorized", b)
	return p, nil
}

func checkModelCount(n int) error {
	if n == 0 {
		return fmt.Errorf("[VectorPredictor] at least one model is required")
	}
	if n > MaxCompareModels {
		return fmt.Errorf("[VectorPredictor] at most %d models are supported, got %d", MaxCompareModels, n)
	}
	return nil
}

// validate rejects artifacts that were not trained together.
func (p *VectorPredictor) validate(b *vectorBundle) error {
	if p.lexiconVersion != "" && b.vectorizer.LexiconVersion() != "" &&
		p.lexiconVersion != b.vectorizer.LexiconVersion() {
		return errs.SchemaMismatch("vectorizer was fitted with retained terms v%s, lexicon is v%s",
			b.vectorizer.LexiconVersion(), p.lexiconVersion)
	}

	scheme := sentiment.SchemeThreeClass
	for _, nm := range b.models {
		if nm.model.NFeatures() != b.vectorizer.Dim() {
			return errs.SchemaMismatch("model %q expects %d features, vectorizer produces %d",
				nm.name, nm.model.NFeatures(), b.vectorizer.Dim())
		}
		for _, c := range nm.model.Classes() {
			if _, err := scheme.ClassAt(c); err != nil {
				return errs.SchemaMismatch("model %q: class %d outside %s scheme", nm.name, c, scheme)
			}
		}
	}
	return nil
}

// Name identifies the engine and its models, e.g. "vectorized:logreg@3,svm".
// Versions are only known once the artifacts are loaded.
func (p *VectorPredictor) Name() string {
	names := p.names
	if p.bundle.State() == artifacts.StateReady {
		if b, err := p.bundle.Get(context.Background()); err == nil {
			names = make([]string, len(b.models))
			for i, nm := range b.models {
				names[i] = modelLabel(nm)
			}
		}
	}
	return "vectorized:" + strings.Join(names, ",")
}

func (p *VectorPredictor) Profile() preprocess.Profile { return preprocess.ProfileVectorized }

func (p *VectorPredictor) Scheme() sentiment.Scheme { return sentiment.SchemeThreeClass }

// Models returns the configured model names, primary first.
func (p *VectorPredictor) Models() []string {
	return append([]string(nil), p.names...)
}

func (p *VectorPredictor) State() artifacts.State { return p.bundle.State() }

func (p *VectorPredictor) Load(ctx context.Context) error {
	first := p.bundle.State() == artifacts.StateNotLoaded
	b, err := p.bundle.Get(ctx)
	if err != nil {
		return err
	}
	if first {
		slog.Info("[VectorPredictor] Ready",
			slog.Int("features", b.vectorizer.Dim()),
			slog.Int("models", len(b.models)),
			slog.String("primary", b.models[0].name))
	}
	return nil
}

func (p *VectorPredictor) Predict(ctx context.Context, text preprocess.Text) (sentiment.Prediction, error) {
	b, err := p.bundle.Get(ctx)
	if err != nil {
		return sentiment.Prediction{}, err
	}
	vec := b.vectorizer.Transform(text)
	return decide(b.models[0], vec)
}

// Compare vectorizes text once and runs every model on that same vector.
func (p *VectorPredictor) Compare(ctx context.Context, text preprocess.Text) ([]sentiment.Prediction, error) {
	b, err := p.bundle.Get(ctx)
	if err != nil {
		return nil, err
	}
	vec := b.vectorizer.Transform(text)
	out := make([]sentiment.Prediction, 0, len(b.models))
	for _, nm := range b.models {
		pred, err := decide(nm, vec)
		if err != nil {
			return nil, err
		}
		out = append(out, pred)
	}
	return out, nil
}

func decide(nm namedModel, vec artifacts.FeatureVector) (sentiment.Prediction, error) {
	d, err := nm.model.Decide(vec)
	if err != nil {
		return sentiment.Prediction{}, fmt.Errorf("[VectorPredictor] model %s: %w", nm.name, err)
	}
	pred := sentiment.Prediction{Index: d.Class, Model: modelLabel(nm)}
	if d.Proba != nil {
		pred.Confidence = d.Proba[d.Index] * 100
		pred.HasConfidence = true
	}
	return pred, nil
}

func modelLabel(nm namedModel) string {
	if v := nm.model.Version(); v != "" {
		return nm.name + "@" + v
	}
	return nm.name
}
