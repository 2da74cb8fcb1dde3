package artifacts

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/spacesedan/sentimen/internal/errs"
)

const FormatLinear = "linear/v1"

// Kind is the estimator family a linear artifact was exported from. All three
// reduce to argmax(W·x + b) at prediction time; they differ in how scores
// become probabilities.
type Kind string

const (
	KindLogisticRegression Kind = "logistic_regression"
	KindLinearSVC          Kind = "linear_svc"
	KindMultinomialNB      Kind = "multinomial_nb"
)

type linearFile struct {
	Format     string      `json:"format"`
	Name       string      `json:"name"`
	Kind       Kind        `json:"kind"`
	Version    string      `json:"version"`
	Classes    []int       `json:"classes"`
	Coef       [][]float64 `json:"coef"`
	Intercept  []float64   `json:"intercept"`
	MultiClass string      `json:"multi_class"`
	NFeatures  int         `json:"n_features"`
}

// LinearModel is a trained linear classifier. For multinomial naive Bayes,
// coef holds feature_log_prob and intercept the class_log_prior.
type LinearModel struct {
	name       string
	kind       Kind
	version    string
	classes    []int
	weights    *mat.Dense
	intercept  []float64
	multiClass string
}

// Decision is the outcome of one prediction.
type Decision struct {
	// Index into Classes of the winning class.
	Index int
	// Class is the label value the model was trained with.
	Class  int
	Scores []float64
	// Proba is nil for models without probability estimates.
	Proba []float64
}

func LoadLinearModel(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Setup(errs.ResourceModel, path, err)
	}
	m, err := ParseLinearModel(data)
	if err != nil {
		return nil, errs.Setup(errs.ResourceModel, path, err)
	}
	return m, nil
}

func ParseLinearModel(data []byte) (*LinearModel, error) {
	var f linearFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("corrupt model artifact: %w", err)
	}
	if f.Format != FormatLinear {
		return nil, fmt.Errorf("unsupported model format %q", f.Format)
	}
	switch f.Kind {
	case KindLogisticRegression, KindLinearSVC, KindMultinomialNB:
	default:
		return nil, fmt.Errorf("unsupported model kind %q", f.Kind)
	}

	rows := len(f.Coef)
	if len(f.Classes) < 2 {
		return nil, fmt.Errorf("model needs at least two classes, has %d", len(f.Classes))
	}
	if rows != len(f.Classes) && !(rows == 1 && len(f.Classes) == 2) {
		return nil, fmt.Errorf("coef has %d rows for %d classes", rows, len(f.Classes))
	}
	if len(f.Intercept) != rows {
		return nil, fmt.Errorf("intercept has %d values for %d rows", len(f.Intercept), rows)
	}
	seen := make(map[int]bool, len(f.Classes))
	for _, c := range f.Classes {
		if seen[c] {
			return nil, fmt.Errorf("duplicate class %d", c)
		}
		seen[c] = true
	}

	cols := f.NFeatures
	if cols == 0 {
		cols = len(f.Coef[0])
	}
	if cols == 0 {
		return nil, fmt.Errorf("model has no features")
	}
	flat := make([]float64, 0, rows*cols)
	for i, row := range f.Coef {
		if len(row) != cols {
			return nil, fmt.Errorf("coef row %d has %d weights, want %d", i, len(row), cols)
		}
		flat = append(flat, row...)
	}

	multiClass := f.MultiClass
	if multiClass == "" {
		multiClass = "multinomial"
	}

	return &LinearModel{
		name:       f.Name,
		kind:       f.Kind,
		version:    f.Version,
		classes:    f.Classes,
		weights:    mat.NewDense(rows, cols, flat),
		intercept:  f.Intercept,
		multiClass: multiClass,
	}, nil
}

func (m *LinearModel) Name() string    { return m.name }
func (m *LinearModel) Kind() Kind      { return m.kind }
func (m *LinearModel) Version() string { return m.version }

func (m *LinearModel) Classes() []int {
	return append([]int(nil), m.classes...)
}

func (m *LinearModel) NFeatures() int {
	_, c := m.weights.Dims()
	return c
}

// HasProba reports whether Decide fills in probabilities.
func (m *LinearModel) HasProba() bool {
	return m.kind != KindLinearSVC
}

// Decide scores v and picks the winning class. The first maximum wins ties.
func (m *LinearModel) Decide(v FeatureVector) (Decision, error) {
	if v.Dim() != m.NFeatures() {
		return Decision{}, errs.SchemaMismatch("vector has %d features, model %q expects %d",
			v.Dim(), m.name, m.NFeatures())
	}

	rows, _ := m.weights.Dims()
	var out mat.VecDense
	out.MulVec(m.weights, mat.NewVecDense(v.Dim(), v.values))

	scores := make([]float64, rows)
	for i := range scores {
		scores[i] = out.AtVec(i) + m.intercept[i]
	}

	if rows == 1 {
		d := Decision{Index: 0, Scores: scores}
		if scores[0] > 0 {
			d.Index = 1
		}
		d.Class = m.classes[d.Index]
		if m.HasProba() {
			p := sigmoid(scores[0])
			d.Proba = []float64{1 - p, p}
		}
		return d, nil
	}

	best := 0
	for i, s := range scores {
		if s > scores[best] {
			best = i
		}
	}
	d := Decision{Index: best, Class: m.classes[best], Scores: scores}

	switch {
	case m.kind == KindLinearSVC:
	case m.kind == KindLogisticRegression && m.multiClass == "ovr":
		d.Proba = ovr(scores)
	default:
		d.Proba = softmax(scores)
	}
	return d, nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func softmax(scores []float64) []float64 {
	hi := scores[0]
	for _, s := range scores {
		hi = math.Max(hi, s)
	}
	out := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		out[i] = math.Exp(s - hi)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func ovr(scores []float64) []float64 {
	out := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		out[i] = sigmoid(s)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
