package inference

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"

	"github.com/spacesedan/sentimen/internal/artifacts"
	"github.com/spacesedan/sentimen/internal/errs"
	"github.com/spacesedan/sentimen/internal/preprocess"
	"github.com/spacesedan/sentimen/internal/sentiment"
)

const DefaultSequenceModel = "KnightsAnalytics/distilbert-base-uncased-finetuned-sst-2-english"

// DefaultLabelMap covers the label names emitted by common binary sentiment
// checkpoints.
var DefaultLabelMap = map[string]int{
	"NEGATIVE": 0,
	"POSITIVE": 1,
	"LABEL_0":  0,
	"LABEL_1":  1,
	"NEGATIF":  0,
	"POSITIF":  1,
}

// Scored is the top label a sequence classifier reports for one text.
type Scored struct {
	Label string
	Score float64
}

// TextClassifier runs a sequence classification model on raw text.
type TextClassifier interface {
	Classify(ctx context.Context, texts []string) ([]Scored, error)
	Close() error
}

type SequenceConfig struct {
	// ModelPath is a directory holding model.onnx and its tokenizer.
	ModelPath string
	// LabelMap translates model labels to binary class indices. Keys are
	// matched case-insensitively.
	LabelMap map[string]int
}

// SequencePredictor classifies lightly cleaned text with a transformer model.
type SequencePredictor struct {
	modelPath  string
	labels     map[string]int
	classifier *artifacts.Handle[TextClassifier]
}

func NewSequencePredictor(cfg SequenceConfig) *SequencePredictor {
	return newSequencePredictor(cfg, func(ctx context.Context) (TextClassifier, error) {
		return OpenHugot(cfg.ModelPath)
	})
}

func newSequencePredictor(cfg SequenceConfig, open func(context.Context) (TextClassifier, error)) *SequencePredictor {
	labels := cfg.LabelMap
	if len(labels) == 0 {
		labels = DefaultLabelMap
	}
	upper := make(map[string]int, len(labels))
	for k, v := range labels {
		upper[strings.ToUpper(k)] = v
	}
	return &SequencePredictor{
		modelPath:  cfg.ModelPath,
		labels:     upper,
		classifier: artifacts.NewHandle("sequence", open),
	}
}

func (p *SequencePredictor) Name() string {
	return "sequence:" + filepath.Base(p.modelPath)
}

func (p *SequencePredictor) Profile() preprocess.Profile { return preprocess.ProfileSequence }

func (p *SequencePredictor) Scheme() sentiment.Scheme { return sentiment.SchemeBinary }

func (p *SequencePredictor) State() artifacts.State { return p.classifier.State() }

// Label returns the class index for a model label, ignoring case.
func (p *SequencePredictor) Label(name string) (int, bool) {
	index, ok := p.labels[strings.ToUpper(name)]
	return index, ok
}

func (p *SequencePredictor) Load(ctx context.Context) error {
	_, err := p.classifier.Get(ctx)
	return err
}

func (p *SequencePredictor) Predict(ctx context.Context, text preprocess.Text) (sentiment.Prediction, error) {
	c, err := p.classifier.Get(ctx)
	if err != nil {
		return sentiment.Prediction{}, err
	}
	out, err := c.Classify(ctx, []string{string(text)})
	if err != nil {
		return sentiment.Prediction{}, fmt.Errorf("[SequencePredictor] classification failed: %w", err)
	}
	if len(out) != 1 {
		return sentiment.Prediction{}, errs.SchemaMismatch("sequence model returned %d results for 1 input", len(out))
	}

	index, ok := p.Label(out[0].Label)
	if !ok {
		return sentiment.Prediction{}, errs.SchemaMismatch("sequence model emitted unknown label %q", out[0].Label)
	}
	return sentiment.Prediction{
		Index:         index,
		Confidence:    out[0].Score * 100,
		HasConfidence: true,
		Model:         filepath.Base(p.modelPath),
	}, nil
}

// Close releases the model session if it was loaded.
func (p *SequencePredictor) Close() error {
	if p.classifier.State() != artifacts.StateReady {
		return nil
	}
	c, err := p.classifier.Get(context.Background())
	if err != nil {
		return err
	}
	return c.Close()
}

type hugotClassifier struct {
	session  *hugot.Session
	pipeline *pipelines.TextClassificationPipeline
}

// OpenHugot starts an ONNX Runtime session and builds a text classification
// pipeline for the model in modelPath.
func OpenHugot(modelPath string) (TextClassifier, error) {
	if _, err := os.Stat(filepath.Join(modelPath, "model.onnx")); err != nil {
		return nil, errs.Setup(errs.ResourceModel, modelPath, err)
	}

	session, err := hugot.NewORTSession()
	if err != nil {
		return nil, errs.Setup(errs.ResourceModel, modelPath, fmt.Errorf("onnx runtime session: %w", err))
	}

	config := hugot.TextClassificationConfig{
		ModelPath: modelPath,
		Name:      "sentimentPipeline",
	}
	pipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		session.Destroy()
		return nil, errs.Setup(errs.ResourceModel, modelPath, err)
	}

	slog.Info("[SequencePredictor] Pipeline initialized", slog.String("model", modelPath))
	return &hugotClassifier{session: session, pipeline: pipeline}, nil
}

func (h *hugotClassifier) Classify(ctx context.Context, texts []string) ([]Scored, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	output, err := h.pipeline.RunPipeline(texts)
	if err != nil {
		return nil, err
	}

	results := make([]Scored, 0, len(output.ClassificationOutputs))
	for _, labels := range output.ClassificationOutputs {
		if len(labels) == 0 {
			return nil, errs.SchemaMismatch("sequence model returned no labels")
		}
		top := labels[0]
		for _, l := range labels[1:] {
			if l.Score > top.Score {
				top = l
			}
		}
		results = append(results, Scored{Label: top.Label, Score: float64(top.Score)})
	}
	return results, nil
}

func (h *hugotClassifier) Close() error {
	return h.session.Destroy()
}

// DownloadModel fetches a Hugging Face model into dir unless a copy is
// already there, and returns the model directory.
func DownloadModel(name, dir string) (string, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("[SequencePredictor] failed to create model directory: %w", err)
	}

	local := filepath.Join(dir, strings.ReplaceAll(name, "/", "_"))
	if _, err := os.Stat(filepath.Join(local, "model.onnx")); err == nil {
		slog.Info("[SequencePredictor] Using existing model", slog.String("path", local))
		return local, nil
	}

	slog.Info("[SequencePredictor] Model not found, downloading...", slog.String("model", name))
	path, err := hugot.DownloadModel(name, dir, hugot.NewDownloadOptions())
	if err != nil {
		return "", errs.Setup(errs.ResourceModel, dir, err)
	}
	slog.Info("[SequencePredictor] Model downloaded successfully", slog.String("path", path))
	return path, nil
}
