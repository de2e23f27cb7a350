package training

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/jonesrussell/north-cloud/product-detector/internal/config"
	"github.com/jonesrussell/north-cloud/product-detector/internal/domain"
	"github.com/jonesrussell/north-cloud/product-detector/internal/logger"
	"github.com/jonesrussell/north-cloud/product-detector/internal/model"
	"github.com/jonesrussell/north-cloud/product-detector/internal/telemetry"
	"github.com/jonesrussell/north-cloud/product-detector/internal/vectorizer"
)

var (
	ErrTooFewExamples = errors.New("training: need at least two examples")
	ErrNoModelTrained = errors.New("training: no model trained successfully")
)

// ModelReport is the held-out result for one classifier kind.
type ModelReport struct {
	Name       string        `json:"name"`
	Evaluation *Evaluation   `json:"evaluation,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Report summarises a training run.
type Report struct {
	TrainRows int           `json:"train_rows"`
	TestRows  int           `json:"test_rows"`
	Features  int           `json:"features"`
	Models    []ModelReport `json:"models"`
}

// Result is a fitted vectorizer plus every model that trained.
type Result struct {
	Vectorizer *vectorizer.Vectorizer
	Models     map[string]model.Classifier
	Report     Report
}

// Accuracy returns held-out accuracy per trained model.
func (r *Result) Accuracy() map[string]float64 {
	out := make(map[string]float64, len(r.Models))
	for _, m := range r.Report.Models {
		if m.Evaluation != nil {
			out[m.Name] = m.Evaluation.Accuracy
		}
	}
	return out
}

// Trainer fits the vectorizer and every configured classifier kind.
type Trainer struct {
	cfg         config.TrainingConfig
	maxFeatures int
	log         logger.Logger
	metrics     *telemetry.Metrics
}

func NewTrainer(cfg config.TrainingConfig, maxFeatures int, log logger.Logger, metrics *telemetry.Metrics) *Trainer {
	return &Trainer{cfg: cfg, maxFeatures: maxFeatures, log: log, metrics: metrics}
}

// Train splits examples with the configured seed, fits the vectorizer on
// the training pages, trains each model on fused (page, segment) rows and
// evaluates it on the held-out rows. Models that fail are reported and
// left out of the result.
func (t *Trainer) Train(ctx context.Context, examples []domain.Example) (*Result, error) {
	if len(examples) < 2 {
		return nil, ErrTooFewExamples
	}
	for _, ex := range examples {
		if ex.Label != domain.LabelNotProduct && ex.Label != domain.LabelProduct {
			return nil, fmt.Errorf("training: row %d has label %d", ex.RowID, ex.Label)
		}
	}

	trainIdx, testIdx := Split(len(examples), t.cfg.TestSize, t.cfg.Seed)
	trainPages, trainSegs, trainY := columns(examples, trainIdx)
	testPages, testSegs, testY := columns(examples, testIdx)

	vec := vectorizer.New(t.maxFeatures)
	if err := vec.Fit(trainPages); err != nil {
		return nil, fmt.Errorf("fit vectorizer: %w", err)
	}
	xTrain, err := vec.FuseMatrix(trainPages, trainSegs)
	if err != nil {
		return nil, fmt.Errorf("vectorize training rows: %w", err)
	}
	xTest, err := vec.FuseMatrix(testPages, testSegs)
	if err != nil {
		return nil, fmt.Errorf("vectorize test rows: %w", err)
	}

	t.log.Info("Training classifiers",
		logger.Int("train_rows", len(trainIdx)),
		logger.Int("test_rows", len(testIdx)),
		logger.Int("features", vec.Dim()),
		logger.Strings("models", t.cfg.Models),
	)

	res := &Result{
		Vectorizer: vec,
		Models:     make(map[string]model.Classifier),
		Report:     Report{TrainRows: len(trainIdx), TestRows: len(testIdx), Features: vec.Dim()},
	}

	for _, kind := range t.cfg.Models {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("training cancelled: %w", err)
		}

		start := time.Now()
		report := ModelReport{Name: kind}
		m, err := t.fitOne(kind, xTrain, trainY)
		if err == nil {
			var predicted []int
			if predicted, err = m.Predict(xTest); err == nil {
				ev := Evaluate(testY, predicted)
				report.Evaluation = &ev
			}
		}
		report.Duration = time.Since(start)

		if err != nil {
			report.Error = err.Error()
			t.log.Error("Model training failed", logger.String("model", kind), logger.Error(err))
		} else {
			res.Models[kind] = m
			t.metrics.SetAccuracy(kind, report.Evaluation.Accuracy)
			t.log.Info("Model trained",
				logger.String("model", kind),
				logger.Float64("accuracy", report.Evaluation.Accuracy),
				logger.Duration("duration", report.Duration),
			)
		}
		res.Report.Models = append(res.Report.Models, report)
	}

	if len(res.Models) == 0 {
		return nil, ErrNoModelTrained
	}
	return res, nil
}

func (t *Trainer) fitOne(kind string, x *mat.Dense, y []int) (model.Classifier, error) {
	m, err := model.New(kind, t.cfg.Seed)
	if err != nil {
		return nil, err
	}
	if err := m.Fit(x, y); err != nil {
		return nil, err
	}
	return m, nil
}

func columns(examples []domain.Example, idx []int) (pages, segments []string, labels []int) {
	pages = make([]string, len(idx))
	segments = make([]string, len(idx))
	labels = make([]int, len(idx))
	for i, j := range idx {
		pages[i] = examples[j].PageText
		segments[i] = examples[j].SegmentText
		labels[i] = examples[j].Label
	}
	return pages, segments, labels
}
