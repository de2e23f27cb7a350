package training

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonesrussell/north-cloud/product-detector/internal/artifact"
	"github.com/jonesrussell/north-cloud/product-detector/internal/domain"
	"github.com/jonesrussell/north-cloud/product-detector/internal/logger"
)

// ReportFile is written next to the artifacts after a run.
const ReportFile = "training_report.json"

// ExampleSource lists stored training rows.
type ExampleSource interface {
	ListExamples(ctx context.Context) ([]domain.ExampleRow, error)
}

// Pipeline runs load, extract, train and save end to end.
type Pipeline struct {
	source       ExampleSource
	extractor    *RowExtractor
	trainer      *Trainer
	artifactsDir string
	log          logger.Logger
}

func NewPipeline(source ExampleSource, extractor *RowExtractor, trainer *Trainer, artifactsDir string, log logger.Logger) *Pipeline {
	return &Pipeline{
		source:       source,
		extractor:    extractor,
		trainer:      trainer,
		artifactsDir: artifactsDir,
		log:          log,
	}
}

// Run trains from every stored row and saves the resulting bundle.
func (p *Pipeline) Run(ctx context.Context) (*Result, *Extraction, error) {
	rows, err := p.source.ListExamples(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list examples: %w", err)
	}

	extraction, err := p.extractor.Extract(ctx, rows)
	if err != nil {
		return nil, nil, err
	}

	res, err := p.trainer.Train(ctx, extraction.Examples)
	if err != nil {
		return nil, extraction, err
	}

	if err := artifact.Save(p.artifactsDir, res.Vectorizer, res.Models, res.Accuracy()); err != nil {
		return nil, extraction, fmt.Errorf("save artifacts: %w", err)
	}
	if err := p.writeReport(res.Report); err != nil {
		return nil, extraction, err
	}

	p.log.Info("Training run saved",
		logger.String("dir", p.artifactsDir),
		logger.Int("models", len(res.Models)),
		logger.Int("skipped_rows", len(extraction.Skipped)),
	)
	return res, extraction, nil
}

func (p *Pipeline) writeReport(r Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode training report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(p.artifactsDir, ReportFile), data, 0o644); err != nil { //nolint:gosec // report is not secret
		return fmt.Errorf("write training report: %w", err)
	}
	return nil
}
