// Package train implements the train command: read labelled rows from the
// training database, extract their texts, fit and evaluate every configured
// classifier and save the artifacts.
package train

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/product-detector/cmd/common"
	"github.com/jonesrussell/north-cloud/product-detector/internal/database"
	"github.com/jonesrussell/north-cloud/product-detector/internal/domain"
	"github.com/jonesrussell/north-cloud/product-detector/internal/logger"
	"github.com/jonesrussell/north-cloud/product-detector/internal/training"
)

// sinceSource limits the rows to those created at or after since.
type sinceSource struct {
	repo  *database.TrainingDataRepository
	since time.Time
}

func (s sinceSource) ListExamples(ctx context.Context) ([]domain.ExampleRow, error) {
	return s.repo.ListExamplesSince(ctx, s.since)
}

func Command() *cobra.Command {
	var (
		since   string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train and evaluate the classifiers from stored training rows",
		Long: `Train loads every row of the train_data table, reads the saved page and
product HTML for each from the training data directory, fits the text
vectorizer and every configured classifier, prints a held-out evaluation
and saves the artifacts used by classify and httpd.

Examples:
  product-detector train
  product-detector train --since 2024-01-01 --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.FromCommand(cmd, true)
			if err != nil {
				return err
			}
			defer func() { _ = deps.Logger.Sync() }()
			cfg := deps.Config

			ctx := cmd.Context()
			db, err := database.NewConnection(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			repo := database.NewTrainingDataRepository(db)
			var source training.ExampleSource = repo
			if since != "" {
				t, err := time.Parse(time.DateOnly, since)
				if err != nil {
					return fmt.Errorf("parse --since: %w", err)
				}
				source = sinceSource{repo: repo, since: t}
			}

			if counts, err := repo.CountByLabel(ctx); err == nil {
				for _, c := range counts {
					deps.Logger.Info("Stored training rows",
						logger.Int("label", c.Label), logger.Int("count", c.Count))
				}
			} else {
				deps.Logger.Warn("Counting training rows failed", logger.Error(err))
			}

			extractor := training.NewRowExtractor(
				os.DirFS(cfg.Training.DataDir),
				deps.Extractor(),
				cfg.Training.Concurrency,
				cfg.Training.QueueDepth,
				deps.Logger,
				deps.Metrics,
			)
			trainer := training.NewTrainer(cfg.Training, cfg.Vectorizer.MaxFeatures, deps.Logger, deps.Metrics)
			pipeline := training.NewPipeline(source, extractor, trainer, cfg.Artifacts.Dir, deps.Logger)

			res, extraction, err := pipeline.Run(ctx)
			if extraction != nil && len(extraction.Skipped) > 0 {
				RenderSkipped(cmd.ErrOrStderr(), extraction.Skipped)
			}
			if err != nil {
				return err
			}

			RenderReport(cmd.OutOrStdout(), res.Report, verbose)
			return nil
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "only use rows created on or after this date (YYYY-MM-DD)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print the full classification report per model")
	return cmd
}

// RenderReport prints one row per model and, when verbose, each model's
// classification report.
func RenderReport(w io.Writer, r training.Report, verbose bool) {
	fmt.Fprintf(w, "train rows: %d  test rows: %d  features: %d\n", r.TrainRows, r.TestRows, r.Features)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Model", "Accuracy", "Macro F1", "Weighted F1", "Duration", "Error"})
	for _, m := range r.Models {
		if m.Evaluation == nil {
			t.AppendRow(table.Row{m.Name, "-", "-", "-", m.Duration.Round(time.Millisecond), m.Error})
			continue
		}
		ev := m.Evaluation
		t.AppendRow(table.Row{
			m.Name,
			fmt.Sprintf("%.4f", ev.Accuracy),
			fmt.Sprintf("%.4f", ev.Macro.F1),
			fmt.Sprintf("%.4f", ev.Weighted.F1),
			m.Duration.Round(time.Millisecond),
			"",
		})
	}
	t.Render()

	if !verbose {
		return
	}
	for _, m := range r.Models {
		if m.Evaluation != nil {
			fmt.Fprintf(w, "\n%s\n%s", m.Name, m.Evaluation.String())
		}
	}
}

// RenderSkipped lists rows left out of training.
func RenderSkipped(w io.Writer, skipped []training.Skipped) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Skipped rows")
	t.AppendHeader(table.Row{"Row", "ID", "Reason"})
	for _, s := range skipped {
		t.AppendRow(table.Row{s.Index, s.RowID, s.Reason})
	}
	t.Render()
}
