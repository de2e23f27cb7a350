package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/product-detector/internal/domain"
)

// TrainingDataRepository reads the train_data table written by the
// labeling tool.
type TrainingDataRepository struct {
	db *sqlx.DB
}

func NewTrainingDataRepository(db *sqlx.DB) *TrainingDataRepository {
	return &TrainingDataRepository{db: db}
}

const selectExamples = `
	SELECT id, url, page_path, product_path, label, created_at
	FROM train_data`

// ListExamples returns every stored row ordered by id.
func (r *TrainingDataRepository) ListExamples(ctx context.Context) ([]domain.ExampleRow, error) {
	var rows []domain.ExampleRow
	if err := r.db.SelectContext(ctx, &rows, selectExamples+` ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list training rows: %w", err)
	}
	return rows, nil
}

// ListExamplesSince returns rows created at or after since.
func (r *TrainingDataRepository) ListExamplesSince(ctx context.Context, since time.Time) ([]domain.ExampleRow, error) {
	query := r.db.Rebind(selectExamples + ` WHERE created_at >= ? ORDER BY id`)
	var rows []domain.ExampleRow
	if err := r.db.SelectContext(ctx, &rows, query, since); err != nil {
		return nil, fmt.Errorf("list training rows since %s: %w", since.Format(time.RFC3339), err)
	}
	return rows, nil
}

// CountByLabel returns how many rows carry each label.
func (r *TrainingDataRepository) CountByLabel(ctx context.Context) ([]domain.LabelCount, error) {
	var counts []domain.LabelCount
	err := r.db.SelectContext(ctx, &counts,
		`SELECT label, COUNT(*) AS count FROM train_data GROUP BY label ORDER BY label`)
	if err != nil {
		return nil, fmt.Errorf("count training rows: %w", err)
	}
	return counts, nil
}
