// Package training builds a fitted vectorizer and classifier set from
// labelled historical rows.
package training

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/jonesrussell/north-cloud/product-detector/internal/domain"
	"github.com/jonesrussell/north-cloud/product-detector/internal/extract"
	"github.com/jonesrussell/north-cloud/product-detector/internal/logger"
	"github.com/jonesrussell/north-cloud/product-detector/internal/telemetry"
)

// Subdirectories of the data directory holding stored markup.
const (
	PagesDir    = "pages"
	ProductsDir = "products"
)

var errBadLocator = errors.New("locator has no file name")

// Skipped records a row that could not be turned into an Example.
type Skipped struct {
	Index  int
	RowID  int64
	Reason string
}

// Extraction is the outcome of a batch. Examples keep the input row order.
type Extraction struct {
	Examples []domain.Example
	Skipped  []Skipped
}

// RowExtractor reads each row's page and segment markup from a data
// directory and extracts their text on a fixed pool of workers.
type RowExtractor struct {
	data        fs.FS
	extractor   extract.Extractor
	concurrency int
	queueDepth  int
	log         logger.Logger
	metrics     *telemetry.Metrics
}

// NewRowExtractor reads markup from data, typically os.DirFS(dataDir).
func NewRowExtractor(data fs.FS, extractor extract.Extractor, concurrency, queueDepth int, log logger.Logger, metrics *telemetry.Metrics) *RowExtractor {
	if concurrency <= 0 {
		concurrency = 1
	}
	if queueDepth <= 0 {
		queueDepth = concurrency
	}
	return &RowExtractor{
		data:        data,
		extractor:   extractor,
		concurrency: concurrency,
		queueDepth:  queueDepth,
		log:         log,
		metrics:     metrics,
	}
}

type rowResult struct {
	index   int
	example domain.Example
	skip    *Skipped
}

// Extract processes rows concurrently. Results are slotted by row index,
// so completion order does not matter. Rows whose files are missing or
// unreadable are skipped with a warning.
func (r *RowExtractor) Extract(ctx context.Context, rows []domain.ExampleRow) (*Extraction, error) {
	if len(rows) == 0 {
		return &Extraction{}, nil
	}

	r.log.Info("Starting row extraction",
		logger.Int("rows", len(rows)),
		logger.Int("concurrency", r.concurrency),
	)
	start := time.Now()

	jobs := make(chan int, r.queueDepth)
	results := make(chan rowResult, r.queueDepth)

	var wg sync.WaitGroup
	for id := range r.concurrency {
		wg.Add(1)
		go r.worker(ctx, id, rows, jobs, results, &wg)
	}

	go func() {
		defer close(jobs)
		for i := range rows {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	slots := make([]rowResult, len(rows))
	done := make([]bool, len(rows))
	for res := range results {
		slots[res.index] = res
		done[res.index] = true
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("row extraction: %w", err)
	}

	out := &Extraction{Examples: make([]domain.Example, 0, len(rows))}
	for i, res := range slots {
		switch {
		case !done[i]:
			out.Skipped = append(out.Skipped, Skipped{Index: i, RowID: rows[i].ID, Reason: "not processed"})
		case res.skip != nil:
			out.Skipped = append(out.Skipped, *res.skip)
		default:
			out.Examples = append(out.Examples, res.example)
		}
	}

	r.log.Info("Row extraction complete",
		logger.Int("examples", len(out.Examples)),
		logger.Int("skipped", len(out.Skipped)),
		logger.Duration("duration", time.Since(start)),
	)
	return out, nil
}

func (r *RowExtractor) worker(
	ctx context.Context,
	id int,
	rows []domain.ExampleRow,
	jobs <-chan int,
	results chan<- rowResult,
	wg *sync.WaitGroup,
) {
	defer wg.Done()

	for i := range jobs {
		if ctx.Err() != nil {
			r.log.Warn("Worker stopping due to context cancellation", logger.Int("worker_id", id))
			return
		}
		results <- r.extractRow(i, rows[i])
	}
}

func (r *RowExtractor) extractRow(index int, row domain.ExampleRow) rowResult {
	res := rowResult{index: index}
	skip := func(reason string, err error) rowResult {
		r.log.Warn("Skipping training row",
			logger.Int64("row_id", row.ID),
			logger.String("reason", reason),
			logger.Error(err),
		)
		r.metrics.RecordTrainingRow(true)
		res.skip = &Skipped{Index: index, RowID: row.ID, Reason: reason}
		return res
	}

	if row.Label != domain.LabelNotProduct && row.Label != domain.LabelProduct {
		return skip(fmt.Sprintf("label %d is not 0 or 1", row.Label), nil)
	}

	pageText, err := r.readText(PagesDir, row.PagePath)
	if err != nil {
		return skip("page file unavailable", err)
	}
	segmentText, err := r.readText(ProductsDir, row.ProductPath)
	if err != nil {
		return skip("product file unavailable", err)
	}

	r.metrics.RecordTrainingRow(false)
	res.example = domain.Example{
		RowID:       row.ID,
		PageText:    pageText,
		SegmentText: segmentText,
		Label:       row.Label,
	}
	return res
}

func (r *RowExtractor) readText(dir, locator string) (string, error) {
	name, err := ResolveLocator(dir, locator)
	if err != nil {
		return "", err
	}
	data, err := fs.ReadFile(r.data, name)
	if err != nil {
		return "", err
	}
	return r.extractor.Extract(string(data))
}

// ResolveLocator maps a stored file locator to its path under dir. Only
// the base name is kept, and both slash and backslash separate segments.
func ResolveLocator(dir, locator string) (string, error) {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(locator), `\`, "/"))
	if base == "." || base == "/" || base == ".." {
		return "", fmt.Errorf("%w: %q", errBadLocator, locator)
	}
	return path.Join(dir, base), nil
}
