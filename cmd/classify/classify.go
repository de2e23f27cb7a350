// Package classify implements the classify command: fetch pages, run every
// loaded classifier over their segments, write a review report per page and
// optionally export accepted segments to Elasticsearch.
package classify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/product-detector/cmd/common"
	"github.com/jonesrussell/north-cloud/product-detector/internal/domain"
	"github.com/jonesrussell/north-cloud/product-detector/internal/export"
	"github.com/jonesrussell/north-cloud/product-detector/internal/fetcher"
	"github.com/jonesrussell/north-cloud/product-detector/internal/logger"
	"github.com/jonesrussell/north-cloud/product-detector/internal/report"
	"github.com/jonesrussell/north-cloud/product-detector/internal/service"
)

// ErrAllPagesFailed is returned when no page could be classified.
var ErrAllPagesFailed = errors.New("every page failed")

// Options are the classify flags.
type Options struct {
	SeedsFile string
	NoReport  bool
}

// Runner classifies a list of pages with injected collaborators.
type Runner struct {
	Service  *service.Service
	Fetcher  fetcher.Fetcher
	Reports  *report.Writer
	Exporter *export.ElasticsearchSink
	Logger   logger.Logger
}

// PageOutcome is the summary row for one page.
type PageOutcome struct {
	Target string
	Result *domain.PageResult
	Report string
	Err    error
}

func Command() *cobra.Command {
	var opts Options

	cmd := &cobra.Command{
		Use:   "classify [url|file]...",
		Short: "Classify the product segments of one or more pages",
		Long: `Classify detects candidate segments on each page, labels them with every
trained classifier and writes one HTML report per page.

Examples:
  product-detector classify https://shop.example/fruit
  product-detector classify --seeds seeds.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			targets := append([]string(nil), args...)
			if opts.SeedsFile != "" {
				seeds, err := common.ReadSeedsFile(opts.SeedsFile)
				if err != nil {
					return err
				}
				targets = append(targets, seeds...)
			}
			if len(targets) == 0 {
				return common.ErrNoURLs
			}

			deps, err := common.FromCommand(cmd, true)
			if err != nil {
				return err
			}
			defer func() { _ = deps.Logger.Sync() }()

			svc, err := deps.NewService(true)
			if err != nil {
				return err
			}
			f, closeFetcher, err := deps.NewFetcher(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFetcher()
			exporter, err := deps.NewExporter(cmd.Context())
			if err != nil {
				return err
			}

			r := &Runner{Service: svc, Fetcher: f, Exporter: exporter, Logger: deps.Logger}
			if !opts.NoReport {
				r.Reports = deps.ReportWriter()
			}

			outcomes := r.Run(cmd.Context(), targets)
			RenderSummary(cmd.OutOrStdout(), svc.Classifiers(), outcomes)
			return Err(outcomes)
		},
	}

	cmd.Flags().StringVar(&opts.SeedsFile, "seeds", "", "file with one page URL per line")
	cmd.Flags().BoolVar(&opts.NoReport, "no-report", false, "skip writing HTML reports")
	return cmd
}

// Run classifies targets in order. A failing page is recorded and the
// run continues.
func (r *Runner) Run(ctx context.Context, targets []string) []PageOutcome {
	outcomes := make([]PageOutcome, 0, len(targets))
	for _, target := range targets {
		if ctx.Err() != nil {
			outcomes = append(outcomes, PageOutcome{Target: target, Err: ctx.Err()})
			continue
		}
		out := r.one(ctx, target)
		if out.Err != nil {
			r.Logger.Error("Page failed", logger.String("target", target), logger.Error(out.Err))
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}

func (r *Runner) one(ctx context.Context, target string) PageOutcome {
	out := PageOutcome{Target: target}

	page, err := common.LoadPage(ctx, r.Fetcher, target)
	if err != nil {
		out.Err = err
		return out
	}

	res, err := r.Service.Classify(target, page)
	out.Result = res
	if res == nil {
		out.Err = err
		return out
	}
	// A result alongside an error means every classifier failed; keep the
	// report so the failures can be reviewed.
	out.Err = err

	if r.Reports != nil {
		path, werr := r.Reports.Write(res)
		if werr != nil {
			out.Err = errors.Join(out.Err, werr)
		} else {
			out.Report = path
			r.Logger.Info("Report written", logger.String("target", target), logger.String("path", path))
		}
	}

	if r.Exporter != nil && out.Err == nil {
		if _, xerr := r.Exporter.Export(ctx, target, res); xerr != nil {
			out.Err = fmt.Errorf("export: %w", xerr)
		}
	}
	return out
}

// Err is nil unless every page failed.
func Err(outcomes []PageOutcome) error {
	var errs []error
	for _, o := range outcomes {
		if o.Err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", o.Target, o.Err))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(append([]error{ErrAllPagesFailed}, errs...)...)
}

// RenderSummary prints one row per page with the accepted count of each
// classifier.
func RenderSummary(w io.Writer, classifiers []string, outcomes []PageOutcome) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	// Classifier names are identifiers; print them as loaded.
	t.Style().Format.Header = text.FormatDefault

	header := table.Row{"Page", "Segments"}
	for _, name := range classifiers {
		header = append(header, name)
	}
	header = append(header, "Report", "Error")
	t.AppendHeader(header)

	for _, o := range outcomes {
		row := table.Row{o.Target}
		if o.Result == nil {
			row = append(row, "-")
		} else {
			row = append(row, len(o.Result.Segments))
		}
		for _, name := range classifiers {
			switch {
			case o.Result == nil:
				row = append(row, "-")
			case o.Result.Failures[name] != "":
				row = append(row, "failed")
			default:
				row = append(row, len(o.Result.Accepted[name]))
			}
		}
		errText := ""
		if o.Err != nil {
			errText = strings.SplitN(o.Err.Error(), "\n", 2)[0]
		}
		row = append(row, o.Report, errText)
		t.AppendRow(row)
	}
	t.Render()
}
