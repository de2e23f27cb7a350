// Package detect implements the detect command, which prints the minimal
// product containers of a page.
package detect

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/product-detector/cmd/common"
	"github.com/jonesrussell/north-cloud/product-detector/internal/logger"
)

type result struct {
	Target   string `json:"target"`
	Count    int    `json:"count"`
	Segments any    `json:"segments"`
	Report   string `json:"report,omitempty"`
}

func Command() *cobra.Command {
	var grid bool

	cmd := &cobra.Command{
		Use:   "detect <url|file>",
		Short: "Print candidate product segments of a page as JSON",
		Long: `Detect parses a page and prints every minimal container holding a
price, a unit and an image. No classifier is needed.

Examples:
  product-detector detect https://shop.example/fruit
  product-detector detect saved_page.html --grid`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.FromCommand(cmd, true)
			if err != nil {
				return err
			}
			defer func() { _ = deps.Logger.Sync() }()

			f, closeFetcher, err := deps.NewFetcher(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFetcher()

			target := args[0]
			page, err := common.LoadPage(cmd.Context(), f, target)
			if err != nil {
				return err
			}

			svc, err := deps.NewService(false)
			if err != nil {
				return err
			}
			segments, err := svc.Detect(page)
			if err != nil {
				return fmt.Errorf("detect %s: %w", target, err)
			}

			out := result{Target: target, Count: len(segments), Segments: segments}
			if grid {
				path, err := deps.ReportWriter().WriteGrid("Detected Segments: "+target, segments)
				if err != nil {
					return err
				}
				out.Report = path
				deps.Logger.Info("Grid report written", logger.String("path", path))
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(out)
		},
	}

	cmd.Flags().BoolVar(&grid, "grid", false, "also write an HTML grid of the segments to the report directory")
	return cmd
}
