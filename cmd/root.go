// Package cmd implements the product-detector command-line interface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/product-detector/cmd/classify"
	"github.com/jonesrussell/north-cloud/product-detector/cmd/common"
	"github.com/jonesrussell/north-cloud/product-detector/cmd/detect"
	"github.com/jonesrussell/north-cloud/product-detector/cmd/httpd"
	"github.com/jonesrussell/north-cloud/product-detector/cmd/train"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "product-detector",
	Short: "Find and classify product listings in retail web pages",
	Long: `product-detector locates the smallest page regions that look like a
single product (price, unit and image) and labels them with an ensemble of
trained text classifiers.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().String(common.FlagConfig, "", "config file (default $CONFIG_PATH or ./config.yml)")
	rootCmd.PersistentFlags().Bool(common.FlagDebug, false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "product-detector version %s\n", Version)
		},
	})
	rootCmd.AddCommand(detect.Command())
	rootCmd.AddCommand(classify.Command())
	rootCmd.AddCommand(train.Command())
	rootCmd.AddCommand(httpd.Command())
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
