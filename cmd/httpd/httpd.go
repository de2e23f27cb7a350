// Package httpd implements the httpd command, which serves detection and
// classification over HTTP.
package httpd

import (
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/product-detector/cmd/common"
	"github.com/jonesrussell/north-cloud/product-detector/internal/api"
	"github.com/jonesrussell/north-cloud/product-detector/internal/logger"
	"github.com/jonesrussell/north-cloud/product-detector/internal/server"
)

func Command() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "httpd",
		Short: "Serve the detection API",
		Long: `Httpd loads the trained classifiers and serves:

  GET  /health            liveness and classifier status
  GET  /metrics           Prometheus metrics
  POST /api/v1/detect     {"html": "..."} or {"url": "..."}
  POST /api/v1/classify   {"html": "..."} or {"url": "..."}

Detection is available even when no classifiers could be loaded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.FromCommand(cmd, false)
			if err != nil {
				return err
			}
			defer func() { _ = deps.Logger.Sync() }()
			if port > 0 {
				deps.Config.Service.Port = port
			}

			svc, err := deps.NewService(false)
			if err != nil {
				return err
			}
			f, closeFetcher, err := deps.NewFetcher(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFetcher()

			handler := api.NewHandler(svc, f, deps.Metrics.Handler(), deps.Config.Service.Name, deps.Config.Service.Version)
			srv := server.New(deps.Config.Service, deps.Logger, handler.Register)

			deps.Logger.Info("Product detector API ready",
				logger.Int("port", deps.Config.Service.Port),
				logger.Bool("classifiers_loaded", svc.Ready()),
				logger.Strings("classifiers", svc.Classifiers()),
			)
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides service.port)")
	return cmd
}
