// =============================================================================
// Pay Equity Processor - Serve Command
// =============================================================================
//
// This file defines the 'serve' command, which runs the web upload adapter
// until SIGINT or SIGTERM.
//
// COMMAND USAGE:
//   payequity serve [--addr :8080]
//
// =============================================================================

package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/payequity/internal/web"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web form adapter",
	Long: `The serve command exposes the pipeline over HTTP:

  POST /api/v1/process       multipart upload (file, password, format, report)
  GET  /api/v1/files/:name   download a generated artifact
  GET  /health               liveness check
  GET  /metrics              Prometheus metrics`,

	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		if serveAddr != "" {
			a.cfg.HTTP.Addr = serveAddr
		}

		parent := cmd.Context()
		if parent == nil {
			parent = context.Background()
		}
		ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		err = web.New(a.cfg.HTTP, a.pipeline, a.log).Run(ctx)
		a.log.Info().Msg("Server stopped")
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: http.addr)")
}
