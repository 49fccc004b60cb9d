package main

import (
	"os"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the ProSocialFlow HTTP API.

The server provides:
  - /healthz            liveness
  - /metrics            Prometheus metrics
  - /api/actions/...    stateless generate/fetch actions
  - /api/sessions/...   workflow sessions with idea locking and a post queue

Stop with Ctrl+C or SIGTERM; in-flight requests are drained before exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		application, err := newApp(ctx, os.Stdout)
		if err != nil {
			return err
		}
		defer application.Close()

		return application.Run(ctx)
	},
}
