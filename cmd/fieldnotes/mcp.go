package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldnotes-md/fieldnotes/internal/config"
	"github.com/fieldnotes-md/fieldnotes/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server",
		Long:  "Start the Model Context Protocol server for fieldnotes over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd, func(conf *config.Config) {
				if metricsAddr != "" {
					conf.Metrics.Enabled = true
					conf.Metrics.Addr = metricsAddr
				}
			})
			if err != nil {
				return err
			}
			defer closeApp(cmd, app)

			ctx := commandContext(cmd)

			if app.Config.Metrics.Enabled {
				mux := http.NewServeMux()
				mux.Handle("/metrics", app.Metrics.Handler())
				srv := &http.Server{
					Addr:              app.Config.Metrics.Addr,
					Handler:           mux,
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						app.Logger.Error().Err(err).Str("addr", srv.Addr).Msg("metrics server stopped")
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
				app.Logger.Info().Str("addr", srv.Addr).Msg("serving metrics")
			}

			return mcp.NewServer(app, version).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics", "", "Serve prometheus metrics on this address (e.g. 127.0.0.1:9464)")

	return cmd
}
