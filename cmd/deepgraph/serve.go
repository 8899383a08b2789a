package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"deepgraph/internal/config"
	"deepgraph/internal/logging"
	"deepgraph/internal/server"
	"deepgraph/internal/workflow"
)

func newServeCmd() *cobra.Command {
	var host string
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the run API and websocket event feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if host != "" {
				cfg.ServerHost = host
			}
			if port > 0 {
				cfg.ServerPort = port
			}

			logger := logging.NewComponentLogger("server")
			hub := server.NewHub(logger)
			listener := workflow.MultiListener(hub, workflow.ConsoleListener(logger))

			a, err := buildApp(cfg, listener, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(a.engine, hub, logger)
			addr := fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort)
			return srv.Serve(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides config)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides config)")
	return cmd
}
