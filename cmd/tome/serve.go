// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sigil-dev/tome/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve store search over HTTP",
		Long: `Start the REST server. Endpoints:
  GET /health                   liveness and embedding status
  GET /stores                   list stores
  GET /stores/{name}/search     similarity search (query, column, limit)
  GET /metrics                  Prometheus metrics
  GET /openapi.json             API description`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	cmd.Flags().Float64("rate-limit", 10, "requests per second allowed per client IP; 0 disables")
	cmd.Flags().Int("rate-burst", 20, "burst size for the per-IP rate limit")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	listen := a.cfg.Server.Listen
	if l, _ := cmd.Flags().GetString("listen"); l != "" {
		listen = l
	}
	rps, _ := cmd.Flags().GetFloat64("rate-limit")
	burst, _ := cmd.Flags().GetInt("rate-burst")

	srv, err := server.New(server.Config{
		ListenAddr:  listen,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		RateLimit:   server.RateLimitConfig{RequestsPerSecond: rps, Burst: burst},
	})
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	svc, err := server.NewServices(server.CollectionService{Manager: a.manager}, a.client)
	if err != nil {
		return err
	}
	srv.RegisterServices(svc)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Start(ctx)
}
