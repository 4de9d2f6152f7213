package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TedTes/genres-sub000/internal/server"
	"github.com/TedTes/genres-sub000/internal/server/ratelimit"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  `Start an HTTP server exposing /optimize, /optimize/stream, /cache/stats, run history and /metrics.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close(context.Background()) //nolint:errcheck

	srvCfg := server.Config{
		Port:           cfg.Server.Port,
		RequestTimeout: cfg.Server.RequestTimeout,
		AuthEnabled:    cfg.Server.AuthEnabled,
	}
	rl := ratelimit.NewConfig(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst)
	if rl.Enabled {
		rl.Whitelist = ratelimit.ParseIPList(cfg.Server.RateLimit.Whitelist)
	}
	srvCfg.RateLimit = rl
	if cfg.Server.AuthEnabled {
		if srvCfg.JWT, err = cfg.JWT(); err != nil {
			return err
		}
	}

	deps := server.Deps{
		Optimizer: a.optimizer,
		Gatherer:  a.registry,
		Logger:    logger,
	}
	if a.db != nil {
		deps.Runs = a.db
	}

	srv, err := server.New(srvCfg, deps)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.Start(ctx)
}
