package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"bulwark/internal/app"
	"bulwark/internal/platform/config"
	"bulwark/internal/platform/logger"
	"bulwark/internal/platform/tracing"
)

// main loads configuration, builds the gateway and runs the HTTP server next
// to the background workers until SIGINT or SIGTERM.
func main() {
	configFile := flag.String("config", "", "optional YAML config file")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the environment")
	flag.Parse()

	boot := logger.New("info", "json")
	cfg, err := config.NewLoader(*configFile, boot).WithEnvFile(*envFile).Load()
	if err != nil {
		boot.Error("load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	log.Info("initializing bulwark",
		"addr", cfg.Server.Addr,
		"environment", cfg.Environment,
		"dev_mode", cfg.DevMode,
		"redis", cfg.Redis.URL != "",
		"kafka", cfg.Kafka.Brokers != "",
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		shutdown, err := tracing.Setup(cfg.Tracing.ServiceName, os.Stderr)
		if err != nil {
			log.Error("tracing setup", "error", err)
			os.Exit(1)
		}
		defer func() { _ = shutdown(context.Background()) }()
	}

	gw, err := app.Build(ctx, cfg, log, app.Options{})
	if err != nil {
		log.Error("build gateway", "error", err)
		os.Exit(1)
	}
	defer gw.Close()

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      gw.Handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return gw.Run(gctx) })
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
