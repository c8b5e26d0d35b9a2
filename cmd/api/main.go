package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tradeportal/portal_auth/internal/config"
	"github.com/tradeportal/portal_auth/internal/infra"
	"github.com/tradeportal/portal_auth/internal/logging"
	"github.com/tradeportal/portal_auth/internal/routes"
	"github.com/tradeportal/portal_auth/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel).With("app", cfg.AppName, "env", cfg.AppEnv)

	ctx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	store, db, err := infra.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("open credential store", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	cache, err := infra.OpenRedis(ctx, cfg, logger)
	if err != nil {
		logger.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if cache != nil {
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	}

	publisher := infra.OpenEvents(cfg, logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("close event publisher", "error", err)
		}
	}()

	gateway, err := infra.OpenGateway(cfg)
	if err != nil {
		logger.Error("configure otp gateway", "error", err)
		os.Exit(1)
	}
	if gateway == nil {
		logger.Warn("OTP_GATEWAY_URL not set, password reset disabled")
	}

	sms, mail, err := infra.OpenNotifiers(cfg, logger)
	if err != nil {
		logger.Error("configure notifiers", "error", err)
		os.Exit(1)
	}

	srv, err := server.New(routes.Deps{
		Cfg:     cfg,
		DB:      db,
		Cache:   cache,
		Store:   store,
		Gateway: gateway,
		SMS:     sms,
		Mail:    mail,
		Events:  publisher,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()
	logger.Info("server listening", "addr", cfg.Address())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
