package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/socialhub-lab/socialhub/internal/core/config"
	"github.com/socialhub-lab/socialhub/internal/identity"
	"github.com/socialhub-lab/socialhub/internal/server"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	tokens := identity.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	svc := identity.NewService(
		identity.NewMemoryUserStore(),
		identity.NewMemoryRefreshStore(),
		identity.BcryptHasher{Cost: bcrypt.DefaultCost},
		tokens,
		cfg.Auth.RefreshTokenTTL(),
	)

	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), cfg.Server.Mode)
	svc.RegisterRoutes(srv.Engine)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
