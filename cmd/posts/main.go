package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/socialhub-lab/socialhub/internal/bus"
	"github.com/socialhub-lab/socialhub/internal/cache"
	"github.com/socialhub-lab/socialhub/internal/core/config"
	"github.com/socialhub-lab/socialhub/internal/posts"
	"github.com/socialhub-lab/socialhub/internal/server"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	store := cache.NewRedisStore(rdb)

	busClient := bus.NewClient(cfg.Bus.URL, cfg.Bus.Exchange)
	if err := busClient.Connect(ctx); err != nil {
		slog.Error("Failed to connect to message broker", "error", err)
		os.Exit(1)
	}
	defer busClient.Close()

	svc := posts.NewService(posts.NewMemoryStore(), busClient, store, cfg.Cache.EntryTTL())

	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), cfg.Server.Mode,
		server.Dependency{Name: "redis", Checker: store},
		server.Dependency{Name: "bus", Checker: busClient},
	)
	svc.RegisterRoutes(srv.Engine)

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
