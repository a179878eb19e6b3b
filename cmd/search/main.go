package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/socialhub-lab/socialhub/internal/bus"
	"github.com/socialhub-lab/socialhub/internal/core/config"
	"github.com/socialhub-lab/socialhub/internal/search"
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

	busClient := bus.NewClient(cfg.Bus.URL, cfg.Bus.Exchange)
	if err := busClient.Connect(ctx); err != nil {
		slog.Error("Failed to connect to message broker", "error", err)
		os.Exit(1)
	}
	defer busClient.Close()

	docs := search.NewMemoryDocumentStore()
	consumer := search.NewConsumer(docs)
	if err := consumer.Bind(ctx, busClient); err != nil {
		slog.Error("Failed to subscribe to post events", "error", err)
		os.Exit(1)
	}

	svc := search.NewService(docs)

	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), cfg.Server.Mode,
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
