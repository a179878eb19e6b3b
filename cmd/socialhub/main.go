// Command socialhub runs every service in a single process for local
// development: the in-memory bus and cache replace RabbitMQ and redis, and
// each service listens on its usual port so the gateway's default routing
// table works unchanged.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/socialhub-lab/socialhub/internal/bus"
	"github.com/socialhub-lab/socialhub/internal/cache"
	"github.com/socialhub-lab/socialhub/internal/core/config"
	"github.com/socialhub-lab/socialhub/internal/gateway"
	"github.com/socialhub-lab/socialhub/internal/identity"
	"github.com/socialhub-lab/socialhub/internal/media"
	"github.com/socialhub-lab/socialhub/internal/posts"
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

	membus := bus.NewMemoryBus()
	store := cache.NewMemoryStore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tokens := identity.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())

	identitySvc := identity.NewService(
		identity.NewMemoryUserStore(),
		identity.NewMemoryRefreshStore(),
		identity.BcryptHasher{Cost: bcrypt.DefaultCost},
		tokens,
		cfg.Auth.RefreshTokenTTL(),
	)

	postsSvc := posts.NewService(posts.NewMemoryStore(), membus, store, cfg.Cache.EntryTTL())

	docs := search.NewMemoryDocumentStore()
	if err := search.NewConsumer(docs).Bind(ctx, membus); err != nil {
		slog.Error("Failed to bind search consumer", "error", err)
		os.Exit(1)
	}
	searchSvc := search.NewService(docs)

	mediaStore := media.NewMemoryStore()
	assetHost := media.NewMemoryAssetHost(uuid.NewString)
	if err := media.NewCleanupConsumer(mediaStore, assetHost).Bind(ctx, membus); err != nil {
		slog.Error("Failed to bind media cleanup consumer", "error", err)
		os.Exit(1)
	}
	mediaSvc := media.NewService(mediaStore, assetHost)

	gw, err := gateway.New(gateway.DefaultRules(cfg.Gateway), tokens, store, cfg.Gateway)
	if err != nil {
		slog.Error("Failed to build routing table", "error", err)
		os.Exit(1)
	}

	type mountFunc func(*server.Server)
	services := []struct {
		name  string
		port  int
		mount mountFunc
	}{
		{"gateway", 3000, func(s *server.Server) { gw.Register(s.Engine) }},
		{"identity", 3001, func(s *server.Server) { identitySvc.RegisterRoutes(s.Engine) }},
		{"posts", 3002, func(s *server.Server) { postsSvc.RegisterRoutes(s.Engine) }},
		{"media", 3003, func(s *server.Server) { mediaSvc.RegisterRoutes(s.Engine) }},
		{"search", 3004, func(s *server.Server) { searchSvc.RegisterRoutes(s.Engine) }},
	}

	g, gCtx := errgroup.WithContext(ctx)
	for _, svc := range services {
		srv := server.New(fmt.Sprintf("%s:%d", cfg.Server.Host, svc.port), cfg.Server.Mode)
		svc.mount(srv)
		slog.Info("Starting service", "name", svc.name, "port", svc.port)
		g.Go(func() error { return srv.Run(gCtx) })
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		select {
		case <-quit:
			slog.Info("Signal received, shutting down...")
		case <-gCtx.Done():
		}
		cancel()
	}()

	if err := g.Wait(); err != nil {
		slog.Error("Service stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}
