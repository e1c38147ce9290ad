package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/divvyup/divvy/internal/auth"
	"github.com/divvyup/divvy/internal/cleanup"
	"github.com/divvyup/divvy/internal/config"
	"github.com/divvyup/divvy/internal/fanout"
	"github.com/divvyup/divvy/internal/identity"
	"github.com/divvyup/divvy/internal/janitor"
	"github.com/divvyup/divvy/internal/metrics"
	"github.com/divvyup/divvy/internal/service"
	"github.com/divvyup/divvy/internal/storage/sqlite"
	"github.com/divvyup/divvy/pkg/logging"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	logging.Setup()

	cfg := config.Load()

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	metrics.MustRegister()

	jwtManager := auth.NewJWTManager(cfg.SigningKey, cfg.TokenTTL)
	authenticator := auth.NewPasswordAuthenticator(store)

	merger := identity.NewMerger(store)
	dedupe := identity.NewDeduplicator(store)
	reconciler := fanout.NewReconciler(store)
	pipeline := identity.NewClaimPipeline(store, merger, reconciler)
	deleter := cleanup.NewDeleter(store)
	jan := janitor.New(store, deleter, cfg.JanitorInterval, cfg.JanitorPageSize, cfg.JanitorMaxPerRun)

	handler := service.NewRouter(service.Services{
		Auth:     service.NewAuthService(authenticator, jwtManager),
		Identity: service.NewIdentityService(store, merger),
		Friends:  service.NewFriendService(store, dedupe),
		Invites:  service.NewInviteService(store, pipeline, cfg.InviteTTL),
		Groups:   service.NewGroupService(store),
		Expenses: service.NewExpenseService(store, reconciler),
		Admin:    service.NewAdminService(store, deleter, jan),
	}, jwtManager, cfg.AdminToken)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go jan.Run(ctx)

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: handler,
	}

	go func() {
		slog.Info("Server listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}
