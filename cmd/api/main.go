package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wattlebank/wattle/internal/adapter/handler"
	"github.com/wattlebank/wattle/internal/adapter/middleware"
	"github.com/wattlebank/wattle/internal/adapter/storage"
	"github.com/wattlebank/wattle/internal/core/config"
	"github.com/wattlebank/wattle/internal/core/domain"
	"github.com/wattlebank/wattle/internal/core/engine"
	"github.com/wattlebank/wattle/internal/core/notifications"
	"github.com/wattlebank/wattle/internal/core/security"
	"github.com/wattlebank/wattle/internal/core/worker"
)

func main() {
	cfg := config.LoadConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Store selection: postgres in production, memory for local tinkering.
	var (
		store  engine.Store
		dbPool *pgxpool.Pool
	)
	if cfg.Store == "memory" {
		store = storage.NewMemoryStore()
		slog.Warn("using in-memory store, state will not survive a restart")
	} else {
		pool, err := storage.ConnectDB(cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "error", err)
			os.Exit(1)
		}
		dbPool = pool
		store = storage.NewPostgresStore(pool)
		slog.Info("connected to postgres")
	}

	rand := security.CryptoRand{}
	eng := engine.New(store, rand)
	notifier := notifications.New(cfg.WebhookURL, cfg.WebhookSecret)

	seedAdmin(store, cfg)

	accountHandler := &handler.AccountHandler{Store: store, Rand: rand}
	transactionHandler := &handler.TransactionHandler{Engine: eng, Store: store}
	adminHandler := &handler.AdminHandler{
		Engine:    eng,
		Store:     store,
		JWTSecret: []byte(cfg.JWTSecret),
		Notifier:  notifier,
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/v1")

	// Customer-facing.
	api.Post("/accounts", accountHandler.OpenAccount)
	api.Post("/accounts/:id/activate", accountHandler.Activate)
	api.Get("/accounts/:id", accountHandler.GetAccount)
	api.Post("/accounts/:id/cards", accountHandler.IssueCard)
	api.Get("/accounts/:id/transactions", transactionHandler.GetHistory)
	api.Post("/payids", accountHandler.RegisterPayID)
	if dbPool != nil {
		api.Post("/transactions", middleware.Idempotency(dbPool), transactionHandler.Create)
	} else {
		api.Post("/transactions", transactionHandler.Create)
	}

	// Admin console.
	api.Post("/admin/login", adminHandler.Login)
	admin := api.Group("/admin", middleware.Protected([]byte(cfg.JWTSecret)))
	admin.Get("/transactions", adminHandler.ListTransactions)
	admin.Post("/transactions/:id/approve", adminHandler.Approve)
	admin.Post("/transactions/:id/decline", adminHandler.Decline)
	admin.Post("/transactions/:id/verify-code", adminHandler.VerifyCode)
	admin.Post("/accounts/:id/fund", adminHandler.Fund)
	admin.Post("/accounts/:id/debit", adminHandler.Debit)

	sweep := worker.NewSweep(store, cfg.SweepInterval, notifier)
	sweep.Start()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "env", cfg.Env, "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server stopped", "error", err)
		}
	}()

	<-stop
	slog.Info("shutting down")

	sweep.Stop()
	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	if dbPool != nil {
		dbPool.Close()
		slog.Info("database connection closed")
	}
	slog.Info("server exited")
}

// seedAdmin creates the bootstrap console admin if credentials are configured
// and it does not already exist.
func seedAdmin(store engine.Store, cfg *config.Config) {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		slog.Warn("ADMIN_EMAIL/ADMIN_PASSWORD not set, skipping admin bootstrap")
		return
	}
	hash, err := security.HashPassword(cfg.AdminPassword)
	if err != nil {
		slog.Error("could not hash admin password", "error", err)
		return
	}
	err = store.CreateAdmin(context.Background(), &domain.Admin{
		ID:           uuid.New(),
		Email:        cfg.AdminEmail,
		Name:         "Bootstrap Admin",
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	})
	if err != nil && !errors.Is(err, domain.ErrDuplicate) {
		slog.Error("could not seed admin", "error", err)
		return
	}
	slog.Info("bootstrap admin ready", "email", cfg.AdminEmail)
}
