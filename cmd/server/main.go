package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"

	_ "github.com/lib/pq"

	"github.com/arturoeanton/familyhub-auth/internal/adapter/device"
	"github.com/arturoeanton/familyhub-auth/internal/adapter/gateway"
	"github.com/arturoeanton/familyhub-auth/internal/adapter/store"
	"github.com/arturoeanton/familyhub-auth/internal/handler"
	"github.com/arturoeanton/familyhub-auth/internal/middleware"
	"github.com/arturoeanton/familyhub-auth/internal/port"
	"github.com/arturoeanton/familyhub-auth/internal/service"
	"github.com/arturoeanton/familyhub-auth/internal/session"
	"github.com/arturoeanton/familyhub-auth/pkg/config"
)

// persistence is what both store backends provide.
type persistence interface {
	port.SessionPersistence
	port.AuditStore
}

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	slog.Info("🚀 Starting FamilyHub Auth",
		"port", cfg.Port,
		"auth_api", cfg.AuthAPIBaseURL,
		"database", cfg.DSN(),
	)

	// ── Persistence ──────────────────────────────────────────────────────
	var db persistence
	if cfg.DatabaseURL != "" {
		pgStore, err := store.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pgStore.Close()
		if err := pgStore.Migrate(context.Background()); err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		db = pgStore
	} else {
		slog.Warn("DATABASE_URL not set, sessions will not survive a restart")
		db = store.NewMemoryStore(0)
	}

	// ── Adapters ─────────────────────────────────────────────────────────
	authAPI, err := gateway.NewClient(gateway.Config{
		BaseURL:    cfg.AuthAPIBaseURL,
		Timeout:    cfg.AuthRequestTimeout,
		SessionKey: cfg.SessionKey,
	})
	if err != nil {
		slog.Error("failed to create auth api client", "error", err)
		os.Exit(1)
	}
	identity := device.NewIdentity(cfg.AppName)

	// ── Services ─────────────────────────────────────────────────────────
	sessions := session.NewStore()
	flow := service.NewAuthFlow(service.AuthFlowDeps{
		Gateway:        authAPI,
		Carrier:        authAPI,
		Persistence:    db,
		FamilyAdmin:    authAPI,
		Devices:        authAPI,
		Identity:       identity,
		Store:          sessions,
		SessionKey:     authAPI.SessionKey(),
		RequestTimeout: cfg.AuthRequestTimeout,
	})
	strength := service.NewStrengthChecker(authAPI, cfg.PasswordMinScore)

	initCtx, cancel := context.WithTimeout(context.Background(), 3*cfg.AuthRequestTimeout)
	flow.Initialize(initCtx)
	cancel()

	// ── Fiber App ────────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:     cfg.AppName,
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: the session stream is long-lived.
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowCredentials: true,
	}))

	if cfg.AuditEnabled {
		app.Use(middleware.AuditMiddleware(db, sessions))
	}

	api := app.Group("/api/v1")
	requireSession := middleware.RequireSession(sessions)

	// Health check
	api.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":        "healthy",
			"app":           cfg.AppName,
			"version":       "1.0.0",
			"authenticated": sessions.State().IsAuthenticated,
		})
	})

	authHandler := handler.NewAuthHandler(flow, strength, sessions, cfg.FrontendURL)
	authHandler.Register(api, requireSession)

	resetWizards := handler.NewWizardRegistry[*service.PasswordResetWizard](handler.DefaultWizardTTL, nil)
	resetHandler := handler.NewPasswordResetHandler(resetWizards, func() *service.PasswordResetWizard {
		return service.NewPasswordResetWizard(service.ResetDeps{
			Gateway:   authAPI,
			Questions: authAPI,
			Security:  authAPI,
			MinScore:  cfg.PasswordMinScore,
			Timeout:   cfg.AuthRequestTimeout,
		})
	})
	resetHandler.Register(api)

	inviteWizards := handler.NewWizardRegistry(handler.DefaultWizardTTL, (*service.InvitationWizard).Close)
	inviteHandler := handler.NewInvitationHandler(inviteWizards, func() *service.InvitationWizard {
		return service.NewInvitationWizard(service.InvitationDeps{
			Service:  authAPI,
			Debounce: cfg.InvitePreviewDebounce,
			Timeout:  cfg.AuthRequestTimeout,
		})
	})
	inviteHandler.Register(api, requireSession)

	auditHandler := handler.NewAuditHandler(db)
	auditHandler.Register(api, requireSession)

	// ── Start ────────────────────────────────────────────────────────────
	slog.Info("🌐 Fiber listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
