package main

import (
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arosales/juntas-seguras/internal/auth"
	"github.com/arosales/juntas-seguras/internal/handler"
	"github.com/arosales/juntas-seguras/internal/middleware"
	"github.com/arosales/juntas-seguras/internal/processor"
	"github.com/arosales/juntas-seguras/internal/service"
	"github.com/arosales/juntas-seguras/internal/storage/sqlite"
	"github.com/arosales/juntas-seguras/pkg/config"
	"github.com/arosales/juntas-seguras/pkg/logging"
)

const tokenDuration = 24 * time.Hour

func main() {
	logging.Setup()

	cfg := config.Load()
	if missing := cfg.Validate(); len(missing) > 0 {
		slog.Error("Missing required configuration", "vars", strings.Join(missing, ", "))
		os.Exit(1)
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	slog.Info("Storage initialized", "database", cfg.DBPath)

	gateway := processor.NewStripeGateway(cfg.StripeSecretKey, cfg.ConnectReturnURL, cfg.ConnectRefreshURL)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, tokenDuration)
	authenticator := auth.NewPasswordAuthenticator(store)

	authHandler := handler.NewAuthHandler(service.NewAuthService(authenticator, jwtManager))
	poolHandler := handler.NewPoolHandler(service.NewPoolService(store))
	paymentSvc := service.NewPaymentService(store, gateway)
	connectSvc := service.NewConnectService(store, gateway)
	paymentHandler := handler.NewPaymentHandler(paymentSvc, service.NewPayoutService(store, gateway))
	connectHandler := handler.NewConnectHandler(connectSvc)
	webhookHandler := handler.NewWebhookHandler(cfg.StripeWebhookSecret, paymentSvc, connectSvc)

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(cors.New())
	app.Use(middleware.RequestLogger())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// Public routes.
	api.Post("/auth/register", authHandler.Register)
	api.Post("/auth/login", authHandler.Login)
	// The webhook authenticates by signature, not by bearer token.
	api.Post("/stripe/webhook", webhookHandler.Handle)

	// Authenticated routes.
	private := api.Use(middleware.RequireAuth(jwtManager))
	private.Post("/pools", poolHandler.Create)
	private.Get("/pools/:id", poolHandler.Get)
	private.Get("/stripe/connect", connectHandler.Status)
	private.Post("/stripe/connect", connectHandler.Act)
	private.Post("/stripe/create-payment-intent", middleware.Idempotency(store), paymentHandler.CreatePaymentIntent)
	private.Post("/stripe/capture", middleware.Idempotency(store), paymentHandler.Capture)
	private.Post("/stripe/payout", middleware.Idempotency(store), paymentHandler.Payout)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("Server starting", "env", cfg.Env, "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("Server stopped", "error", err)
		}
	}()

	<-stop
	slog.Info("Shutting down server")

	if err := app.Shutdown(); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	if err := store.Close(); err != nil {
		slog.Error("Failed to close storage", "error", err)
	}
	slog.Info("Server exited")
}
