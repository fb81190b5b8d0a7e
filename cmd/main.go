package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"creatorfund/internal/auth"
	"creatorfund/internal/config"
	creatorDonations "creatorfund/internal/http_server/handlers/creator_donations"
	"creatorfund/internal/http_server/handlers/donation"
	forgotPassword "creatorfund/internal/http_server/handlers/forgot_password"
	"creatorfund/internal/http_server/handlers/login"
	"creatorfund/internal/http_server/handlers/logout"
	"creatorfund/internal/http_server/handlers/membership"
	"creatorfund/internal/http_server/handlers/refresh"
	"creatorfund/internal/http_server/handlers/register"
	resetPassword "creatorfund/internal/http_server/handlers/reset_password"
	resendEmail "creatorfund/internal/http_server/handlers/resend_verification_email"
	"creatorfund/internal/http_server/handlers/verify"
	"creatorfund/internal/http_server/middleware/authz"
	rateLimit "creatorfund/internal/middleware/ratelimit"
	"creatorfund/internal/payment"
	"creatorfund/internal/payment/khalti"
	"creatorfund/internal/rabbitmq"
	"creatorfund/internal/storage/postgres"
	redisstore "creatorfund/internal/storage/redis"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

const roleAdmin = "admin"

func main() {
	cfg := config.MustLoad("./config/config.yaml")

	log := setupLogger(cfg.Env)

	log.Info("starting creatorfund backend", slog.String("env", cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("Shutdown signal received")
		cancel()
	}()

	storage, err := postgres.New(ctx, cfg)
	if err != nil {
		log.Error("failed to connect postgres", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer storage.Close()

	denylist, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Error("failed to connect redis", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer denylist.Close()

	msgBroker, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
	if err != nil {
		log.Error("failed to connect rabbitmq", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer msgBroker.Close()

	authService := auth.New(log, storage, storage, auth.Config{
		JWTSecret:       cfg.JWT.Secret,
		Issuer:          cfg.JWT.Issuer,
		Audience:        cfg.JWT.Audience,
		AccessTTL:       cfg.Tokens.AccessTokenTTL,
		RefreshTTL:      cfg.Tokens.RefreshTokenTTL,
		VerificationTTL: cfg.Tokens.VerificationTokenTTL,
	})

	gateway := khalti.New(cfg.Gateway.BaseURL, cfg.Gateway.SecretKey, cfg.Gateway.Timeout)

	paymentService := payment.New(log, gateway, storage, payment.Config{
		ReturnURL:  cfg.Gateway.ReturnURL,
		WebsiteURL: cfg.PublicURL,
		MaxAmount:  cfg.Donations.MaxAmount,
	})

	router := setupRouter(log, cfg, authService, paymentService, storage, denylist, msgBroker)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server is running", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed", slog.String("err", err.Error()))
			cancel()
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", slog.String("err", err.Error()))
	} else {
		log.Info("Server stopped gracefully")
	}

	log.Info("Main service stopped")
}

func setupRouter(
	log *slog.Logger,
	cfg *config.Config,
	authService *auth.Auth,
	paymentService *payment.Service,
	storage *postgres.Repo,
	denylist *redisstore.Denylist,
	msgBroker *rabbitmq.Client,
) *chi.Mux {
	validate := validator.New()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	requireAuth := authz.Middleware(log, cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience, denylist)

	r.Route("/auth", func(r chi.Router) {
		r.With(rateLimit.Register()).Post("/register",
			register.New(log, validate, authService, msgBroker, cfg.PublicURL),
		)
		r.With(rateLimit.Login()).Post("/login",
			login.New(log, validate, authService),
		)
		r.With(rateLimit.Refresh()).Post("/refresh",
			refresh.New(log, authService),
		)
		r.With(rateLimit.Verify()).Get("/verify",
			verify.New(log, authService),
		)
		r.With(rateLimit.ResendVerificationEmail()).Post("/resend_verification_email",
			resendEmail.New(log, validate, authService, msgBroker, cfg.PublicURL),
		)
		r.With(rateLimit.ForgotPassword()).Post("/forgot_password",
			forgotPassword.New(log, validate, authService, msgBroker, cfg.PublicURL),
		)
		r.With(rateLimit.ForgotPassword()).Post("/reset_password",
			resetPassword.New(log, validate, authService),
		)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.With(rateLimit.Logout()).Post("/logout",
				logout.New(log, authService, denylist),
			)
			r.With(rateLimit.Logout()).Post("/logout_all",
				logout.NewAll(log, authService, denylist),
			)
		})
	})

	r.Route("/donations", func(r chi.Router) {
		r.Use(rateLimit.Payments())
		r.Post("/initiate",
			donation.NewInitiate(log, validate, paymentService),
		)
		r.Post("/verify",
			donation.NewVerify(log, validate, paymentService),
		)
	})

	r.Route("/memberships", func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(rateLimit.Payments())
		r.Post("/enroll",
			membership.NewInitiate(log, validate, paymentService),
		)
		r.Post("/verify",
			membership.NewVerify(log, validate, paymentService),
		)
	})

	r.Route("/creators/{id}/donations", func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(authz.RequireOwnerOrRole(creatorDonations.OwnerOf(storage), roleAdmin))
		r.Get("/",
			creatorDonations.New(log, storage),
		)
	})

	return r
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
