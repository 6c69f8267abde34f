package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cardsheets/internal/api"
	"cardsheets/internal/api/handlers"
	"cardsheets/internal/api/middleware"
	"cardsheets/internal/engine/cards"
	"cardsheets/internal/engine/reconcile"
	"cardsheets/internal/engine/team"
	"cardsheets/internal/pkg/logger"
	"cardsheets/internal/platform/audit"
	"cardsheets/internal/platform/auth"
	"cardsheets/internal/platform/config"
	"cardsheets/internal/platform/database"
	"cardsheets/internal/platform/docstore"
	"cardsheets/internal/platform/email"
	"cardsheets/internal/platform/repositories"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger.Init(cfg.Logging)

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	store := docstore.NewSQLStore(db)

	sender, err := email.NewSender(cfg.Email)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure email")
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reconcileMetrics, err := reconcile.NewMetrics(reg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register reconcile metrics")
	}
	httpMetrics, err := middleware.NewHTTPMetrics(reg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register http metrics")
	}

	// Repositories and services
	businesses := repositories.NewBusinessRepository(store, cfg.Cache.BusinessTTL)
	auditLog := audit.NewLogger(store)
	tokenSvc := auth.NewTokenService(cfg.JWT)

	reconcileSvc := reconcile.NewService(store, businesses, reconcileMetrics)
	teamSvc := team.NewService(store, businesses, sender, auditLog, team.Options{
		InvitationTTL: cfg.Invitations.TTL,
		AppURL:        cfg.Email.AppURL,
	})
	cardSvc := cards.NewService(store, businesses, sender, auditLog, cfg.Email.AppURL)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit)
	defer rateLimiter.Close()

	router := api.NewRouter(&api.Dependencies{
		ReconcileHandler: handlers.NewReconcileHandler(reconcileSvc, auditLog),
		BusinessHandler:  handlers.NewBusinessHandler(teamSvc, tokenSvc),
		TeamHandler:      handlers.NewTeamHandler(teamSvc, tokenSvc),
		CardHandler:      handlers.NewCardHandler(cardSvc),
		AuditHandler:     handlers.NewAuditHandler(store),
		HealthHandler:    handlers.NewHealthHandler(db),
		MetricsHandler:   handlers.NewMetricsHandler(reg),
		AuthMiddleware:   middleware.NewAuthMiddleware(tokenSvc),
		TenantMiddleware: middleware.NewTenantMiddleware(businesses),
		RateLimiter:      rateLimiter,
		HTTPMetrics:      httpMetrics,
		CORS:             cfg.CORS,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	auditLog.Wait()
	log.Info().Msg("server stopped")
}
