package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"cardsheets/internal/pkg/logger"
	"cardsheets/internal/platform/config"
	"cardsheets/internal/platform/database"
	"cardsheets/internal/platform/docstore"
	"cardsheets/internal/workers"

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	interval := cfg.Workers.InvitationSweepInterval
	if interval <= 0 {
		interval = time.Hour
	}

	log.Info().Dur("interval", interval).Msg("invitation expiry worker starting")
	workers.Every(ctx, interval, "invitation_expiry", func(ctx context.Context) error {
		n, err := workers.ExpireInvitations(ctx, store, time.Now())
		if err != nil {
			return err
		}
		if n > 0 {
			log.Info().Int("expired", n).Msg("expired invitations")
		}
		return nil
	})
	log.Info().Msg("worker stopped")
}
