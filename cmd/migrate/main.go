package main

import (
	"flag"
	"fmt"

	"cardsheets/internal/platform/config"
	"cardsheets/internal/platform/database"

	"github.com/rs/zerolog/log"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	switch *direction {
	case "up":
		err = database.Migrate(db)
	case "down":
		err = database.Drop(db)
	default:
		log.Fatal().Str("direction", *direction).Msg("invalid direction: must be 'up' or 'down'")
	}
	if err != nil {
		log.Fatal().Err(err).Str("direction", *direction).Msg("migration failed")
	}

	fmt.Printf("Migration %s completed successfully\n", *direction)
}
