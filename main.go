package main

import (
	"github.com/joho/godotenv"

	"github.com/yagpdc/words-game/config"
	"github.com/yagpdc/words-game/logger"
	"github.com/yagpdc/words-game/persistence"
	"github.com/yagpdc/words-game/server"
	"github.com/yagpdc/words-game/words"
)

func main() {
	// Initialize logger
	logger.Init()

	// Local .env overlay, if present
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Load word lists
	list, err := words.NewList(cfg.Words.AnswersFile, cfg.Words.AllowedFile, cfg.Game.WordLength)
	if err != nil {
		logger.Log.Fatalf("Failed to load word lists: %v", err)
	}

	// Initialize persistence
	var store persistence.Store
	if cfg.Database.Enabled {
		pg := cfg.Database.Postgres
		switch cfg.Database.Driver {
		case "postgres":
			store, err = persistence.NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		default:
			store, err = persistence.NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		}
		if err != nil {
			logger.Log.Fatalf("Failed to connect to database: %v", err)
		}
		logger.Log.Info("Database connection successful.")
	} else {
		logger.Log.Warn("Database disabled; rounds will not be recorded.")
	}

	// Initialize Game Server
	gameServer := server.NewGameServer(cfg, store, list)

	// Start Server
	logger.Log.Infof("Starting co-op words server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
