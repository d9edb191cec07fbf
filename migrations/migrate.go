package main

import (
	"cortexserver/database"
	"cortexserver/models"

	"go.uber.org/zap"
)

// Standalone migration tool: go run ./migrations
func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	config, err := database.LoadConfig("config.json")
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	db, err := database.InitPostgreSQL(config, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Match{},
		&models.EmailTrigger{},
	); err != nil {
		logger.Fatal("failed to migrate tables", zap.Error(err))
	}

	logger.Info("migration complete")
}
