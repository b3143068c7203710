package main

import (
	"context"
	"database/sql"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/karimndoye/sunumarket-backend/pkg/config"
	"github.com/karimndoye/sunumarket-backend/pkg/logger"
	"github.com/karimndoye/sunumarket-backend/pkg/migrate"
)

// Usage: migrate <command> [args], where command is any goose command
// (up, down, status, version, ...).
func main() {
	_ = godotenv.Load()

	logg := logger.New(logger.Options{ServiceName: "sunumarket-migrate", Level: zerolog.InfoLevel})
	ctx := context.Background()

	command := "up"
	var args []string
	if len(os.Args) > 1 {
		command = os.Args[1]
		args = os.Args[2:]
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "loading configuration", err)
		os.Exit(1)
	}

	sqlDB, err := sql.Open("postgres", cfg.DB.DSN)
	if err != nil {
		logg.Error(ctx, "opening database", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := sqlDB.PingContext(ctx); err != nil {
		logg.Error(ctx, "pinging database", err)
		os.Exit(1)
	}

	ctx = logg.WithFields(ctx, map[string]any{"command": command, "dir": migrate.DefaultDir})
	logg.Info(ctx, "running migration command")

	if err := migrate.Run(ctx, sqlDB, migrate.DefaultDir, command, args...); err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migration command completed")
}
