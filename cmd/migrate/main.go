package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/joao-fontenele/shopfront/internal/config"
	"github.com/joao-fontenele/shopfront/internal/database"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	source := flag.String("source", "file://migrations", "migration source URL")
	flag.Parse()
	args := flag.Args()

	if len(args) < 1 {
		logger.Error("usage: migrate [-source url] <up|down|version>")
		os.Exit(1)
	}

	cfg, err := config.Load(config.KeyPostgresURL)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	m, err := database.NewMigrator(*source, cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to create migrator", "error", err)
		os.Exit(1)
	}
	defer func() { _ = m.Close() }()

	command := args[0]

	switch command {
	case "up":
		applied, err := m.Up()
		if err != nil {
			logger.Error("migration up failed", "error", err)
			os.Exit(1)
		}
		if !applied {
			logger.Info("no pending migrations")
			return
		}
		logger.Info("migrations applied successfully")

	case "down":
		rolledBack, err := m.Down()
		if err != nil {
			logger.Error("migration down failed", "error", err)
			os.Exit(1)
		}
		if !rolledBack {
			logger.Info("no migrations to rollback")
			return
		}
		logger.Info("migration rolled back successfully")

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			logger.Error("failed to get version", "error", err)
			os.Exit(1)
		}
		logger.Info("current migration version", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))

	default:
		logger.Error("unknown command", "command", command)
		os.Exit(1)
	}
}
