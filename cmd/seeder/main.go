//cmd/seeder/main.go
package main

import (
	"context"
	"database/sql"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/unclebandit/outreach-backend/internal/config"
	"github.com/unclebandit/outreach-backend/internal/db"
	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/logger"
)

var seedFiles = []string{
	"seed/schema.sql",
	"seed/applicants.sql",
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.New(cfg.Log)

	conn, err := db.Open(context.Background(), cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to DB")
	}
	defer conn.Close()

	if err := seed(context.Background(), conn, seedFiles, os.ReadFile, log); err != nil {
		log.Fatal().Err(err).Msg("seeding failed")
	}
	log.Info().Msg("database seeding completed successfully")
}

func seed(ctx context.Context, conn *sql.DB, files []string, read func(string) ([]byte, error), log zerolog.Logger) error {
	for _, file := range files {
		content, err := read(file)
		if err != nil {
			return appErrors.Wrap(err, "failed to read "+file)
		}
		if _, err := conn.ExecContext(ctx, string(content)); err != nil {
			return appErrors.Wrap(err, "failed to execute "+file)
		}
		log.Info().Str("file", file).Msg("seeded")
	}
	return nil
}
