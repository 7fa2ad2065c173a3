package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/config"
	"github.com/dvloznov/finance-dashboard/internal/infra/postgres"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/jackc/pgx/v5"
)

func main() {
	cfg := config.Load()

	var (
		databaseURL   = flag.String("database-url", cfg.DatabaseURL, "Postgres connection string (or set DATABASE_URL env)")
		appliedBy     = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
		migrationsDir = flag.String("migrations", "", "Read migrations from this directory instead of the embedded set")
		status        = flag.Bool("status", false, "Print migration status and exit")
	)
	flag.Parse()

	log := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if *databaseURL == "" {
		log.Fatal().Msg("Error: -database-url flag or DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	migrations, err := loadMigrations(*migrationsDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load migrations")
	}
	log.Info().Int("count", len(migrations)).Msg("Found migrations")

	conn, err := pgx.Connect(ctx, *databaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer conn.Close(context.Background())

	migrator := postgres.NewMigrator(conn, *appliedBy)

	if *status {
		applied, err := migrator.Applied(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read applied migrations")
		}
		for _, line := range statusLines(migrations, applied) {
			fmt.Println(line)
		}
		return
	}

	count, err := migrator.Apply(ctx, migrations)
	if err != nil {
		log.Fatal().Err(err).Int("applied", count).Msg("Migration failed")
	}

	if count == 0 {
		log.Info().Msg("Database is up to date")
		return
	}
	log.Info().Int("applied", count).Msg("Migrations applied successfully")
}

func loadMigrations(dir string) ([]postgres.Migration, error) {
	if dir == "" {
		return postgres.Migrations()
	}
	return postgres.LoadMigrations(os.DirFS(dir))
}

// statusLines renders one line per known migration, plus any applied
// version that no longer has a file.
func statusLines(migrations []postgres.Migration, applied []postgres.AppliedMigration) []string {
	byVersion := make(map[int]postgres.AppliedMigration, len(applied))
	for _, am := range applied {
		byVersion[am.Version] = am
	}

	var lines []string
	known := make(map[int]bool, len(migrations))
	for _, m := range migrations {
		known[m.Version] = true
		am, ok := byVersion[m.Version]
		switch {
		case !ok:
			lines = append(lines, fmt.Sprintf("%04d_%s  pending", m.Version, m.Name))
		case am.Checksum != "" && am.Checksum != m.Checksum:
			lines = append(lines, fmt.Sprintf("%04d_%s  modified (applied %s)", m.Version, m.Name, am.AppliedAt.Format(time.RFC3339)))
		default:
			lines = append(lines, fmt.Sprintf("%04d_%s  applied %s", m.Version, m.Name, am.AppliedAt.Format(time.RFC3339)))
		}
	}
	for _, am := range applied {
		if !known[am.Version] {
			lines = append(lines, fmt.Sprintf("%04d_%s  missing file", am.Version, am.Name))
		}
	}
	return lines
}
