package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/config"
	"github.com/dvloznov/finance-dashboard/internal/infra/postgres"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/notionsync"
)

func main() {
	cfg := config.Load()

	// Initialize structured logger
	log := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	// Parse CLI flags
	userID := flag.String("user", "", "User ID whose budget categories are exported (required)")
	databaseURL := flag.String("database-url", cfg.DatabaseURL, "Postgres connection string (or set DATABASE_URL env)")
	notionToken := flag.String("notion-token", cfg.NotionToken, "Notion API token (or set NOTION_TOKEN env)")
	notionDBID := flag.String("notion-db-id", cfg.NotionBudgetDBID, "Notion database ID (or set NOTION_BUDGET_DB_ID env)")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	// Validate required flags
	if *userID == "" {
		log.Fatal().Msg("Error: --user is required")
	}
	if *databaseURL == "" {
		log.Fatal().Msg("Error: --database-url is required")
	}
	if *notionToken == "" {
		log.Fatal().Msg("Error: --notion-token is required")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-db-id is required")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	log.Info().Str("user_id", *userID).Bool("dry_run", *dryRun).Msg("Starting Notion sync")

	pool, err := postgres.NewPool(ctx, *databaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	repo := postgres.NewCategoryRepository(pool)
	notionClient := notionsync.NewClient(*notionToken)

	res, err := notionsync.SyncCategories(ctx, repo, notionClient, *notionDBID, *userID, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Sync completed: %d created, %d updated, %d archived, %d failed.\n",
		res.Created, res.Updated, res.Archived, res.Failed)
}
