package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/budget"
	"github.com/dvloznov/finance-dashboard/internal/chat"
	"github.com/dvloznov/finance-dashboard/internal/config"
	"github.com/dvloznov/finance-dashboard/internal/documents"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/gcs"
	"github.com/dvloznov/finance-dashboard/internal/infra/postgres"
	"github.com/dvloznov/finance-dashboard/internal/llm"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/realtime"
	"github.com/dvloznov/finance-dashboard/internal/receipts"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func main() {
	cfg := config.Load()
	log := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "ingest":
		runIngest(cfg, log)
	case "ask":
		runAsk(cfg, log)
	case "chat":
		runChat(cfg, log)
	case "categories":
		runCategories(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Finance Dashboard CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  ingest      Upload a PDF and index it for questions")
	fmt.Println("  ask         Ask a question about an ingested document")
	fmt.Println("  chat        Talk to the budget assistant")
	fmt.Println("  categories  List budget categories")
	fmt.Println("  help        Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// documentDeps opens everything document commands need.
type documentDeps struct {
	pool   *pgxpool.Pool
	bucket *gcs.Bucket
	repo   *postgres.DocumentRepository
	llm    *llm.Client
}

func openDocumentDeps(ctx context.Context, cfg config.Config, log zerolog.Logger) *documentDeps {
	if missing := cfg.DocumentsMissing(); len(missing) > 0 {
		log.Fatal().Strs("missing", missing).Msg("Error: document commands need more configuration")
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	bucket, err := gcs.NewBucket(ctx, cfg.Bucket)
	if err != nil {
		log.Fatal().Err(err).Str("bucket", cfg.Bucket).Msg("Failed to open GCS bucket")
	}
	client, err := llm.New(ctx, llm.Options{
		APIKey:         cfg.GeminiAPIKey,
		EmbeddingModel: cfg.EmbeddingModel,
		ChatModel:      cfg.ChatModel,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	return &documentDeps{
		pool:   pool,
		bucket: bucket,
		repo:   postgres.NewDocumentRepository(pool),
		llm:    client,
	}
}

func (d *documentDeps) Close() {
	d.bucket.Close()
	d.pool.Close()
}

func runIngest(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	userID := fs.String("user", "", "Owner of the document (required)")
	filePath := fs.String("file", "", "Path to local PDF file (required)")
	fs.Parse(os.Args[2:])

	if *userID == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli ingest -user ID -file PATH")
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Str("file", *filePath).Msg("Failed to read file")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	deps := openDocumentDeps(ctx, cfg, log)
	defer deps.Close()

	service := documents.NewService(deps.repo, deps.bucket, realtime.NopNotifier{})
	doc, err := service.Upload(ctx, *userID, documents.Upload{
		FileName:    filepath.Base(*filePath),
		ContentType: mime.TypeByExtension(filepath.Ext(*filePath)),
		Data:        data,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}
	log.Info().Str("document_id", doc.ID).Str("storage_path", doc.StoragePath).Msg("Document uploaded")

	ingestor := documents.NewIngestor(deps.repo, deps.bucket, deps.llm, deps.llm, documents.NopLocker{}, realtime.NopNotifier{})
	res, err := ingestor.Ingest(ctx, *userID, doc.ID, doc.StoragePath)
	if err != nil {
		log.Fatal().Err(err).Str("document_id", doc.ID).Msg("Ingestion failed")
	}

	fmt.Printf("%s (%d chunks)\nDocument ID: %s\n", res.Message, res.ChunkCount, doc.ID)
}

func runAsk(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	userID := fs.String("user", "", "Owner of the document (required)")
	documentID := fs.String("document-id", "", "Document to ask about (required)")
	question := fs.String("q", "", "Question (required)")
	fs.Parse(os.Args[2:])

	if *userID == "" || *documentID == "" || strings.TrimSpace(*question) == "" {
		log.Fatal().Msg("Usage: cli ask -user ID -document-id ID -q QUESTION")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	deps := openDocumentDeps(ctx, cfg, log)
	defer deps.Close()

	answer, err := documents.NewAnswerer(deps.repo, deps.llm, deps.llm).Answer(ctx, *userID, *documentID, strings.TrimSpace(*question))
	if err != nil {
		log.Fatal().Err(err).Msg("Query failed")
	}

	fmt.Println(answer.Answer)
	fmt.Printf("\nSources from %s:\n", answer.Document.FileName)
	for i, src := range answer.Sources {
		fmt.Printf("  [%d] %.2f  %s\n", i+1, src.Similarity, preview(src.Content, 80))
	}
}

// budgetDeps returns the budget service and receipts lister, backed by
// Postgres when configured and by memory otherwise. A non-empty seedUser gets
// demo categories in memory mode.
func budgetDeps(ctx context.Context, cfg config.Config, log zerolog.Logger, seedUser string) (*budget.Service, *receipts.Service, func()) {
	if cfg.DatabaseURL == "" {
		log.Info().Msg("No DATABASE_URL - using in-memory budget")
		repo := budget.NewMemoryRepository()
		if seedUser != "" {
			repo.Seed(demoCategories(seedUser)...)
		}
		return budget.NewService(repo, realtime.NopNotifier{}),
			receipts.NewService(receipts.NewMemoryRepository(), nil, realtime.NopNotifier{}),
			func() {}
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	return budget.NewService(postgres.NewCategoryRepository(pool), realtime.NopNotifier{}),
		receipts.NewService(postgres.NewReceiptRepository(pool), nil, realtime.NopNotifier{}),
		pool.Close
}

func runChat(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	userID := fs.String("user", "local", "User ID")
	message := fs.String("m", "", "Send one message and exit")
	seed := fs.Bool("seed", true, "Seed demo categories when running in memory")
	fs.Parse(os.Args[2:])

	ctx := logger.WithContext(context.Background(), log)

	seedUser := ""
	if *seed {
		seedUser = *userID
	}
	budgetService, receiptService, closeFn := budgetDeps(ctx, cfg, log, seedUser)
	defer closeFn()

	service := chat.NewService(chat.NewInterpreter(budgetService, receiptService), chat.NewMemoryMessageRepository(), realtime.NopNotifier{})

	if *message != "" {
		if err := sendAndPrint(ctx, service, *userID, *message, os.Stdout); err != nil {
			log.Fatal().Err(err).Msg("Chat failed")
		}
		return
	}

	fmt.Println("Budget assistant. Type 'exit' to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		if err := sendAndPrint(ctx, service, *userID, line, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

func sendAndPrint(ctx context.Context, service *chat.Service, userID, text string, w io.Writer) error {
	reply, err := service.Send(ctx, userID, text)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, formatReply(reply))
	return nil
}

func formatReply(m *domain.Message) string {
	var b strings.Builder
	b.WriteString(m.Content)
	for _, in := range m.Insights {
		fmt.Fprintf(&b, "\n  * %s: %s", in.Title, in.Description)
	}
	for _, r := range m.Receipts {
		fmt.Fprintf(&b, "\n  - %s (%s)", r.FileName, r.CreatedAt.Format("2006-01-02"))
	}
	return b.String()
}

func runCategories(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("categories", flag.ExitOnError)
	userID := fs.String("user", "local", "User ID")
	fs.Parse(os.Args[2:])

	ctx := logger.WithContext(context.Background(), log)

	budgetService, _, closeFn := budgetDeps(ctx, cfg, log, *userID)
	defer closeFn()

	cats, err := budgetService.ListCategories(ctx, *userID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list categories")
	}
	fmt.Print(formatCategories(cats))
}

func formatCategories(cats []domain.BudgetCategory) string {
	if len(cats) == 0 {
		return "No budget categories.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %12s %12s %12s\n", "CATEGORY", "ALLOCATED", "SPENT", "REMAINING")
	for _, c := range cats {
		fmt.Fprintf(&b, "%-20s %12s %12s %12s\n", c.Name,
			budget.FormatMoney(c.Allocated), budget.FormatMoney(c.Spent), budget.FormatMoney(c.Remaining()))
	}
	return b.String()
}

func demoCategories(userID string) []domain.BudgetCategory {
	now := time.Now().UTC()
	cat := func(name string, allocated, spent int64, color string) domain.BudgetCategory {
		return domain.BudgetCategory{
			ID:        budget.CategoryID(name),
			UserID:    userID,
			Name:      name,
			Allocated: decimal.NewFromInt(allocated),
			Spent:     decimal.NewFromInt(spent),
			Color:     color,
			UpdatedAt: now,
		}
	}
	return []domain.BudgetCategory{
		cat("Housing", 2000, 1500, "#4F46E5"),
		cat("Food", 800, 450, "#10B981"),
		cat("Transportation", 400, 280, "#F59E0B"),
		cat("Entertainment", 300, 120, "#EC4899"),
		cat("Savings", 1000, 0, "#6366F1"),
	}
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
