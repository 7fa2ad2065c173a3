package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/api/handlers"
	"github.com/dvloznov/finance-dashboard/internal/api/middleware"
	"github.com/dvloznov/finance-dashboard/internal/auth"
	"github.com/dvloznov/finance-dashboard/internal/budget"
	"github.com/dvloznov/finance-dashboard/internal/chat"
	"github.com/dvloznov/finance-dashboard/internal/config"
	"github.com/dvloznov/finance-dashboard/internal/documents"
	"github.com/dvloznov/finance-dashboard/internal/gcs"
	"github.com/dvloznov/finance-dashboard/internal/infra/postgres"
	"github.com/dvloznov/finance-dashboard/internal/jobs"
	"github.com/dvloznov/finance-dashboard/internal/jobs/inmemory"
	"github.com/dvloznov/finance-dashboard/internal/llm"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/realtime"
	"github.com/dvloznov/finance-dashboard/internal/receipts"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

func main() {
	cfg := config.Load()

	// Parse command-line flags
	var (
		port    = flag.String("port", cfg.Port, "HTTP server port (or set PORT env)")
		workers = flag.Int("workers", 5, "Number of concurrent document processing workers")
	)
	flag.Parse()

	// Initialize logger
	log := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	// Amounts are sent to clients as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := logger.WithContext(context.Background(), log)

	// Initialize repositories
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	categoryRepo := postgres.NewCategoryRepository(pool)
	documentRepo := postgres.NewDocumentRepository(pool)
	receiptRepo := postgres.NewReceiptRepository(pool)
	ledgerRepo := postgres.NewLedgerRepository(pool)
	messageRepo := postgres.NewMessageRepository(pool)

	var store gcs.ObjectStore
	if cfg.Bucket != "" {
		bucket, err := gcs.NewBucket(ctx, cfg.Bucket)
		if err != nil {
			log.Fatal().Err(err).Str("bucket", cfg.Bucket).Msg("Failed to open GCS bucket")
		}
		defer bucket.Close()
		store = bucket
	} else {
		log.Warn().Msg("No GCS bucket configured - document and receipt uploads will be disabled")
	}

	var llmClient *llm.Client
	if cfg.GeminiAPIKey != "" {
		llmClient, err = llm.New(ctx, llm.Options{
			APIKey:         cfg.GeminiAPIKey,
			EmbeddingModel: cfg.EmbeddingModel,
			ChatModel:      cfg.ChatModel,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Gemini client")
		}
	}

	var (
		notifier   realtime.Notifier = realtime.NopNotifier{}
		locker     documents.Locker  = documents.NopLocker{}
		subscriber handlers.Subscriber
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("Failed to connect to Redis")
		}
		broker := realtime.NewRedisBroker(rdb)
		defer broker.Close()
		notifier = broker
		subscriber = broker
		locker = documents.NewRedisLocker(rdb)
	} else {
		log.Warn().Msg("No Redis configured - realtime updates and ingestion locks are disabled")
	}

	// Initialize services
	budgetService := budget.NewService(categoryRepo, notifier)
	receiptService := receipts.NewService(receiptRepo, store, notifier)
	chatService := chat.NewService(chat.NewInterpreter(budgetService, receiptService), messageRepo, notifier)

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(inmemory.Options{Workers: *workers}, jobStore)

	missing := cfg.DocumentsMissing()
	var documentsHandler *handlers.DocumentsHandler
	if len(missing) > 0 {
		log.Warn().Strs("missing", missing).Msg("Document endpoints are disabled")
		documentsHandler = handlers.NewDocumentsHandler(nil, nil, nil, nil, missing)
	} else {
		documentService := documents.NewService(documentRepo, store, notifier)
		ingestor := documents.NewIngestor(documentRepo, store, llmClient, llmClient, locker, notifier)
		answerer := documents.NewAnswerer(documentRepo, llmClient, llmClient)
		documentsHandler = handlers.NewDocumentsHandler(documentService, ingestor, answerer, jobQueue, nil)

		jobHandler := jobs.IngestHandler(jobs.IngestFunc(func(ctx context.Context, userID, documentID, filePath string) (int, error) {
			res, err := ingestor.Ingest(ctx, userID, documentID, filePath)
			if err != nil {
				return 0, err
			}
			return res.ChunkCount, nil
		}))

		if err := jobQueue.Start(ctx, jobHandler); err != nil {
			log.Fatal().Err(err).Msg("Failed to start job workers")
		}
		log.Info().Int("workers", *workers).Msg("Started job workers")
	}

	mux := handlers.NewRouter(handlers.Handlers{
		Documents: documentsHandler,
		Jobs:      handlers.NewJobsHandler(jobStore),
		Budget:    handlers.NewBudgetHandler(budgetService),
		Chat:      handlers.NewChatHandler(chatService),
		Ledger:    handlers.NewLedgerHandler(ledgerRepo),
		Receipts:  handlers.NewReceiptsHandler(receiptService),
		Realtime:  handlers.NewRealtimeHandler(subscriber),
	})

	// Apply middleware
	handler := middleware.Chain(mux,
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Logger(log),
		middleware.CORS,
		middleware.Auth(auth.NewVerifier(cfg.AuthJWTSecret)),
	)

	// Create HTTP server. WriteTimeout covers a synchronous ingestion run;
	// the realtime stream clears its own deadline.
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
