package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"budgetf/internal/amqp"
	"budgetf/internal/assistant"
	"budgetf/internal/config"
	apphttp "budgetf/internal/http"
	"budgetf/internal/ledger"
	"budgetf/internal/ledger/memory"
	applog "budgetf/internal/log"
	"budgetf/internal/services"
	"budgetf/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentApp,
	})
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// Choose data backend (default: sqlite).
	var (
		reader    ledger.Reader
		chatStore ledger.ChatStore
	)
	switch cfg.DataBackend {
	case "sqlite":
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer repo.Close()
		reader, chatStore = repo, repo
		logger.Info("Initialized SQLite backend", "path", cfg.SQLiteDBPath)
	default:
		store := memory.NewStore()
		reader, chatStore = store, store
		logger.Info("Initialized memory backend")
	}

	loc := cfg.Timezone()
	agg := ledger.NewAggregator(reader)
	resolver := assistant.NewResolver(reader)
	registry := assistant.NewRegistry(agg, resolver, time.Now, loc)

	// AMQP is optional; without it budget alerts are skipped.
	var publisher services.AlertPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = amqpClient
		logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}
	watcher := services.NewBudgetWatcher(agg, publisher, time.Now, loc)

	// Gemini when a key is configured, pattern fallback otherwise.
	var asst services.Assistant
	if cfg.GeminiAPIKey != "" {
		backend, err := assistant.NewGeminiBackend(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Error("Failed to initialize Gemini backend", "error", err)
			os.Exit(1)
		}
		asst = assistant.NewOrchestrator(backend, registry, systemPrompt, logger.WithComponent(applog.ComponentAssistant))
		logger.Info("Initialized Gemini assistant", applog.FieldModel, cfg.GeminiModel)
	} else {
		var small assistant.SmallTalker
		if cfg.SmallTalkURL != "" {
			small = assistant.NewOllamaSmallTalker(cfg.SmallTalkURL, cfg.SmallTalkModel)
		}
		asst = assistant.NewFallback(agg, resolver, time.Now, loc, small, logger.WithComponent(applog.ComponentAssistant))
		logger.Info("Initialized pattern fallback assistant - no GEMINI_API_KEY provided")
	}

	chatService := services.NewChatService(chatStore, asst, watcher, cfg.AssistantTimeout)
	srv := apphttp.NewServer(":"+cfg.Port, chatService)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 60 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting budgetf server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}

const systemPrompt = "Bạn là trợ lý tài chính của ứng dụng BudgetF. " +
	"Trả lời bằng tiếng Việt, ngắn gọn và thân thiện. " +
	"Luôn dùng các công cụ được cung cấp để lấy số liệu thật; không bao giờ tự bịa số. " +
	"Số tiền hiển thị theo định dạng Việt Nam với đơn vị ₫. " +
	"Nếu câu hỏi không liên quan tài chính cá nhân, gợi ý người dùng hỏi về chi tiêu, số dư hoặc ngân sách."
