// Package main is the entry point for the development backend. It serves the
// conversation API the assistant client expects, with an in-memory store and
// a pluggable LLM answerer, so the client can run without the production
// backend.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/trackit-ai/assistant-go/internal/config"
	"github.com/trackit-ai/assistant-go/internal/handler"
	"github.com/trackit-ai/assistant-go/internal/llm"
	"github.com/trackit-ai/assistant-go/internal/middleware"
	"github.com/trackit-ai/assistant-go/internal/service"
	"github.com/trackit-ai/assistant-go/pkg/logger"
	"github.com/trackit-ai/assistant-go/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting development backend")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "trackit-stub", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Initialize the answerer. Without an API key the scripted provider
	// answers deterministically.
	llmClient, err := llm.NewClient(llm.Provider(cfg.DefaultLLM), llmAPIKey(cfg))
	if err != nil {
		log.Error("failed to create LLM client", zap.Error(err))
		os.Exit(1)
	}
	log.Info("answerer ready", zap.String("provider", llmClient.Name()))

	// Initialize services
	conversationSvc := service.NewConversationService(log)
	messageSvc := service.NewMessageService(conversationSvc, llmClient, log)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(conversationSvc)
	conversationHandler := handler.NewConversationHandler(conversationSvc, messageSvc, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// Conversation API
	r.Route("/conversations", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Post("/", conversationHandler.Create)
		r.Post("/quick-query", conversationHandler.QuickQuery)
		r.Get("/user/{userID}", conversationHandler.ListByUser)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", conversationHandler.Get)
			r.Delete("/", conversationHandler.Delete)
			r.Get("/messages", conversationHandler.Messages)
			r.Post("/chat", conversationHandler.Chat)
		})
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

func llmAPIKey(cfg *config.Config) string {
	switch llm.Provider(cfg.DefaultLLM) {
	case llm.ProviderAnthropic:
		return cfg.AnthropicAPIKey
	case llm.ProviderOpenAI:
		return cfg.OpenAIAPIKey
	default:
		return ""
	}
}
