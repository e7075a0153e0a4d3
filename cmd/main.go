package main

import (
	"context"
	"fmt"
	"os"

	"github.com/remodelai/remodel-backend/internal/clients/openai"
	"github.com/remodelai/remodel-backend/internal/clients/pinecone"
	redisclient "github.com/remodelai/remodel-backend/internal/clients/redis"
	"github.com/remodelai/remodel-backend/internal/handlers"
	"github.com/remodelai/remodel-backend/internal/observability"
	"github.com/remodelai/remodel-backend/internal/platform/envutil"
	"github.com/remodelai/remodel-backend/internal/platform/logger"
	"github.com/remodelai/remodel-backend/internal/server"
	"github.com/remodelai/remodel-backend/internal/services"
)

func main() {
	// Logger
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Tracing
	shutdownOTel := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "remodelai",
		Environment: envutil.String("APP_ENV", "dev"),
		Version:     envutil.String("APP_VERSION", "dev"),
	})
	if shutdownOTel != nil {
		defer func() { _ = shutdownOTel(context.Background()) }()
	}

	// Vocabulary tables
	vocab, err := services.LoadVocabulary()
	if err != nil {
		log.Error("Could not load vocabulary", "error", err)
		os.Exit(1)
	}

	// Clients
	log.Info("Setting up clients from main...")
	openaiClient, err := openai.NewClient(log)
	if err != nil {
		log.Error("Could not init OpenAI client", "error", err)
		os.Exit(1)
	}

	kv, err := redisclient.NewKV(log)
	if err != nil {
		log.Warn("Redis init failed; sessions will be in-memory only", "error", err)
		kv = nil
	}

	var vectors pinecone.VectorStore
	if envutil.String("PINECONE_API_KEY", "") != "" {
		pcClient, err := pinecone.New(log, pinecone.Config{
			APIKey: envutil.String("PINECONE_API_KEY", ""),
		})
		if err != nil {
			log.Warn("Pinecone init failed; retrieval disabled", "error", err)
		} else if vs, err := pinecone.NewVectorStore(log, pcClient); err != nil {
			log.Warn("Pinecone index lookup failed; retrieval disabled", "error", err)
		} else {
			vectors = vs
		}
	} else {
		log.Warn("PINECONE_API_KEY not set; retrieval disabled")
	}

	// Services
	log.Info("Setting up services from main...")
	locNormalizer := services.NewLocationNormalizer(vocab)
	extractor := services.NewFactExtractor(vocab, locNormalizer, services.DefaultExtractorConfig())
	gate := services.NewQueryGate(vocab, locNormalizer)

	store := services.NewContextStore(log, kv, services.StoreConfig{
		TTL:              envutil.Duration("SESSION_TTL", services.DefaultStoreConfig().TTL),
		MaxMemoryEntries: envutil.Int("SESSION_MEMORY_CAP", services.DefaultStoreConfig().MaxMemoryEntries),
	})
	updater := services.NewContextUpdateEngine(log, store, extractor, services.DefaultUpdatePolicy())
	validator := services.NewConsistencyValidator(log, openaiClient, extractor, services.DefaultValidationPolicy())
	prompts := services.NewPromptAssembler()

	var embedder services.Embedder
	if vectors != nil {
		embedder = openaiClient
	}
	chatService := services.NewChatService(log, store, extractor, updater, validator, prompts, gate, openaiClient, embedder, vectors)

	// Handlers
	log.Info("Setting up handlers from main...")
	chatHandler := handlers.NewChatHandler(chatService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		Log:         log,
		ChatHandler: chatHandler,
	})

	port := envutil.String("PORT", "8080")
	log.Info("Server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
