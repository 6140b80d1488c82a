package app

import (
	"context"
	"log"
	"time"

	"github.com/saidurgaphani/CS2026/internal/config"
	"github.com/saidurgaphani/CS2026/internal/core"
	db "github.com/saidurgaphani/CS2026/internal/core/database"
	"github.com/saidurgaphani/CS2026/internal/core/llm"
	"github.com/saidurgaphani/CS2026/internal/core/narrative"
	objectclient "github.com/saidurgaphani/CS2026/internal/core/object-client"
	"github.com/saidurgaphani/CS2026/internal/services"
)

type App struct {
	DBClient core.DbClient
	Server   *Server

	llmProvider *llm.GeminiLLM
	embedder    *llm.GeminiEmbedder
}

// NewApp wires the whole service. S3 and Gemini are optional: when their
// credentials are missing the pipeline runs with archival disabled and the
// deterministic narrative fallback.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Database initialized and ready.")

	var objClient core.ObjectClient
	if c, err := objectclient.NewS3Client(appCtx, cfg); err != nil {
		log.Printf("object storage disabled: %v", err)
	} else {
		objClient = c
		log.Println("Object client initialized and ready.")
	}

	a := &App{DBClient: dbClient}

	var llmProvider core.LLMProvider
	var embedder core.EmbeddingProvider
	if cfg.AIAPIKey == "" {
		log.Println("GEMINI_API_KEY not set; narrative generation will use the fallback path")
	} else {
		gen, err := llm.NewGeminiLLM(appCtx, cfg.AIAPIKey, cfg.GenModel)
		if err != nil {
			log.Printf("llm disabled: %v", err)
		} else {
			a.llmProvider = gen
			llmProvider = gen
		}
		emb, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel)
		if err != nil {
			log.Printf("embedder disabled: %v", err)
		} else {
			a.embedder = emb
			embedder = emb
		}
	}

	synth := narrative.NewSynthesizer(llmProvider)
	reportService := services.NewReportService(dbClient, objClient, synth, embedder, cfg.BucketName, cfg.PersistTimeout)
	chatService := services.NewChatService(dbClient, llmProvider, embedder, cfg.PersistTimeout)

	a.Server = NewServer(context.Background(), cfg, dbClient, reportService, chatService)
	return a, nil
}

func (a *App) Close() {
	if a.llmProvider != nil {
		_ = a.llmProvider.Close()
	}
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
