package app

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/saidurgaphani/CS2026/internal/api/handlers"
	appMiddleware "github.com/saidurgaphani/CS2026/internal/api/middlewares"
	"github.com/saidurgaphani/CS2026/internal/config"
	"github.com/saidurgaphani/CS2026/internal/core"
	"github.com/saidurgaphani/CS2026/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes.
func NewServer(ctx context.Context, cfg *config.Config, db core.DbClient, reports *services.ReportService, chat *services.ChatService) *Server {
	authHandler := handlers.NewAuthHandler(db)
	reportHandler := handlers.NewReportHandler(reports)
	chatHandler := handlers.NewChatHandler(chat)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "user-id"},
		AllowCredentials: true,
	}))

	r.Use(appMiddleware.Identity)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "InsightAI Architect API is online"})
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Post("/auth/signup", authHandler.Signup)
	r.Post("/auth/login", authHandler.Login)

	r.Post("/upload", reportHandler.Upload)
	r.Get("/reports", reportHandler.ListReports)
	r.Delete("/reports/{id}", reportHandler.DeleteReport)

	r.Route("/analytics", func(a chi.Router) {
		a.Post("/aggregate", reportHandler.Aggregate)
		a.Post("/chat", chatHandler.Stream)
		a.Get("/chats", chatHandler.ListSessions)
		a.Delete("/chats/{id}", chatHandler.DeleteSession)
	})

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{httpServer: httpSrv}
}

// Start runs the HTTP server.
func (s *Server) Start() {
	log.Printf("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
