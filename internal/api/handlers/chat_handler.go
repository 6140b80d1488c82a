package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	middleware "github.com/saidurgaphani/CS2026/internal/api/middlewares"
	"github.com/saidurgaphani/CS2026/internal/models"
	"github.com/saidurgaphani/CS2026/internal/services"
)

type ChatHandler struct {
	chat *services.ChatService
}

func NewChatHandler(chat *services.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type chatRequest struct {
	Messages []models.ChatMessage `json:"messages"`
	UserID   string               `json:"user_id"`
	ChatID   string               `json:"chat_id"`
	Title    string               `json:"title"`
}

// Stream handles one conversational round over SSE. Each model fragment goes
// out as `data: {"content": ...}` the moment it arrives; the terminal event
// carries the session id and the persistence status.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Messages) == 0 {
		http.Error(w, "messages is required", http.StatusBadRequest)
		return
	}

	userID, ok := middleware.UserID(r.Context())
	if !ok {
		userID = req.UserID
	}
	if userID == "" {
		http.Error(w, "user identity required", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	emit := func(chunk string) error {
		payload, err := json.Marshal(map[string]string{"content": chunk})
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	result, err := h.chat.StreamChat(r.Context(), userID, req.ChatID, req.Title, req.Messages, emit)
	if err != nil {
		// The client is gone; nothing more to write.
		return
	}

	done, _ := json.Marshal(map[string]any{
		"done":    true,
		"chat_id": result.ChatID,
		"status":  result.Status,
	})
	fmt.Fprintf(w, "data: %s\n\n", done)
	flusher.Flush()
}

func (h *ChatHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "user identity required", http.StatusUnauthorized)
		return
	}

	sessions, err := h.chat.ListSessions(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []models.ChatSession{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sessions)
}

func (h *ChatHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deleted, err := h.chat.DeleteSession(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "chat session not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "deleted", "id": id})
}
