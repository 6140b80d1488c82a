package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saidurgaphani/CS2026/internal/core"
	"github.com/saidurgaphani/CS2026/internal/models"
)

const (
	chatContextReports = 3
	maxTitleLen        = 60

	chatSystemPrompt = `You are InsightAI, a business analytics assistant. Answer questions
about the user's uploaded business reports. Be concise and concrete; cite
numbers from the report context when they support the answer. If the context
does not cover the question, say so.`

	// fallbackChatMessage is appended to whatever partial output already went
	// out when the narrative stream dies; the partial text is never discarded.
	fallbackChatMessage = "\n\n[I hit a problem finishing that response. The answer above may be incomplete - please ask again if something is missing.]"
)

// StreamResult reports how a chat round ended: the session it was persisted
// under and whether persistence succeeded.
type StreamResult struct {
	ChatID string `json:"chat_id"`
	Status string `json:"status"` // "completed" or "degraded"
}

// ChatService runs the conversational endpoint: stream a model response,
// splice in the fallback on mid-stream failure, persist the session.
type ChatService struct {
	db             core.DbClient
	llm            core.LLMProvider
	embedder       core.EmbeddingProvider
	persistTimeout time.Duration
}

func NewChatService(db core.DbClient, llm core.LLMProvider, emb core.EmbeddingProvider, persistTimeout time.Duration) *ChatService {
	if persistTimeout <= 0 {
		persistTimeout = 10 * time.Second
	}
	return &ChatService{db: db, llm: llm, embedder: emb, persistTimeout: persistTimeout}
}

// StreamChat generates the assistant turn for the given history, calling emit
// for every text chunk in order. The accumulated text (including any spliced
// fallback) is what gets persisted as the assistant message. The returned
// error only reflects emit failures (client gone); generation and persistence
// problems are absorbed.
func (s *ChatService) StreamChat(ctx context.Context, userID, chatID, title string, history []models.ChatMessage, emit func(chunk string) error) (*StreamResult, error) {
	question := latestUserMessage(history)
	reportContext := s.gatherReportContext(ctx, userID, question)

	var full strings.Builder
	if s.llm == nil {
		msg := strings.TrimSpace(fallbackChatMessage)
		full.WriteString(msg)
		if err := emit(msg); err != nil {
			return nil, err
		}
	} else {
		prompt := buildTranscript(reportContext, history)
		for chunk := range s.llm.GenerateStream(ctx, chatSystemPrompt, prompt) {
			if chunk.Err != nil {
				log.Printf("chat %s: stream failed mid-delivery, splicing fallback: %v", chatID, chunk.Err)
				full.WriteString(fallbackChatMessage)
				if err := emit(fallbackChatMessage); err != nil {
					return nil, err
				}
				break
			}
			full.WriteString(chunk.Text)
			if err := emit(chunk.Text); err != nil {
				return nil, err
			}
		}
		if full.Len() == 0 {
			msg := strings.TrimSpace(fallbackChatMessage)
			full.WriteString(msg)
			if err := emit(msg); err != nil {
				return nil, err
			}
		}
	}

	session := s.buildSession(userID, chatID, title, history, full.String())

	result := &StreamResult{ChatID: session.ID, Status: models.StatusCompleted}
	persistCtx, cancel := context.WithTimeout(ctx, s.persistTimeout)
	defer cancel()
	if err := s.db.UpsertChatSession(persistCtx, session); err != nil {
		log.Printf("chat %s: session persistence failed: %v", session.ID, err)
		result.Status = models.StatusDegraded
	}
	return result, nil
}

func (s *ChatService) ListSessions(ctx context.Context, userID string) ([]models.ChatSession, error) {
	return s.db.ListChatSessionsByUser(ctx, userID)
}

func (s *ChatService) DeleteSession(ctx context.Context, id string) (bool, error) {
	return s.db.DeleteChatSession(ctx, id)
}

// gatherReportContext pulls the reports most relevant to the question:
// embedding similarity when available, newest reports otherwise. Failures
// just mean less context.
func (s *ChatService) gatherReportContext(ctx context.Context, userID, question string) string {
	var reports []models.Report

	if s.embedder != nil && question != "" {
		if vecs, err := s.embedder.EmbedTexts(ctx, []string{question}); err == nil && len(vecs) > 0 {
			if found, err := s.db.SearchReportsByEmbedding(ctx, userID, vecs[0], chatContextReports); err == nil {
				reports = found
			} else {
				log.Printf("chat: report similarity search failed: %v", err)
			}
		} else if err != nil {
			log.Printf("chat: question embedding failed: %v", err)
		}
	}

	if len(reports) == 0 {
		all, err := s.db.ListReportsByUser(ctx, userID)
		if err != nil {
			log.Printf("chat: report listing failed: %v", err)
			return ""
		}
		if len(all) > chatContextReports {
			all = all[:chatContextReports]
		}
		reports = all
	}

	var b strings.Builder
	for _, r := range reports {
		fmt.Fprintf(&b, "Report %q (%s): %s\n", r.Title, r.CreatedAt.Format("2006-01-02"), r.ExecutiveSummary)
		for _, ins := range r.Insights {
			fmt.Fprintf(&b, "- %s: %s (%s) %s\n", ins.Metric, ins.Value, ins.Change, ins.Narrative)
		}
	}
	return b.String()
}

func (s *ChatService) buildSession(userID, chatID, title string, history []models.ChatMessage, assistantReply string) *models.ChatSession {
	now := time.Now().UTC()
	if chatID == "" {
		chatID = uuid.NewString()
	}
	if title == "" {
		title = sessionTitle(history)
	}
	messages := append(append([]models.ChatMessage{}, history...),
		models.ChatMessage{Role: "assistant", Content: assistantReply})
	return &models.ChatSession{
		ID:        chatID,
		UserID:    userID,
		Title:     title,
		Messages:  messages,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func latestUserMessage(history []models.ChatMessage) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "user" {
			return history[i].Content
		}
	}
	return ""
}

func sessionTitle(history []models.ChatMessage) string {
	for _, m := range history {
		if m.Role == "user" && strings.TrimSpace(m.Content) != "" {
			t := strings.TrimSpace(m.Content)
			if len(t) > maxTitleLen {
				t = t[:maxTitleLen]
			}
			return t
		}
	}
	return "New conversation"
}

func buildTranscript(reportContext string, history []models.ChatMessage) string {
	var b strings.Builder
	if reportContext != "" {
		b.WriteString("Context from the user's reports:\n")
		b.WriteString(reportContext)
		b.WriteString("\n")
	}
	b.WriteString("Conversation so far:\n")
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	b.WriteString("assistant:")
	return b.String()
}
