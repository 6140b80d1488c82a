package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/saidurgaphani/CS2026/internal/core"
	"github.com/saidurgaphani/CS2026/internal/models"
)

// fakeDB records persisted sessions and reports and can be told to fail.
type fakeDB struct {
	reports     []models.Report
	sessions    map[string]*models.ChatSession
	upsertErr   error
	searchCalls int
}

func newFakeDB() *fakeDB {
	return &fakeDB{sessions: map[string]*models.ChatSession{}}
}

func (f *fakeDB) CreateUser(ctx context.Context, user *models.User) error { return nil }
func (f *fakeDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, errors.New("not found")
}

func (f *fakeDB) CreateReport(ctx context.Context, report *models.Report) error {
	f.reports = append(f.reports, *report)
	return nil
}

func (f *fakeDB) GetReportByID(ctx context.Context, id string) (*models.Report, error) {
	for i := range f.reports {
		if f.reports[i].ID == id {
			return &f.reports[i], nil
		}
	}
	return nil, nil
}

func (f *fakeDB) ListReportsByUser(ctx context.Context, userID string) ([]models.Report, error) {
	var out []models.Report
	for _, r := range f.reports {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeDB) DeleteReport(ctx context.Context, id string) (bool, error) {
	for i, r := range f.reports {
		if r.ID == id {
			f.reports = append(f.reports[:i], f.reports[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDB) UpdateReportEmbedding(ctx context.Context, id string, embedding []float32) error {
	return nil
}

func (f *fakeDB) SearchReportsByEmbedding(ctx context.Context, userID string, queryVec []float32, limit int) ([]models.Report, error) {
	f.searchCalls++
	out, _ := f.ListReportsByUser(ctx, userID)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeDB) UpsertChatSession(ctx context.Context, session *models.ChatSession) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeDB) GetChatSession(ctx context.Context, id string) (*models.ChatSession, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return s, nil
}

func (f *fakeDB) ListChatSessionsByUser(ctx context.Context, userID string) ([]models.ChatSession, error) {
	var out []models.ChatSession
	for _, s := range f.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeDB) DeleteChatSession(ctx context.Context, id string) (bool, error) {
	if _, ok := f.sessions[id]; !ok {
		return false, nil
	}
	delete(f.sessions, id)
	return true, nil
}

func (f *fakeDB) Close() error { return nil }

// streamLLM replays a scripted chunk sequence.
type streamLLM struct {
	chunks []core.StreamChunk
}

func (s *streamLLM) Generate(ctx context.Context, system, user string) (string, error) {
	var b strings.Builder
	for _, c := range s.chunks {
		if c.Err != nil {
			return "", c.Err
		}
		b.WriteString(c.Text)
	}
	return b.String(), nil
}

func (s *streamLLM) GenerateStream(ctx context.Context, system, user string) <-chan core.StreamChunk {
	ch := make(chan core.StreamChunk, len(s.chunks))
	for _, c := range s.chunks {
		ch <- c
	}
	close(ch)
	return ch
}

func history(question string) []models.ChatMessage {
	return []models.ChatMessage{{Role: "user", Content: question}}
}

func TestStreamChatHappyPath(t *testing.T) {
	db := newFakeDB()
	llm := &streamLLM{chunks: []core.StreamChunk{{Text: "Revenue grew "}, {Text: "12% this quarter."}}}
	svc := NewChatService(db, llm, nil, time.Second)

	var emitted []string
	res, err := svc.StreamChat(context.Background(), "u1", "", "", history("How is revenue?"),
		func(chunk string) error {
			emitted = append(emitted, chunk)
			return nil
		})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}
	if res.Status != models.StatusCompleted {
		t.Errorf("status = %q, want completed", res.Status)
	}
	if res.ChatID == "" {
		t.Fatal("no chat id generated")
	}
	if len(emitted) != 2 {
		t.Errorf("emitted %d chunks, want 2", len(emitted))
	}

	sess, err := db.GetChatSession(context.Background(), res.ChatID)
	if err != nil {
		t.Fatalf("session not persisted: %v", err)
	}
	if len(sess.Messages) != 2 {
		t.Fatalf("persisted %d messages, want user+assistant", len(sess.Messages))
	}
	last := sess.Messages[len(sess.Messages)-1]
	if last.Role != "assistant" || last.Content != "Revenue grew 12% this quarter." {
		t.Errorf("assistant message = %+v", last)
	}
	if sess.Title != "How is revenue?" {
		t.Errorf("title = %q, want derived from first user message", sess.Title)
	}
}

func TestStreamChatMidStreamFailureSplicesFallback(t *testing.T) {
	db := newFakeDB()
	llm := &streamLLM{chunks: []core.StreamChunk{
		{Text: "Partial answer"},
		{Err: errors.New("connection reset")},
		{Text: "never delivered"},
	}}
	svc := NewChatService(db, llm, nil, time.Second)

	var emitted strings.Builder
	res, err := svc.StreamChat(context.Background(), "u1", "", "", history("q"),
		func(chunk string) error {
			emitted.WriteString(chunk)
			return nil
		})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}

	got := emitted.String()
	if !strings.HasPrefix(got, "Partial answer") {
		t.Errorf("partial output discarded: %q", got)
	}
	if !strings.Contains(got, "problem finishing") {
		t.Errorf("fallback not spliced: %q", got)
	}
	if strings.Contains(got, "never delivered") {
		t.Errorf("chunks after the error were delivered: %q", got)
	}

	sess, err := db.GetChatSession(context.Background(), res.ChatID)
	if err != nil {
		t.Fatalf("session not persisted: %v", err)
	}
	persisted := sess.Messages[len(sess.Messages)-1].Content
	if !strings.Contains(persisted, "Partial answer") || !strings.Contains(persisted, "problem finishing") {
		t.Errorf("persisted assistant message = %q, want partial plus fallback", persisted)
	}
}

func TestStreamChatEmptyStreamUsesFallback(t *testing.T) {
	db := newFakeDB()
	svc := NewChatService(db, &streamLLM{}, nil, time.Second)

	var emitted strings.Builder
	res, err := svc.StreamChat(context.Background(), "u1", "", "", history("q"),
		func(chunk string) error {
			emitted.WriteString(chunk)
			return nil
		})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}
	if !strings.Contains(emitted.String(), "problem finishing") {
		t.Errorf("empty stream did not fall back: %q", emitted.String())
	}
	if res.Status != models.StatusCompleted {
		t.Errorf("status = %q, want completed", res.Status)
	}
}

func TestStreamChatPersistFailureDegrades(t *testing.T) {
	db := newFakeDB()
	db.upsertErr = errors.New("db down")
	svc := NewChatService(db, &streamLLM{chunks: []core.StreamChunk{{Text: "hi"}}}, nil, time.Second)

	res, err := svc.StreamChat(context.Background(), "u1", "", "", history("q"),
		func(string) error { return nil })
	if err != nil {
		t.Fatalf("StreamChat returned error for persistence failure: %v", err)
	}
	if res.Status != models.StatusDegraded {
		t.Errorf("status = %q, want degraded", res.Status)
	}
	if res.ChatID == "" {
		t.Error("no chat id on degraded result")
	}
}

func TestStreamChatEmitErrorStops(t *testing.T) {
	db := newFakeDB()
	svc := NewChatService(db, &streamLLM{chunks: []core.StreamChunk{{Text: "a"}, {Text: "b"}}}, nil, time.Second)

	clientGone := errors.New("client gone")
	_, err := svc.StreamChat(context.Background(), "u1", "", "", history("q"),
		func(string) error { return clientGone })
	if !errors.Is(err, clientGone) {
		t.Fatalf("err = %v, want emit error surfaced", err)
	}
	if len(db.sessions) != 0 {
		t.Error("session persisted after the client disconnected")
	}
}

func TestStreamChatReusesExistingSessionID(t *testing.T) {
	db := newFakeDB()
	svc := NewChatService(db, &streamLLM{chunks: []core.StreamChunk{{Text: "ok"}}}, nil, time.Second)

	res, err := svc.StreamChat(context.Background(), "u1", "chat-42", "Budget talk", history("q"),
		func(string) error { return nil })
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}
	if res.ChatID != "chat-42" {
		t.Errorf("chat id = %q, want chat-42", res.ChatID)
	}
	if sess := db.sessions["chat-42"]; sess == nil || sess.Title != "Budget talk" {
		t.Errorf("session = %+v, want persisted under provided id and title", db.sessions["chat-42"])
	}
}

func TestSessionTitleTruncation(t *testing.T) {
	long := strings.Repeat("x", 100)
	got := sessionTitle([]models.ChatMessage{{Role: "user", Content: long}})
	if len(got) != maxTitleLen {
		t.Errorf("title length = %d, want %d", len(got), maxTitleLen)
	}
	if got := sessionTitle(nil); got != "New conversation" {
		t.Errorf("empty history title = %q", got)
	}
}
