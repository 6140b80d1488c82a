package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/saidurgaphani/CS2026/internal/config"
	"github.com/saidurgaphani/CS2026/internal/core"
	"github.com/saidurgaphani/CS2026/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (core.DbClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Implementing the db interface for user

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	const q = `
		INSERT INTO users (id, first_name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()), COALESCE($6, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		user.ID, user.FirstName, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	return err
}

func (c *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, first_name, email, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`
	var u models.User
	err := c.db.QueryRowContext(ctx, q, email).Scan(
		&u.ID, &u.FirstName, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Implementing the db interface for reports

func (c *DatabaseClient) CreateReport(ctx context.Context, report *models.Report) error {
	if report == nil {
		return errors.New("nil report")
	}
	insights, err := json.Marshal(report.Insights)
	if err != nil {
		return fmt.Errorf("marshal insights: %w", err)
	}
	dataset, err := json.Marshal(report.Dataset)
	if err != nil {
		return fmt.Errorf("marshal dataset: %w", err)
	}
	roles, err := json.Marshal(report.Roles)
	if err != nil {
		return fmt.Errorf("marshal roles: %w", err)
	}

	const q = `
		INSERT INTO reports
			(id, user_id, title, file_name, storage_url, executive_summary,
			 insights, dataset, roles, is_text, status, created_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, COALESCE($12, now()))
	`
	_, err = c.db.ExecContext(ctx, q,
		report.ID, report.UserID, report.Title, report.FileName, report.StorageURL,
		report.ExecutiveSummary, insights, dataset, roles, report.IsText,
		report.Status, report.CreatedAt)
	return err
}

func (c *DatabaseClient) GetReportByID(ctx context.Context, id string) (*models.Report, error) {
	const q = `
		SELECT id, user_id, title, file_name, storage_url, executive_summary,
		       insights, dataset, roles, is_text, status, created_at
		FROM reports
		WHERE id = $1
	`
	row := c.db.QueryRowContext(ctx, q, id)
	r, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (c *DatabaseClient) ListReportsByUser(ctx context.Context, userID string) ([]models.Report, error) {
	const q = `
		SELECT id, user_id, title, file_name, storage_url, executive_summary,
		       insights, dataset, roles, is_text, status, created_at
		FROM reports
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) DeleteReport(ctx context.Context, id string) (bool, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM reports WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (c *DatabaseClient) UpdateReportEmbedding(ctx context.Context, id string, embedding []float32) error {
	vec := pgvector.NewVector(embedding)
	res, err := c.db.ExecContext(ctx,
		`UPDATE reports SET summary_embedding = $2 WHERE id = $1`, id, vec)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("report not found: %s", id)
	}
	return nil
}

// SearchReportsByEmbedding finds a user's reports whose summaries are closest
// to the query vector. Datasets are not loaded; callers only need the
// narrative fields for chat grounding.
func (c *DatabaseClient) SearchReportsByEmbedding(ctx context.Context, userID string, queryVec []float32, limit int) ([]models.Report, error) {
	const q = `
		SELECT id, user_id, title, file_name, executive_summary, insights, status, created_at
		FROM reports
		WHERE user_id = $1 AND summary_embedding IS NOT NULL
		ORDER BY summary_embedding <-> $2
		LIMIT $3
	`
	vec := pgvector.NewVector(queryVec)
	rows, err := c.db.QueryContext(ctx, q, userID, vec, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Report
	for rows.Next() {
		var (
			r        models.Report
			insights []byte
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.Title, &r.FileName,
			&r.ExecutiveSummary, &insights, &r.Status, &r.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(insights, &r.Insights); err != nil {
			return nil, fmt.Errorf("decode insights for %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Implementing the db interface for chat sessions

func (c *DatabaseClient) UpsertChatSession(ctx context.Context, session *models.ChatSession) error {
	if session == nil {
		return errors.New("nil session")
	}
	messages, err := json.Marshal(session.Messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}
	const q = `
		INSERT INTO chat_sessions (id, user_id, title, messages, created_at, updated_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()), now())
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title, messages = EXCLUDED.messages, updated_at = now()
	`
	_, err = c.db.ExecContext(ctx, q,
		session.ID, session.UserID, session.Title, messages, session.CreatedAt)
	return err
}

func (c *DatabaseClient) GetChatSession(ctx context.Context, id string) (*models.ChatSession, error) {
	const q = `
		SELECT id, user_id, title, messages, created_at, updated_at
		FROM chat_sessions
		WHERE id = $1
	`
	var (
		s        models.ChatSession
		messages []byte
	)
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.UserID, &s.Title, &messages, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(messages, &s.Messages); err != nil {
		return nil, fmt.Errorf("decode messages for %s: %w", s.ID, err)
	}
	return &s, nil
}

func (c *DatabaseClient) ListChatSessionsByUser(ctx context.Context, userID string) ([]models.ChatSession, error) {
	const q = `
		SELECT id, user_id, title, messages, created_at, updated_at
		FROM chat_sessions
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ChatSession
	for rows.Next() {
		var (
			s        models.ChatSession
			messages []byte
		)
		if err := rows.Scan(&s.ID, &s.UserID, &s.Title, &messages, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(messages, &s.Messages); err != nil {
			return nil, fmt.Errorf("decode messages for %s: %w", s.ID, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) DeleteChatSession(ctx context.Context, id string) (bool, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*models.Report, error) {
	var (
		r        models.Report
		insights []byte
		dataset  []byte
		roles    []byte
	)
	if err := row.Scan(&r.ID, &r.UserID, &r.Title, &r.FileName, &r.StorageURL,
		&r.ExecutiveSummary, &insights, &dataset, &roles, &r.IsText,
		&r.Status, &r.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(insights, &r.Insights); err != nil {
		return nil, fmt.Errorf("decode insights for %s: %w", r.ID, err)
	}
	if len(dataset) > 0 && string(dataset) != "null" {
		if err := json.Unmarshal(dataset, &r.Dataset); err != nil {
			return nil, fmt.Errorf("decode dataset for %s: %w", r.ID, err)
		}
	}
	if err := json.Unmarshal(roles, &r.Roles); err != nil {
		return nil, fmt.Errorf("decode roles for %s: %w", r.ID, err)
	}
	return &r, nil
}
