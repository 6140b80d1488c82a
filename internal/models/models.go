package models

import (
	"time"

	"github.com/saidurgaphani/CS2026/internal/core/etl"
)

// User represents an authenticated user of the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	FirstName    string    `db:"first_name" json:"first_name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Report statuses. A degraded report is a success whose persistence step
// failed; the computed content is still valid and returned to the caller.
const (
	StatusCompleted   = "completed"
	StatusPreviewOnly = "preview_only"
	StatusDegraded    = "degraded"
)

// Insight is one AI-narrated metric record. The canonical narrative path
// always yields exactly four per report.
type Insight struct {
	Metric    string `json:"metric"`
	Value     string `json:"value"`
	Change    string `json:"change"`
	Sentiment string `json:"sentiment"` // "positive" or "negative"
	Narrative string `json:"narrative"`
}

// Report is the persisted unit of one processed upload: the cleaned dataset,
// its role resolution, and the generated narrative. Immutable once created;
// removed only by explicit delete.
type Report struct {
	ID               string            `db:"id" json:"id"`
	UserID           string            `db:"user_id" json:"user_id"`
	Title            string            `db:"title" json:"title"`
	FileName         string            `db:"file_name" json:"file_name"`
	StorageURL       string            `db:"storage_url" json:"storage_url,omitempty"`
	ExecutiveSummary string            `db:"executive_summary" json:"executive_summary"`
	Insights         []Insight         `db:"insights" json:"insights"`
	Dataset          *etl.Dataset      `db:"dataset" json:"dataset,omitempty"`
	Roles            map[string]string `db:"roles" json:"resolved_roles,omitempty"`
	IsText           bool              `db:"is_text" json:"is_text"`
	Status           string            `db:"status" json:"status"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
}

// ChatMessage is one turn in a session, role "user" or "assistant".
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatSession is an ordered conversation owned by one user. Each round
// appends one user and one assistant message.
type ChatSession struct {
	ID        string        `db:"id" json:"id"`
	UserID    string        `db:"user_id" json:"user_id"`
	Title     string        `db:"title" json:"title"`
	Messages  []ChatMessage `db:"messages" json:"messages"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}
