package core

import (
	"context"
	"io"

	"github.com/saidurgaphani/CS2026/internal/models"
)

// DbClient defines all persistence operations the services need.
// It abstracts Postgres so higher layers never depend on a specific DB.
type DbClient interface {
	CreateUser(ctx context.Context, user *models.User) (err error)
	GetUserByEmail(ctx context.Context, email string) (user *models.User, err error)

	CreateReport(ctx context.Context, report *models.Report) error
	GetReportByID(ctx context.Context, id string) (*models.Report, error)
	ListReportsByUser(ctx context.Context, userID string) ([]models.Report, error)
	DeleteReport(ctx context.Context, id string) (bool, error)
	UpdateReportEmbedding(ctx context.Context, id string, embedding []float32) error
	SearchReportsByEmbedding(ctx context.Context, userID string, queryVec []float32, limit int) ([]models.Report, error)

	UpsertChatSession(ctx context.Context, session *models.ChatSession) error
	GetChatSession(ctx context.Context, id string) (*models.ChatSession, error)
	ListChatSessionsByUser(ctx context.Context, userID string) ([]models.ChatSession, error)
	DeleteChatSession(ctx context.Context, id string) (bool, error)

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
// It's abstract so you can replace AWS with MinIO, GCP, etc. easily.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data io.Reader, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
}
