package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/saidurgaphani/CS2026/internal/core"
	"github.com/saidurgaphani/CS2026/internal/core/etl"
	"github.com/saidurgaphani/CS2026/internal/core/narrative"
	"github.com/saidurgaphani/CS2026/internal/models"
)

// ReportService runs the upload pipeline and serves aggregation over the
// persisted reports. obj and embedder may be nil (S3/embedding disabled);
// both paths are best-effort and never fail a request.
type ReportService struct {
	db             core.DbClient
	obj            core.ObjectClient
	synth          *narrative.Synthesizer
	embedder       core.EmbeddingProvider
	bucket         string
	persistTimeout time.Duration
}

func NewReportService(db core.DbClient, obj core.ObjectClient, synth *narrative.Synthesizer, emb core.EmbeddingProvider, bucket string, persistTimeout time.Duration) *ReportService {
	if persistTimeout <= 0 {
		persistTimeout = 10 * time.Second
	}
	return &ReportService{db: db, obj: obj, synth: synth, embedder: emb, bucket: bucket, persistTimeout: persistTimeout}
}

// ProcessUpload runs the full pipeline for one uploaded file: parse, clean,
// resolve roles, derive metrics, narrate, persist. Only parse and schema
// failures reach the caller; narrative and persistence failures degrade.
func (s *ReportService) ProcessUpload(ctx context.Context, userID, title, domain, filename, contentType string, data []byte) (*models.Report, error) {
	parsed, isText, err := etl.ParseUpload(filename, contentType, data)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	cleaned := parsed
	roles := etl.RoleMap{}
	if !isText {
		cleaned, err = etl.Normalize(parsed, now)
		if err != nil {
			return nil, err
		}
		roles = etl.ResolveRoles(cleaned.Columns)
		etl.CoerceMetrics(cleaned, roles)
		roles = etl.DeriveProfit(cleaned, roles)
	}

	reportID := uuid.NewString()
	if title == "" {
		title = filename
	}

	digest := narrative.BuildDigest(cleaned, roles.Strings(), title, domain, isText)

	var (
		story      *narrative.Narrative
		storageURL string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		story = s.synth.Synthesize(gctx, digest)
		return nil
	})
	g.Go(func() error {
		storageURL = s.archiveUpload(gctx, userID, reportID, filename, contentType, data)
		return nil
	})
	_ = g.Wait() // neither branch returns an error; both degrade internally

	status := models.StatusCompleted
	if isText {
		status = models.StatusPreviewOnly
	}

	report := &models.Report{
		ID:               reportID,
		UserID:           userID,
		Title:            title,
		FileName:         filename,
		StorageURL:       storageURL,
		ExecutiveSummary: story.ExecutiveSummary,
		Insights:         story.Insights,
		Dataset:          cleaned,
		Roles:            roles.Strings(),
		IsText:           isText,
		Status:           status,
		CreatedAt:        now,
	}

	persistCtx, cancel := context.WithTimeout(ctx, s.persistTimeout)
	defer cancel()
	if err := s.db.CreateReport(persistCtx, report); err != nil {
		log.Printf("report %s: persistence failed, returning degraded result: %v", reportID, err)
		report.Status = models.StatusDegraded
		return report, nil
	}

	s.embedSummary(report)
	return report, nil
}

// archiveUpload stores the raw bytes in object storage. Best-effort: any
// failure is logged and the report simply has no storage URL.
func (s *ReportService) archiveUpload(ctx context.Context, userID, reportID, filename, contentType string, data []byte) string {
	if s.obj == nil {
		return ""
	}
	key := fmt.Sprintf("%s/%s/%s", userID, reportID, filepath.Base(filename))
	url, err := s.obj.UploadFile(ctx, s.bucket, key, bytes.NewReader(data), contentType)
	if err != nil {
		log.Printf("report %s: raw upload archival failed: %v", reportID, err)
		return ""
	}
	return url
}

// embedSummary writes the summary embedding in the background so chat can
// ground on this report. Failures leave the column null.
func (s *ReportService) embedSummary(report *models.Report) {
	if s.embedder == nil || report.ExecutiveSummary == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		vecs, err := s.embedder.EmbedTexts(ctx, []string{report.Title + "\n" + report.ExecutiveSummary})
		if err != nil || len(vecs) == 0 {
			log.Printf("report %s: summary embedding failed: %v", report.ID, err)
			return
		}
		if err := s.db.UpdateReportEmbedding(ctx, report.ID, vecs[0]); err != nil {
			log.Printf("report %s: embedding write failed: %v", report.ID, err)
		}
	}()
}

// Aggregate merges all of the user's structured reports into one resampled
// series. Missing data is an explicit empty result, never an error.
func (s *ReportService) Aggregate(ctx context.Context, userID, freqToken string, start, end *time.Time) (*etl.Result, error) {
	freq, err := etl.ParseFrequency(freqToken)
	if err != nil {
		return nil, err
	}

	reports, err := s.db.ListReportsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}

	var sources []etl.SourceDataset
	for _, r := range reports {
		if r.IsText || r.Dataset == nil {
			continue
		}
		sources = append(sources, etl.SourceDataset{
			Dataset:   r.Dataset,
			Roles:     etl.RolesFromStrings(r.Roles),
			CreatedAt: r.CreatedAt,
		})
	}

	return etl.Aggregate(sources, freq, start, end), nil
}

// ListReports returns the user's reports newest-first, without datasets
// (the listing payload stays small).
func (s *ReportService) ListReports(ctx context.Context, userID string) ([]models.Report, error) {
	reports, err := s.db.ListReportsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range reports {
		reports[i].Dataset = nil
	}
	return reports, nil
}

// DeleteReport removes the report and, best-effort, its archived raw file.
func (s *ReportService) DeleteReport(ctx context.Context, id string) (bool, error) {
	report, err := s.db.GetReportByID(ctx, id)
	if err != nil {
		return false, err
	}
	deleted, err := s.db.DeleteReport(ctx, id)
	if err != nil || !deleted {
		return deleted, err
	}
	if s.obj != nil && report != nil && report.StorageURL != "" {
		key := fmt.Sprintf("%s/%s/%s", report.UserID, report.ID, filepath.Base(report.FileName))
		if err := s.obj.DeleteFile(ctx, s.bucket, key); err != nil {
			log.Printf("report %s: archived file cleanup failed: %v", id, err)
		}
	}
	return true, nil
}
