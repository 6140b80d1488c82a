package services

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/saidurgaphani/CS2026/internal/core"
	"github.com/saidurgaphani/CS2026/internal/core/etl"
	"github.com/saidurgaphani/CS2026/internal/core/narrative"
	"github.com/saidurgaphani/CS2026/internal/models"
)

type fakeObjectStore struct {
	uploads map[string][]byte
	deletes []string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{uploads: map[string][]byte{}}
}

func (f *fakeObjectStore) UploadFile(ctx context.Context, bucket, key string, data io.Reader, contentType string) (string, error) {
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	f.uploads[key] = b
	return "https://" + bucket + ".example.com/" + key, nil
}

func (f *fakeObjectStore) DeleteFile(ctx context.Context, bucket, key string) error {
	f.deletes = append(f.deletes, key)
	delete(f.uploads, key)
	return nil
}

func (f *fakeObjectStore) GetFile(ctx context.Context, bucket, key string) ([]byte, error) {
	b, ok := f.uploads[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return b, nil
}

const uploadCSV = "Order Date,Revenue,Total-Cost\n2023-01-05,100,40\n2023-02-05,200,80\n"

func newTestReportService(db *fakeDB, obj core.ObjectClient) *ReportService {
	return NewReportService(db, obj, narrative.NewSynthesizer(nil), nil, "uploads", time.Second)
}

func TestProcessUploadStructured(t *testing.T) {
	db := newFakeDB()
	obj := newFakeObjectStore()
	svc := newTestReportService(db, obj)

	report, err := svc.ProcessUpload(context.Background(), "u1", "Q1 Ledger", "retail",
		"ledger.csv", "text/csv", []byte(uploadCSV))
	if err != nil {
		t.Fatalf("ProcessUpload: %v", err)
	}

	if report.Status != models.StatusCompleted {
		t.Errorf("status = %q, want completed", report.Status)
	}
	if report.IsText {
		t.Error("csv flagged as text")
	}
	if len(report.Insights) != 4 {
		t.Errorf("got %d insights, want 4", len(report.Insights))
	}
	if report.ExecutiveSummary == "" {
		t.Error("empty executive summary")
	}

	// Column names normalized and the profit column derived.
	if report.Roles["revenue"] != "revenue" || report.Roles["expense"] != "total_cost" {
		t.Errorf("roles = %v", report.Roles)
	}
	if report.Roles["profit"] != "profit" {
		t.Errorf("profit not derived: %v", report.Roles)
	}
	if got := report.Dataset.Rows[0]["profit"]; got != 60.0 {
		t.Errorf("derived profit = %v, want 60", got)
	}

	if len(db.reports) != 1 {
		t.Fatalf("persisted %d reports, want 1", len(db.reports))
	}
	if report.StorageURL == "" || len(obj.uploads) != 1 {
		t.Errorf("raw upload not archived: url=%q uploads=%d", report.StorageURL, len(obj.uploads))
	}
}

func TestProcessUploadTextPreviewOnly(t *testing.T) {
	db := newFakeDB()
	svc := newTestReportService(db, nil)

	report, err := svc.ProcessUpload(context.Background(), "u1", "", "",
		"notes.txt", "text/plain", []byte("Revenue held steady this quarter.\n"))
	if err != nil {
		t.Fatalf("ProcessUpload: %v", err)
	}
	if report.Status != models.StatusPreviewOnly {
		t.Errorf("status = %q, want preview_only", report.Status)
	}
	if !report.IsText {
		t.Error("text upload not flagged")
	}
	if report.Title != "notes.txt" {
		t.Errorf("title = %q, want filename default", report.Title)
	}
}

func TestProcessUploadParseFailure(t *testing.T) {
	svc := newTestReportService(newFakeDB(), nil)
	_, err := svc.ProcessUpload(context.Background(), "u1", "", "",
		"x.bin", "", []byte{0xff, 0xfe, 0x00})
	if !errors.Is(err, etl.ErrParseFailure) {
		t.Fatalf("err = %v, want ErrParseFailure", err)
	}
}

func TestProcessUploadPersistFailureDegrades(t *testing.T) {
	failing := &createFailDB{fakeDB: newFakeDB()}
	svc := NewReportService(failing, nil, narrative.NewSynthesizer(nil), nil, "", time.Second)

	report, err := svc.ProcessUpload(context.Background(), "u1", "t", "",
		"ledger.csv", "text/csv", []byte(uploadCSV))
	if err != nil {
		t.Fatalf("ProcessUpload surfaced persistence error: %v", err)
	}
	if report.Status != models.StatusDegraded {
		t.Errorf("status = %q, want degraded", report.Status)
	}
	if len(report.Insights) != 4 {
		t.Errorf("degraded result lost its insights: %d", len(report.Insights))
	}
}

type createFailDB struct {
	*fakeDB
}

func (c *createFailDB) CreateReport(ctx context.Context, report *models.Report) error {
	return errors.New("db down")
}

func TestAggregateSkipsTextReports(t *testing.T) {
	db := newFakeDB()
	svc := newTestReportService(db, nil)

	if _, err := svc.ProcessUpload(context.Background(), "u1", "", "",
		"ledger.csv", "text/csv", []byte(uploadCSV)); err != nil {
		t.Fatalf("upload csv: %v", err)
	}
	if _, err := svc.ProcessUpload(context.Background(), "u1", "", "",
		"notes.txt", "", []byte("some notes\n")); err != nil {
		t.Fatalf("upload text: %v", err)
	}

	res, err := svc.Aggregate(context.Background(), "u1", "M", nil, nil)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if res.Empty {
		t.Fatal("structured report produced no series")
	}
	if len(res.Series) != 2 {
		t.Fatalf("got %d buckets, want 2 months from the csv alone", len(res.Series))
	}
	if res.Series[0].Profit != 60 {
		t.Errorf("january profit = %v, want 60", res.Series[0].Profit)
	}
}

func TestAggregateNoReports(t *testing.T) {
	svc := newTestReportService(newFakeDB(), nil)
	res, err := svc.Aggregate(context.Background(), "nobody", "M", nil, nil)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if !res.Empty {
		t.Error("expected empty result for a user with no reports")
	}
}

func TestAggregateBadFrequency(t *testing.T) {
	svc := newTestReportService(newFakeDB(), nil)
	if _, err := svc.Aggregate(context.Background(), "u1", "quarterly", nil, nil); err == nil {
		t.Fatal("expected error for unknown frequency")
	}
}

func TestListReportsStripsDatasets(t *testing.T) {
	db := newFakeDB()
	svc := newTestReportService(db, nil)
	if _, err := svc.ProcessUpload(context.Background(), "u1", "", "",
		"ledger.csv", "text/csv", []byte(uploadCSV)); err != nil {
		t.Fatalf("upload: %v", err)
	}

	reports, err := svc.ListReports(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(reports))
	}
	if reports[0].Dataset != nil {
		t.Error("listing payload still carries the dataset")
	}
}

func TestDeleteReportCleansArchive(t *testing.T) {
	db := newFakeDB()
	obj := newFakeObjectStore()
	svc := newTestReportService(db, obj)

	report, err := svc.ProcessUpload(context.Background(), "u1", "", "",
		"ledger.csv", "text/csv", []byte(uploadCSV))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	deleted, err := svc.DeleteReport(context.Background(), report.ID)
	if err != nil || !deleted {
		t.Fatalf("DeleteReport = %v, %v", deleted, err)
	}
	if len(db.reports) != 0 {
		t.Error("report still persisted")
	}
	if len(obj.deletes) != 1 {
		t.Errorf("archived file not cleaned up: %v", obj.deletes)
	}
}
