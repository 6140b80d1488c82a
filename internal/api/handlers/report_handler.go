package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	middleware "github.com/saidurgaphani/CS2026/internal/api/middlewares"
	"github.com/saidurgaphani/CS2026/internal/core/etl"
	"github.com/saidurgaphani/CS2026/internal/models"
	"github.com/saidurgaphani/CS2026/internal/services"
)

const maxUploadBytes = 20 << 20 // 20 MB

type ReportHandler struct {
	reports *services.ReportService
}

func NewReportHandler(reports *services.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Upload accepts a data file plus title/domain form fields, runs the full
// cleaning pipeline and responds with the persisted report. Parse and schema
// problems are the only client-visible failures.
func (h *ReportHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "user identity required (user-id header or bearer token)", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "invalid file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read file", http.StatusBadRequest)
		return
	}

	title := r.FormValue("title")
	domain := r.FormValue("domain")
	filename := filepath.Base(header.Filename)
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	report, err := h.reports.ProcessUpload(r.Context(), userID, title, domain, filename, contentType, data)
	if err != nil {
		if errors.Is(err, etl.ErrParseFailure) || errors.Is(err, etl.ErrAmbiguousSchema) {
			http.Error(w, fmt.Sprintf("invalid file format: %v", err), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

func (h *ReportHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "user identity required", http.StatusUnauthorized)
		return
	}

	reports, err := h.reports.ListReports(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if reports == nil {
		reports = []models.Report{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(reports)
}

func (h *ReportHandler) DeleteReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deleted, err := h.reports.DeleteReport(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "report not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "deleted", "id": id})
}

// Aggregate resamples all of the user's structured data to the requested
// frequency. No matching data is an explicit empty response, not an error.
func (h *ReportHandler) Aggregate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID    string `json:"user_id"`
		Frequency string `json:"frequency"`
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
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

	start, err := parseDateParam(req.StartDate, false)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	end, err := parseDateParam(req.EndDate, true)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.reports.Aggregate(r.Context(), userID, req.Frequency, start, end)
	if err != nil {
		status := http.StatusInternalServerError
		if req.Frequency != "" {
			if _, ferr := etl.ParseFrequency(req.Frequency); ferr != nil {
				status = http.StatusBadRequest
			}
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// parseDateParam reads an optional bound. End bounds cover the whole day so
// "2023-01-31" includes rows stamped during that day.
func parseDateParam(s string, endOfDay bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, ok := etl.ParseDate(s)
	if !ok {
		return nil, fmt.Errorf("unparseable date %q", s)
	}
	t = t.UTC()
	if endOfDay {
		t = time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, time.UTC)
	}
	return &t, nil
}
