// Package api serves the log upload form and the analysis results over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	apperrors "logsentry/internal/errors"
	"logsentry/internal/ingest"
	"logsentry/internal/pipeline"
	"logsentry/internal/schema"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// Client facing messages.
const (
	msgMissingFile = "Please upload a log file."
	msgUnsupported = "Unsupported file type. Please upload a .csv, .json, .log or .txt file."
	msgEmpty       = "No valid log entries found."
	msgParsePrefix = "Error parsing file: "
)

// formField is the multipart field holding the uploaded file.
const formField = "logfile"

// maxInflightPublishes bounds background publishes; reports beyond it are
// dropped.
const maxInflightPublishes = 16

// Analyzer turns a staged log file into a report.
type Analyzer interface {
	Process(path string, format ingest.Format) (*schema.Report, error)
}

// AnomalyPublisher forwards a finished report to downstream consumers.
type AnomalyPublisher interface {
	PublishReport(ctx context.Context, report *schema.Report) error
}

// Handler handles uploads and renders results.
type Handler struct {
	analyzer       Analyzer
	publisher      AnomalyPublisher
	metrics        *Metrics
	logger         *slog.Logger
	uploadDir      string
	maxUpload      int64
	publishTimeout time.Duration
	publishSlots   chan struct{}
	publishing     sync.WaitGroup
	startTime      time.Time
}

// NewHandler creates a Handler that stages uploads in uploadDir.
func NewHandler(analyzer Analyzer, uploadDir string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		analyzer:       analyzer,
		metrics:        NewMetrics(),
		logger:         logger.With("component", "api"),
		uploadDir:      uploadDir,
		maxUpload:      32 * 1024 * 1024, // 32MB default
		publishTimeout: 10 * time.Second,
		publishSlots:   make(chan struct{}, maxInflightPublishes),
		startTime:      time.Now(),
	}
}

// WithMaxUpload sets the maximum request body size in bytes.
func (h *Handler) WithMaxUpload(size int64) *Handler {
	h.maxUpload = size
	return h
}

// WithPublisher forwards every successful report to p.
func (h *Handler) WithPublisher(p AnomalyPublisher) *Handler {
	h.publisher = p
	return h
}

// WithMetrics replaces the handler's metrics.
func (h *Handler) WithMetrics(m *Metrics) *Handler {
	h.metrics = m
	return h
}

// Metrics returns the collectors updated by the handler.
func (h *Handler) Metrics() *Metrics {
	return h.metrics
}

// UploadResponse is the JSON body of a successful upload.
type UploadResponse struct {
	Success   bool           `json:"success"`
	RequestID string         `json:"request_id"`
	Report    *schema.Report `json:"report"`
}

// Index handles GET /.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.renderIndex(w, http.StatusOK, "")
}

// Upload handles POST /upload.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	requestID := RequestID(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	file, header, err := r.FormFile(formField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.metrics.observeFailure(reasonTooLarge)
			h.fail(w, r, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("File exceeds the upload limit of %s.", humanize.IBytes(uint64(h.maxUpload))))
			return
		}
		h.metrics.observeFailure(reasonMissingFile)
		h.fail(w, r, http.StatusBadRequest, msgMissingFile)
		return
	}
	defer file.Close()

	if header.Filename == "" {
		h.metrics.observeFailure(reasonMissingFile)
		h.fail(w, r, http.StatusBadRequest, msgMissingFile)
		return
	}

	format, err := ingest.FormatForFilename(header.Filename)
	if err != nil {
		h.metrics.observeFailure(reasonUnsupported)
		h.fail(w, r, http.StatusBadRequest, msgUnsupported)
		return
	}

	path, err := h.stage(file, header.Filename)
	if err != nil {
		h.logger.Error("failed to stage upload", "error", err, "request_id", requestID)
		h.metrics.observeFailure(reasonInternal)
		h.fail(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			h.logger.Warn("failed to remove staged upload", "error", err, "request_id", requestID)
		}
	}()

	start := time.Now()
	report, err := h.analyzer.Process(path, format)
	if err != nil {
		h.analysisFailed(w, r, err)
		return
	}
	h.metrics.observeReport(report, time.Since(start))

	h.logger.Info("file analyzed",
		"request_id", requestID,
		"report_id", report.ID,
		"format", report.Format,
		"rows", len(report.Rows),
		"anomalies", len(report.Anomalies),
	)

	if wantsJSON(r) {
		respondJSON(w, http.StatusOK, UploadResponse{
			Success:   true,
			RequestID: requestID,
			Report:    report,
		})
	} else {
		h.renderResults(w, report)
	}

	h.publish(r.Context(), report)
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
	})
}

func (h *Handler) analysisFailed(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Warn("analysis failed", "error", err, "request_id", RequestID(r.Context()))

	switch {
	case errors.Is(err, pipeline.ErrEmptyInput):
		h.metrics.observeFailure(reasonEmpty)
		h.fail(w, r, http.StatusBadRequest, msgEmpty)
	case errors.Is(err, ingest.ErrUnsupportedExtension):
		h.metrics.observeFailure(reasonUnsupported)
		h.fail(w, r, http.StatusBadRequest, msgUnsupported)
	default:
		h.metrics.observeFailure(reasonParse)
		h.fail(w, r, http.StatusBadRequest, msgParsePrefix+apperrors.SafeErrorMessage(err))
	}
}

// stage copies the upload to "<uuid>-<basename>" in the upload directory.
func (h *Handler) stage(src io.Reader, filename string) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}

	path := filepath.Join(h.uploadDir, uuid.New().String()+"-"+safeBase(filename))
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("failed to create staged file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write staged file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write staged file: %w", err)
	}
	return path, nil
}

// publish forwards report in the background so a slow publisher never
// delays the response. The publish outlives the request but not the publish
// timeout. When maxInflightPublishes are already running the report is
// dropped.
func (h *Handler) publish(ctx context.Context, report *schema.Report) {
	if h.publisher == nil || len(report.Anomalies) == 0 {
		return
	}

	select {
	case h.publishSlots <- struct{}{}:
	default:
		h.metrics.observeFailure(reasonPublishDropped)
		h.logger.Warn("publish backlog full, dropping anomalies",
			"report_id", report.ID,
			"request_id", RequestID(ctx),
		)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.publishTimeout)
	h.publishing.Add(1)
	go func() {
		defer h.publishing.Done()
		defer func() { <-h.publishSlots }()
		defer cancel()

		if err := h.publisher.PublishReport(ctx, report); err != nil {
			h.metrics.observeFailure(reasonPublish)
			h.logger.Error("failed to publish anomalies",
				"error", err,
				"report_id", report.ID,
				"request_id", RequestID(ctx),
			)
			return
		}
		h.metrics.published.Inc()
	}()
}

// Drain waits for background publishes to finish or for ctx to end. Call it
// after the HTTP server has shut down and before closing the publisher.
func (h *Handler) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.publishing.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, status int, message string) {
	if wantsJSON(r) {
		respondError(w, status, message, RequestID(r.Context()))
		return
	}
	h.renderIndex(w, status, message)
}

// safeBase strips any client supplied directories from name.
func safeBase(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := filepath.Base(name)
	if base == "." || base == "/" || base == ".." {
		return "upload"
	}
	return base
}

// wantsJSON reports whether the client asked for a JSON response.
func wantsJSON(r *http.Request) bool {
	if r.URL.Query().Get("format") == "json" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes a JSON error response.
func respondError(w http.ResponseWriter, status int, message string, requestID string) {
	resp := map[string]any{
		"success":    false,
		"error":      message,
		"request_id": requestID,
	}
	respondJSON(w, status, resp)
}
