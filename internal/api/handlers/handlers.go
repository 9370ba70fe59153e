package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gsoares/extratorio/internal/api/middleware"
	"github.com/gsoares/extratorio/internal/domain"
	"github.com/gsoares/extratorio/internal/export"
	"github.com/gsoares/extratorio/internal/jobs"
	"github.com/gsoares/extratorio/internal/storage"
)

// StatementsHandler handles statement upload and result endpoints.
type StatementsHandler struct {
	publisher jobs.Publisher
	results   jobs.ResultStore
	maxUpload int64
	log       zerolog.Logger
}

// NewStatementsHandler creates a new statements handler. maxUpload caps the
// accepted request body size in bytes; zero disables the cap.
func NewStatementsHandler(publisher jobs.Publisher, results jobs.ResultStore, maxUpload int64, log zerolog.Logger) *StatementsHandler {
	return &StatementsHandler{
		publisher: publisher,
		results:   results,
		maxUpload: maxUpload,
		log:       log,
	}
}

// Create handles POST /api/statements.
// The statement arrives either as a multipart field named "file", as the raw
// request body, or as JSON naming a gs:// object to fetch. The response is
// 202 with the ID of the queued processing job.
func (h *StatementsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}

	var (
		data      []byte
		filename  string
		format    domain.Format
		sourceURI string
	)

	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "multipart/form-data"):
		file, header, err := r.FormFile("file")
		if err != nil {
			if isTooLarge(err) {
				middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Statement exceeds the upload size limit")
				return
			}
			middleware.WriteError(w, http.StatusBadRequest, `Expected a multipart field named "file"`)
			return
		}
		defer file.Close()

		data, err = io.ReadAll(file)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Failed to read uploaded file")
			return
		}
		filename = path.Base(header.Filename)
		format = domain.Format(r.FormValue("format"))

	case strings.HasPrefix(contentType, "application/json"):
		var req struct {
			GCSURI string `json:"gcs_uri"`
			Format string `json:"format"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.GCSURI == "" {
			middleware.WriteError(w, http.StatusBadRequest, "gcs_uri is required")
			return
		}
		if _, _, err := storage.SplitURI(req.GCSURI); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "gcs_uri must look like gs://bucket/object")
			return
		}
		sourceURI = req.GCSURI
		filename = storage.Filename(req.GCSURI)
		format = domain.Format(req.Format)

	default:
		var err error
		data, err = io.ReadAll(r.Body)
		if err != nil {
			if isTooLarge(err) {
				middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Statement exceeds the upload size limit")
				return
			}
			middleware.WriteError(w, http.StatusBadRequest, "Failed to read request body")
			return
		}
		filename = r.URL.Query().Get("filename")
		if filename == "" {
			filename = r.Header.Get("X-Filename")
		}
		if filename == "" {
			filename = "statement"
		}
		filename = path.Base(filename)
		format = domain.Format(r.URL.Query().Get("format"))
	}

	if format == "auto" {
		format = ""
	}
	if sourceURI == "" {
		if len(data) == 0 {
			middleware.WriteError(w, http.StatusBadRequest, "Statement file is empty")
			return
		}
		if format == "" {
			format = domain.DetectFormat(filename, data)
		}
	} else if format == "" {
		// The extension is the only hint until the worker fetches the bytes.
		format = domain.DetectFormat(filename, nil)
	}

	switch format {
	case domain.FormatPDF, domain.FormatOFX:
	case "":
		// For gs:// sources detection runs after the worker fetches the
		// object; for uploads an undetectable format is a client error.
		if sourceURI == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Could not detect the statement format; pass format=pdf or format=ofx")
			return
		}
	default:
		middleware.WriteError(w, http.StatusBadRequest, "format must be pdf or ofx")
		return
	}

	job := &jobs.ProcessStatementJob{
		Filename:  filename,
		Format:    format,
		SourceURI: sourceURI,
	}
	if sourceURI == "" {
		job.Document = domain.NewDocument(filename, data)
	}

	if err := h.publisher.PublishProcessStatement(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue statement job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue statement job")
		return
	}

	h.log.Info().
		Str("job_id", job.JobID).
		Str("filename", job.Filename).
		Str("format", string(job.Format)).
		Msg("Statement job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":   job.JobID,
		"filename": job.Filename,
		"format":   string(job.Format),
		"status":   string(job.Status),
	})
}

// GetResult handles GET /api/statements/{id}
func (h *StatementsHandler) GetResult(w http.ResponseWriter, r *http.Request, id string) {
	res, err := h.results.GetResult(r.Context(), id)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Statement result not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, res)
}

// ExportCSV handles GET /api/statements/{id}/export
func (h *StatementsHandler) ExportCSV(w http.ResponseWriter, r *http.Request, id string) {
	res, err := h.results.GetResult(r.Context(), id)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Statement result not found")
		return
	}

	name := "statement.csv"
	if res.SourceFile != "" {
		name = strings.TrimSuffix(res.SourceFile, path.Ext(res.SourceFile)) + ".csv"
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if err := export.WriteCSV(w, res); err != nil {
		// Headers are already sent; the truncated download is all we can
		// signal to the client.
		h.log.Error().Err(err).Str("result_id", id).Msg("Failed to stream CSV export")
	}
}

// isTooLarge reports whether a body read failed because MaxBytesReader cut
// it off.
func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// JobsHandler handles job status endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		h.log.Debug().Err(err).Str("job_id", jobID).Msg("Job lookup failed")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Parse query parameters
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Filename: query.Get("filename"),
		Status:   jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
