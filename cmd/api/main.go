package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/gsoares/extratorio/internal/api/handlers"
	"github.com/gsoares/extratorio/internal/api/middleware"
	"github.com/gsoares/extratorio/internal/config"
	"github.com/gsoares/extratorio/internal/domain"
	"github.com/gsoares/extratorio/internal/jobs"
	"github.com/gsoares/extratorio/internal/jobs/inmemory"
	"github.com/gsoares/extratorio/internal/llm"
	"github.com/gsoares/extratorio/internal/logger"
	"github.com/gsoares/extratorio/internal/pdftext"
	"github.com/gsoares/extratorio/internal/pipeline"
	"github.com/gsoares/extratorio/internal/storage"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	ctx := context.Background()
	ctx = logger.WithContext(ctx, log)

	extractor, err := pdftext.New(cfg.BackendOrder)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build PDF extractor")
	}

	structurer, err := llm.NewGeminiStructurer(ctx, llm.Options{
		APIKey:          cfg.GeminiAPIKey,
		Model:           cfg.ModelName,
		Temperature:     cfg.Temperature,
		TopP:            cfg.TopP,
		MaxOutputTokens: cfg.MaxOutputTokens,
		MaxAttempts:     cfg.MaxAttempts,
		RetryBase:       cfg.RetryBase,
		RequestTimeout:  cfg.RequestTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini structurer")
	}

	pdfRunner := pipeline.NewRunner(pipeline.NewStatementPipeline(extractor, structurer, cfg))
	ofxRunner := pipeline.NewRunner(pipeline.NewOFXPipeline(cfg))

	// gs:// sources are optional; without GCS credentials the API still
	// accepts direct uploads.
	var fetcher storage.Fetcher
	if gcs, err := storage.NewGCS(ctx); err != nil {
		log.Warn().Err(err).Msg("GCS unavailable - gs:// statement sources are disabled")
	} else {
		fetcher = gcs
		defer gcs.Close()
	}

	// Initialize job infrastructure
	store := inmemory.NewStore()
	queue := inmemory.NewQueue(100, cfg.QueueWorkers, store)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := newJobHandler(pdfRunner, ofxRunner, store, fetcher, log)

	go func() {
		log.Info().Int("workers", cfg.QueueWorkers).Msg("Starting statement workers")
		if err := queue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Statement worker stopped with error")
		}
	}()

	// Initialize handlers
	statementsHandler := handlers.NewStatementsHandler(queue, store, cfg.MaxUploadBytes, log)
	jobsHandler := handlers.NewJobsHandler(store, log)

	// Create router
	mux := http.NewServeMux()

	// Statements endpoints
	mux.HandleFunc("/api/statements", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			statementsHandler.Create(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/statements/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		rest := strings.TrimPrefix(r.URL.Path, "/api/statements/")
		if rest == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Statement ID is required")
			return
		}
		if id, found := strings.CutSuffix(rest, "/export"); found {
			statementsHandler.ExportCSV(w, r, id)
			return
		}
		statementsHandler.GetResult(w, r, rest)
	})

	// Jobs endpoints
	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware. RequestID sits outside Logger so access logs carry
	// the request ID.
	handler := middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(mux),
			),
		),
	)

	// Create HTTP server. The read timeout is sized for statement uploads
	// on slow links.
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Cancel worker context
	cancelWorker()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}

// newJobHandler builds the worker that runs each queued statement through
// the pipeline matching its format and stores the result for retrieval.
func newJobHandler(pdfRunner, ofxRunner *pipeline.Runner, results jobs.ResultStore, fetcher storage.Fetcher, log zerolog.Logger) jobs.JobHandler {
	return func(ctx context.Context, j jobs.Job) error {
		job, ok := j.(*jobs.ProcessStatementJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", j)
		}

		doc := job.Document
		if doc == nil {
			if job.SourceURI == "" {
				return fmt.Errorf("job %s has neither a document nor a source URI", job.JobID)
			}
			if fetcher == nil {
				return fmt.Errorf("job %s needs GCS, which is not configured", job.JobID)
			}
			data, err := fetcher.Fetch(ctx, job.SourceURI)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", job.SourceURI, err)
			}
			doc = domain.NewDocument(job.Filename, data)
			// Keep the payload on the job so a retry skips the refetch.
			job.Document = doc
		}

		format := job.Format
		if format == "" {
			format = domain.DetectFormat(doc.Filename, doc.Data)
			job.Format = format
		}

		var runner *pipeline.Runner
		switch format {
		case domain.FormatPDF:
			runner = pdfRunner
		case domain.FormatOFX:
			runner = ofxRunner
		default:
			return fmt.Errorf("cannot tell whether %q is a PDF or an OFX statement", doc.Filename)
		}

		res, err := runner.Run(ctx, doc)
		if err != nil {
			return err
		}

		if err := results.SaveResult(ctx, res); err != nil {
			return fmt.Errorf("save result %s: %w", res.ID, err)
		}
		job.ResultID = res.ID

		log.Info().
			Str("job_id", job.JobID).
			Str("result_id", res.ID).
			Int("records", len(res.Records)).
			Msg("Statement processed")

		return nil
	}
}
