// Package pipeline composes the statement processing stages: text
// extraction, payload assembly, chunked structuring and reconciliation.
// Each stage is a Step sharing a State, so pipelines for different input
// formats reuse the same stages.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/gsoares/extratorio/internal/config"
	"github.com/gsoares/extratorio/internal/domain"
	"github.com/gsoares/extratorio/internal/llm"
	"github.com/gsoares/extratorio/internal/logger"
	"github.com/gsoares/extratorio/internal/pdftext"
	"github.com/gsoares/extratorio/internal/statement"
)

// Step represents a single step in the statement pipeline.
type Step interface {
	Execute(ctx context.Context, state *State) error
}

// TextExtractor yields per-page text for a statement document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) ([]pdftext.PageText, error)
}

// State holds the shared state across all pipeline steps.
type State struct {
	Document *domain.Document
	Pages    []pdftext.PageText
	Payload  *statement.Payload
	Chunks   []statement.Chunk
	Batches  []domain.RecordBatch
	Failures []domain.ChunkFailure
	Result   *domain.StatementResult
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []Step
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps sequentially. The first failing step aborts the
// run; chunk-level structuring failures are not step failures unless every
// chunk failed.
func (p *Pipeline) Execute(ctx context.Context, state *State) error {
	log := logger.FromContext(ctx)
	for i, step := range p.steps {
		start := time.Now()
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d (%T): %w", i+1, step, err)
		}
		log.Debug().
			Str("step", fmt.Sprintf("%T", step)).
			Dur("took", time.Since(start)).
			Msg("pipeline step done")
	}
	return nil
}

// NewStatementPipeline creates the standard four-step pipeline for PDF
// statements.
func NewStatementPipeline(extractor TextExtractor, structurer llm.Structurer, cfg *config.Config) *Pipeline {
	return NewPipeline(
		&ExtractTextStep{Extractor: extractor},
		&BuildPayloadStep{MaxChars: cfg.ChunkMaxChars},
		&StructureChunksStep{Structurer: structurer, Workers: cfg.Workers},
		&ReconcileStep{Tolerance: cfg.DedupeTolerance},
	)
}

// NewOFXPipeline creates the pipeline for OFX statements. OFX files carry
// structured transactions already, so the model stages drop out and only
// parsing and reconciliation remain.
func NewOFXPipeline(cfg *config.Config) *Pipeline {
	return NewPipeline(
		&ParseOFXStep{},
		&ReconcileStep{Tolerance: cfg.DedupeTolerance},
	)
}

// Runner runs a configured pipeline over single documents.
type Runner struct {
	pipeline *Pipeline
}

// NewRunner wraps a pipeline for repeated runs.
func NewRunner(p *Pipeline) *Runner {
	return &Runner{pipeline: p}
}

// Run processes one document and returns its statement result. The result
// may be partial: failed chunks are listed on it rather than failing the
// run, as long as at least one chunk structured successfully.
func (r *Runner) Run(ctx context.Context, doc *domain.Document) (*domain.StatementResult, error) {
	log := logger.FromContext(ctx)
	start := time.Now()

	state := &State{Document: doc}
	if err := r.pipeline.Execute(ctx, state); err != nil {
		return nil, fmt.Errorf("Run: %s: %w", doc.Filename, err)
	}

	log.Info().
		Str("file", doc.Filename).
		Str("result_id", state.Result.ID).
		Int("records", len(state.Result.Records)).
		Int("failed_chunks", len(state.Result.FailedChunks)).
		Dur("took", time.Since(start)).
		Msg("statement processed")
	return state.Result, nil
}
