package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/gsoares/extratorio/internal/domain"
	"github.com/gsoares/extratorio/internal/llm"
	"github.com/gsoares/extratorio/internal/logger"
	"github.com/gsoares/extratorio/internal/ofx"
	"github.com/gsoares/extratorio/internal/reconcile"
	"github.com/gsoares/extratorio/internal/statement"
)

// ExtractTextStep runs the PDF backends and stores per-page text.
type ExtractTextStep struct {
	Extractor TextExtractor
}

func (s *ExtractTextStep) Execute(ctx context.Context, state *State) error {
	pages, err := s.Extractor.Extract(ctx, state.Document)
	if err != nil {
		return err
	}
	state.Pages = pages
	return nil
}

// BuildPayloadStep strips repeated headers and footers and cuts the pages
// into chunks that never split a page.
type BuildPayloadStep struct {
	MaxChars int
}

func (s *BuildPayloadStep) Execute(ctx context.Context, state *State) error {
	payload, err := statement.BuildPayload(state.Pages)
	if err != nil {
		return err
	}

	maxChars := s.MaxChars
	if maxChars <= 0 {
		maxChars = statement.DefaultMaxChars
	}
	state.Payload = payload
	state.Chunks = statement.Split(payload, maxChars)
	return nil
}

// StructureChunksStep fans chunks out to the model over a bounded worker
// pool and reassembles the batches in chunk order. A failed chunk becomes a
// ChunkFailure instead of failing the step; only all chunks failing does.
type StructureChunksStep struct {
	Structurer llm.Structurer
	Workers    int
}

func (s *StructureChunksStep) Execute(ctx context.Context, state *State) error {
	log := logger.FromContext(ctx)

	workers := s.Workers
	if workers <= 0 {
		workers = 1
	}

	// Indexed slots keep chunk order regardless of completion order.
	batches := make([]domain.RecordBatch, len(state.Chunks))
	errs := make([]error, len(state.Chunks))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, chunk := range state.Chunks {
		g.Go(func() error {
			batches[i], errs[i] = s.Structurer.Structure(ctx, chunk)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, err := range errs {
		if err == nil {
			state.Batches = append(state.Batches, batches[i])
			continue
		}
		log.Error().Err(err).
			Int("chunk", state.Chunks[i].Index).
			Msg("chunk failed to structure")
		state.Failures = append(state.Failures, domain.ChunkFailure{
			Chunk:    state.Chunks[i].Index,
			Pages:    state.Chunks[i].Pages,
			Attempts: batches[i].Attempts,
			Reason:   failureReason(err),
		})
	}

	if len(state.Batches) == 0 {
		return fmt.Errorf("StructureChunksStep: all %d chunks failed", len(state.Chunks))
	}
	return nil
}

// failureReason reduces a structuring error to a stable, result-facing
// string.
func failureReason(err error) string {
	var serr *llm.StructuringError
	switch {
	case errors.Is(err, llm.ErrRateLimited):
		return llm.ErrRateLimited.Error()
	case errors.Is(err, llm.ErrTransient):
		return llm.ErrTransient.Error()
	case errors.As(err, &serr):
		return serr.Error()
	default:
		return err.Error()
	}
}

// ParseOFXStep reads an OFX document into a single batch, taking the place
// of the extraction and structuring stages.
type ParseOFXStep struct{}

func (s *ParseOFXStep) Execute(ctx context.Context, state *State) error {
	st, err := ofx.Parse(state.Document.Data)
	if err != nil {
		return err
	}
	if len(st.Records) == 0 {
		return fmt.Errorf("ParseOFXStep: %s: %w", state.Document.Filename, statement.ErrEmptyDocument)
	}
	state.Batches = []domain.RecordBatch{{Records: st.Records}}
	return nil
}

// ReconcileStep merges the batches into the final result and stamps its
// identity.
type ReconcileStep struct {
	Tolerance decimal.Decimal
}

func (s *ReconcileStep) Execute(ctx context.Context, state *State) error {
	res := reconcile.Merge(state.Batches, state.Failures, s.Tolerance)
	res.ID = uuid.NewString()
	res.SourceFile = state.Document.Filename
	res.ChecksumSHA = state.Document.Checksum
	res.CreatedAt = time.Now().UTC()
	state.Result = res
	return nil
}
