package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// Retryable transport failures. Everything else coming back from the model
// service fails the chunk immediately.
var (
	// ErrRateLimited marks an HTTP 429 from the model service.
	ErrRateLimited = errors.New("rate limited by model service")

	// ErrTransient marks a 5xx or a timed-out attempt.
	ErrTransient = errors.New("transient model service failure")
)

// StructuringError reports a model response that could not be turned into
// valid records: non-JSON output, a wrong shape, or records failing
// validation. It identifies the chunk so a partial run can name its gaps.
type StructuringError struct {
	Chunk int
	Err   error
}

func (e *StructuringError) Error() string {
	return fmt.Sprintf("structuring chunk %d: %v", e.Chunk, e.Err)
}

func (e *StructuringError) Unwrap() error {
	return e.Err
}

// classifyTransport folds a raw client error into the retryable taxonomy.
// The per-attempt deadline counts as transient: the next attempt gets a
// fresh one.
func classifyTransport(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return fmt.Errorf("classifyTransport: http %d: %w", apiErr.Code, ErrRateLimited)
		case apiErr.Code >= 500:
			return fmt.Errorf("classifyTransport: http %d: %w", apiErr.Code, ErrTransient)
		default:
			return err
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("classifyTransport: attempt timed out: %w", ErrTransient)
	}
	return err
}
