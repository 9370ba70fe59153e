// Package llm structures statement text into transaction records through
// the Gemini API. One call covers one chunk; transport failures are retried
// with bounded exponential backoff, malformed responses are not.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"google.golang.org/genai"

	"github.com/gsoares/extratorio/internal/domain"
	"github.com/gsoares/extratorio/internal/logger"
	"github.com/gsoares/extratorio/internal/statement"
)

// Structurer turns one chunk of statement text into typed records.
type Structurer interface {
	Structure(ctx context.Context, chunk statement.Chunk) (domain.RecordBatch, error)
}

// Options configure the Gemini structurer. Zero values for the knobs fall
// back to working defaults at construction; Temperature and TopP are sent
// as given.
type Options struct {
	APIKey          string
	Model           string
	Temperature     float32
	TopP            float32
	MaxOutputTokens int32
	MaxAttempts     int
	RetryBase       time.Duration
	RequestTimeout  time.Duration
}

// textGenerator is the seam between the structurer and the SDK, so tests
// can script responses without a network.
type textGenerator interface {
	generate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type genaiGenerator struct {
	client *genai.Client
}

func (g *genaiGenerator) generate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return g.client.Models.GenerateContent(ctx, model, contents, cfg)
}

// GeminiStructurer is the production Structurer.
type GeminiStructurer struct {
	gen  textGenerator
	opts Options
}

var _ Structurer = (*GeminiStructurer)(nil)

// NewGeminiStructurer creates the Gemini-backed structurer. An empty APIKey
// is allowed; the SDK then resolves credentials from its environment.
func NewGeminiStructurer(ctx context.Context, opts Options) (*GeminiStructurer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      opts.APIKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiStructurer: create genai client: %w", err)
	}
	return newWithGenerator(&genaiGenerator{client: client}, opts), nil
}

func newWithGenerator(gen textGenerator, opts Options) *GeminiStructurer {
	if opts.Model == "" {
		opts.Model = "gemini-2.5-flash"
	}
	if opts.MaxOutputTokens <= 0 {
		opts.MaxOutputTokens = 8192
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 4
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 500 * time.Millisecond
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 90 * time.Second
	}
	return &GeminiStructurer{gen: gen, opts: opts}
}

// Structure implements Structurer. Rate limits and transient failures are
// retried up to MaxAttempts total calls; the returned batch records how
// many calls were actually made, success or not.
func (g *GeminiStructurer) Structure(ctx context.Context, chunk statement.Chunk) (domain.RecordBatch, error) {
	log := logger.FromContext(ctx)
	prompt := buildPrompt(chunk.Text)

	var batch domain.RecordBatch
	attempts := 0

	backoff := retry.WithMaxRetries(uint64(g.opts.MaxAttempts-1), retry.NewExponential(g.opts.RetryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		b, err := g.callOnce(ctx, chunk, prompt)
		if err != nil {
			if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransient) {
				log.Warn().Err(err).
					Int("chunk", chunk.Index).
					Int("attempt", attempts).
					Msg("retryable structuring failure")
				return retry.RetryableError(err)
			}
			return err
		}
		batch = b
		return nil
	})
	if err != nil {
		return domain.RecordBatch{Chunk: chunk.Index, Pages: chunk.Pages, Attempts: attempts},
			fmt.Errorf("Structure: chunk %d after %d attempts: %w", chunk.Index, attempts, err)
	}

	batch.Attempts = attempts
	return batch, nil
}

func (g *GeminiStructurer) callOnce(ctx context.Context, chunk statement.Chunk, prompt string) (domain.RecordBatch, error) {
	ctx, cancel := context.WithTimeout(ctx, g.opts.RequestTimeout)
	defer cancel()

	var batch domain.RecordBatch

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(g.opts.Temperature),
		TopP:             genai.Ptr(g.opts.TopP),
		MaxOutputTokens:  g.opts.MaxOutputTokens,
		ResponseMIMEType: "application/json",
	}

	resp, err := g.gen.generate(ctx, g.opts.Model, contents, cfg)
	if err != nil {
		return batch, classifyTransport(err)
	}

	raw := resp.Text()
	if raw == "" {
		return batch, &StructuringError{Chunk: chunk.Index, Err: errors.New("empty response from model")}
	}

	truncated := wasTruncated(resp)
	cleaned := cleanModelJSON(raw)

	records, err := decodeRecords(cleaned, chunk)
	if err != nil && truncated {
		// Output hit the token cap mid-array; keeping the complete objects
		// beats failing the chunk.
		records, err = decodeRecords(repairTruncatedArray(cleaned), chunk)
	}
	if err != nil {
		return batch, &StructuringError{Chunk: chunk.Index, Err: err}
	}

	return domain.RecordBatch{
		Chunk:     chunk.Index,
		Pages:     chunk.Pages,
		Records:   records,
		Truncated: truncated,
	}, nil
}

func wasTruncated(resp *genai.GenerateContentResponse) bool {
	for _, c := range resp.Candidates {
		if c.FinishReason == genai.FinishReasonMaxTokens {
			return true
		}
	}
	return false
}
