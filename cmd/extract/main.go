package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/gsoares/extratorio/internal/config"
	"github.com/gsoares/extratorio/internal/domain"
	"github.com/gsoares/extratorio/internal/export"
	"github.com/gsoares/extratorio/internal/llm"
	"github.com/gsoares/extratorio/internal/logger"
	"github.com/gsoares/extratorio/internal/pdftext"
	"github.com/gsoares/extratorio/internal/pipeline"
	"github.com/gsoares/extratorio/internal/storage"
)

func main() {
	var (
		filePath   string
		uri        string
		prefix     string
		formatFlag string
		csvPath    string
	)

	flag.StringVar(&filePath, "file", "", "Path to a local statement file")
	flag.StringVar(&uri, "uri", "", "gs://bucket/object of a statement to fetch")
	flag.StringVar(&prefix, "prefix", "", "gs://bucket/dir/ prefix; every statement under it is processed")
	flag.StringVar(&formatFlag, "format", "auto", "Statement format: auto, pdf or ofx")
	flag.StringVar(&csvPath, "csv", "", "Write the records as CSV to this file (single statement only)")
	flag.Parse()

	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	sources := 0
	for _, s := range []string{filePath, uri, prefix} {
		if s != "" {
			sources++
		}
	}
	if sources != 1 {
		log.Fatal().Msg("Usage: extract -file statement.pdf | -uri gs://bucket/object | -prefix gs://bucket/dir/ [-format auto|pdf|ofx] [-csv out.csv]")
	}
	if csvPath != "" && prefix != "" {
		log.Fatal().Msg("-csv needs a single statement; use -file or -uri")
	}

	var format domain.Format
	switch formatFlag {
	case "auto", "":
	case "pdf":
		format = domain.FormatPDF
	case "ofx":
		format = domain.FormatOFX
	default:
		log.Fatal().Str("format", formatFlag).Msg("format must be auto, pdf or ofx")
	}

	ctx := context.Background()
	ctx = logger.WithContext(ctx, log)

	runners, err := buildRunners(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build pipelines")
	}

	// The GCS client is only needed for gs:// sources.
	var gcs *storage.GCS
	if uri != "" || prefix != "" {
		gcs, err = storage.NewGCS(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create GCS client")
		}
		defer gcs.Close()
	}

	switch {
	case filePath != "":
		data, err := os.ReadFile(filePath)
		if err != nil {
			log.Fatal().Err(err).Str("file", filePath).Msg("Failed to read statement file")
		}
		doc := domain.NewDocument(filepath.Base(filePath), data)
		if err := processOne(ctx, runners, doc, format, csvPath, log); err != nil {
			os.Exit(1)
		}

	case uri != "":
		doc, err := fetchDocument(ctx, gcs, uri)
		if err != nil {
			log.Fatal().Err(err).Str("uri", uri).Msg("Failed to fetch statement")
		}
		if err := processOne(ctx, runners, doc, format, csvPath, log); err != nil {
			os.Exit(1)
		}

	default:
		bucket, dir, err := storage.SplitURI(prefix)
		if err != nil {
			log.Fatal().Err(err).Str("prefix", prefix).Msg("Invalid -prefix")
		}
		uris, err := gcs.List(ctx, bucket, dir)
		if err != nil {
			log.Fatal().Err(err).Str("prefix", prefix).Msg("Failed to list statements")
		}
		if len(uris) == 0 {
			log.Fatal().Str("prefix", prefix).Msg("No statements under prefix")
		}

		failed := 0
		for _, u := range uris {
			doc, err := fetchDocument(ctx, gcs, u)
			if err != nil {
				log.Error().Err(err).Str("uri", u).Msg("Failed to fetch statement")
				failed++
				continue
			}
			if err := processOne(ctx, runners, doc, format, "", log); err != nil {
				failed++
			}
		}
		if failed > 0 {
			log.Error().Int("failed", failed).Int("total", len(uris)).Msg("Some statements failed")
			os.Exit(1)
		}
	}
}

// runners holds one pipeline per statement format.
type runners struct {
	pdf *pipeline.Runner
	ofx *pipeline.Runner
}

func buildRunners(ctx context.Context, cfg *config.Config) (*runners, error) {
	extractor, err := pdftext.New(cfg.BackendOrder)
	if err != nil {
		return nil, err
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
		return nil, err
	}

	return &runners{
		pdf: pipeline.NewRunner(pipeline.NewStatementPipeline(extractor, structurer, cfg)),
		ofx: pipeline.NewRunner(pipeline.NewOFXPipeline(cfg)),
	}, nil
}

func fetchDocument(ctx context.Context, gcs *storage.GCS, uri string) (*domain.Document, error) {
	data, err := gcs.Fetch(ctx, uri)
	if err != nil {
		return nil, err
	}
	return domain.NewDocument(storage.Filename(uri), data), nil
}

// processOne runs a single statement through the pipeline for its format and
// prints the result. A non-nil return means the statement failed.
func processOne(ctx context.Context, r *runners, doc *domain.Document, format domain.Format, csvPath string, log zerolog.Logger) error {
	if format == "" {
		format = domain.DetectFormat(doc.Filename, doc.Data)
	}

	var runner *pipeline.Runner
	switch format {
	case domain.FormatPDF:
		runner = r.pdf
	case domain.FormatOFX:
		runner = r.ofx
	default:
		log.Error().Str("file", doc.Filename).Msg("Cannot tell whether this is a PDF or an OFX statement; pass -format")
		return fmt.Errorf("unknown statement format for %s", doc.Filename)
	}

	res, err := runner.Run(ctx, doc)
	if err != nil {
		log.Error().Err(err).Str("file", doc.Filename).Msg("Processing failed")
		return err
	}

	fmt.Printf("\n%s\n", doc.Filename)
	if err := export.WriteTable(os.Stdout, res); err != nil {
		return err
	}

	if csvPath != "" {
		f, err := os.Create(csvPath)
		if err != nil {
			log.Error().Err(err).Str("csv", csvPath).Msg("Failed to create CSV file")
			return err
		}
		if err := export.WriteCSV(f, res); err != nil {
			f.Close()
			log.Error().Err(err).Str("csv", csvPath).Msg("Failed to write CSV")
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Printf("Wrote %d records to %s\n", len(res.Records), csvPath)
	}

	return nil
}
