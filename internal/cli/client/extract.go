package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/docextract/internal/cli"
	"github.com/cloo-solutions/docextract/internal/config"
	"github.com/cloo-solutions/docextract/internal/domain"
	"github.com/cloo-solutions/docextract/internal/service"
	"github.com/cloo-solutions/docextract/internal/storage"
)

type extractOptions struct {
	InputFile     string
	OutputFile    string
	DocumentName  string
	Concurrency   int
	MaxChunkWords int
	Mode          string
}

// ExtractCmd runs the extraction pipeline locally against the configured model.
func ExtractCmd() *cobra.Command {
	var opts extractOptions

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract entities from a document",
		Long: `Reads a text document, extracts individual and organization profiles with the
configured language model and writes them as JSON.

--output-file accepts a local path or s3://bucket/key (requires DOCEXTRACT_S3_* settings).`,
		Example: `  docextract extract --input-file report.txt --output-file entities.json --document-name "Q3 Report"`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return runExtract(cmd.Context(), cmd.OutOrStdout(), cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.InputFile, "input-file", "", "Path to the input text file")
	cmd.Flags().StringVar(&opts.OutputFile, "output-file", "", "Path or s3://bucket/key to save the output JSON")
	cmd.Flags().StringVar(&opts.DocumentName, "document-name", domain.DefaultDocumentName, "Source document name recorded in entity metadata")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "Maximum concurrent model requests (default from DOCEXTRACT_CONCURRENCY)")
	cmd.Flags().IntVar(&opts.MaxChunkWords, "max-chunk-words", 0, "Word budget per prose chunk (default from DOCEXTRACT_MAX_CHUNK_WORDS)")
	cmd.Flags().StringVar(&opts.Mode, "mode", "", "Extraction mode: chunked or single (default from DOCEXTRACT_EXTRACTION_MODE)")
	_ = cmd.MarkFlagRequired("input-file")
	_ = cmd.MarkFlagRequired("output-file")

	return cmd
}

func runExtract(ctx context.Context, out io.Writer, cfg *config.Config, opts extractOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger, closer, err := cli.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	fmt.Fprintf(out, "Reading content from: %s\n", opts.InputFile)
	content, err := os.ReadFile(opts.InputFile)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}

	writer, err := resultWriter(ctx, cfg, opts.OutputFile)
	if err != nil {
		return err
	}

	docs, err := cli.NewDocumentService(cfg, cli.PipelineOptions{
		Concurrency:   opts.Concurrency,
		MaxChunkWords: opts.MaxChunkWords,
		Mode:          domain.ExtractionMode(opts.Mode),
	}, logger)
	if err != nil {
		return err
	}

	output, err := docs.Process(ctx, service.ProcessInput{
		Text:         string(content),
		DocumentName: opts.DocumentName,
	})
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	if n := len(output.Run.FailedChunks); n > 0 {
		fmt.Fprintf(out, "Warning: %d of %d chunks failed and were skipped\n", n, output.Run.ChunkCount)
	}

	if len(output.Result.Entities) == 0 {
		fmt.Fprintln(out, "No entities were extracted from the document.")
		return nil
	}

	fmt.Fprintf(out, "Saving %d extracted entities to: %s\n", len(output.Result.Entities), opts.OutputFile)
	if err := writer.Write(ctx, output.Result); err != nil {
		return fmt.Errorf("failed to save output: %w", err)
	}
	fmt.Fprintln(out, "Process completed successfully!")

	return nil
}

// resultWriter picks a file or S3 sink for target
func resultWriter(ctx context.Context, cfg *config.Config, target string) (storage.ResultWriter, error) {
	if !storage.IsS3URI(target) {
		return &storage.FileWriter{Path: target}, nil
	}

	bucket, key, err := storage.ParseS3URI(target)
	if err != nil {
		return nil, err
	}
	if !cfg.HasS3() {
		return nil, fmt.Errorf("%w: set DOCEXTRACT_S3_ENDPOINT and credentials to write to %s", domain.ErrStorageNotConfigured, target)
	}

	s3cfg := *cfg
	s3cfg.S3Bucket = bucket
	client, err := cli.NewS3Client(ctx, &s3cfg)
	if err != nil {
		return nil, err
	}
	return &storage.S3Writer{Client: client, Key: key}, nil
}

// SegmentCmd previews how a document is segmented and chunked.
func SegmentCmd() *cobra.Command {
	var (
		inputFile     string
		maxChunkWords int
		mode          string
	)

	cmd := &cobra.Command{
		Use:   "segment",
		Short: "Show the segments and chunks of a document",
		Long:  "Prints the segments and extraction chunks of a document as JSON without calling the model.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return runSegment(cmd.OutOrStdout(), cfg, inputFile, maxChunkWords, domain.ExtractionMode(mode))
		},
	}

	cmd.Flags().StringVar(&inputFile, "input-file", "", "Path to the input text file")
	cmd.Flags().IntVar(&maxChunkWords, "max-chunk-words", 0, "Word budget per prose chunk (default from DOCEXTRACT_MAX_CHUNK_WORDS)")
	cmd.Flags().StringVar(&mode, "mode", "", "Extraction mode: chunked or single")
	_ = cmd.MarkFlagRequired("input-file")

	return cmd
}

type segmentOutput struct {
	Segments []domain.Segment `json:"segments"`
	Chunks   []string         `json:"chunks"`
}

func runSegment(out io.Writer, cfg *config.Config, inputFile string, maxChunkWords int, mode domain.ExtractionMode) error {
	content, err := os.ReadFile(inputFile)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}

	docs, err := cli.NewDocumentService(cfg, cli.PipelineOptions{MaxChunkWords: maxChunkWords}, nil)
	if err != nil {
		return err
	}

	segments, chunks, err := docs.Chunks(string(content), mode)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(segmentOutput{Segments: segments, Chunks: chunks}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode segments: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}
