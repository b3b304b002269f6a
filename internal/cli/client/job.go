package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/docextract/internal/api/handlers"
	"github.com/cloo-solutions/docextract/internal/domain"
	"github.com/cloo-solutions/docextract/internal/storage"
)

type submitOptions struct {
	InputFile    string
	DocumentName string
	Mode         string
	Upload       bool
}

// SubmitCmd queues a document on a docextractd server.
func SubmitCmd() *cobra.Command {
	var opts submitOptions

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Queue a document for extraction on the server",
		Long: `Submits a document as an asynchronous extraction job.

With --upload the file is sent to object storage through a presigned URL and the
job references it by key; otherwise the text is sent inline.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runSubmit(cmd.Context(), cmd.OutOrStdout(), NewAPIClientWithCmd(cmd), opts, outputJSON)
		},
	}

	cmd.Flags().StringVar(&opts.InputFile, "input-file", "", "Path to the input text file")
	cmd.Flags().StringVar(&opts.DocumentName, "document-name", "", "Source document name (default: file name)")
	cmd.Flags().StringVar(&opts.Mode, "mode", "", "Extraction mode: chunked or single")
	cmd.Flags().BoolVar(&opts.Upload, "upload", false, "Upload the file to object storage instead of sending it inline")
	_ = cmd.MarkFlagRequired("input-file")

	return cmd
}

func runSubmit(ctx context.Context, out io.Writer, api *APIClient, opts submitOptions, outputJSON bool) error {
	docName := opts.DocumentName
	if docName == "" {
		docName = filepath.Base(opts.InputFile)
	}

	req := handlers.SubmitJobRequest{
		DocumentName: docName,
		Mode:         domain.ExtractionMode(opts.Mode),
	}

	if opts.Upload {
		contentType := mime.TypeByExtension(filepath.Ext(opts.InputFile))
		if contentType == "" {
			contentType = "text/plain"
		}

		resp, err := api.Post(ctx, "/uploads", handlers.CreateUploadRequest{
			Filename:    filepath.Base(opts.InputFile),
			ContentType: contentType,
		})
		if err != nil {
			return fmt.Errorf("failed to create upload: %w", err)
		}
		var target handlers.CreateUploadResponse
		if err := json.Unmarshal(resp.Data, &target); err != nil {
			return fmt.Errorf("failed to parse upload target: %w", err)
		}

		if err := api.UploadFile(ctx, target.UploadURL, opts.InputFile, contentType, nil); err != nil {
			return err
		}
		req.SourceKey = target.SourceKey
	} else {
		content, err := os.ReadFile(opts.InputFile)
		if err != nil {
			return fmt.Errorf("failed to read input file: %w", err)
		}
		req.Text = string(content)
	}

	resp, err := api.Post(ctx, "/jobs", req)
	if err != nil {
		return fmt.Errorf("failed to submit job: %w", err)
	}

	var job handlers.JobResponse
	if err := json.Unmarshal(resp.Data, &job); err != nil {
		return fmt.Errorf("failed to parse job: %w", err)
	}

	if outputJSON {
		return printJSON(out, job)
	}
	fmt.Fprintf(out, "Submitted job %s (%s)\n", job.ID, job.Status)
	return nil
}

// JobCmd groups commands that inspect extraction jobs.
func JobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect extraction jobs",
	}

	cmd.AddCommand(jobGetCmd())
	cmd.AddCommand(jobListCmd())
	cmd.AddCommand(jobResultCmd())

	return cmd
}

func jobGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <job_id>",
		Short: "Show a job's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runJobGet(cmd.Context(), cmd.OutOrStdout(), NewAPIClientWithCmd(cmd), args[0], outputJSON)
		},
	}
}

func runJobGet(ctx context.Context, out io.Writer, api *APIClient, id string, outputJSON bool) error {
	resp, err := api.Get(ctx, "/jobs/"+url.PathEscape(id))
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	var job handlers.JobResponse
	if err := json.Unmarshal(resp.Data, &job); err != nil {
		return fmt.Errorf("failed to parse job: %w", err)
	}

	if outputJSON {
		return printJSON(out, job)
	}

	fmt.Fprintf(out, "ID: %s\n", job.ID)
	fmt.Fprintf(out, "Document: %s\n", job.DocumentName)
	fmt.Fprintf(out, "Mode: %s\n", job.Mode)
	fmt.Fprintf(out, "Status: %s\n", job.Status)
	if job.Retries > 0 {
		fmt.Fprintf(out, "Retries: %d\n", job.Retries)
	}
	if job.Error != "" {
		fmt.Fprintf(out, "Error: %s\n", job.Error)
	}
	if job.RunID != "" {
		fmt.Fprintf(out, "Run: %s\n", job.RunID)
	}
	fmt.Fprintf(out, "Created: %s\n", job.CreatedAt)
	return nil
}

func jobListCmd() *cobra.Command {
	var (
		status string
		cursor string
		limit  int
	)

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List jobs, newest first",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runJobList(cmd.Context(), cmd.OutOrStdout(), NewAPIClientWithCmd(cmd), status, cursor, limit, outputJSON)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (pending, processing, completed, failed)")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Cursor from a previous page")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum jobs to return")

	return cmd
}

func runJobList(ctx context.Context, out io.Writer, api *APIClient, status, cursor string, limit int, outputJSON bool) error {
	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	path := "/jobs"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}

	resp, err := api.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	var page handlers.ListJobsResponse
	if err := json.Unmarshal(resp.Data, &page); err != nil {
		return fmt.Errorf("failed to parse jobs: %w", err)
	}

	if outputJSON {
		return printJSON(out, page)
	}

	if len(page.Items) == 0 {
		fmt.Fprintln(out, "No jobs found")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tMODE\tDOCUMENT\tCREATED")
	for _, job := range page.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", job.ID, job.Status, job.Mode, job.DocumentName, job.CreatedAt)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if page.HasMore {
		fmt.Fprintf(out, "\nMore results: --cursor %s\n", page.Cursor)
	}
	return nil
}

func jobResultCmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "result <job_id>",
		Short: "Fetch the entities of a completed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobResult(cmd.Context(), cmd.OutOrStdout(), NewAPIClientWithCmd(cmd), args[0], outputFile)
		},
	}

	cmd.Flags().StringVar(&outputFile, "output-file", "", "Write the entities JSON here instead of stdout")

	return cmd
}

func runJobResult(ctx context.Context, out io.Writer, api *APIClient, id, outputFile string) error {
	resp, err := api.Get(ctx, "/jobs/"+url.PathEscape(id)+"/result")
	if err != nil {
		return fmt.Errorf("failed to get job result: %w", err)
	}

	var result handlers.JobResultResponse
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse job result: %w", err)
	}

	extraction := &domain.ExtractionResult{Entities: result.Entities}

	if outputFile == "" {
		data, err := storage.EncodeResult(extraction)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}

	if len(extraction.Entities) == 0 {
		fmt.Fprintln(out, "No entities were extracted from the document.")
		return nil
	}

	if result.DownloadURL != "" {
		if err := api.DownloadFile(ctx, result.DownloadURL, outputFile); err != nil {
			return err
		}
		fmt.Fprintf(out, "Downloaded %d entities to: %s\n", len(extraction.Entities), outputFile)
		return nil
	}

	writer := &storage.FileWriter{Path: outputFile}
	if err := writer.Write(ctx, extraction); err != nil {
		return err
	}
	fmt.Fprintf(out, "Saved %d entities to: %s\n", len(extraction.Entities), outputFile)
	return nil
}

func printJSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}
