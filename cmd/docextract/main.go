package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/docextract/internal/cli"
	"github.com/cloo-solutions/docextract/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "docextract",
		Short: "docextract CLI - entity extraction from compliance and legal documents",
		Long: `docextract extracts individual and organization profiles from text documents
with a local language model.

Local extraction reads the model settings from DOCEXTRACT_MODEL_* variables.
Remote commands talk to a docextractd server:
  DOCEXTRACT_API_KEY   API key for authentication
  DOCEXTRACT_API_URL   API base URL (default: http://localhost:8080)`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-key", "", "API key for authentication (overrides env)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.ExtractCmd())
	rootCmd.AddCommand(client.SegmentCmd())
	rootCmd.AddCommand(client.SubmitCmd())
	rootCmd.AddCommand(client.JobCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
