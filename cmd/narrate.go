package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yangatekane/bh-ea-dashboard/internal/metrics"
	"github.com/yangatekane/bh-ea-dashboard/internal/narrative"
	"github.com/yangatekane/bh-ea-dashboard/internal/survey"
)

var (
	narMetadataURL string
	narReportURL   string
	narProvenance  string
	narProvider    string
	narModel       string
	narPrintPrompt bool
)

var narrateCmd = &cobra.Command{
	Use:   "narrate [survey-file]",
	Short: "Request an AI interpretation of a survey and its reports",
	Long: `Builds the dataset summary from the survey file (or the demo table), attaches
the metadata and report URLs and asks the configured provider for a structured
interpretation. Use --print-prompt to inspect the prompt without sending it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		tbl := survey.Demo()
		if len(args) == 1 {
			if tbl, err = survey.Normalize(args[0]); err != nil {
				return err
			}
		}
		bundle := metrics.Aggregate(tbl, metrics.FromConfig(c.Thresholds))
		b := narrative.Bundle{
			MetadataURL:    narMetadataURL,
			ReportURL:      narReportURL,
			DatasetSummary: string(bundle.Summary()),
			Provenance:     narProvenance,
		}
		if narPrintPrompt {
			system, user, tokens := narrative.BuildPrompt(b)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "[SYSTEM]\n%s\n\n[USER]\n%s\n", system, user)
			fmt.Fprintf(cmd.ErrOrStderr(), "≈ %d prompt tokens\n", tokens)
			return nil
		}

		nc := c.Narrative
		if narProvider != "" {
			nc.Provider = narProvider
		}
		if narModel != "" {
			nc.Model = narModel
		}
		log := cliLogger()
		defer log.Sync()
		req, err := narrative.FromConfig(nc, c.HTTP, log)
		if errors.Is(err, narrative.ErrNotConfigured) {
			return fmt.Errorf("%w (set narrative.provider and its API key)", err)
		}
		if err != nil {
			return err
		}
		defer req.Close()
		interp, err := req.Request(cmd.Context(), b)
		if err != nil {
			return err
		}
		return encodeJSON(cmd, interp)
	},
}

func init() {
	rootCmd.AddCommand(narrateCmd)
	narrateCmd.Flags().StringVar(&narMetadataURL, "metadata-url", "", "URL of the dataset metadata JSON")
	narrateCmd.Flags().StringVar(&narReportURL, "report-url", "", "URL of the contour report image")
	narrateCmd.Flags().StringVar(&narProvenance, "provenance", "", "provenance of the report raster (measured, inverted, synthetic)")
	narrateCmd.Flags().StringVar(&narProvider, "provider", "", "override narrative.provider")
	narrateCmd.Flags().StringVar(&narModel, "model", "", "override narrative.model")
	narrateCmd.Flags().BoolVar(&narPrintPrompt, "print-prompt", false, "print the prompt and exit")
}
