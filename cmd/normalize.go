package cmd

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yangatekane/bh-ea-dashboard/internal/survey"
	"github.com/yangatekane/bh-ea-dashboard/internal/utils"
)

var normOutput string

var normalizeCmd = &cobra.Command{
	Use:   "normalize <file>",
	Short: "Normalize a survey CSV/XLSX into the canonical table",
	Long: `Reads a borehole survey export (semicolon or comma separated, or .xlsx),
canonicalizes headers, coerces numeric columns and derives the hydraulic and
cost indicators. The canonical CSV is written to stdout or --output.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tbl, err := survey.Normalize(args[0])
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := tbl.WriteCSV(&buf); err != nil {
			return err
		}
		if normOutput == "" {
			_, err := cmd.OutOrStdout().Write(buf.Bytes())
			return err
		}
		if err := utils.SafeWriteFile(normOutput, buf.Bytes()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Normalized %d records → %s\n", tbl.Len(), normOutput)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(normalizeCmd)
	normalizeCmd.Flags().StringVarP(&normOutput, "output", "o", "", "write the canonical CSV to this path")
}
