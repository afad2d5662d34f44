package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yangatekane/bh-ea-dashboard/internal/ert"
)

var (
	ertOutDir  string
	ertCommand string
	ertTimeout int
)

var ertCmd = &cobra.Command{
	Use:   "ert <input>",
	Short: "Render an ERT resistivity section from a sounding file",
	Long: `Runs the configured inversion program when available and falls back to the
built-in renderer otherwise. Delimited x/z/resistivity tables are rendered as
measured; anything else produces a synthetic section clearly labelled as such.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		command, timeout := ertCommand, ertTimeout
		if c, err := requireConfig(); err == nil {
			if !cmd.Flags().Changed("inversion-command") {
				command = c.ERT.InversionCommand
			}
			if !cmd.Flags().Changed("timeout") {
				timeout = c.ERT.TimeoutSec
			}
		}
		log := cliLogger()
		defer log.Sync()

		proc := ert.New(command, timeout, log)
		art, ok := ert.Process(cmd.Context(), proc, args[0], ertOutDir)
		if !ok {
			return fmt.Errorf("ERT processing failed for %s", args[0])
		}
		if art.Provenance == ert.ProvenanceSynthetic {
			fmt.Fprintln(cmd.ErrOrStderr(), "⚠ Input could not be inverted; the section is synthetic, not measured.")
		}
		return encodeJSON(cmd, map[string]any{
			"image":      art.ImagePath,
			"model":      art.ModelPath,
			"metadata":   art.MetadataPath,
			"provenance": art.Provenance,
			"rows":       art.Rows,
			"cols":       art.Cols,
		})
	},
}

func init() {
	rootCmd.AddCommand(ertCmd)
	ertCmd.Flags().StringVar(&ertOutDir, "out", ".", "output directory")
	ertCmd.Flags().StringVar(&ertCommand, "inversion-command", "", "external inversion program (overrides config)")
	ertCmd.Flags().IntVar(&ertTimeout, "timeout", 300, "inversion timeout in seconds")
}
