package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yangatekane/bh-ea-dashboard/internal/analysis"
	"github.com/yangatekane/bh-ea-dashboard/internal/survey"
	"github.com/yangatekane/bh-ea-dashboard/internal/utils"
)

var (
	profGroupBy    string
	profOutlierThr float64
	profJSON       bool
	profOutput     string
)

var profileCmd = &cobra.Command{
	Use:   "profile <file>",
	Short: "Profile a survey table column by column",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tbl, err := survey.Normalize(args[0])
		if err != nil {
			return err
		}
		opt := analysis.DefaultOptions()
		if cmd.Flags().Changed("group-by") {
			opt.GroupBy = survey.CleanHeader(profGroupBy)
		}
		if cmd.Flags().Changed("outlier-threshold") {
			opt.OutlierThreshold = profOutlierThr
		}
		p := analysis.Describe(tbl, opt)

		var data []byte
		if profJSON {
			if data, err = utils.PrettyJSON(p); err != nil {
				return err
			}
		} else {
			data = []byte(p.Markdown())
		}
		if profOutput == "" {
			_, err := cmd.OutOrStdout().Write(data)
			return err
		}
		if err := utils.SafeWriteFile(profOutput, data); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Profile written to %s\n", profOutput)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.Flags().StringVar(&profGroupBy, "group-by", "", "text column to group by (default district)")
	profileCmd.Flags().Float64Var(&profOutlierThr, "outlier-threshold", 3.5, "robust |z| above which values count as outliers (0 disables)")
	profileCmd.Flags().BoolVar(&profJSON, "json", false, "emit JSON instead of markdown")
	profileCmd.Flags().StringVarP(&profOutput, "output", "o", "", "write the profile to this path")
}
