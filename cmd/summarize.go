package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/yangatekane/bh-ea-dashboard/internal/metrics"
	"github.com/yangatekane/bh-ea-dashboard/internal/survey"
	"github.com/yangatekane/bh-ea-dashboard/internal/utils"
)

var (
	sumOutput      string
	sumFavCostMax  float64
	sumFavYieldMin float64
	sumProbYield   float64
	sumProbCostMin float64
	sumCharts      bool
)

// fileSummary is one entry of the summarize output.
type fileSummary struct {
	File    string          `json:"file"`
	Error   string          `json:"error,omitempty"`
	Metrics *metrics.Bundle `json:"metrics,omitempty"`
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize <files...>",
	Short: "Compute dashboard metrics for one or more survey files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		th := metrics.DefaultThresholds()
		if c, err := requireConfig(); err == nil {
			th = metrics.FromConfig(c.Thresholds)
		}
		th.ApplyForm(thresholdFlags(cmd))

		out := make([]fileSummary, 0, len(files))
		failed := 0
		for i, f := range files {
			fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] %s\n", i+1, len(files), filepath.Base(f))
			tbl, err := survey.Normalize(f)
			if err != nil {
				failed++
				out = append(out, fileSummary{File: f, Error: err.Error()})
				continue
			}
			b := metrics.Aggregate(tbl, th)
			if !sumCharts {
				b.Charts = metrics.Charts{}
				b.Favorable, b.Problematic = nil, nil
			}
			out = append(out, fileSummary{File: f, Metrics: b})
		}

		var payload any = out
		if len(out) == 1 {
			payload = out[0]
		}
		data, err := utils.PrettyJSON(payload)
		if err != nil {
			return err
		}
		if sumOutput != "" {
			if err := utils.SafeWriteFile(sumOutput, data); err != nil {
				return err
			}
		} else if _, err := cmd.OutOrStdout().Write(append(data, '\n')); err != nil {
			return err
		}
		if failed == len(files) {
			return fmt.Errorf("no file could be summarized")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
	summarizeCmd.Flags().StringVarP(&sumOutput, "output", "o", "", "write JSON to this path instead of stdout")
	summarizeCmd.Flags().Float64Var(&sumFavCostMax, metrics.FieldFavCostMax, 0, "favorable cost ceiling (USD)")
	summarizeCmd.Flags().Float64Var(&sumFavYieldMin, metrics.FieldFavYieldMin, 0, "favorable yield floor (L/s)")
	summarizeCmd.Flags().Float64Var(&sumProbYield, metrics.FieldProbYieldMax, 0, "problematic yield ceiling (L/s)")
	summarizeCmd.Flags().Float64Var(&sumProbCostMin, metrics.FieldProbCostMin, 0, "problematic cost floor (USD)")
	summarizeCmd.Flags().BoolVar(&sumCharts, "charts", false, "include chart series and per-row masks")
}

// thresholdFlags exposes explicitly set threshold flags the way the dashboard
// form does, so both paths share Thresholds.ApplyForm.
func thresholdFlags(cmd *cobra.Command) func(string) string {
	return func(name string) string {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			return ""
		}
		v, err := strconv.ParseFloat(f.Value.String(), 64)
		if err != nil {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
}

// encodeJSON is used by commands that stream a single value.
func encodeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
