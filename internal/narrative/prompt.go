package narrative

import (
	"strings"

	"github.com/yangatekane/bh-ea-dashboard/internal/utils"
)

const systemPrompt = "You are an AI hydrogeologist and data interpreter for the Borehole Exploration Analytics (BH-EA) system. " +
	"You receive metadata JSON files and contour images from ERT/pumping analyses. " +
	"Tasks: (1) interpret hydro meaning (yield trends, transmissivity zones, anomalies), " +
	"(2) summarize key metrics (Avg Yield/Cost/Transmissivity/Storage/Efficiency), " +
	"(3) identify favorable and problematic zones, " +
	"(4) give actionable optimization recommendations. Keep it concise and structured."

const responseContract = `Output strictly as compact JSON with these keys:
{
  "interpretation_summary": "string",
  "favorable_sites": ["optional list of site labels or indices"],
  "problematic_sites": ["optional list of site labels or indices"],
  "recommendations": ["bullet items"]
}
`

// maxSummaryTokens bounds the inlined dataset summary.
const maxSummaryTokens = 2000

// Bundle is what the narrative service is told about a session.
type Bundle struct {
	MetadataURL    string
	ReportURL      string
	DatasetSummary string
	// Provenance of the geophysical raster behind ReportURL, if any.
	Provenance string
}

// BuildPrompt returns the system and user prompts plus a token estimate.
func BuildPrompt(b Bundle) (system, user string, tokens int) {
	var sb strings.Builder
	sb.WriteString("Input metadata file:\n")
	sb.WriteString(orNone(b.MetadataURL))
	sb.WriteString("\n\nInput contour report:\n")
	sb.WriteString(orNone(b.ReportURL))
	sb.WriteString("\n")
	if b.Provenance == "synthetic" {
		sb.WriteString("Note: the contour report was derived from an illustrative synthetic field, not measured data. Do not draw site conclusions from it.\n")
	}
	sb.WriteString("\nDataset summary (JSON):\n")
	sb.WriteString(utils.TruncateToTokenLimit(strings.TrimSpace(b.DatasetSummary), maxSummaryTokens))
	sb.WriteString("\n\n")
	sb.WriteString(responseContract)

	user = sb.String()
	return systemPrompt, user, utils.CountTokens(systemPrompt) + utils.CountTokens(user)
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}
