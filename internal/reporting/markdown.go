package reporting

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// RenderMarkdown renders the report as a Markdown string. Counts use
// grouped digits so large sweeps stay readable.
func RenderMarkdown(r *Report) string {
	p := message.NewPrinter(language.English)
	var sb strings.Builder

	// Header
	sb.WriteString("# Sweep Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(p.Sprintf("Signals: %d | Parameter sets: %d\n\n", r.SignalCount, r.ParameterSetCount))

	// Data Summary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(p.Sprintf("| Total Outcomes | %d |\n", r.DataSummary.TotalOutcomes))
	sb.WriteString(p.Sprintf("| Simulated Outcomes | %d |\n", r.DataSummary.SimulatedOutcomes))
	sb.WriteString(p.Sprintf("| Sentinel Outcomes | %d |\n", r.DataSummary.SentinelOutcomes))
	sb.WriteString(fmt.Sprintf("| Entry Range Start (ms) | %d |\n", r.DataSummary.DateRangeStart))
	sb.WriteString(fmt.Sprintf("| Entry Range End (ms) | %d |\n", r.DataSummary.DateRangeEnd))
	sb.WriteString("\n")

	// Per-parameter-set exit counts
	sb.WriteString("## Parameter Breakdown\n\n")
	if len(r.ParameterBreakdown) > 0 {
		sb.WriteString("| SL% | Act% | CB% | Trades | SL | TP | TS | Timeout | Forced |\n")
		sb.WriteString("|-----|------|-----|--------|----|----|----|---------|--------|\n")
		for _, row := range r.ParameterBreakdown {
			sb.WriteString(p.Sprintf("| %.2f | %.2f | %.2f | %d | %d | %d | %d | %d | %d |\n",
				row.StopLossPct, row.TrailingActivationPct, row.TrailingCallbackPct,
				row.Trades, row.StopLosses, row.TakeProfits, row.TrailingStops,
				row.Timeouts, row.Forced))
		}
	} else {
		sb.WriteString("No simulated outcomes available.\n")
	}
	sb.WriteString("\n")

	// Exit reasons
	sb.WriteString("## Exit Reasons\n\n")
	if len(r.ExitReasons) > 0 {
		sb.WriteString("| Reason | Count |\n")
		sb.WriteString("|--------|-------|\n")
		for _, row := range r.ExitReasons {
			sb.WriteString(p.Sprintf("| %s | %d |\n", row.Reason, row.Count))
		}
	} else {
		sb.WriteString("No exit reason data available.\n")
	}
	sb.WriteString("\n")

	// Skipped signals
	sb.WriteString("## Skipped Signals\n\n")
	if len(r.SkippedSignals) > 0 {
		sb.WriteString("| Signal | Symbol | Reason |\n")
		sb.WriteString("|--------|--------|--------|\n")
		for _, s := range r.SkippedSignals {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s |\n",
				s.SignalID, s.Symbol, s.Reason))
		}
	} else {
		sb.WriteString("No skipped signals.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
