package reporting

import (
	"fmt"
	"strings"

	"signal-sweep-lab/internal/domain"
)

// RenderOutcomesCSV renders raw outcomes as a CSV string, one row per
// (signal, parameter set). This is the export surface for downstream
// analysis; sentinel rows carry only the skip reason.
func RenderOutcomesCSV(outcomes []*domain.TradeOutcome) string {
	var sb strings.Builder

	sb.WriteString("outcome_id,signal_id,symbol,direction,")
	sb.WriteString("stop_loss_pct,trailing_activation_pct,trailing_callback_pct,")
	sb.WriteString("entry_price,entry_time,exit_reason,exit_price,exit_time,pnl_pct,")
	sb.WriteString("max_run_up_pct,max_drawdown_pct,abs_max_price,abs_min_price,")
	sb.WriteString("time_to_max_ms,time_to_min_ms,hold_bars\n")

	for _, o := range outcomes {
		sb.WriteString(fmt.Sprintf("%s,%d,%s,%s,%.4f,%.4f,%.4f,%.8f,%d,%s,%.8f,%d,%.6f,%.6f,%.6f,%.8f,%.8f,%d,%d,%d\n",
			o.OutcomeID,
			o.SignalID,
			o.Symbol,
			o.Direction,
			o.Params.StopLossPct,
			o.Params.TrailingActivationPct,
			o.Params.TrailingCallbackPct,
			o.EntryPrice,
			o.EntryTime,
			o.ExitReason,
			o.ExitPrice,
			o.ExitTime,
			o.PnlPct,
			o.MaxRunUpPct,
			o.MaxDrawdownPct,
			o.AbsoluteMaxPrice,
			o.AbsoluteMinPrice,
			o.TimeToMaxMs,
			o.TimeToMinMs,
			o.HoldBars,
		))
	}

	return sb.String()
}

// RenderBreakdownCSV renders per-parameter-set exit counts as CSV.
func RenderBreakdownCSV(rows []ParameterBreakdownRow) string {
	var sb strings.Builder

	sb.WriteString("stop_loss_pct,trailing_activation_pct,trailing_callback_pct,")
	sb.WriteString("trades,stop_losses,take_profits,trailing_stops,timeouts,forced\n")

	for _, row := range rows {
		sb.WriteString(fmt.Sprintf("%.2f,%.2f,%.2f,%d,%d,%d,%d,%d,%d\n",
			row.StopLossPct,
			row.TrailingActivationPct,
			row.TrailingCallbackPct,
			row.Trades,
			row.StopLosses,
			row.TakeProfits,
			row.TrailingStops,
			row.Timeouts,
			row.Forced,
		))
	}

	return sb.String()
}
