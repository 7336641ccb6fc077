// Package reporting builds sweep summaries from stored outcomes and
// renders them as Markdown or CSV. Summaries stay at the level of
// counts; per-trade rows are exported raw for downstream analysis.
package reporting

import (
	"context"
	"sort"
	"strings"
	"time"

	"signal-sweep-lab/internal/domain"
	"signal-sweep-lab/internal/storage"
)

// Generator produces reports from stored outcomes.
type Generator struct {
	outcomeStore storage.OutcomeStore
	now          func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a report generator.
func NewGenerator(outcomeStore storage.OutcomeStore) *Generator {
	return &Generator{
		outcomeStore: outcomeStore,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a complete sweep report from all stored outcomes.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	all, err := g.outcomeStore.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	var simulated, sentinels []*domain.TradeOutcome
	for _, o := range all {
		if o.IsSentinel() {
			sentinels = append(sentinels, o)
		} else {
			simulated = append(simulated, o)
		}
	}

	signalSet := make(map[int64]struct{})
	paramSet := make(map[domain.ParameterSet]struct{})
	for _, o := range all {
		signalSet[o.SignalID] = struct{}{}
	}
	for _, o := range simulated {
		paramSet[o.Params] = struct{}{}
	}

	return &Report{
		GeneratedAt:        g.now(),
		SignalCount:        len(signalSet),
		ParameterSetCount:  len(paramSet),
		DataSummary:        buildDataSummary(simulated, sentinels),
		ParameterBreakdown: buildParameterBreakdown(simulated),
		ExitReasons:        buildExitReasons(simulated),
		SkippedSignals:     buildSkippedSignals(sentinels),
	}, nil
}

func buildDataSummary(simulated, sentinels []*domain.TradeOutcome) DataSummary {
	summary := DataSummary{
		TotalOutcomes:     len(simulated) + len(sentinels),
		SimulatedOutcomes: len(simulated),
		SentinelOutcomes:  len(sentinels),
	}
	if len(simulated) > 0 {
		summary.DateRangeStart = simulated[0].EntryTime
		summary.DateRangeEnd = simulated[0].EntryTime
		for _, o := range simulated {
			if o.EntryTime < summary.DateRangeStart {
				summary.DateRangeStart = o.EntryTime
			}
			if o.EntryTime > summary.DateRangeEnd {
				summary.DateRangeEnd = o.EntryTime
			}
		}
	}
	return summary
}

func buildParameterBreakdown(simulated []*domain.TradeOutcome) []ParameterBreakdownRow {
	groups := make(map[domain.ParameterSet]*ParameterBreakdownRow)
	for _, o := range simulated {
		row := groups[o.Params]
		if row == nil {
			row = &ParameterBreakdownRow{
				StopLossPct:           o.Params.StopLossPct,
				TrailingActivationPct: o.Params.TrailingActivationPct,
				TrailingCallbackPct:   o.Params.TrailingCallbackPct,
			}
			groups[o.Params] = row
		}
		row.Trades++
		switch {
		case o.ExitReason == domain.ExitReasonStopLoss:
			row.StopLosses++
		case o.ExitReason == domain.ExitReasonTakeProfit:
			row.TakeProfits++
		case o.ExitReason == domain.ExitReasonTrailingStop:
			row.TrailingStops++
		case o.ExitReason == domain.ExitReasonTimeoutForced:
			row.Forced++
		case strings.HasPrefix(o.ExitReason, "TIMEOUT_"):
			row.Timeouts++
		}
	}

	rows := make([]ParameterBreakdownRow, 0, len(groups))
	for _, row := range groups {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].StopLossPct != rows[j].StopLossPct {
			return rows[i].StopLossPct < rows[j].StopLossPct
		}
		if rows[i].TrailingActivationPct != rows[j].TrailingActivationPct {
			return rows[i].TrailingActivationPct < rows[j].TrailingActivationPct
		}
		return rows[i].TrailingCallbackPct < rows[j].TrailingCallbackPct
	})
	return rows
}

func buildExitReasons(simulated []*domain.TradeOutcome) []ExitReasonRow {
	counts := make(map[string]int)
	for _, o := range simulated {
		counts[o.ExitReason]++
	}

	rows := make([]ExitReasonRow, 0, len(counts))
	for reason, count := range counts {
		rows = append(rows, ExitReasonRow{Reason: reason, Count: count})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Reason < rows[j].Reason
	})
	return rows
}

func buildSkippedSignals(sentinels []*domain.TradeOutcome) []SkippedSignalRow {
	rows := make([]SkippedSignalRow, len(sentinels))
	for i, o := range sentinels {
		rows[i] = SkippedSignalRow{
			SignalID: o.SignalID,
			Symbol:   o.Symbol,
			Reason:   o.ExitReason,
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].SignalID < rows[j].SignalID
	})
	return rows
}
