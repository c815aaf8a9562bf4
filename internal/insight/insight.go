// Package insight compares a query window against the preceding window of
// equal length and emits typed, evidenced findings.
package insight

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/marketlens/internal/model"
)

// Fixed rule thresholds, as fractions.
const (
	revenueDrop      = 0.10
	roasShift        = 0.15
	spendShift       = 0.05
	roasStable       = 0.10
	channelDropShare = 0.50
)

// Likely causes and recommended actions emitted by the rule set.
const (
	CauseInefficientSpend  = "Increased spend on low-efficiency channels or campaigns"
	CauseDemandDrop        = "Lower demand or traffic volume (ROAS remained stable)"
	CauseScalingPotential  = "High efficiency with potential for scaling"
	CauseChannelRegression = "Performance regression isolated primarily to "

	ActionAuditScaling    = "Audit recent campaign scaling or broad targeting changes."
	ActionCheckInventory  = "Check inventory availability or seasonal demand trends."
	ActionIncreaseBudget  = "Consider increasing budget on top-performing campaigns."
	ActionChannelDeepDive = "Deep dive into %s campaign performance."
)

// Store is the snapshot range query the engine needs.
type Store interface {
	ListExecutiveSnapshots(ctx context.Context, workspaceID string, start, end time.Time) ([]model.ExecutiveSnapshot, error)
	ListChannelSnapshots(ctx context.Context, workspaceID string, start, end time.Time) ([]model.ChannelSnapshot, error)
}

// Engine generates insights from stored snapshots.
type Engine struct {
	store Store
}

// NewEngine creates an Engine.
func NewEngine(st Store) *Engine {
	return &Engine{store: st}
}

// Generate evaluates the rule set for [start, end] against the preceding
// window. It returns an empty slice when either window has no revenue.
func (e *Engine) Generate(ctx context.Context, workspaceID string, start, end time.Time) ([]model.Insight, error) {
	cur, prev, err := Windows(start, end)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(
		zap.String("workspace_id", workspaceID),
		zap.Time("start", cur.Start),
		zap.Time("end", cur.End),
	)

	curSnaps, err := e.store.ListExecutiveSnapshots(ctx, workspaceID, cur.Start, cur.End)
	if err != nil {
		return nil, eris.Wrap(err, "insight: current window")
	}
	curTotals := Summarize(curSnaps)
	if curTotals.Revenue == 0 {
		log.Debug("insight: no revenue in current window")
		return []model.Insight{}, nil
	}

	prevSnaps, err := e.store.ListExecutiveSnapshots(ctx, workspaceID, prev.Start, prev.End)
	if err != nil {
		return nil, eris.Wrap(err, "insight: previous window")
	}
	prevTotals := Summarize(prevSnaps)
	if prevTotals.Revenue == 0 {
		log.Debug("insight: no revenue in previous window")
		return []model.Insight{}, nil
	}

	insights := Evaluate(curTotals, prevTotals)

	if pctChange(curTotals.Revenue, prevTotals.Revenue) < -revenueDrop {
		curChannels, err := e.store.ListChannelSnapshots(ctx, workspaceID, cur.Start, cur.End)
		if err != nil {
			return nil, eris.Wrap(err, "insight: current channels")
		}
		prevChannels, err := e.store.ListChannelSnapshots(ctx, workspaceID, prev.Start, prev.End)
		if err != nil {
			return nil, eris.Wrap(err, "insight: previous channels")
		}
		overall := model.Worst(curTotals.Confidence, prevTotals.Confidence)
		if ci := channelRegression(SummarizeChannels(curChannels), SummarizeChannels(prevChannels),
			curTotals.Revenue-prevTotals.Revenue, overall); ci != nil {
			insights = append(insights, *ci)
		}
	}

	log.Info("insight: generated", zap.Int("count", len(insights)))
	return insights, nil
}

// Evaluate applies the executive rules to two non-empty windows. Each rule
// is independent; a window may trigger none, one or several.
func Evaluate(cur, prev Totals) []model.Insight {
	revAbs, revPct := change(cur.Revenue, prev.Revenue)
	_, spendPct := change(cur.Spend, prev.Spend)
	roasAbs, roasPct := change(cur.ROAS, prev.ROAS)
	confidence := model.Worst(cur.Confidence, prev.Confidence)

	out := []model.Insight{}

	if revPct < -revenueDrop && spendPct > spendShift && roasPct < -roasShift {
		out = append(out, model.Insight{
			Type:        model.InsightEfficiency,
			Metric:      model.MetricRevenue,
			Change:      model.Change{Direction: model.DirectionDown, Absolute: revAbs, Percentage: ptr(revPct)},
			LikelyCause: CauseInefficientSpend,
			Evidence: []string{
				"Spend increased by " + formatPct(spendPct),
				"ROAS dropped by " + formatPct(roasPct),
			},
			Confidence:        confidence,
			RecommendedAction: ActionAuditScaling,
		})
	}

	if revPct < -revenueDrop && spendPct < -spendShift && math.Abs(roasPct) < roasStable {
		out = append(out, model.Insight{
			Type:        model.InsightRisk,
			Metric:      model.MetricRevenue,
			Change:      model.Change{Direction: model.DirectionDown, Absolute: revAbs, Percentage: ptr(revPct)},
			LikelyCause: CauseDemandDrop,
			Evidence: []string{
				"Spend decreased aligned with revenue",
				"ROAS remained stable (" + formatPct(roasPct) + ")",
			},
			Confidence:        confidence,
			RecommendedAction: ActionCheckInventory,
		})
	}

	if roasPct > roasShift && spendPct <= spendShift {
		out = append(out, model.Insight{
			Type:        model.InsightOpportunity,
			Metric:      "roas",
			Change:      model.Change{Direction: model.DirectionUp, Absolute: roasAbs, Percentage: ptr(roasPct)},
			LikelyCause: CauseScalingPotential,
			Evidence: []string{
				"ROAS improved by " + formatPct(roasPct),
				"Spend did not increase significantly",
			},
			Confidence:        confidence,
			RecommendedAction: ActionIncreaseBudget,
		})
	}

	return out
}

// channelRegression attributes a revenue decline to the platform whose own
// decline is the largest share of the total, when that share exceeds half.
// totalDelta is negative.
func channelRegression(cur, prev []ChannelTotals, totalDelta float64, overall model.Confidence) *model.Insight {
	if totalDelta >= 0 {
		return nil
	}

	curRev := make(map[model.Platform]float64, len(cur))
	prevRev := make(map[model.Platform]float64, len(prev))
	var platforms []model.Platform
	seen := make(map[model.Platform]bool)
	for _, c := range cur {
		curRev[c.Platform] = c.Revenue
		if !seen[c.Platform] {
			seen[c.Platform] = true
			platforms = append(platforms, c.Platform)
		}
	}
	for _, c := range prev {
		prevRev[c.Platform] = c.Revenue
		if !seen[c.Platform] {
			seen[c.Platform] = true
			platforms = append(platforms, c.Platform)
		}
	}
	sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })

	var culprit model.Platform
	var culpritShare float64
	var evidence []string
	for _, p := range platforms {
		delta := curRev[p] - prevRev[p]
		if delta >= 0 {
			continue
		}
		share := delta / totalDelta
		if share <= channelDropShare {
			continue
		}
		evidence = append(evidence, fmt.Sprintf("%s revenue dropped by %.0f (%s of total decline)",
			p, math.Abs(delta), formatPct(share)))
		if share > culpritShare {
			culprit, culpritShare = p, share
		}
	}
	if culprit == "" {
		return nil
	}

	confidence := model.ConfidenceHigh
	if overall == model.ConfidenceLow {
		confidence = model.ConfidenceLow
	}
	return &model.Insight{
		Type:              model.InsightPerformance,
		Metric:            model.MetricRevenue,
		Change:            model.Change{Direction: model.DirectionDown, Absolute: totalDelta},
		LikelyCause:       CauseChannelRegression + string(culprit),
		Evidence:          evidence,
		Confidence:        confidence,
		RecommendedAction: fmt.Sprintf(ActionChannelDeepDive, culprit),
		Platform:          culprit,
	}
}

// change returns the absolute and fractional change; the fraction is 0
// when there is no baseline.
func change(cur, prev float64) (abs, pct float64) {
	abs = cur - prev
	if prev != 0 {
		pct = abs / prev
	}
	return abs, pct
}

func pctChange(cur, prev float64) float64 {
	_, pct := change(cur, prev)
	return pct
}

func formatPct(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

func ptr(v float64) *float64 { return &v }
