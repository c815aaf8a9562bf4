// Package prepare performs every aggregation the narrative needs and freezes
// the result into a narrative.Input.
package prepare

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/marketlens/internal/insight"
	"github.com/sells-group/marketlens/internal/model"
	"github.com/sells-group/marketlens/internal/narrative"
)

// Store is the snapshot range query the preparer reads from.
type Store interface {
	ListExecutiveSnapshots(ctx context.Context, workspaceID string, start, end time.Time) ([]model.ExecutiveSnapshot, error)
	ListChannelSnapshots(ctx context.Context, workspaceID string, start, end time.Time) ([]model.ChannelSnapshot, error)
}

// Preparer builds narrative inputs from stored snapshots.
type Preparer struct {
	store Store
}

// NewPreparer creates a Preparer.
func NewPreparer(st Store) *Preparer {
	return &Preparer{store: st}
}

// Prepare aggregates the window, the preceding window and each channel, and
// maps insights into the DTO. It returns nil when the window has no
// executive snapshots.
func (p *Preparer) Prepare(ctx context.Context, workspaceID string, start, end time.Time, insights []model.Insight) (*narrative.Input, error) {
	cur, prev, err := insight.Windows(start, end)
	if err != nil {
		return nil, err
	}

	curSnaps, err := p.store.ListExecutiveSnapshots(ctx, workspaceID, cur.Start, cur.End)
	if err != nil {
		return nil, eris.Wrap(err, "prepare: executive snapshots")
	}
	if len(curSnaps) == 0 {
		return nil, nil
	}
	totals := insight.Summarize(curSnaps)

	in := &narrative.Input{
		Period: Period(cur.Start, cur.End),
		Executive: narrative.Executive{
			Revenue:    totals.Revenue,
			Spend:      totals.Spend,
			Orders:     totals.Orders,
			ROAS:       roas(totals.AdsRevenue, totals.Spend),
			Confidence: totals.Confidence.Upper(),
		},
		Channels: []narrative.Channel{},
		Insights: make([]narrative.InsightIn, 0, len(insights)),
	}

	prevSnaps, err := p.store.ListExecutiveSnapshots(ctx, workspaceID, prev.Start, prev.End)
	if err != nil {
		return nil, eris.Wrap(err, "prepare: previous executive snapshots")
	}
	if len(prevSnaps) > 0 {
		pt := insight.Summarize(prevSnaps)
		in.Executive.Previous = &narrative.Previous{
			Revenue:      pt.Revenue,
			Spend:        pt.Spend,
			Orders:       pt.Orders,
			ROAS:         roas(pt.AdsRevenue, pt.Spend),
			RevenueTrend: trend(totals.Revenue, pt.Revenue),
			SpendTrend:   trend(totals.Spend, pt.Spend),
		}
	}

	chanSnaps, err := p.store.ListChannelSnapshots(ctx, workspaceID, cur.Start, cur.End)
	if err != nil {
		return nil, eris.Wrap(err, "prepare: channel snapshots")
	}
	for _, c := range insight.SummarizeChannels(chanSnaps) {
		in.Channels = append(in.Channels, narrative.Channel{
			Platform: string(c.Platform),
			Revenue:  c.Revenue,
			Spend:    c.Spend,
			Orders:   c.Orders,
			ROAS:     roas(c.AdsRevenue, c.Spend),
		})
	}

	for _, i := range insights {
		var points *float64
		if i.Change.Percentage != nil {
			v := *i.Change.Percentage * 100
			points = &v
		}
		in.Insights = append(in.Insights, narrative.InsightIn{
			Index:             len(in.Insights) + 1,
			Type:              string(i.Type),
			Metric:            i.Metric,
			Direction:         string(i.Change.Direction),
			Absolute:          i.Change.Absolute,
			PercentagePoints:  points,
			LikelyCause:       i.LikelyCause,
			Confidence:        string(i.Confidence),
			RecommendedAction: i.RecommendedAction,
			Platform:          string(i.Platform),
		})
	}

	return in, nil
}

// Period formats an inclusive window the way Indonesian dates are written.
func Period(start, end time.Time) string {
	return fmt.Sprintf("%s – %s", idDate(start), idDate(end))
}

func idDate(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%d/%d/%d", t.Day(), int(t.Month()), t.Year())
}

func roas(adsRevenue, spend float64) *float64 {
	if spend <= 0 {
		return nil
	}
	v := adsRevenue / spend
	return &v
}

func trend(cur, prev float64) narrative.Trend {
	switch {
	case cur > prev:
		return narrative.TrendUp
	case cur < prev:
		return narrative.TrendDown
	default:
		return narrative.TrendFlat
	}
}
