// Package snapshot rolls unified metric facts up into daily executive and
// channel snapshots.
package snapshot

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/marketlens/internal/kpi"
	"github.com/sells-group/marketlens/internal/model"
	"github.com/sells-group/marketlens/internal/store"
)

// Store is the subset of store.Store the builder needs.
type Store interface {
	ListFacts(ctx context.Context, filter store.FactFilter) ([]model.UnifiedMetricFact, error)
	SaveSnapshots(ctx context.Context, scope store.SnapshotScope, exec []model.ExecutiveSnapshot, channel []model.ChannelSnapshot) error
}

// Result holds the snapshots written by a build.
type Result struct {
	Executive []model.ExecutiveSnapshot `json:"executive"`
	Channel   []model.ChannelSnapshot   `json:"channel"`
}

// Builder recomputes snapshots from facts.
type Builder struct {
	store Store
	kpi   *kpi.Engine
}

// NewBuilder creates a Builder. A nil engine uses the default KPI registry.
func NewBuilder(st Store, engine *kpi.Engine) *Builder {
	if engine == nil {
		engine = kpi.NewEngine(nil)
	}
	return &Builder{store: st, kpi: engine}
}

// Build recomputes every snapshot for the workspace, or only the given day
// when date is non-nil, and replaces the stored rows in that scope.
func (b *Builder) Build(ctx context.Context, workspaceID string, date *time.Time) (*Result, error) {
	log := zap.L().With(zap.String("workspace_id", workspaceID))

	filter := store.FactFilter{WorkspaceID: workspaceID}
	scope := store.SnapshotScope{WorkspaceID: workspaceID}
	if date != nil {
		d := truncateDay(*date)
		filter.Start, filter.End = d, d
		scope.Date = &d
	}

	facts, err := b.store.ListFacts(ctx, filter)
	if err != nil {
		return nil, eris.Wrapf(err, "snapshot: list facts for %s", workspaceID)
	}

	res := b.Compute(workspaceID, facts)
	if err := b.store.SaveSnapshots(ctx, scope, res.Executive, res.Channel); err != nil {
		return nil, eris.Wrapf(err, "snapshot: save for %s", workspaceID)
	}

	log.Info("snapshot: rebuilt",
		zap.Int("facts", len(facts)),
		zap.Int("executive", len(res.Executive)),
		zap.Int("channel", len(res.Channel)),
	)
	return res, nil
}

// Compute aggregates facts without touching storage. Output is ordered by
// date, then platform, and is identical for identical input in any order.
func (b *Builder) Compute(workspaceID string, facts []model.UnifiedMetricFact) *Result {
	sorted := make([]model.UnifiedMetricFact, len(facts))
	copy(sorted, facts)
	sortFacts(sorted)

	type channelKey struct {
		date     time.Time
		platform model.Platform
	}

	var days []time.Time
	byDay := make(map[time.Time][]model.UnifiedMetricFact)
	var channelKeys []channelKey
	byChannel := make(map[channelKey][]model.UnifiedMetricFact)

	for _, f := range sorted {
		d := truncateDay(f.Date)
		if _, ok := byDay[d]; !ok {
			days = append(days, d)
		}
		byDay[d] = append(byDay[d], f)

		k := channelKey{date: d, platform: f.Platform}
		if _, ok := byChannel[k]; !ok {
			channelKeys = append(channelKeys, k)
		}
		byChannel[k] = append(byChannel[k], f)
	}

	res := &Result{
		Executive: make([]model.ExecutiveSnapshot, 0, len(days)),
		Channel:   make([]model.ChannelSnapshot, 0, len(channelKeys)),
	}
	for _, d := range days {
		res.Executive = append(res.Executive, model.ExecutiveSnapshot{
			WorkspaceID:     workspaceID,
			Date:            d,
			SnapshotMetrics: b.aggregate(byDay[d]),
		})
	}
	for _, k := range channelKeys {
		res.Channel = append(res.Channel, model.ChannelSnapshot{
			WorkspaceID:     workspaceID,
			Date:            k.date,
			Platform:        k.platform,
			SnapshotMetrics: b.aggregate(byChannel[k]),
		})
	}
	return res
}

var (
	adsContext     = model.MetricContext{Source: model.SourceAds, ReportType: "ads"}
	blendedContext = model.MetricContext{Source: model.SourceBlended, ReportType: "overview"}
)

// aggregate sums a group. Efficiency ratios come from the ads-sourced subset
// only; AOV comes from the whole group.
func (b *Builder) aggregate(facts []model.UnifiedMetricFact) model.SnapshotMetrics {
	all := sumMetrics(facts, func(model.UnifiedMetricFact) bool { return true })
	ads := sumMetrics(facts, func(f model.UnifiedMetricFact) bool { return f.Context.IsAds() })

	return model.SnapshotMetrics{
		Revenue:     all[model.MetricRevenue],
		AdsRevenue:  ads[model.MetricRevenue],
		Spend:       all[model.MetricSpend],
		Orders:      all[model.MetricOrders],
		Impressions: all[model.MetricImpressions],
		Clicks:      all[model.MetricClicks],
		ROAS:        b.kpi.Ptr(kpi.ROAS, ads, adsContext, model.GranularityDaily),
		CVR:         b.kpi.Ptr(kpi.CVR, ads, adsContext, model.GranularityDaily),
		CTR:         b.kpi.Ptr(kpi.CTR, ads, adsContext, model.GranularityDaily),
		AOV:         b.kpi.Ptr(kpi.AOV, all, blendedContext, model.GranularityDaily),
		Confidence:  Rollup(facts),
		FactCount:   len(facts),
	}
}

func sumMetrics(facts []model.UnifiedMetricFact, keep func(model.UnifiedMetricFact) bool) map[string]float64 {
	out := make(map[string]float64)
	for _, f := range facts {
		if !keep(f) {
			continue
		}
		for k, v := range f.Metrics {
			out[k] += v
		}
	}
	return out
}

// Rollup derives a group confidence: low if any fact is low, medium if more
// than half are medium, otherwise high.
func Rollup(facts []model.UnifiedMetricFact) model.Confidence {
	if len(facts) == 0 {
		return model.ConfidenceLow
	}
	medium := 0
	for _, f := range facts {
		switch f.Context.Confidence {
		case model.ConfidenceHigh:
		case model.ConfidenceMedium:
			medium++
		default:
			return model.ConfidenceLow
		}
	}
	if medium*2 > len(facts) {
		return model.ConfidenceMedium
	}
	return model.ConfidenceHigh
}

func sortFacts(facts []model.UnifiedMetricFact) {
	sort.SliceStable(facts, func(i, j int) bool {
		a, b := facts[i], facts[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Platform != b.Platform {
			return a.Platform < b.Platform
		}
		if a.UploadID != b.UploadID {
			return a.UploadID < b.UploadID
		}
		if a.RowNumber != b.RowNumber {
			return a.RowNumber < b.RowNumber
		}
		return a.ID < b.ID
	})
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
