package snapshot

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/marketlens/internal/model"
	"github.com/sells-group/marketlens/internal/store"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) ListFacts(ctx context.Context, filter store.FactFilter) ([]model.UnifiedMetricFact, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.UnifiedMetricFact), args.Error(1)
}

func (m *mockStore) SaveSnapshots(ctx context.Context, scope store.SnapshotScope, exec []model.ExecutiveSnapshot, channel []model.ChannelSnapshot) error {
	args := m.Called(ctx, scope, exec, channel)
	return args.Error(0)
}

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func fact(d int, p model.Platform, source string, conf model.Confidence, metrics map[string]float64) model.UnifiedMetricFact {
	rt := "overview"
	if source == model.SourceAds {
		rt = "ads"
	}
	return model.UnifiedMetricFact{
		WorkspaceID: "ws",
		UploadID:    "up-" + string(p),
		Date:        day(d),
		Platform:    p,
		Granularity: model.GranularityDaily,
		Context:     model.MetricContext{Source: source, ReportType: rt, Confidence: conf},
		Metrics:     metrics,
	}
}

func TestCompute_AdsOnlyEfficiencyRatios(t *testing.T) {
	b := NewBuilder(nil, nil)
	facts := []model.UnifiedMetricFact{
		fact(1, model.PlatformShopee, model.SourceAds, model.ConfidenceHigh, map[string]float64{
			model.MetricRevenue: 400, model.MetricSpend: 100, model.MetricClicks: 50,
			model.MetricImpressions: 1000, model.MetricConversions: 5,
		}),
		fact(1, model.PlatformShopee, model.SourceBlended, model.ConfidenceHigh, map[string]float64{
			model.MetricRevenue: 600, model.MetricOrders: 10,
		}),
	}

	res := b.Compute("ws", facts)
	require.Len(t, res.Executive, 1)
	e := res.Executive[0]

	assert.Equal(t, 1000.0, e.Revenue)
	assert.Equal(t, 400.0, e.AdsRevenue)
	assert.Equal(t, 100.0, e.Spend)
	require.NotNil(t, e.ROAS)
	assert.Equal(t, 4.0, *e.ROAS, "blended revenue must not inflate ROAS")
	require.NotNil(t, e.CTR)
	assert.Equal(t, 0.05, *e.CTR)
	require.NotNil(t, e.CVR)
	assert.Equal(t, 0.1, *e.CVR)
	require.NotNil(t, e.AOV)
	assert.Equal(t, 100.0, *e.AOV)
	assert.Equal(t, 2, e.FactCount)
}

func TestCompute_NoAdsDataLeavesRatiosNil(t *testing.T) {
	b := NewBuilder(nil, nil)
	facts := []model.UnifiedMetricFact{
		fact(1, model.PlatformLazada, model.SourceBlended, model.ConfidenceHigh, map[string]float64{
			model.MetricRevenue: 500, model.MetricSpend: 50,
		}),
	}

	e := b.Compute("ws", facts).Executive[0]
	assert.Nil(t, e.ROAS)
	assert.Nil(t, e.CVR)
	assert.Nil(t, e.CTR)
	assert.Nil(t, e.AOV)
	assert.Equal(t, 0.0, e.AdsRevenue)
}

func TestCompute_GroupsByDayAndPlatform(t *testing.T) {
	b := NewBuilder(nil, nil)
	rev := func(v float64) map[string]float64 { return map[string]float64{model.MetricRevenue: v} }
	facts := []model.UnifiedMetricFact{
		fact(2, model.PlatformTikTok, model.SourceBlended, model.ConfidenceHigh, rev(30)),
		fact(1, model.PlatformShopee, model.SourceBlended, model.ConfidenceHigh, rev(10)),
		fact(1, model.PlatformTikTok, model.SourceBlended, model.ConfidenceHigh, rev(20)),
		fact(1, model.PlatformShopee, model.SourceBlended, model.ConfidenceHigh, rev(5)),
	}

	res := b.Compute("ws", facts)
	require.Len(t, res.Executive, 2)
	assert.Equal(t, day(1), res.Executive[0].Date)
	assert.Equal(t, 35.0, res.Executive[0].Revenue)
	assert.Equal(t, 30.0, res.Executive[1].Revenue)

	require.Len(t, res.Channel, 3)
	assert.Equal(t, model.PlatformShopee, res.Channel[0].Platform)
	assert.Equal(t, 15.0, res.Channel[0].Revenue)
	assert.Equal(t, model.PlatformTikTok, res.Channel[1].Platform)
	assert.Equal(t, day(2), res.Channel[2].Date)
}

func TestCompute_OrderIndependent(t *testing.T) {
	b := NewBuilder(nil, nil)
	var facts []model.UnifiedMetricFact
	for i := 0; i < 20; i++ {
		f := fact(1, model.PlatformShopee, model.SourceAds, model.ConfidenceHigh, map[string]float64{
			model.MetricRevenue: 0.1 * float64(i+1), model.MetricSpend: 0.03 * float64(i+1),
		})
		f.RowNumber = i + 1
		facts = append(facts, f)
	}
	reversed := make([]model.UnifiedMetricFact, len(facts))
	for i := range facts {
		reversed[len(facts)-1-i] = facts[i]
	}

	assert.Equal(t, b.Compute("ws", facts), b.Compute("ws", reversed))
}

func TestRollup(t *testing.T) {
	mk := func(cs ...model.Confidence) []model.UnifiedMetricFact {
		out := make([]model.UnifiedMetricFact, len(cs))
		for i, c := range cs {
			out[i].Context.Confidence = c
		}
		return out
	}
	h, m, l := model.ConfidenceHigh, model.ConfidenceMedium, model.ConfidenceLow

	tests := []struct {
		name  string
		facts []model.UnifiedMetricFact
		want  model.Confidence
	}{
		{"all high", mk(h, h, h), h},
		{"any low", mk(h, h, l), l},
		{"medium majority", mk(m, m, h), m},
		{"medium exactly half", mk(m, h), h},
		{"empty", nil, l},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Rollup(tt.facts))
		})
	}
}

func TestBuild_DayScope(t *testing.T) {
	ms := new(mockStore)
	d := time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)
	facts := []model.UnifiedMetricFact{
		fact(1, model.PlatformShopee, model.SourceAds, model.ConfidenceHigh, map[string]float64{model.MetricRevenue: 10}),
	}

	ms.On("ListFacts", mock.Anything, store.FactFilter{WorkspaceID: "ws", Start: day(1), End: day(1)}).Return(facts, nil)
	ms.On("SaveSnapshots", mock.Anything, mock.MatchedBy(func(s store.SnapshotScope) bool {
		return s.WorkspaceID == "ws" && s.Date != nil && s.Date.Equal(day(1))
	}), mock.Anything, mock.Anything).Return(nil)

	res, err := NewBuilder(ms, nil).Build(context.Background(), "ws", &d)
	require.NoError(t, err)
	assert.Len(t, res.Executive, 1)
	assert.Len(t, res.Channel, 1)
	ms.AssertExpectations(t)
}

func TestBuild_SaveError(t *testing.T) {
	ms := new(mockStore)
	ms.On("ListFacts", mock.Anything, mock.Anything).Return([]model.UnifiedMetricFact{}, nil)
	ms.On("SaveSnapshots", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("disk full"))

	_, err := NewBuilder(ms, nil).Build(context.Background(), "ws", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestBuild_ListError(t *testing.T) {
	ms := new(mockStore)
	ms.On("ListFacts", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

	_, err := NewBuilder(ms, nil).Build(context.Background(), "ws", nil)
	require.Error(t, err)
	ms.AssertNotCalled(t, "SaveSnapshots", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBuild_IdempotentAgainstSQLite(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "snap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	up := &model.Upload{
		WorkspaceID: "ws", OriginalName: "a.csv", StoragePath: "a.csv",
		FileType: model.FileTypeCSV, Platform: model.PlatformShopee, ReportType: model.ReportTypeAds,
	}
	require.NoError(t, st.CreateUpload(ctx, up))

	facts := []model.UnifiedMetricFact{
		fact(1, model.PlatformShopee, model.SourceAds, model.ConfidenceHigh, map[string]float64{
			model.MetricRevenue: 1234.56, model.MetricSpend: 321.09,
		}),
		fact(2, model.PlatformShopee, model.SourceAds, model.ConfidenceMedium, map[string]float64{
			model.MetricRevenue: 99.9, model.MetricSpend: 33.3,
		}),
	}
	for i := range facts {
		facts[i].UploadID = up.ID
		facts[i].RowNumber = i + 1
	}
	_, err = st.InsertFacts(ctx, facts)
	require.NoError(t, err)

	b := NewBuilder(st, nil)
	_, err = b.Build(ctx, "ws", nil)
	require.NoError(t, err)
	first, err := st.ListExecutiveSnapshots(ctx, "ws", day(1), day(31))
	require.NoError(t, err)

	_, err = b.Build(ctx, "ws", nil)
	require.NoError(t, err)
	second, err := st.ListExecutiveSnapshots(ctx, "ws", day(1), day(31))
	require.NoError(t, err)

	require.Len(t, first, 2)
	assert.Equal(t, first, second)
	require.NotNil(t, first[0].ROAS)
	assert.Equal(t, 1234.56/321.09, *first[0].ROAS)
	assert.Equal(t, model.ConfidenceMedium, first[1].Confidence)
}
