package insight

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/marketlens/internal/model"
)

// fakeStore serves snapshots filtered by inclusive date range.
type fakeStore struct {
	exec    []model.ExecutiveSnapshot
	channel []model.ChannelSnapshot
	err     error
}

func inRange(d, start, end time.Time) bool {
	return !d.Before(start) && !d.After(end)
}

func (f *fakeStore) ListExecutiveSnapshots(_ context.Context, _ string, start, end time.Time) ([]model.ExecutiveSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.ExecutiveSnapshot
	for _, s := range f.exec {
		if inRange(s.Date, start, end) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) ListChannelSnapshots(_ context.Context, _ string, start, end time.Time) ([]model.ChannelSnapshot, error) {
	var out []model.ChannelSnapshot
	for _, s := range f.channel {
		if inRange(s.Date, start, end) {
			out = append(out, s)
		}
	}
	return out, nil
}

func day(d int) time.Time {
	return time.Date(2024, 5, d, 0, 0, 0, 0, time.UTC)
}

func execSnap(d int, revenue, adsRevenue, spend float64, c model.Confidence) model.ExecutiveSnapshot {
	return model.ExecutiveSnapshot{
		WorkspaceID: "ws",
		Date:        day(d),
		SnapshotMetrics: model.SnapshotMetrics{
			Revenue: revenue, AdsRevenue: adsRevenue, Spend: spend, Confidence: c,
		},
	}
}

func channelSnap(d int, p model.Platform, revenue float64) model.ChannelSnapshot {
	return model.ChannelSnapshot{
		WorkspaceID:     "ws",
		Date:            day(d),
		Platform:        p,
		SnapshotMetrics: model.SnapshotMetrics{Revenue: revenue, Confidence: model.ConfidenceHigh},
	}
}

func TestWindows(t *testing.T) {
	cur, prev, err := Windows(day(8), day(14))
	require.NoError(t, err)
	assert.Equal(t, 7, cur.Days())
	assert.Equal(t, day(1), prev.Start)
	assert.Equal(t, day(7), prev.End)

	cur, prev, err = Windows(day(10), day(10))
	require.NoError(t, err)
	assert.Equal(t, 1, cur.Days())
	assert.Equal(t, day(9), prev.Start)
	assert.Equal(t, day(9), prev.End)

	_, _, err = Windows(day(10), day(9))
	assert.True(t, errors.Is(err, ErrInvalidWindow))
}

func TestWindows_TruncatesTimeOfDay(t *testing.T) {
	cur, _, err := Windows(day(8).Add(13*time.Hour), day(14).Add(23*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, day(8), cur.Start)
	assert.Equal(t, day(14), cur.End)
}

func TestSummarize(t *testing.T) {
	tot := Summarize([]model.ExecutiveSnapshot{
		execSnap(1, 100, 80, 20, model.ConfidenceHigh),
		execSnap(2, 200, 120, 30, model.ConfidenceMedium),
	})
	assert.Equal(t, 300.0, tot.Revenue)
	assert.Equal(t, 50.0, tot.Spend)
	assert.Equal(t, 4.0, tot.ROAS, "ROAS uses ads revenue only")
	assert.Equal(t, model.ConfidenceMedium, tot.Confidence)

	assert.Equal(t, 0.0, Summarize(nil).ROAS)
	assert.Equal(t, model.ConfidenceHigh, Summarize(nil).Confidence)
}

func TestGenerate_InefficientSpendScenario(t *testing.T) {
	// Previous window day 1, current window day 2.
	st := &fakeStore{
		exec: []model.ExecutiveSnapshot{
			execSnap(1, 1000, 800, 200, model.ConfidenceHigh),
			execSnap(2, 850, 691.2, 216, model.ConfidenceHigh),
		},
		channel: []model.ChannelSnapshot{
			channelSnap(1, model.PlatformShopee, 500),
			channelSnap(1, model.PlatformTikTok, 500),
			channelSnap(2, model.PlatformShopee, 425),
			channelSnap(2, model.PlatformTikTok, 425),
		},
	}

	insights, err := NewEngine(st).Generate(context.Background(), "ws", day(2), day(2))
	require.NoError(t, err)
	require.Len(t, insights, 1)

	in := insights[0]
	assert.Equal(t, model.InsightEfficiency, in.Type)
	assert.Equal(t, model.DirectionDown, in.Change.Direction)
	assert.InDelta(t, -150, in.Change.Absolute, 1e-9)
	require.NotNil(t, in.Change.Percentage)
	assert.InDelta(t, -0.15, *in.Change.Percentage, 1e-9)
	assert.Equal(t, CauseInefficientSpend, in.LikelyCause)
	assert.Equal(t, model.ConfidenceHigh, in.Confidence)
}

func TestGenerate_ChannelRegressionNamesCulprit(t *testing.T) {
	// Revenue 1000 -> 800; TikTok accounts for 140 of the 200 decline.
	st := &fakeStore{
		exec: []model.ExecutiveSnapshot{
			execSnap(1, 1000, 0, 0, model.ConfidenceMedium),
			execSnap(2, 800, 0, 0, model.ConfidenceHigh),
		},
		channel: []model.ChannelSnapshot{
			channelSnap(1, model.PlatformShopee, 400),
			channelSnap(1, model.PlatformTikTok, 600),
			channelSnap(2, model.PlatformShopee, 340),
			channelSnap(2, model.PlatformTikTok, 460),
		},
	}

	insights, err := NewEngine(st).Generate(context.Background(), "ws", day(2), day(2))
	require.NoError(t, err)
	require.Len(t, insights, 1)

	in := insights[0]
	assert.Equal(t, model.InsightPerformance, in.Type)
	assert.Equal(t, model.PlatformTikTok, in.Platform)
	assert.Equal(t, model.ConfidenceHigh, in.Confidence)
	assert.Nil(t, in.Change.Percentage)
	assert.Contains(t, in.LikelyCause, "TIKTOK")
	require.Len(t, in.Evidence, 1)
	assert.Contains(t, in.Evidence[0], "70.0%")
}

func TestChannelRegression_LowOverallConfidence(t *testing.T) {
	cur := []ChannelTotals{{Platform: model.PlatformLazada, Revenue: 100}}
	prev := []ChannelTotals{{Platform: model.PlatformLazada, Revenue: 300}}

	in := channelRegression(cur, prev, -200, model.ConfidenceLow)
	require.NotNil(t, in)
	assert.Equal(t, model.ConfidenceLow, in.Confidence)
}

func TestChannelRegression_PlatformOnlyInPreviousWindow(t *testing.T) {
	cur := []ChannelTotals{{Platform: model.PlatformShopee, Revenue: 500}}
	prev := []ChannelTotals{
		{Platform: model.PlatformLazada, Revenue: 400},
		{Platform: model.PlatformShopee, Revenue: 500},
	}

	in := channelRegression(cur, prev, -400, model.ConfidenceHigh)
	require.NotNil(t, in)
	assert.Equal(t, model.PlatformLazada, in.Platform)
}

func TestChannelRegression_LargestShareWins(t *testing.T) {
	// Both SHOPEE and TIKTOK exceed half of a small net decline.
	cur := []ChannelTotals{
		{Platform: model.PlatformLazada, Revenue: 250},
		{Platform: model.PlatformShopee, Revenue: 0},
		{Platform: model.PlatformTikTok, Revenue: 20},
	}
	prev := []ChannelTotals{
		{Platform: model.PlatformLazada, Revenue: 100},
		{Platform: model.PlatformShopee, Revenue: 100},
		{Platform: model.PlatformTikTok, Revenue: 110},
	}

	in := channelRegression(cur, prev, -40, model.ConfidenceHigh)
	require.NotNil(t, in)
	assert.Equal(t, model.PlatformShopee, in.Platform)
	assert.Len(t, in.Evidence, 2)
}

func TestChannelRegression_NoDominantChannel(t *testing.T) {
	cur := []ChannelTotals{{Platform: model.PlatformShopee, Revenue: 50}, {Platform: model.PlatformTikTok, Revenue: 50}}
	prev := []ChannelTotals{{Platform: model.PlatformShopee, Revenue: 100}, {Platform: model.PlatformTikTok, Revenue: 100}}

	assert.Nil(t, channelRegression(cur, prev, -100, model.ConfidenceHigh))
}

func TestGenerate_ZeroRevenueWindows(t *testing.T) {
	tests := []struct {
		name string
		exec []model.ExecutiveSnapshot
	}{
		{"no snapshots", nil},
		{"current zero", []model.ExecutiveSnapshot{
			execSnap(1, 1000, 0, 0, model.ConfidenceHigh),
			execSnap(2, 0, 0, 50, model.ConfidenceHigh),
		}},
		{"previous missing", []model.ExecutiveSnapshot{
			execSnap(2, 1000, 0, 0, model.ConfidenceHigh),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			insights, err := NewEngine(&fakeStore{exec: tt.exec}).Generate(context.Background(), "ws", day(2), day(2))
			require.NoError(t, err)
			assert.NotNil(t, insights)
			assert.Empty(t, insights)
		})
	}
}

func TestGenerate_StoreError(t *testing.T) {
	_, err := NewEngine(&fakeStore{err: errors.New("conn reset")}).Generate(context.Background(), "ws", day(2), day(2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "current window")
}

func TestEvaluate_Rules(t *testing.T) {
	base := Totals{Revenue: 1000, AdsRevenue: 1000, Spend: 250, ROAS: 4, Confidence: model.ConfidenceHigh}

	t.Run("risk on demand drop", func(t *testing.T) {
		cur := Totals{Revenue: 800, Spend: 200, ROAS: 3.9, Confidence: model.ConfidenceMedium}
		got := Evaluate(cur, base)
		require.Len(t, got, 1)
		assert.Equal(t, model.InsightRisk, got[0].Type)
		assert.Equal(t, model.ConfidenceMedium, got[0].Confidence)
	})

	t.Run("opportunity on roas gain", func(t *testing.T) {
		cur := Totals{Revenue: 1200, Spend: 250, ROAS: 4.8, Confidence: model.ConfidenceHigh}
		got := Evaluate(cur, base)
		require.Len(t, got, 1)
		assert.Equal(t, model.InsightOpportunity, got[0].Type)
		assert.Equal(t, model.DirectionUp, got[0].Change.Direction)
		assert.Equal(t, "roas", got[0].Metric)
	})

	t.Run("stable period", func(t *testing.T) {
		cur := Totals{Revenue: 1010, Spend: 250, ROAS: 4.04, Confidence: model.ConfidenceHigh}
		assert.Empty(t, Evaluate(cur, base))
	})

	t.Run("low confidence propagates", func(t *testing.T) {
		cur := Totals{Revenue: 1200, Spend: 250, ROAS: 4.8, Confidence: model.ConfidenceLow}
		got := Evaluate(cur, base)
		require.Len(t, got, 1)
		assert.Equal(t, model.ConfidenceLow, got[0].Confidence)
	})
}
