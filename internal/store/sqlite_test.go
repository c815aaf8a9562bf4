package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/marketlens/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr(v float64) *float64 { return &v }

func seedUpload(t *testing.T, st Store, ws string) *model.Upload {
	t.Helper()
	u := &model.Upload{
		WorkspaceID:  ws,
		OriginalName: "shopee.csv",
		StoragePath:  "/tmp/shopee.csv",
		FileType:     model.FileTypeCSV,
		Platform:     model.PlatformShopee,
		ReportType:   model.ReportTypeAds,
		Context: model.FileContextGuess{
			Platform:             model.PlatformShopee,
			PlatformConfidence:   0.8,
			ReportType:           model.ReportTypeAds,
			ReportTypeConfidence: 0.9,
			Granularity:          model.GranularityDaily,
			Signals:              []string{"Headers found: 3"},
		},
	}
	require.NoError(t, st.CreateUpload(context.Background(), u))
	return u
}

// --- Uploads ---

func TestSQLite_Upload_CreateAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	u := seedUpload(t, st, "ws-1")
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, model.UploadStatusPending, u.Status)

	got, err := st.GetUpload(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ws-1", got.WorkspaceID)
	assert.Equal(t, model.PlatformShopee, got.Platform)
	assert.Equal(t, model.ReportTypeAds, got.ReportType)
	assert.Equal(t, 0.9, got.Context.ReportTypeConfidence)
	assert.Equal(t, []string{"Headers found: 3"}, got.Context.Signals)
	assert.Nil(t, got.Validation)
	assert.Nil(t, got.ProcessedAt)
}

func TestSQLite_Upload_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetUpload(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_Upload_Update(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	u := seedUpload(t, st, "ws-1")

	now := time.Now().UTC()
	err := st.UpdateUpload(ctx, u.ID, model.UploadUpdate{
		Status:     model.UploadStatusPartial,
		RowCount:   10,
		StoredRows: 7,
		Validation: &model.ValidationResult{
			IsValid: true,
			Warnings: []model.ValidationWarning{
				{Code: model.WarnDuplicateDate, Severity: model.SeverityMedium, Count: 2},
			},
		},
		Error:       "context canceled",
		ProcessedAt: &now,
	})
	require.NoError(t, err)

	got, err := st.GetUpload(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UploadStatusPartial, got.Status)
	assert.Equal(t, 10, got.RowCount)
	assert.Equal(t, 7, got.StoredRows)
	assert.Equal(t, "context canceled", got.Error)
	require.NotNil(t, got.Validation)
	require.Len(t, got.Validation.Warnings, 1)
	assert.Equal(t, 2, got.Validation.Warnings[0].Count)
	require.NotNil(t, got.ProcessedAt)
}

func TestSQLite_Upload_UpdateMissing(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateUpload(context.Background(), "missing", model.UploadUpdate{Status: model.UploadStatusFailed})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_ListUploads(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedUpload(t, st, "ws-1")
	seedUpload(t, st, "ws-1")
	seedUpload(t, st, "ws-2")

	list, err := st.ListUploads(ctx, "ws-1", 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = st.ListUploads(ctx, "ws-1", 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// --- Facts ---

func testFact(uploadID string, row int, d time.Time, revenue float64) model.UnifiedMetricFact {
	return model.UnifiedMetricFact{
		WorkspaceID: "ws-1",
		UploadID:    uploadID,
		RowNumber:   row,
		Date:        d,
		Platform:    model.PlatformShopee,
		Granularity: model.GranularityDaily,
		Context: model.MetricContext{
			Source:     model.SourceAds,
			ReportType: "ads",
			Confidence: model.ConfidenceHigh,
		},
		Metrics:    map[string]float64{model.MetricRevenue: revenue, model.MetricSpend: 10},
		Dimensions: map[string]string{model.DimSKU: "SKU-1"},
	}
}

func TestSQLite_Facts_InsertListDelete(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	u := seedUpload(t, st, "ws-1")

	facts := []model.UnifiedMetricFact{
		testFact(u.ID, 2, date(2024, 1, 2), 200),
		testFact(u.ID, 1, date(2024, 1, 1), 100),
		testFact(u.ID, 3, date(2024, 1, 3), 300),
	}
	n, err := st.InsertFacts(ctx, facts)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	for _, f := range facts {
		assert.NotEmpty(t, f.ID)
	}

	got, err := st.ListFacts(ctx, FactFilter{WorkspaceID: "ws-1"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, date(2024, 1, 1), got[0].Date)
	assert.Equal(t, 100.0, got[0].Metrics[model.MetricRevenue])
	assert.Equal(t, "SKU-1", got[0].Dimensions[model.DimSKU])
	assert.True(t, got[0].Context.IsAds())
	assert.Equal(t, model.ConfidenceHigh, got[0].Context.Confidence)

	got, err = st.ListFacts(ctx, FactFilter{WorkspaceID: "ws-1", Start: date(2024, 1, 2), End: date(2024, 1, 2)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].RowNumber)

	deleted, err := st.DeleteFactsByUpload(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	got, err = st.ListFacts(ctx, FactFilter{WorkspaceID: "ws-1"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLite_Facts_InsertEmpty(t *testing.T) {
	st := newTestSQLiteStore(t)

	n, err := st.InsertFacts(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLite_Facts_UnknownUploadRejected(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.InsertFacts(context.Background(), []model.UnifiedMetricFact{
		testFact("no-such-upload", 1, date(2024, 1, 1), 1),
	})
	assert.Error(t, err)
}

// --- Snapshots ---

func testExec(d time.Time, revenue float64) model.ExecutiveSnapshot {
	return model.ExecutiveSnapshot{
		WorkspaceID: "ws-1",
		Date:        d,
		SnapshotMetrics: model.SnapshotMetrics{
			Revenue:    revenue,
			AdsRevenue: revenue,
			Spend:      revenue / 4,
			ROAS:       ptr(4),
			Confidence: model.ConfidenceMedium,
			FactCount:  2,
		},
	}
}

func TestSQLite_Snapshots_SaveAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	exec := []model.ExecutiveSnapshot{testExec(date(2024, 1, 1), 100), testExec(date(2024, 1, 2), 200)}
	channel := []model.ChannelSnapshot{{
		WorkspaceID: "ws-1",
		Date:        date(2024, 1, 1),
		Platform:    model.PlatformTikTok,
		SnapshotMetrics: model.SnapshotMetrics{
			Revenue:    100,
			Confidence: model.ConfidenceHigh,
			FactCount:  1,
		},
	}}
	require.NoError(t, st.SaveSnapshots(ctx, SnapshotScope{WorkspaceID: "ws-1"}, exec, channel))

	gotExec, err := st.ListExecutiveSnapshots(ctx, "ws-1", date(2024, 1, 1), date(2024, 1, 31))
	require.NoError(t, err)
	require.Len(t, gotExec, 2)
	assert.Equal(t, 100.0, gotExec[0].Revenue)
	require.NotNil(t, gotExec[0].ROAS)
	assert.Equal(t, 4.0, *gotExec[0].ROAS)
	assert.Nil(t, gotExec[0].CVR)
	assert.Equal(t, model.ConfidenceMedium, gotExec[0].Confidence)

	gotChannel, err := st.ListChannelSnapshots(ctx, "ws-1", date(2024, 1, 1), date(2024, 1, 1))
	require.NoError(t, err)
	require.Len(t, gotChannel, 1)
	assert.Equal(t, model.PlatformTikTok, gotChannel[0].Platform)
	assert.Nil(t, gotChannel[0].ROAS)
}

func TestSQLite_Snapshots_RebuildRemovesStaleKeys(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	scope := SnapshotScope{WorkspaceID: "ws-1"}

	first := []model.ExecutiveSnapshot{testExec(date(2024, 1, 1), 100), testExec(date(2024, 1, 2), 200)}
	require.NoError(t, st.SaveSnapshots(ctx, scope, first, nil))

	second := []model.ExecutiveSnapshot{testExec(date(2024, 1, 2), 250)}
	require.NoError(t, st.SaveSnapshots(ctx, scope, second, nil))

	got, err := st.ListExecutiveSnapshots(ctx, "ws-1", date(2024, 1, 1), date(2024, 1, 31))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, date(2024, 1, 2), got[0].Date)
	assert.Equal(t, 250.0, got[0].Revenue)
}

func TestSQLite_Snapshots_DayScopeLeavesOtherDays(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	all := []model.ExecutiveSnapshot{testExec(date(2024, 1, 1), 100), testExec(date(2024, 1, 2), 200)}
	require.NoError(t, st.SaveSnapshots(ctx, SnapshotScope{WorkspaceID: "ws-1"}, all, nil))

	d := date(2024, 1, 2)
	require.NoError(t, st.SaveSnapshots(ctx, SnapshotScope{WorkspaceID: "ws-1", Date: &d}, nil, nil))

	got, err := st.ListExecutiveSnapshots(ctx, "ws-1", date(2024, 1, 1), date(2024, 1, 31))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, date(2024, 1, 1), got[0].Date)
}

func TestSQLite_Snapshots_WorkspaceIsolation(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveSnapshots(ctx, SnapshotScope{WorkspaceID: "ws-1"},
		[]model.ExecutiveSnapshot{testExec(date(2024, 1, 1), 100)}, nil))

	other := testExec(date(2024, 1, 1), 999)
	other.WorkspaceID = "ws-2"
	require.NoError(t, st.SaveSnapshots(ctx, SnapshotScope{WorkspaceID: "ws-2"},
		[]model.ExecutiveSnapshot{other}, nil))

	got, err := st.ListExecutiveSnapshots(ctx, "ws-1", date(2024, 1, 1), date(2024, 1, 1))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 100.0, got[0].Revenue)
}
