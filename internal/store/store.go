// Package store persists uploads, unified metric facts and daily snapshots.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/sells-group/marketlens/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// dateLayout is the storage form of calendar days.
const dateLayout = "2006-01-02"

// FactFilter selects facts. WorkspaceID is required; zero dates are open bounds.
type FactFilter struct {
	WorkspaceID string
	UploadID    string
	Start       time.Time // inclusive
	End         time.Time // inclusive
}

// SnapshotScope names the snapshot keys a rebuild replaces: every day of a
// workspace, or a single day when Date is set.
type SnapshotScope struct {
	WorkspaceID string
	Date        *time.Time
}

// Store defines the persistence interface for the ingestion and analytics pipeline.
type Store interface {
	// Uploads
	CreateUpload(ctx context.Context, u *model.Upload) error
	GetUpload(ctx context.Context, id string) (*model.Upload, error)
	ListUploads(ctx context.Context, workspaceID string, limit int) ([]model.Upload, error)
	UpdateUpload(ctx context.Context, id string, upd model.UploadUpdate) error

	// Unified metric facts
	InsertFacts(ctx context.Context, facts []model.UnifiedMetricFact) (int64, error)
	DeleteFactsByUpload(ctx context.Context, uploadID string) (int64, error)
	ListFacts(ctx context.Context, filter FactFilter) ([]model.UnifiedMetricFact, error)

	// Snapshots. SaveSnapshots atomically replaces every key in scope with
	// the given rows, upserting by natural key.
	SaveSnapshots(ctx context.Context, scope SnapshotScope, exec []model.ExecutiveSnapshot, channel []model.ChannelSnapshot) error
	ListExecutiveSnapshots(ctx context.Context, workspaceID string, start, end time.Time) ([]model.ExecutiveSnapshot, error)
	ListChannelSnapshots(ctx context.Context, workspaceID string, start, end time.Time) ([]model.ChannelSnapshot, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

var factColumns = []string{
	"id", "workspace_id", "upload_id", "row_number", "date", "platform",
	"granularity", "metric_context", "metrics", "dimensions",
}

var snapshotMetricColumns = []string{
	"revenue", "ads_revenue", "spend", "orders", "impressions", "clicks",
	"roas", "cvr", "ctr", "aov", "confidence", "fact_count",
}

func metricValues(m model.SnapshotMetrics) []any {
	return []any{
		m.Revenue, m.AdsRevenue, m.Spend, m.Orders, m.Impressions, m.Clicks,
		m.ROAS, m.CVR, m.CTR, m.AOV, string(m.Confidence), m.FactCount,
	}
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
