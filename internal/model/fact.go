package model

import "time"

// Metric sources.
const (
	SourceAds     = "ads"
	SourceOrganic = "organic"
	SourceBlended = "blended"
)

// Canonical metric names shared across platforms.
const (
	MetricRevenue     = "revenue"
	MetricSpend       = "spend"
	MetricOrders      = "orders"
	MetricImpressions = "impressions"
	MetricClicks      = "clicks"
	MetricConversions = "conversions"
)

// Dimension keys extracted verbatim from source rows.
const (
	DimDate        = "date"
	DimSKU         = "sku"
	DimCampaignID  = "campaign_id"
	DimAdGroup     = "ad_group"
	DimCreativeID  = "creative_id"
	DimProductName = "product_name"
)

// MetricContext describes where a fact's numbers came from and how far to trust them.
type MetricContext struct {
	Source     string     `json:"source"`
	ReportType string     `json:"report_type"`
	Confidence Confidence `json:"confidence"`
}

// IsAds reports whether the context is advertising-sourced.
func (c MetricContext) IsAds() bool {
	return c.Source == SourceAds
}

// UnifiedMetricFact is the canonical per-row record produced by normalization.
// It is read-only after creation and consumed only in aggregate.
type UnifiedMetricFact struct {
	ID          string             `json:"id"`
	WorkspaceID string             `json:"workspace_id"`
	UploadID    string             `json:"upload_id"`
	RowNumber   int                `json:"row_number"`
	Date        time.Time          `json:"date"`
	Platform    Platform           `json:"platform"`
	Granularity Granularity        `json:"granularity"`
	Context     MetricContext      `json:"metric_context"`
	Metrics     map[string]float64 `json:"metrics"`
	Dimensions  map[string]string  `json:"dimensions"`
}
