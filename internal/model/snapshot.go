package model

import "time"

// SnapshotMetrics holds the aggregate values shared by both snapshot shapes.
// Ratio fields are nil when the KPI could not be computed.
type SnapshotMetrics struct {
	Revenue     float64    `json:"revenue"`
	AdsRevenue  float64    `json:"ads_revenue"`
	Spend       float64    `json:"spend"`
	Orders      float64    `json:"orders"`
	Impressions float64    `json:"impressions"`
	Clicks      float64    `json:"clicks"`
	ROAS        *float64   `json:"roas"`
	CVR         *float64   `json:"cvr"`
	CTR         *float64   `json:"ctr"`
	AOV         *float64   `json:"aov"`
	Confidence  Confidence `json:"confidence"`
	FactCount   int        `json:"fact_count"`
}

// ExecutiveSnapshot is the day-level rollup for a workspace, keyed by (workspace, date).
type ExecutiveSnapshot struct {
	WorkspaceID string    `json:"workspace_id"`
	Date        time.Time `json:"date"`
	SnapshotMetrics
}

// ChannelSnapshot is the day×platform rollup, keyed by (workspace, date, platform).
type ChannelSnapshot struct {
	WorkspaceID string    `json:"workspace_id"`
	Date        time.Time `json:"date"`
	Platform    Platform  `json:"platform"`
	SnapshotMetrics
}
