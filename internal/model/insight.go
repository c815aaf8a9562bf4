package model

// InsightType classifies an insight.
type InsightType string

const (
	InsightPerformance InsightType = "performance"
	InsightEfficiency  InsightType = "efficiency"
	InsightRisk        InsightType = "risk"
	InsightOpportunity InsightType = "opportunity"
)

// Direction of a metric change.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionFlat Direction = "flat"
)

// Change describes a period-over-period delta. Percentage is a fraction
// (-0.15 for a 15% drop) and nil when no baseline ratio applies.
type Change struct {
	Direction  Direction `json:"direction"`
	Absolute   float64   `json:"absolute"`
	Percentage *float64  `json:"percentage"`
}

// Insight is a typed, evidenced finding for a query window. Never persisted.
type Insight struct {
	Type              InsightType `json:"insight_type"`
	Metric            string      `json:"metric"`
	Change            Change      `json:"change"`
	LikelyCause       string      `json:"likely_cause"`
	Evidence          []string    `json:"evidence"`
	Confidence        Confidence  `json:"confidence"`
	RecommendedAction string      `json:"recommended_action,omitempty"`
	Platform          Platform    `json:"platform,omitempty"`
}
