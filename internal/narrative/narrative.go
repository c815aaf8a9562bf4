// Package narrative defines the frozen DTOs exchanged between the narrative
// preparer and the renderer. Nothing here computes.
package narrative

// Locale of every rendered narrative.
const Locale = "id-ID"

// Trend is a precomputed comparison against the previous window.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendFlat Trend = "flat"
)

// Input is fully resolved by the preparer. The renderer reads it as is and
// never infers a missing field.
type Input struct {
	Period    string      `json:"period"`
	Executive Executive   `json:"executive"`
	Channels  []Channel   `json:"channels"`
	Insights  []InsightIn `json:"insights"`
}

// Executive holds window totals.
type Executive struct {
	Revenue float64 `json:"revenue"`
	Spend   float64 `json:"spend"`
	Orders  float64 `json:"orders"`
	// ROAS is nil when there was no spend.
	ROAS *float64 `json:"roas"`
	// Confidence is HIGH, MEDIUM or LOW.
	Confidence string    `json:"confidence"`
	Previous   *Previous `json:"previous,omitempty"`
}

// Previous holds the preceding window's totals and the trends against it.
type Previous struct {
	Revenue      float64  `json:"revenue"`
	Spend        float64  `json:"spend"`
	Orders       float64  `json:"orders"`
	ROAS         *float64 `json:"roas"`
	RevenueTrend Trend    `json:"revenue_trend"`
	SpendTrend   Trend    `json:"spend_trend"`
}

// Channel holds one platform's window totals.
type Channel struct {
	Platform string   `json:"platform"`
	Revenue  float64  `json:"revenue"`
	Spend    float64  `json:"spend"`
	Orders   float64  `json:"orders"`
	ROAS     *float64 `json:"roas"`
}

// InsightIn is an insight reduced to what the renderer may print.
// PercentagePoints is already scaled (-15.0 for a 15% drop). Index is the
// 1-based list position.
type InsightIn struct {
	Index             int      `json:"index"`
	Type              string   `json:"insight_type"`
	Metric            string   `json:"metric"`
	Direction         string   `json:"direction"`
	Absolute          float64  `json:"absolute"`
	PercentagePoints  *float64 `json:"percentage_points"`
	LikelyCause       string   `json:"likely_cause"`
	Confidence        string   `json:"confidence"`
	RecommendedAction string   `json:"recommended_action,omitempty"`
	Platform          string   `json:"platform,omitempty"`
}

// Output is the rendered narrative.
type Output struct {
	Locale             string   `json:"locale"`
	Period             string   `json:"period"`
	ExecutiveSummary   string   `json:"executive_summary"`
	InsightDetails     []string `json:"insight_details"`
	DataConfidenceNote string   `json:"data_confidence_note,omitempty"`
}
