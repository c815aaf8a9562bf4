package classify

import (
	"fmt"

	"github.com/sells-group/marketlens/internal/model"
)

// platformRule scores a platform by the number of distinct keywords found
// across the headers. Table order is the tie-break.
type platformRule struct {
	Platform model.Platform
	Keywords []string
}

var platformTable = []platformRule{
	{model.PlatformShopee, keywords("order sn", "no. pesanan", "produk", "pesanan dibatalkan", "shopee", "nilai pesanan", "biaya iklan")},
	{model.PlatformTikTok, keywords("ad group", "video id", "roi", "conversion rate", "tiktok")},
	{model.PlatformLazada, keywords("lazada", "toko", "imbal hasil", "pendapatan", "roi toko", "seller sku")},
}

// platformBands maps a match count to a confidence; counts past the end use the last band.
var platformBands = []float64{0, 0.5, 0.8, 0.95}

// outcomeRule is one row of an ordered decision table: the first rule whose
// predicate holds decides the outcome.
type outcomeRule[T any] struct {
	When       func(Observation) bool
	Outcome    T
	Confidence float64
	Signal     string
}

var reportTypeTable = []outcomeRule[model.ReportType]{
	{func(o Observation) bool { return o.HasSpend }, model.ReportTypeAds, 0.9, "Strong signal: spend/cost column detected -> ADS"},
	{func(o Observation) bool { return o.HasCampaign }, model.ReportTypeAds, 0.6, "Weak signal: campaign column detected -> ADS"},
	{always, model.ReportTypeOverview, 0.8, "Default signal: no ad columns -> OVERVIEW"},
}

var (
	creativeKeywords    = keywords("creative", "video_id", "id_iklan", "nama_iklan")
	campaignDimKeywords = keywords("campaign_id", "ad_group", "kampanye")
	skuKeywords         = keywords("sku", "product_id", "nomor_referensi_sku")
	skuRefineKeywords   = keywords("sku")
	campaignRefine      = keywords("campaign")
)

var granularityTable = []outcomeRule[model.Granularity]{
	{func(o Observation) bool { return o.has(creativeKeywords) }, model.GranularityCreative, 0.9, "Priority signal: creative/video columns detected -> CREATIVE"},
	{func(o Observation) bool { return o.has(campaignDimKeywords) }, model.GranularityCampaign, 0.85, "Priority signal: campaign/ad group columns detected -> CAMPAIGN"},
	{func(o Observation) bool { return o.has(skuKeywords) }, model.GranularitySKU, 0.85, "Priority signal: SKU/product id columns detected -> SKU"},
	{func(o Observation) bool { return o.HasDate }, model.GranularityDaily, 0.75, "Signal: date column detected -> DAILY"},
	{always, model.GranularityAggregatePeriod, 0.6, "Default: no granular keys found -> AGGREGATE_PERIOD"},
}

// refineBelow is the granularity confidence under which the refinement table runs.
const refineBelow = 0.7

var refinementTable = []outcomeRule[model.Granularity]{
	{func(o Observation) bool { return o.has(skuRefineKeywords) && o.HasDate }, model.GranularitySKU, 0.75, "Refinement: mixed SKU + date -> SKU"},
	{func(o Observation) bool { return o.has(campaignRefine) && o.HasSpend && !o.HasDate }, model.GranularityCampaign, 0.75, "Refinement: campaign + spend + no date -> CAMPAIGN"},
}

func always(Observation) bool { return true }

// first evaluates a decision table top-down.
func first[T any](table []outcomeRule[T], obs Observation) (outcomeRule[T], bool) {
	for _, r := range table {
		if r.When(obs) {
			return r, true
		}
	}
	return outcomeRule[T]{}, false
}

func detectPlatform(obs Observation) (model.Platform, float64, []string) {
	var signals []string
	best, bestScore := model.PlatformUnknown, 0
	for _, rule := range platformTable {
		score := 0
		for _, k := range rule.Keywords {
			if anyContains(obs.Headers, []string{k}) {
				score++
			}
		}
		if score > 0 {
			signals = append(signals, fmt.Sprintf("Platform signal %s: %d matches", rule.Platform, score))
		}
		if score > bestScore {
			best, bestScore = rule.Platform, score
		}
	}
	band := bestScore
	if band >= len(platformBands) {
		band = len(platformBands) - 1
	}
	return best, platformBands[band], signals
}

func detectReportType(obs Observation) (model.ReportType, float64, []string) {
	r, _ := first(reportTypeTable, obs)
	return r.Outcome, r.Confidence, []string{r.Signal}
}

func detectGranularity(obs Observation) (model.Granularity, float64, []string) {
	r, _ := first(granularityTable, obs)
	granularity, confidence, signals := r.Outcome, r.Confidence, []string{r.Signal}

	if confidence < refineBelow {
		if ref, ok := first(refinementTable, obs); ok && ref.Confidence > confidence {
			granularity, confidence = ref.Outcome, ref.Confidence
			signals = append(signals, ref.Signal)
		}
	}
	return granularity, confidence, signals
}
