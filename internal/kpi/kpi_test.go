package kpi

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/marketlens/internal/model"
)

var (
	adsCtx      = model.MetricContext{Source: model.SourceAds, ReportType: "ads", Confidence: model.ConfidenceHigh}
	blendedCtx  = model.MetricContext{Source: model.SourceBlended, ReportType: "overview", Confidence: model.ConfidenceHigh}
	organicCtx  = model.MetricContext{Source: model.SourceOrganic, ReportType: "overview", Confidence: model.ConfidenceHigh}
	adsTypedCtx = model.MetricContext{Source: model.SourceBlended, ReportType: "ads", Confidence: model.ConfidenceHigh}
)

func TestCompute(t *testing.T) {
	e := NewEngine(nil)
	full := map[string]float64{
		"revenue": 1000, "spend": 250, "orders": 20,
		"clicks": 100, "impressions": 4000, "conversions": 5,
	}

	tests := []struct {
		name    string
		kpi     string
		metrics map[string]float64
		ctx     model.MetricContext
		want    float64
		ok      bool
	}{
		{"roas ads", ROAS, full, adsCtx, 4, true},
		{"roas ads report type", ROAS, full, adsTypedCtx, 4, true},
		{"roas blended ineligible", ROAS, full, blendedCtx, 0, false},
		{"roas organic ineligible", ROAS, full, organicCtx, 0, false},
		{"roas zero spend", ROAS, map[string]float64{"revenue": 10, "spend": 0}, adsCtx, 0, false},
		{"roas negative spend", ROAS, map[string]float64{"revenue": 10, "spend": -1}, adsCtx, 0, false},
		{"roas missing revenue", ROAS, map[string]float64{"spend": 10}, adsCtx, 0, false},
		{"cvr ads", CVR, full, adsCtx, 0.05, true},
		{"cvr ads report type but blended source", CVR, full, adsTypedCtx, 0, false},
		{"cvr zero clicks", CVR, map[string]float64{"conversions": 1, "clicks": 0}, adsCtx, 0, false},
		{"ctr ads", CTR, full, adsCtx, 0.025, true},
		{"ctr blended ineligible", CTR, full, blendedCtx, 0, false},
		{"ctr missing impressions", CTR, map[string]float64{"clicks": 3}, adsCtx, 0, false},
		{"aov blended", AOV, full, blendedCtx, 50, true},
		{"aov organic", AOV, full, organicCtx, 50, true},
		{"aov zero orders", AOV, map[string]float64{"revenue": 5, "orders": 0}, blendedCtx, 0, false},
		{"unknown kpi", "MER", full, adsCtx, 0, false},
		{"overflow to inf", ROAS, map[string]float64{"revenue": math.MaxFloat64, "spend": 1e-300}, adsCtx, 0, false},
		{"nan input", AOV, map[string]float64{"revenue": math.NaN(), "orders": 2}, blendedCtx, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := e.Compute(tt.kpi, tt.metrics, tt.ctx, model.GranularityDaily)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-12)
			assert.False(t, math.IsNaN(got))
			assert.False(t, math.IsInf(got, 0))
		})
	}
}

func TestCanCompute(t *testing.T) {
	e := NewEngine(nil)
	assert.True(t, e.CanCompute(AOV, map[string]float64{"revenue": 0, "orders": 0}, blendedCtx, model.GranularitySKU))
	assert.False(t, e.CanCompute(AOV, map[string]float64{"revenue": 1}, blendedCtx, model.GranularitySKU))
	assert.False(t, e.CanCompute("nope", nil, adsCtx, model.GranularityDaily))
}

func TestPtr(t *testing.T) {
	e := NewEngine(nil)
	assert.Nil(t, e.Ptr(ROAS, map[string]float64{"revenue": 1, "spend": 0}, adsCtx, model.GranularityDaily))
	p := e.Ptr(ROAS, map[string]float64{"revenue": 6, "spend": 3}, adsCtx, model.GranularityDaily)
	if assert.NotNil(t, p) {
		assert.InDelta(t, 2.0, *p, 1e-12)
	}
}

func TestCustomRegistry(t *testing.T) {
	e := NewEngine(Registry{"MER": {
		Name:     "MER",
		Requires: []string{"revenue", "spend"},
		Compute:  ratio("revenue", "spend"),
	}})
	v, ok := e.Compute("MER", map[string]float64{"revenue": 9, "spend": 3}, blendedCtx, model.GranularityDaily)
	assert.True(t, ok)
	assert.InDelta(t, 3.0, v, 1e-12)
	_, ok = e.Compute(ROAS, map[string]float64{"revenue": 9, "spend": 3}, adsCtx, model.GranularityDaily)
	assert.False(t, ok)
}
