// Package kpi holds the registry of derived marketing KPIs and their
// eligibility rules. A KPI that cannot be computed yields ok=false, never
// zero, NaN or Inf.
package kpi

import (
	"math"

	"github.com/sells-group/marketlens/internal/model"
)

// KPI names.
const (
	ROAS = "ROAS"
	CVR  = "CVR"
	CTR  = "CTR"
	AOV  = "AOV"
)

// Definition describes one KPI.
type Definition struct {
	Name     string
	Requires []string
	// Validate reports whether the KPI is meaningful for the context.
	Validate func(ctx model.MetricContext, granularity model.Granularity) bool
	// Compute evaluates the formula over aggregated metrics.
	Compute func(m map[string]float64) (float64, bool)
}

// Registry maps a KPI name to its definition.
type Registry map[string]Definition

func adsOnly(ctx model.MetricContext, _ model.Granularity) bool { return ctx.IsAds() }

func ratio(num, den string) func(map[string]float64) (float64, bool) {
	return func(m map[string]float64) (float64, bool) {
		d := m[den]
		if d <= 0 {
			return 0, false
		}
		return m[num] / d, true
	}
}

// DefaultRegistry returns ROAS, CVR, CTR and AOV.
func DefaultRegistry() Registry {
	return Registry{
		ROAS: {
			Name:     ROAS,
			Requires: []string{model.MetricRevenue, model.MetricSpend},
			Validate: func(ctx model.MetricContext, _ model.Granularity) bool {
				return ctx.IsAds() || ctx.ReportType == "ads"
			},
			Compute: ratio(model.MetricRevenue, model.MetricSpend),
		},
		CVR: {
			Name:     CVR,
			Requires: []string{model.MetricConversions, model.MetricClicks},
			Validate: adsOnly,
			Compute:  ratio(model.MetricConversions, model.MetricClicks),
		},
		CTR: {
			Name:     CTR,
			Requires: []string{model.MetricClicks, model.MetricImpressions},
			Validate: adsOnly,
			Compute:  ratio(model.MetricClicks, model.MetricImpressions),
		},
		AOV: {
			Name:     AOV,
			Requires: []string{model.MetricRevenue, model.MetricOrders},
			Validate: func(model.MetricContext, model.Granularity) bool { return true },
			Compute:  ratio(model.MetricRevenue, model.MetricOrders),
		},
	}
}

// Engine evaluates KPIs from a registry.
type Engine struct {
	registry Registry
}

// NewEngine creates an engine. A nil registry uses DefaultRegistry.
func NewEngine(r Registry) *Engine {
	if r == nil {
		r = DefaultRegistry()
	}
	return &Engine{registry: r}
}

// CanCompute reports whether the KPI exists, is eligible for the context and
// has every required input present.
func (e *Engine) CanCompute(name string, metrics map[string]float64, ctx model.MetricContext, granularity model.Granularity) bool {
	def, ok := e.registry[name]
	if !ok {
		return false
	}
	if def.Validate != nil && !def.Validate(ctx, granularity) {
		return false
	}
	for _, req := range def.Requires {
		v, present := metrics[req]
		if !present || math.IsNaN(v) {
			return false
		}
	}
	return true
}

// Compute evaluates a KPI. ok is false when CanCompute fails, the
// denominator is not positive or the result is not finite.
func (e *Engine) Compute(name string, metrics map[string]float64, ctx model.MetricContext, granularity model.Granularity) (float64, bool) {
	if !e.CanCompute(name, metrics, ctx, granularity) {
		return 0, false
	}
	v, ok := e.registry[name].Compute(metrics)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Ptr computes a KPI and returns nil when it cannot be computed.
func (e *Engine) Ptr(name string, metrics map[string]float64, ctx model.MetricContext, granularity model.Granularity) *float64 {
	v, ok := e.Compute(name, metrics, ctx, granularity)
	if !ok {
		return nil
	}
	return &v
}
