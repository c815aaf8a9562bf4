// Package validation implements the advisory schema and temporal checks run
// while normalizing an upload. Warnings never stop ingestion.
package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/marketlens/internal/model"
	"github.com/sells-group/marketlens/internal/normalize"
)

// CheckSchema validates one normalized row.
func CheckSchema(metrics map[string]float64, dims map[string]string, granularity model.Granularity) []model.ValidationWarning {
	var warnings []model.ValidationWarning

	if len(metrics) == 0 {
		warnings = append(warnings, model.ValidationWarning{
			Code:     model.WarnEmptyMetrics,
			Message:  "Row contains no valid metrics after normalization.",
			Severity: model.SeverityMedium,
		})
	}

	switch granularity {
	case model.GranularitySKU:
		if blank(dims[model.DimSKU]) {
			warnings = append(warnings, model.ValidationWarning{
				Code:     model.WarnMissingSKU,
				Message:  "SKU granularity report row missing SKU dimension.",
				Severity: model.SeverityMedium,
			})
		}
	case model.GranularityCampaign:
		if blank(dims[model.DimCampaignID]) && blank(dims[model.DimAdGroup]) {
			warnings = append(warnings, model.ValidationWarning{
				Code:     model.WarnMissingCampaignDim,
				Message:  "CAMPAIGN granularity report row missing campaign dimension.",
				Severity: model.SeverityMedium,
			})
		}
	}
	return warnings
}

// RowConfidence derives a row's confidence from the file-level report-type
// confidence, downgraded by the severities of the row's warnings.
func RowConfidence(reportTypeConfidence float64, warnings []model.ValidationWarning) model.Confidence {
	c := model.ConfidenceMedium
	if reportTypeConfidence > 0.8 {
		c = model.ConfidenceHigh
	}
	for _, w := range warnings {
		switch w.Severity {
		case model.SeverityHigh:
			c = c.Min(model.ConfidenceLow)
		case model.SeverityMedium:
			c = c.Min(model.ConfidenceMedium)
		}
	}
	return c
}

// TemporalChecker tracks row dates of a stream and reports duplicate and
// missing dates for DAILY reports once the stream ends.
type TemporalChecker struct {
	granularity model.Granularity
	seen        map[time.Time]struct{}
	duplicate   bool
	missing     int
}

// NewTemporalChecker creates a checker for a file of the given granularity.
func NewTemporalChecker(granularity model.Granularity) *TemporalChecker {
	return &TemporalChecker{granularity: granularity, seen: make(map[time.Time]struct{})}
}

// Observe records one row's resolved date. ok is false when the date cell
// is absent or could not be parsed. Dates are compared by calendar day, so
// differently written cells for the same day count as duplicates.
func (t *TemporalChecker) Observe(date time.Time, ok bool) {
	if t.granularity != model.GranularityDaily {
		return
	}
	if !ok {
		t.missing++
		return
	}
	key := normalize.Day(date)
	if _, dup := t.seen[key]; dup {
		t.duplicate = true
		return
	}
	t.seen[key] = struct{}{}
}

// Warnings returns at most one DUP_DATE and one MISSING_DATE warning.
func (t *TemporalChecker) Warnings() []model.ValidationWarning {
	var warnings []model.ValidationWarning
	if t.duplicate {
		warnings = append(warnings, model.ValidationWarning{
			Code:     model.WarnDuplicateDate,
			Message:  "Duplicate date rows detected in DAILY granularity.",
			Severity: model.SeverityMedium,
		})
	}
	if t.missing > 0 {
		warnings = append(warnings, model.ValidationWarning{
			Code:     model.WarnMissingDate,
			Message:  fmt.Sprintf("%d rows are missing dates in a DAILY report.", t.missing),
			Severity: model.SeverityHigh,
			Count:    t.missing,
		})
	}
	return warnings
}

// Accumulator folds per-row warnings into one warning per code, keeping the
// first message and counting occurrences, in first-seen order.
type Accumulator struct {
	order []string
	byKey map[string]*model.ValidationWarning
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{byKey: make(map[string]*model.ValidationWarning)}
}

// Add records warnings.
func (a *Accumulator) Add(warnings ...model.ValidationWarning) {
	for _, w := range warnings {
		if existing, ok := a.byKey[w.Code]; ok {
			existing.Count += max(w.Count, 1)
			continue
		}
		w.Count = max(w.Count, 1)
		a.byKey[w.Code] = &w
		a.order = append(a.order, w.Code)
	}
}

// Warnings returns the accumulated warnings.
func (a *Accumulator) Warnings() []model.ValidationWarning {
	out := make([]model.ValidationWarning, 0, len(a.order))
	for _, code := range a.order {
		out = append(out, *a.byKey[code])
	}
	return out
}

// NewResult builds a file-level result. The file is valid unless a HIGH warning exists.
func NewResult(warnings []model.ValidationWarning) model.ValidationResult {
	valid := true
	for _, w := range warnings {
		if w.Severity == model.SeverityHigh {
			valid = false
			break
		}
	}
	if warnings == nil {
		warnings = []model.ValidationWarning{}
	}
	return model.ValidationResult{IsValid: valid, Warnings: warnings}
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
