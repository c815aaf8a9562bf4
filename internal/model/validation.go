package model

// Severity grades a validation warning.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Warning codes emitted by the validation engine.
const (
	WarnEmptyMetrics       = "EMPTY_METRICS"
	WarnMissingSKU         = "MISSING_SKU"
	WarnMissingCampaignDim = "MISSING_CAMPAIGN_DIM"
	WarnDuplicateDate      = "DUP_DATE"
	WarnMissingDate        = "MISSING_DATE"
)

// ValidationWarning is an advisory finding attached to a file or row.
// Count is the number of rows that raised it once warnings are accumulated.
type ValidationWarning struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Count    int      `json:"count,omitempty"`
}

// ValidationResult aggregates a file's warnings. IsValid is false if and only
// if any HIGH warning exists; the file is still ingested either way.
type ValidationResult struct {
	IsValid  bool                `json:"is_valid"`
	Warnings []ValidationWarning `json:"warnings"`
}
