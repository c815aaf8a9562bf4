package model

// Platform identifies the marketplace an export file came from.
type Platform string

const (
	PlatformShopee  Platform = "SHOPEE"
	PlatformLazada  Platform = "LAZADA"
	PlatformTikTok  Platform = "TIKTOK"
	PlatformUnknown Platform = "UNKNOWN"
)

// ReportType distinguishes advertising reports from store overview reports.
type ReportType string

const (
	ReportTypeAds      ReportType = "ADS"
	ReportTypeOverview ReportType = "OVERVIEW"
	ReportTypeUnknown  ReportType = "UNKNOWN"
)

// Granularity is the row-level dimensionality of a report.
type Granularity string

const (
	GranularityAggregatePeriod Granularity = "AGGREGATE_PERIOD"
	GranularityDaily           Granularity = "DAILY"
	GranularitySKU             Granularity = "SKU"
	GranularityCampaign        Granularity = "CAMPAIGN"
	GranularityCreative        Granularity = "CREATIVE"
	GranularityUnknown         Granularity = "UNKNOWN"
)

// LanguageHint is the dominant header language of a file.
type LanguageHint string

const (
	LanguageID    LanguageHint = "ID"
	LanguageEN    LanguageHint = "EN"
	LanguageMixed LanguageHint = "MIXED"
)

// FileType is the declared container format of an uploaded file.
type FileType string

const (
	FileTypeCSV  FileType = "CSV"
	FileTypeXLSX FileType = "XLSX"
)

// FileContextGuess is the classifier's typed, confidence-scored guess about
// a file's structure. It is produced once per upload and never mutated.
type FileContextGuess struct {
	Platform              Platform     `json:"platform"`
	PlatformConfidence    float64      `json:"platform_confidence"`
	ReportType            ReportType   `json:"report_type"`
	ReportTypeConfidence  float64      `json:"report_type_confidence"`
	Granularity           Granularity  `json:"granularity"`
	GranularityConfidence float64      `json:"granularity_confidence"`
	LanguageHint          LanguageHint `json:"language_hint,omitempty"`
	Signals               []string     `json:"signals"`
}

// UnknownGuess returns the fully-UNKNOWN guess used when headers cannot be read.
func UnknownGuess(signals ...string) FileContextGuess {
	return FileContextGuess{
		Platform:    PlatformUnknown,
		ReportType:  ReportTypeUnknown,
		Granularity: GranularityUnknown,
		Signals:     signals,
	}
}

// IsKnown reports whether both platform and report type were resolved.
func (g FileContextGuess) IsKnown() bool {
	return g.Platform != PlatformUnknown && g.Platform != "" &&
		g.ReportType != ReportTypeUnknown && g.ReportType != ""
}
