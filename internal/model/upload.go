package model

import "time"

// UploadStatus tracks an upload through normalization.
type UploadStatus string

const (
	UploadStatusPending    UploadStatus = "PENDING"
	UploadStatusProcessing UploadStatus = "PROCESSING"
	UploadStatusProcessed  UploadStatus = "PROCESSED"
	UploadStatusPartial    UploadStatus = "PARTIAL"
	UploadStatusFailed     UploadStatus = "FAILED"
)

// Upload is a stored marketplace export awaiting or past normalization.
type Upload struct {
	ID           string            `json:"id"`
	WorkspaceID  string            `json:"workspace_id"`
	OriginalName string            `json:"original_name"`
	StoragePath  string            `json:"storage_path"`
	FileType     FileType          `json:"file_type"`
	Platform     Platform          `json:"platform"`
	ReportType   ReportType        `json:"report_type"`
	Context      FileContextGuess  `json:"ingestion_context"`
	Status       UploadStatus      `json:"status"`
	RowCount     int               `json:"row_count"`
	StoredRows   int               `json:"stored_rows"`
	Validation   *ValidationResult `json:"validation_result,omitempty"`
	Error        string            `json:"error,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	ProcessedAt  *time.Time        `json:"processed_at,omitempty"`
}

// UploadUpdate carries the mutable fields written at the end of a normalization attempt.
type UploadUpdate struct {
	Status      UploadStatus
	RowCount    int
	StoredRows  int
	Validation  *ValidationResult
	Error       string
	ProcessedAt *time.Time
}

// NormalizationSummary is returned to callers of the normalization entry point.
//
// AvgConfidence is the mean row confidence score of stored facts;
// ReportConfidence is the classifier's report-type confidence for the file.
// They are reported separately on purpose.
type NormalizationSummary struct {
	UploadID         string            `json:"upload_id"`
	Status           UploadStatus      `json:"status"`
	TotalRows        int               `json:"total_rows"`
	StoredRows       int               `json:"stored_rows"`
	MappedMetrics    int               `json:"mapped_metrics"`
	SuppressedRows   int               `json:"suppressed_metrics"`
	AvgConfidence    float64           `json:"avg_confidence"`
	ReportConfidence float64           `json:"report_confidence"`
	Validation       *ValidationResult `json:"validation_result"`
	SnapshotError    string            `json:"snapshot_error,omitempty"`
}
