package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/marketlens/internal/model"
	"github.com/sells-group/marketlens/internal/narrative"
)

const dayLayout = "2006-01-02"

func parseDay(flag, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, eris.Errorf("--%s is required (YYYY-MM-DD)", flag)
	}
	t, err := time.Parse(dayLayout, raw)
	if err != nil {
		return time.Time{}, eris.Errorf("--%s: invalid date %q, expected YYYY-MM-DD", flag, raw)
	}
	return t, nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode output")
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatUploadsList(out io.Writer, uploads []model.Upload) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tFILE\tPLATFORM\tREPORT\tSTATUS\tROWS\tSTORED\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t--------\t------\t------\t----\t------\t-------")

	for _, u := range uploads {
		name := u.OriginalName
		if len(name) > 30 {
			name = name[:27] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			truncateID(u.ID),
			name,
			u.Platform,
			u.ReportType,
			u.Status,
			u.RowCount,
			u.StoredRows,
			u.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

func formatSummary(out io.Writer, s *model.NormalizationSummary) {
	_, _ = fmt.Fprintf(out, "Upload:      %s\n", s.UploadID)
	_, _ = fmt.Fprintf(out, "Status:      %s\n", s.Status)
	_, _ = fmt.Fprintf(out, "Rows:        %d total, %d stored, %d suppressed\n", s.TotalRows, s.StoredRows, s.SuppressedRows)
	_, _ = fmt.Fprintf(out, "Metrics:     %d mapped values\n", s.MappedMetrics)
	_, _ = fmt.Fprintf(out, "Confidence:  avg %.2f, report %.2f\n", s.AvgConfidence, s.ReportConfidence)
	if s.Validation != nil {
		_, _ = fmt.Fprintf(out, "Valid:       %t\n", s.Validation.IsValid)
		for _, w := range s.Validation.Warnings {
			_, _ = fmt.Fprintf(out, "  [%s] %s x%d: %s\n", w.Severity, w.Code, w.Count, w.Message)
		}
	}
	if s.SnapshotError != "" {
		_, _ = fmt.Fprintf(out, "Snapshots:   rebuild failed: %s\n", s.SnapshotError)
	}
}

func formatNarrative(out io.Writer, n *narrative.Output) {
	_, _ = fmt.Fprintln(out, n.ExecutiveSummary)
	for _, d := range n.InsightDetails {
		_, _ = fmt.Fprintln(out)
		_, _ = fmt.Fprintln(out, d)
	}
	if n.DataConfidenceNote != "" {
		_, _ = fmt.Fprintln(out)
		_, _ = fmt.Fprintln(out, n.DataConfidenceNote)
	}
}
