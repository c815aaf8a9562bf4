package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/marketlens/internal/model"
)

// factRows flattens facts into rows matching factColumns, assigning IDs to
// facts without one. Driver-specific date and JSON encodings are injected.
func factRows(facts []model.UnifiedMetricFact, date func(time.Time) any, js func([]byte) any) ([][]any, error) {
	rows := make([][]any, 0, len(facts))
	for i := range facts {
		f := &facts[i]
		if f.ID == "" {
			f.ID = uuid.New().String()
		}
		ctxJSON, err := json.Marshal(f.Context)
		if err != nil {
			return nil, eris.Wrap(err, "store: marshal metric context")
		}
		metrics := f.Metrics
		if metrics == nil {
			metrics = map[string]float64{}
		}
		metricsJSON, err := json.Marshal(metrics)
		if err != nil {
			return nil, eris.Wrap(err, "store: marshal metrics")
		}
		dims := f.Dimensions
		if dims == nil {
			dims = map[string]string{}
		}
		dimsJSON, err := json.Marshal(dims)
		if err != nil {
			return nil, eris.Wrap(err, "store: marshal dimensions")
		}
		rows = append(rows, []any{
			f.ID, f.WorkspaceID, f.UploadID, f.RowNumber, date(f.Date), string(f.Platform),
			string(f.Granularity), js(ctxJSON), js(metricsJSON), js(dimsJSON),
		})
	}
	return rows, nil
}

func unmarshalFactJSON(f *model.UnifiedMetricFact, ctxJSON, metricsJSON, dimsJSON []byte) error {
	if err := json.Unmarshal(ctxJSON, &f.Context); err != nil {
		return eris.Wrapf(err, "store: unmarshal metric context for fact %s", f.ID)
	}
	if err := json.Unmarshal(metricsJSON, &f.Metrics); err != nil {
		return eris.Wrapf(err, "store: unmarshal metrics for fact %s", f.ID)
	}
	if err := json.Unmarshal(dimsJSON, &f.Dimensions); err != nil {
		return eris.Wrapf(err, "store: unmarshal dimensions for fact %s", f.ID)
	}
	return nil
}
