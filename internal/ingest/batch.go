package ingest

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/marketlens/internal/model"
)

// ItemResult is the outcome of one upload in a batch.
type ItemResult struct {
	UploadID string                      `json:"upload_id"`
	Summary  *model.NormalizationSummary `json:"summary,omitempty"`
	Error    string                      `json:"error,omitempty"`
}

// BatchResult summarizes a NormalizeMany run. Items keep the input order.
type BatchResult struct {
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Items     []ItemResult `json:"items"`
}

// NormalizeMany normalizes uploads concurrently. A failing upload does not
// stop the others; uploads of the same workspace still run one at a time.
func (e *Engine) NormalizeMany(ctx context.Context, uploadIDs []string) (*BatchResult, error) {
	res := &BatchResult{
		Total: len(uploadIDs),
		Items: make([]ItemResult, len(uploadIDs)),
	}
	if len(uploadIDs) == 0 {
		return res, nil
	}

	var succeeded, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	for i, id := range uploadIDs {
		g.Go(func() error {
			item := ItemResult{UploadID: id}
			summary, err := e.NormalizeUpload(gctx, id)
			item.Summary = summary
			if err != nil {
				failed.Add(1)
				item.Error = err.Error()
				zap.L().Warn("ingest: upload failed in batch",
					zap.String("upload_id", id),
					zap.Error(err),
				)
			} else {
				succeeded.Add(1)
			}
			res.Items[i] = item
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	res.Succeeded = int(succeeded.Load())
	res.Failed = int(failed.Load())
	zap.L().Info("ingest: batch complete",
		zap.Int("total", res.Total),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
	)
	return res, ctx.Err()
}
