package prepare

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/marketlens/internal/insight"
	"github.com/sells-group/marketlens/internal/narrative"
	"github.com/sells-group/marketlens/internal/narrative/render"
)

// Service composes the insight engine, the preparer and the renderer.
type Service struct {
	insights *insight.Engine
	preparer *Preparer
}

// NewService creates a Service reading snapshots from st.
func NewService(st Store) *Service {
	return &Service{
		insights: insight.NewEngine(st),
		preparer: NewPreparer(st),
	}
}

// Narrate renders the narrative for [start, end]. A window without
// executive snapshots yields the fixed no-data narrative.
func (s *Service) Narrate(ctx context.Context, workspaceID string, start, end time.Time) (*narrative.Output, error) {
	insights, err := s.insights.Generate(ctx, workspaceID, start, end)
	if err != nil {
		return nil, err
	}

	in, err := s.preparer.Prepare(ctx, workspaceID, start, end, insights)
	if err != nil {
		return nil, err
	}
	if in == nil {
		zap.L().Debug("narrative: no data", zap.String("workspace_id", workspaceID))
		out := render.NoData(Period(start, end))
		return &out, nil
	}

	out := render.Render(*in)
	return &out, nil
}
