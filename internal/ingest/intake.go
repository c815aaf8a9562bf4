package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/marketlens/internal/classify"
	"github.com/sells-group/marketlens/internal/fetcher"
	"github.com/sells-group/marketlens/internal/model"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Intake stores a raw export under the storage directory, classifies it and
// registers a PENDING upload. The returned upload carries the classifier's guess.
func (e *Engine) Intake(ctx context.Context, workspaceID, originalName string, r io.Reader) (*model.Upload, error) {
	if strings.TrimSpace(workspaceID) == "" {
		return nil, eris.New("ingest: workspace id is required")
	}
	fileType := fetcher.FileTypeFromName(originalName)

	now := e.now()
	dir := filepath.Join(e.cfg.StorageDir, "raw", safeName(workspaceID), now.Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "ingest: create %s", dir)
	}
	path := filepath.Join(dir, fmt.Sprintf("%d-%s", now.UnixMilli(), safeName(filepath.Base(originalName))))

	if err := writeFile(path, r); err != nil {
		return nil, err
	}

	guess := classify.DetectFileContext(ctx, path, fileType)
	u := &model.Upload{
		ID:           uuid.NewString(),
		WorkspaceID:  workspaceID,
		OriginalName: originalName,
		StoragePath:  path,
		FileType:     fileType,
		Platform:     guess.Platform,
		ReportType:   guess.ReportType,
		Context:      guess,
		Status:       model.UploadStatusPending,
		CreatedAt:    now,
	}
	if err := e.store.CreateUpload(ctx, u); err != nil {
		_ = os.Remove(path)
		return nil, eris.Wrapf(err, "ingest: register upload %s", originalName)
	}

	zap.L().Info("ingest: upload stored",
		zap.String("upload_id", u.ID),
		zap.String("workspace_id", workspaceID),
		zap.String("path", path),
		zap.String("platform", string(guess.Platform)),
		zap.String("report_type", string(guess.ReportType)),
		zap.String("granularity", string(guess.Granularity)),
	)
	return u, nil
}

func writeFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "ingest: create %s", path)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return eris.Wrapf(err, "ingest: write %s", path)
	}
	return eris.Wrapf(f.Close(), "ingest: close %s", path)
}

func safeName(s string) string {
	s = unsafeName.ReplaceAllString(s, "_")
	if s == "" || s == "." || s == ".." {
		return "file"
	}
	return s
}
