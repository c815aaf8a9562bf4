package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/marketlens/internal/model"
)

const dateLayout = "2006-01-02"

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.opts.MaxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "file_too_large", "File exceeds the upload limit")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file_too_large", "File exceeds the upload limit")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_form", "Expected a multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	ws := strings.TrimSpace(r.FormValue("workspace_id"))
	if ws == "" {
		writeError(w, http.StatusBadRequest, "missing_workspace", "workspace_id is required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing_file", "file is required")
		return
	}
	defer file.Close() //nolint:errcheck

	u, err := s.deps.Ingest.Intake(r.Context(), ws, header.Filename, file)
	if err != nil {
		failure(w, r, "upload", err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	summary, err := s.deps.Ingest.NormalizeUpload(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		failure(w, r, "normalize", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type normalizeManyRequest struct {
	UploadIDs []string `json:"upload_ids"`
}

func (s *Server) handleNormalizeMany(w http.ResponseWriter, r *http.Request) {
	var req normalizeManyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Invalid request body")
		return
	}
	if len(req.UploadIDs) == 0 {
		writeError(w, http.StatusBadRequest, "missing_uploads", "upload_ids is required")
		return
	}
	res, err := s.deps.Ingest.NormalizeMany(r.Context(), req.UploadIDs)
	if err != nil {
		failure(w, r, "normalize_many", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRebuildSnapshots(w http.ResponseWriter, r *http.Request) {
	var date *time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		date = &d
	}
	res, err := s.deps.Ingest.RebuildSnapshots(r.Context(), chi.URLParam(r, "ws"), date)
	if err != nil {
		failure(w, r, "snapshots", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"executive": len(res.Executive),
		"channel":   len(res.Channel),
	})
}

type dashboardResponse struct {
	WorkspaceID string                    `json:"workspace_id"`
	Start       string                    `json:"start"`
	End         string                    `json:"end"`
	Executive   []model.ExecutiveSnapshot `json:"executive"`
	Channels    []model.ChannelSnapshot   `json:"channels"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	start, end, ok := parseRange(w, r)
	if !ok {
		return
	}
	ws := chi.URLParam(r, "ws")
	exec, err := s.deps.Snapshots.ListExecutiveSnapshots(r.Context(), ws, start, end)
	if err != nil {
		failure(w, r, "dashboard", err)
		return
	}
	channels, err := s.deps.Snapshots.ListChannelSnapshots(r.Context(), ws, start, end)
	if err != nil {
		failure(w, r, "dashboard", err)
		return
	}
	if exec == nil {
		exec = []model.ExecutiveSnapshot{}
	}
	if channels == nil {
		channels = []model.ChannelSnapshot{}
	}
	writeJSON(w, http.StatusOK, dashboardResponse{
		WorkspaceID: ws,
		Start:       start.Format(dateLayout),
		End:         end.Format(dateLayout),
		Executive:   exec,
		Channels:    channels,
	})
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	start, end, ok := parseRange(w, r)
	if !ok {
		return
	}
	insights, err := s.deps.Insights.Generate(r.Context(), chi.URLParam(r, "ws"), start, end)
	if err != nil {
		failure(w, r, "insights", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"insights": insights})
}

func (s *Server) handleNarrative(w http.ResponseWriter, r *http.Request) {
	start, end, ok := parseRange(w, r)
	if !ok {
		return
	}
	out, err := s.deps.Narrative.Narrate(r.Context(), chi.URLParam(r, "ws"), start, end)
	if err != nil {
		failure(w, r, "narrative", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// parseRange reads the required start and end query dates. It writes the
// error response itself and reports false on failure.
func parseRange(w http.ResponseWriter, r *http.Request) (start, end time.Time, ok bool) {
	q := r.URL.Query()
	start, err := parseDate(q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_start", err.Error())
		return start, end, false
	}
	end, err = parseDate(q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_end", err.Error())
		return start, end, false
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "invalid_range", "end must not be before start")
		return start, end, false
	}
	return start, end, true
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, eris.New("date is required (YYYY-MM-DD)")
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, eris.Errorf("invalid date %q, expected YYYY-MM-DD", raw)
	}
	return t, nil
}
