package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sells-group/marketlens/internal/ingest"
	"github.com/sells-group/marketlens/internal/insight"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error":   code,
		"message": message,
	})
}

// failure maps a domain error onto a response. Unexpected errors get a
// generic message; the cause is only logged.
func failure(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ingest.ErrUploadNotFound):
		writeError(w, http.StatusNotFound, "upload_not_found", "Upload not found")
	case errors.Is(err, ingest.ErrUnknownContext):
		writeError(w, http.StatusUnprocessableEntity, "unknown_context", "Platform or report type could not be determined")
	case errors.Is(err, ingest.ErrNoMappingTable):
		writeError(w, http.StatusUnprocessableEntity, "no_mapping", "No column mapping for this platform and report type")
	case errors.Is(err, insight.ErrInvalidWindow):
		writeError(w, http.StatusBadRequest, "invalid_range", "end must not be before start")
	default:
		zap.L().Error("server: request failed",
			zap.String("op", op),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
