package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"serafin/internal/bootstrap/logging"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Warn(
			logging.WithAttrs(r.Context(), slog.String("component", "api")),
			"response encode failed",
			slog.String("error", err.Error()),
		)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, errorResponse{Error: message})
}
