package delivery

import (
	"context"
	"errors"
	"net/http"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/voice_assistant/internal/ports"
	json "github.com/goccy/go-json"
)

// statusFor маппит категорию ошибки в HTTP-статус
func statusFor(err error) int {
	switch {
	case errors.Is(err, ports.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ports.ErrStorageRequired):
		return http.StatusNotImplemented
	case errors.Is(err, context.Canceled):
		// клиент ушёл, ответ всё равно никто не прочитает
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail пишет JSON-ошибку; 5xx логируются как error, 4xx как warn
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	level := "warn"
	if status >= http.StatusInternalServerError {
		level = "error"
	}
	h.log.Log(logger.LogEntry{
		Level:   level,
		Message: op + " failed: " + r.Method + " " + r.URL.Path,
		Error:   err,
		Service: serviceName,
	})
	writeError(w, status, op+": "+err.Error())
}
