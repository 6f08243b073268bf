package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"flowpilot/internal/domain"
	"flowpilot/internal/usecase/analysis"
	"flowpilot/internal/usecase/usage"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

// decode читает JSON тело запроса. Пустое тело оставляет dst нетронутым.
func decode(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// statusFor сопоставляет ошибку сервиса HTTP-статусу.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, usage.ErrUnknownCounter):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrEventNotFound), errors.Is(err, domain.ErrJobNotFound),
		errors.Is(err, domain.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, analysis.ErrQueueDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
