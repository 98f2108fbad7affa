// Package respond writes JSON responses and maps error kinds to HTTP status codes.
package respond

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/attractive-boy/schoolbus-back/internal/apperr"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Error writes err as {"error": {"kind", "message"}}. Internal errors are
// logged with their cause and shown to the client without it.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := Status(kind)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "kind", kind.String(), "error", err)
	}
	JSON(w, status, errorBody{Error: errorDetail{Kind: kind.String(), Message: apperr.MessageOf(err)}})
}

func Status(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalidArgument:
		return http.StatusBadRequest
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindPermissionDenied:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindFailedPrecondition:
		return http.StatusConflict
	case apperr.KindResourceExhausted:
		return http.StatusTooManyRequests
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
