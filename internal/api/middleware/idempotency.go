package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/attractive-boy/schoolbus-back/internal/api/respond"
	"github.com/attractive-boy/schoolbus-back/internal/apperr"
	"github.com/attractive-boy/schoolbus-back/internal/auth"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

const (
	processingMarker = "PROCESSING"
	lockTTL          = 30 * time.Second
	resultTTL        = 24 * time.Hour
)

type storedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// Idempotency replays the stored response of a request repeated with the same
// Idempotency-Key by the same caller. Keys of failed (5xx) requests are
// released so the client can retry.
func Idempotency(redisClient *redis.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Only apply to state-changing methods
			if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			caller := "anonymous"
			if id, ok := auth.FromContext(r.Context()); ok {
				caller = id.UserID
			}
			idemKey := fmt.Sprintf("idempotency:%s:%s", caller, key)
			ctx := r.Context()

			val, err := redisClient.Get(ctx, idemKey).Result()
			switch {
			case err == nil:
				replay(w, r, val)
				return
			case !errors.Is(err, redis.Nil):
				slog.WarnContext(ctx, "idempotency lookup failed, serving without it", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			acquired, err := redisClient.SetNX(ctx, idemKey, processingMarker, lockTTL).Result()
			if err != nil {
				slog.WarnContext(ctx, "idempotency lock failed, serving without it", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !acquired {
				respond.Error(w, r, apperr.New(apperr.KindFailedPrecondition, "a request with this idempotency key is in progress"))
				return
			}

			var buf bytes.Buffer
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&buf)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status >= http.StatusInternalServerError || !json.Valid(buf.Bytes()) {
				redisClient.Del(ctx, idemKey)
				return
			}

			stored, err := json.Marshal(storedResponse{Status: status, Body: buf.Bytes()})
			if err != nil {
				redisClient.Del(ctx, idemKey)
				return
			}
			if err := redisClient.Set(ctx, idemKey, stored, resultTTL).Err(); err != nil {
				slog.WarnContext(ctx, "failed to store idempotent response", "error", err)
			}
		})
	}
}

func replay(w http.ResponseWriter, r *http.Request, val string) {
	if val == processingMarker {
		respond.Error(w, r, apperr.New(apperr.KindFailedPrecondition, "a request with this idempotency key is in progress"))
		return
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(val), &stored); err != nil {
		respond.Error(w, r, fmt.Errorf("decode stored response: %w", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Idempotency-Hit", "true")
	w.WriteHeader(stored.Status)
	w.Write(stored.Body)
}
