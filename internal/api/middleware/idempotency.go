package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayHeader      = "X-Idempotent-Replay"
)

// storedResponse is what gets cached in Redis for a completed request.
// InProgress marks a provisional record written before the handler runs,
// so a concurrent retry with the same key gets a 409 instead of a
// duplicate execution.
type storedResponse struct {
	InProgress bool   `json:"inProgress"`
	Status     int    `json:"status"`
	Body       []byte `json:"body"`
}

type IdempotencyMiddleware struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewIdempotencyMiddleware(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *IdempotencyMiddleware {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyMiddleware{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.With("component", "IdempotencyMiddleware"),
	}
}

func (m *IdempotencyMiddleware) Middleware(next http.Handler) http.Handler {
	if m.rdb == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(idempotencyHeader)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		redisKey := "idempotency:" + r.Method + ":" + r.URL.Path + ":" + key

		provisional, _ := json.Marshal(storedResponse{InProgress: true})
		acquired, err := m.rdb.SetNX(ctx, redisKey, provisional, m.ttl).Result()
		if err != nil {
			// Redis being down should not block business traffic.
			m.logger.Error("Idempotency check failed, passing request through", "error", err, "key", key)
			next.ServeHTTP(w, r)
			return
		}

		if !acquired {
			m.replayOrConflict(ctx, w, redisKey, key)
			return
		}

		buf := new(bytes.Buffer)
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ww.Tee(buf)

		next.ServeHTTP(ww, r)

		final, _ := json.Marshal(storedResponse{Status: ww.Status(), Body: buf.Bytes()})
		if err := m.rdb.Set(ctx, redisKey, final, m.ttl).Err(); err != nil {
			m.logger.Error("Failed to store idempotent response", "error", err, "key", key)
		}
	})
}

func (m *IdempotencyMiddleware) replayOrConflict(ctx context.Context, w http.ResponseWriter, redisKey, key string) {
	raw, err := m.rdb.Get(ctx, redisKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			m.logger.Error("Failed to load stored idempotent response", "error", err, "key", key)
		}
		http.Error(w, `{"error":{"message":"Request is already being processed"}}`, http.StatusConflict)
		return
	}

	var stored storedResponse
	if err := json.Unmarshal(raw, &stored); err != nil || stored.InProgress {
		http.Error(w, `{"error":{"message":"Request is already being processed"}}`, http.StatusConflict)
		return
	}

	m.logger.Info("Replaying stored response for idempotency key", "key", key)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(replayHeader, "true")
	w.WriteHeader(stored.Status)
	w.Write(stored.Body)
}
