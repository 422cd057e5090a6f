package middleware

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/responses"
	pkgerrors "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/errors"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/logger"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/security"
)

const (
	IdempotencyHeader = "Idempotency-Key"

	requestIdempotencyTTL = 24 * time.Hour
	issueIdempotencyTTL   = 7 * 24 * time.Hour
)

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
}

type idempotencyRule struct {
	method  string
	pattern string
	ttl     time.Duration
}

// Routes whose replays would double-reserve or double-issue stock.
var idempotencyRules = []idempotencyRule{
	{method: http.MethodPost, pattern: "/api/v1/student/transactions", ttl: requestIdempotencyTTL},
	{method: http.MethodPost, pattern: "/api/v1/staff/transfers", ttl: requestIdempotencyTTL},
	{method: http.MethodPost, pattern: "/api/v1/staff/lab-sessions", ttl: issueIdempotencyTTL},
	{method: http.MethodPost, pattern: "/api/v1/staff/transactions/{transactionId}/activate", ttl: issueIdempotencyTTL},
}

type idempotencyRecord struct {
	Status      int    `json:"status"`
	Body        string `json:"body"`
	ContentType string `json:"content_type,omitempty"`
	RequestHash string `json:"request_hash"`
}

// Idempotency replays the stored response for a repeated Idempotency-Key on
// the guarded routes. Attach it with chi's With so the full route pattern is
// resolved, and after Auth so keys are scoped per caller.
func Idempotency(store IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, guarded := ruleFor(r.Method, routePattern(r))
			if !guarded || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			requestHash := security.DigestToken(string(body))

			scope := strings.Join([]string{userIDFromContext(ctx), labIDFromContext(ctx), r.Method, r.URL.Path}, "|")
			key := store.IdempotencyKey(security.DigestToken(scope), clientKey)

			stored, err := store.Get(ctx, key)
			if err != nil && !errors.Is(err, redis.Nil) {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if stored != "" {
				var record idempotencyRecord
				if err := json.Unmarshal([]byte(stored), &record); err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
					return
				}
				if record.RequestHash != requestHash {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request body"))
					return
				}
				replay(w, record)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			// server faults are not cached so the client can retry them
			if capture.status >= http.StatusInternalServerError {
				return
			}
			payload, err := json.Marshal(idempotencyRecord{
				Status:      capture.statusOrOK(),
				Body:        base64.StdEncoding.EncodeToString(capture.body.Bytes()),
				ContentType: capture.Header().Get("Content-Type"),
				RequestHash: requestHash,
			})
			if err != nil {
				logFailure(ctx, logg, "marshal idempotency record", err)
				return
			}
			if _, err := store.SetNX(ctx, key, string(payload), ttl); err != nil {
				logFailure(ctx, logg, "persist idempotency record", err)
			}
		})
	}
}

func ruleFor(method, pattern string) (time.Duration, bool) {
	for _, rule := range idempotencyRules {
		if rule.method == method && rule.pattern == pattern {
			return rule.ttl, true
		}
	}
	return 0, false
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func replay(w http.ResponseWriter, record idempotencyRecord) {
	if record.ContentType != "" {
		w.Header().Set("Content-Type", record.ContentType)
	}
	w.Header().Set("Idempotent-Replay", "true")
	w.WriteHeader(record.Status)
	if body, err := base64.StdEncoding.DecodeString(record.Body); err == nil {
		_, _ = w.Write(body)
	}
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusOrOK() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func logFailure(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
