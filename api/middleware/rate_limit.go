package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/responses"
	pkgerrors "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/errors"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/logger"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/security"
)

type WindowLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// TokenRateLimitPolicy throttles the public approval-token endpoints per
// client IP and per token.
type TokenRateLimitPolicy struct {
	name       string
	window     time.Duration
	ipLimit    int
	tokenLimit int
	tokenParam string
}

func NewTokenRateLimitPolicy(name string, window time.Duration, ipLimit, tokenLimit int) TokenRateLimitPolicy {
	return TokenRateLimitPolicy{
		name:       strings.ToLower(strings.TrimSpace(name)),
		window:     window,
		ipLimit:    ipLimit,
		tokenLimit: tokenLimit,
		tokenParam: "token",
	}
}

func (p TokenRateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.tokenLimit > 0)
}

func (p TokenRateLimitPolicy) scope(kind, value string) string {
	name := p.name
	if name == "" {
		name = "public"
	}
	return fmt.Sprintf("%s:%s:%s", name, kind, value)
}

// TokenRateLimit must be attached with chi's With so the token URL param is resolved.
func TokenRateLimit(policy TokenRateLimitPolicy, limiter WindowLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			checks := make([]limitCheck, 0, 2)
			if ip := clientIP(r); ip != "" && policy.ipLimit > 0 {
				checks = append(checks, limitCheck{kind: "ip", scope: policy.scope("ip", ip), limit: policy.ipLimit})
			}
			if token := strings.TrimSpace(chi.URLParam(r, policy.tokenParam)); token != "" && policy.tokenLimit > 0 {
				checks = append(checks, limitCheck{kind: "token", scope: policy.scope("token", security.DigestToken(token)), limit: policy.tokenLimit})
			}

			for _, c := range checks {
				allowed, count, err := limiter.FixedWindowAllow(ctx, c.scope, int64(c.limit), policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if !allowed {
					if logg != nil {
						logg.Warn(logg.WithFields(ctx, map[string]any{
							"policy":   policy.name,
							"scope":    c.kind,
							"attempts": count,
							"limit":    c.limit,
						}), "rate_limit.blocked")
					}
					w.Header().Set("Retry-After", strconv.Itoa(int(policy.window.Seconds())))
					responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many requests"))
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

type limitCheck struct {
	kind  string
	scope string
	limit int
}

func clientIP(r *http.Request) string {
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		if first := strings.TrimSpace(strings.Split(header, ",")[0]); first != "" {
			return first
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
