package middleware

import (
	"net/http"
	"strings"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/responses"
	pkgAuth "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/auth"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/config"
	pkgerrors "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/errors"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/logger"
)

// Auth validates the bearer token and seeds the request with the caller identity.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			if !claims.Role.IsValid() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "unknown role"))
				return
			}

			identity := claims.Identity()
			ctx := WithIdentity(r.Context(), identity)
			if logg != nil {
				ctx = logg.WithUserID(ctx, identity.UserID.String())
				ctx = logg.WithActorRole(ctx, string(identity.Role))
				if identity.LabID != nil {
					ctx = logg.WithLabID(ctx, identity.LabID.String())
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}
