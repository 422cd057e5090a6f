package middleware

import (
	"net/http"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/responses"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
	pkgerrors "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/errors"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/logger"
)

// RequireRoles admits callers whose role is one of roles. It must run after Auth.
func RequireRoles(logg *logger.Logger, roles ...enums.ActorRole) func(http.Handler) http.Handler {
	allowed := make(map[enums.ActorRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			if _, ok := allowed[id.Role]; !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role not permitted"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireStaff admits every lab staff role.
func RequireStaff(logg *logger.Logger) func(http.Handler) http.Handler {
	return RequireRoles(logg, enums.ActorRoleSuperAdmin, enums.ActorRoleIncharge, enums.ActorRoleAssistant)
}
