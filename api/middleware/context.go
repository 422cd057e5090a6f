package middleware

import (
	"context"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/auth"
	pkgerrors "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/errors"
)

type contextKey string

const ctxIdentity contextKey = "identity"

// WithIdentity stores the authenticated caller on ctx.
func WithIdentity(ctx context.Context, id auth.Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdentity, id)
}

// IdentityFromContext returns the caller set by Auth.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	if ctx == nil {
		return auth.Identity{}, false
	}
	id, ok := ctx.Value(ctxIdentity).(auth.Identity)
	return id, ok
}

// RequireIdentity is IdentityFromContext for handlers mounted behind Auth.
func RequireIdentity(ctx context.Context) (auth.Identity, error) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return auth.Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return id, nil
}

func userIDFromContext(ctx context.Context) string {
	if id, ok := IdentityFromContext(ctx); ok {
		return id.UserID.String()
	}
	return ""
}

func labIDFromContext(ctx context.Context) string {
	if id, ok := IdentityFromContext(ctx); ok && id.LabID != nil {
		return id.LabID.String()
	}
	return ""
}
