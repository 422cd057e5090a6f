package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	pkgAuth "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/auth"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/config"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/logger"
)

var testJWT = config.JWTConfig{Secret: "test-secret", Issuer: "multilab", ExpirationMinutes: 10}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestAuthSeedsIdentity(t *testing.T) {
	userID := uuid.New()
	labID := uuid.New()
	token, err := pkgAuth.MintAccessToken(testJWT, time.Now().UTC(), pkgAuth.AccessTokenPayload{
		UserID: userID,
		Role:   enums.ActorRoleAssistant,
		LabID:  &labID,
	})
	require.NoError(t, err)

	var got pkgAuth.Identity
	h := Auth(testJWT, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, userID, got.UserID)
	require.Equal(t, enums.ActorRoleAssistant, got.Role)
	require.Equal(t, labID, got.HomeLab())
}

func TestAuthRejectsBadTokens(t *testing.T) {
	other := testJWT
	other.Secret = "someone-else"
	forged, err := pkgAuth.MintAccessToken(other, time.Now().UTC(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.ActorRoleStudent,
	})
	require.NoError(t, err)

	h := Auth(testJWT, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	for _, header := range []string{"", "Bearer ", "Bearer " + forged, "Bearer not-a-jwt"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code, header)
	}
}

func TestRequireStaff(t *testing.T) {
	h := RequireStaff(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := map[enums.ActorRole]int{
		enums.ActorRoleSuperAdmin: http.StatusNoContent,
		enums.ActorRoleIncharge:   http.StatusNoContent,
		enums.ActorRoleAssistant:  http.StatusNoContent,
		enums.ActorRoleStudent:    http.StatusForbidden,
		enums.ActorRoleFaculty:    http.StatusForbidden,
	}
	for role, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithIdentity(req.Context(), pkgAuth.Identity{UserID: uuid.New(), Role: role}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, want, rec.Code, string(role))
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
