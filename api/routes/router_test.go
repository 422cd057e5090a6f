package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/controllers"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/middleware"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/approvals"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/catalog"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/transactions"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/auth"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/config"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db/models"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
	pkgerrors "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/errors"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/logger"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/metrics"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type memoryIdempotency struct {
	mu      sync.Mutex
	records map[string]string
}

func (m *memoryIdempotency) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[key], nil
}

func (m *memoryIdempotency) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[key]; ok {
		return false, nil
	}
	m.records[key] = value.(string)
	return true, nil
}

func (m *memoryIdempotency) IdempotencyKey(scope, id string) string {
	return "idempotency:" + scope + ":" + id
}

type countingLimiter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (c *countingLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[scope]++
	return c.counts[scope] <= limit, c.counts[scope], nil
}

type stubTransactions struct {
	transactions.Service

	mu     sync.Mutex
	raises int
}

func (s *stubTransactions) Raise(_ context.Context, input transactions.RaiseInput) (*models.Transaction, error) {
	s.mu.Lock()
	s.raises++
	s.mu.Unlock()
	return &models.Transaction{
		ID:              uuid.New(),
		TransactionCode: "TXN-" + input.ProjectName,
		Type:            enums.TransactionTypeRegular,
		Status:          enums.TransactionStatusRaised,
	}, nil
}

type stubCatalog struct {
	catalog.Service
}

func (stubCatalog) ListStudentItems(context.Context) ([]catalog.StudentItem, error) {
	return []catalog.StudentItem{{Name: "Multimeter", SKU: "MM-1", UsableQuantity: 4}}, nil
}

type stubApprovals struct {
	approvals.Service
}

func (stubApprovals) Preview(context.Context, string) (*approvals.Summary, error) {
	return &approvals.Summary{TransactionID: "TXN-1", Status: enums.TransactionStatusRaised}, nil
}

type harness struct {
	handler      http.Handler
	cfg          *config.Config
	transactions *stubTransactions
}

func newHarness(t *testing.T, readiness ...controllers.Dependency) harness {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{Env: "test", CORSOrigins: []string{"http://localhost:3000"}},
		JWT: config.JWTConfig{Secret: "test-secret", Issuer: "multilab", ExpirationMinutes: 30},
		RateLimit: config.RateLimitConfig{
			ApprovalWindow:     time.Minute,
			ApprovalIPLimit:    100,
			ApprovalTokenLimit: 2,
		},
	}
	txns := &stubTransactions{}
	handler := NewRouter(Params{
		Config:            cfg,
		Logger:            logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Readiness:         readiness,
		Registry:          metrics.NewRegistry(),
		Limiter:           &countingLimiter{counts: map[string]int64{}},
		Idempotency:       &memoryIdempotency{records: map[string]string{}},
		Catalog:           stubCatalog{},
		Transactions:      txns,
		Approvals:         stubApprovals{},
		ComponentRequests: nil,
		Bills:             nil,
	})
	return harness{handler: handler, cfg: cfg, transactions: txns}
}

func (h harness) token(t *testing.T, role enums.ActorRole, labID *uuid.UUID) string {
	t.Helper()
	token, err := auth.MintAccessToken(h.cfg.JWT, time.Now().UTC(), auth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
		LabID:  labID,
	})
	require.NoError(t, err)
	return token
}

func (h harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthLive(t *testing.T) {
	h := newHarness(t)
	rec := h.do(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "test", rec.Header().Get("X-MultiLab-Env"))
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestHealthReadyReportsFailedDependency(t *testing.T) {
	h := newHarness(t,
		controllers.Dependency{Name: "db", Pinger: stubPinger{}},
		controllers.Dependency{Name: "redis", Pinger: stubPinger{err: pkgerrors.New(pkgerrors.CodeDependency, "down")}},
	)
	rec := h.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), `"redis":"down"`)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newHarness(t)
	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/v1/student/items", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRoleGuards(t *testing.T) {
	h := newHarness(t)
	labID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/student/items", nil)
	req.Header.Set("Authorization", "Bearer "+h.token(t, enums.ActorRoleIncharge, &labID))
	require.Equal(t, http.StatusForbidden, h.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/student/items", nil)
	req.Header.Set("Authorization", "Bearer "+h.token(t, enums.ActorRoleStudent, nil))
	rec := h.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Multimeter")

	req = httptest.NewRequest(http.MethodGet, "/api/v1/staff/items", nil)
	req.Header.Set("Authorization", "Bearer "+h.token(t, enums.ActorRoleStudent, nil))
	require.Equal(t, http.StatusForbidden, h.do(req).Code)
}

func raiseRequest(token, key string) *http.Request {
	body := `{"items":[{"lab_id":"` + uuid.NewString() + `","item_id":"` + uuid.NewString() + `","quantity":1}],` +
		`"faculty_email":"prof@uni.edu","faculty_id":"F-9","expected_return_date":"2030-05-01","project_name":"P1"}`
	return raiseWithBody(token, key, body)
}

func raiseWithBody(token, key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/student/transactions", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	if key != "" {
		req.Header.Set(middleware.IdempotencyHeader, key)
	}
	return req
}

func TestRaiseReplaysIdempotentRequest(t *testing.T) {
	h := newHarness(t)
	token := h.token(t, enums.ActorRoleStudent, nil)
	body := `{"items":[{"lab_id":"` + uuid.NewString() + `","item_id":"` + uuid.NewString() + `","quantity":1}],` +
		`"faculty_email":"prof@uni.edu","faculty_id":"F-9","expected_return_date":"2030-05-01","project_name":"P1"}`

	first := h.do(raiseWithBody(token, "key-1", body))
	require.Equal(t, http.StatusCreated, first.Code)

	second := h.do(raiseWithBody(token, "key-1", body))
	require.Equal(t, http.StatusCreated, second.Code)
	require.Equal(t, "true", second.Header().Get("Idempotent-Replay"))
	require.Equal(t, first.Body.String(), second.Body.String())
	require.Equal(t, 1, h.transactions.raises)
}

func TestRaiseKeyReuseWithDifferentBody(t *testing.T) {
	h := newHarness(t)
	token := h.token(t, enums.ActorRoleStudent, nil)

	require.Equal(t, http.StatusCreated, h.do(raiseRequest(token, "key-2")).Code)
	rec := h.do(raiseRequest(token, "key-2"))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), string(pkgerrors.CodeIdempotency))
}

func TestRaiseRequiresIdempotencyKey(t *testing.T) {
	h := newHarness(t)
	rec := h.do(raiseRequest(h.token(t, enums.ActorRoleStudent, nil), ""))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, h.transactions.raises)
}

func TestApprovalPreviewIsRateLimitedPerToken(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 2; i++ {
		rec := h.do(httptest.NewRequest(http.MethodGet, "/api/public/approvals/tok-1", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/public/approvals/tok-1", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "60", rec.Header().Get("Retry-After"))

	rec = h.do(httptest.NewRequest(http.MethodGet, "/api/public/approvals/tok-2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpointCountsRoutes(t *testing.T) {
	h := newHarness(t)
	h.do(httptest.NewRequest(http.MethodGet, "/health/live", nil))

	rec := h.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `multilab_http_requests_total{method="GET",route="/health/live",status="200"}`)
}

func TestBillsWithoutStorageAreUnavailable(t *testing.T) {
	h := newHarness(t)
	labID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/staff/bills", nil)
	req.Header.Set("Authorization", "Bearer "+h.token(t, enums.ActorRoleIncharge, &labID))
	require.Equal(t, http.StatusServiceUnavailable, h.do(req).Code)
}
