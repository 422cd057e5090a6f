package faculty

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/middleware"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/transactions"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/auth"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db/models"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/logger"
)

type stubTransactions struct {
	transactions.Service

	decision enums.Decision
	reason   string
	calls    int
}

func (s *stubTransactions) DecideAsFaculty(_ context.Context, _ auth.Identity, id uuid.UUID, decision enums.Decision, reason string) (*models.Transaction, error) {
	s.calls++
	s.decision = decision
	s.reason = reason
	return &models.Transaction{ID: id, TransactionCode: "TXN-1", Status: enums.TransactionStatusApproved}, nil
}

func (s *stubTransactions) ListFacultyPending(context.Context, auth.Identity) ([]models.Transaction, error) {
	return []models.Transaction{{TransactionCode: "TXN-1"}, {TransactionCode: "TXN-2"}}, nil
}

func decideRouter(svc transactions.Service) http.Handler {
	r := chi.NewRouter()
	r.Post("/transactions/{transactionId}/decision", Decide(svc, logger.New(logger.Options{ServiceName: "test"})))
	return r
}

func facultyRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	return req.WithContext(middleware.WithIdentity(req.Context(), auth.Identity{UserID: uuid.New(), Role: enums.ActorRoleFaculty}))
}

func TestDecideApprove(t *testing.T) {
	svc := &stubTransactions{}
	rec := httptest.NewRecorder()
	decideRouter(svc).ServeHTTP(rec, facultyRequest(http.MethodPost, "/transactions/"+uuid.NewString()+"/decision", `{"decision":"approved"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, enums.DecisionApproved, svc.decision)
}

func TestDecideRejectNeedsReason(t *testing.T) {
	svc := &stubTransactions{}
	rec := httptest.NewRecorder()
	decideRouter(svc).ServeHTTP(rec, facultyRequest(http.MethodPost, "/transactions/"+uuid.NewString()+"/decision", `{"decision":"rejected"}`))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, svc.calls)
}

func TestDecideUnknownDecision(t *testing.T) {
	svc := &stubTransactions{}
	rec := httptest.NewRecorder()
	decideRouter(svc).ServeHTTP(rec, facultyRequest(http.MethodPost, "/transactions/"+uuid.NewString()+"/decision", `{"decision":"maybe"}`))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, svc.calls)
}

func TestPendingListsWithCount(t *testing.T) {
	rec := httptest.NewRecorder()
	Pending(&stubTransactions{}, logger.New(logger.Options{ServiceName: "test"})).ServeHTTP(rec, facultyRequest(http.MethodGet, "/pending", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"count":2`)
}
