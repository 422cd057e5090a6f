package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/controllers"
	approvalcontrollers "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/controllers/approvals"
	facultycontrollers "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/controllers/faculty"
	staffcontrollers "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/controllers/staff"
	studentcontrollers "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/controllers/student"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/middleware"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/approvals"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/bills"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/catalog"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/componentrequests"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/transactions"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/config"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/logger"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/metrics"
)

// Params carries everything the HTTP surface needs. Limiter, Idempotency
// and Bills may be nil; the matching features are then disabled.
type Params struct {
	Config      *config.Config
	Logger      *logger.Logger
	Readiness   []controllers.Dependency
	Registry    *prometheus.Registry
	Limiter     middleware.WindowLimiter
	Idempotency middleware.IdempotencyStore

	Catalog           catalog.Service
	Transactions      transactions.Service
	Approvals         approvals.Service
	ComponentRequests componentrequests.Service
	Bills             bills.Service
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)
	if p.Registry != nil {
		r.Use(metrics.NewHTTPMetrics(p.Registry).Middleware)
		r.Method(http.MethodGet, "/metrics", metrics.Handler(p.Registry))
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.Readiness...))
	})

	approvalPolicy := middleware.NewTokenRateLimitPolicy(
		"approval",
		cfg.RateLimit.ApprovalWindow,
		cfg.RateLimit.ApprovalIPLimit,
		cfg.RateLimit.ApprovalTokenLimit,
	)
	r.Route("/api/public/approvals/{token}", func(r chi.Router) {
		r.Use(middleware.TokenRateLimit(approvalPolicy, p.Limiter, logg))
		r.Get("/", approvalcontrollers.Preview(p.Approvals, logg))
		r.Post("/approve", approvalcontrollers.Approve(p.Approvals, logg))
		r.Post("/reject", approvalcontrollers.Reject(p.Approvals, logg))
	})

	idempotent := middleware.Idempotency(p.Idempotency, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/student", func(r chi.Router) {
			r.Use(middleware.RequireRoles(logg, enums.ActorRoleStudent))
			r.Get("/items", studentcontrollers.Items(p.Catalog, logg))
			r.Get("/items/{itemId}/labs", studentcontrollers.ItemLabs(p.Catalog, logg))

			r.Route("/transactions", func(r chi.Router) {
				r.With(idempotent).Post("/", studentcontrollers.Raise(p.Transactions, logg))
				r.Get("/", studentcontrollers.ListTransactions(p.Transactions, logg))
				r.Get("/{transactionId}", studentcontrollers.GetTransaction(p.Transactions, logg))
				r.Patch("/{transactionId}/extend", studentcontrollers.Extend(p.Transactions, logg))
			})
			r.Route("/component-requests", func(r chi.Router) {
				r.Post("/", studentcontrollers.CreateComponentRequest(p.ComponentRequests, logg))
				r.Get("/", studentcontrollers.ListComponentRequests(p.ComponentRequests, logg))
			})
		})

		r.Route("/faculty/transactions", func(r chi.Router) {
			r.Use(middleware.RequireRoles(logg, enums.ActorRoleFaculty))
			r.Get("/pending", facultycontrollers.Pending(p.Transactions, logg))
			r.Get("/history", facultycontrollers.History(p.Transactions, logg))
			r.Get("/{transactionId}", facultycontrollers.Detail(p.Transactions, logg))
			r.Post("/{transactionId}/decision", facultycontrollers.Decide(p.Transactions, logg))
		})

		r.Route("/staff", func(r chi.Router) {
			r.Use(middleware.RequireStaff(logg))

			r.Route("/items", func(r chi.Router) {
				r.Post("/", staffcontrollers.AddItem(p.Catalog, logg))
				r.Get("/", staffcontrollers.ListItems(p.Catalog, logg))
				r.Get("/{itemId}", staffcontrollers.GetItem(p.Catalog, logg))
				r.Patch("/{itemId}", staffcontrollers.UpdateItem(p.Catalog, logg))
				r.Delete("/{itemId}", staffcontrollers.RemoveItem(p.Catalog, logg))
				r.Get("/{itemId}/assets", staffcontrollers.ItemAssets(p.Catalog, logg))
			})
			r.Get("/labs", staffcontrollers.OtherLabs(p.Catalog, logg))
			r.Get("/labs/{labId}/items", staffcontrollers.LabAvailableItems(p.Catalog, logg))

			r.Route("/transactions", func(r chi.Router) {
				r.Get("/", staffcontrollers.History(p.Transactions, logg))
				r.Get("/overdue", staffcontrollers.Overdue(p.Transactions, logg))
				r.Get("/{transactionId}", staffcontrollers.GetTransaction(p.Transactions, logg))
				r.With(idempotent).Post("/{transactionId}/activate", staffcontrollers.Activate(p.Transactions, logg))
				r.Post("/{transactionId}/return", staffcontrollers.Return(p.Transactions, logg))
			})

			r.Route("/lab-sessions", func(r chi.Router) {
				r.With(idempotent).Post("/", staffcontrollers.IssueLabSession(p.Transactions, logg))
				r.Get("/", staffcontrollers.ListLabSessions(p.Transactions, logg))
				r.Get("/{sessionId}", staffcontrollers.GetLabSession(p.Transactions, logg))
			})

			r.Route("/transfers", func(r chi.Router) {
				r.With(idempotent).Post("/", staffcontrollers.CreateTransfer(p.Transactions, logg))
				r.Get("/", staffcontrollers.ListTransfers(p.Transactions, logg))
				r.Get("/{transferId}", staffcontrollers.GetTransfer(p.Transactions, logg))
				r.Post("/{transferId}/decision", staffcontrollers.DecideTransfer(p.Transactions, logg))
				r.Post("/{transferId}/initiate-return", staffcontrollers.InitiateReturn(p.Transactions, logg))
				r.Post("/{transferId}/complete-return", staffcontrollers.CompleteReturn(p.Transactions, logg))
			})

			r.Route("/component-requests", func(r chi.Router) {
				r.Get("/", staffcontrollers.ListComponentRequests(p.ComponentRequests, logg))
				r.Get("/{requestId}", staffcontrollers.GetComponentRequest(p.ComponentRequests, logg))
				r.Patch("/{requestId}/status", staffcontrollers.UpdateComponentRequestStatus(p.ComponentRequests, logg))
			})

			r.Route("/bills", func(r chi.Router) {
				r.Post("/", staffcontrollers.UploadBill(p.Bills, logg))
				r.Get("/", staffcontrollers.ListBills(p.Bills, logg))
				r.Get("/{billId}", staffcontrollers.OpenBill(p.Bills, logg))
			})
		})
	})

	return r
}
