// Package api exposes the point-of-sale operations over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/menu"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/services/order"
	"restaurant-pos/internal/services/report"
	"restaurant-pos/internal/staff"
)

// Pinger reports the health of a backing service
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators served by the API
type Deps struct {
	Orders        *order.Service
	Reports       *report.Service
	Menu          *menu.Catalog
	Staff         *staff.Directory
	Tokens        *staff.TokenIssuer
	DefaultBranch string
	LoginRPS      int
	LoginBurst    int
	Health        map[string]Pinger
	Logger        *logger.Logger
}

// Server holds the HTTP handlers
type Server struct {
	Deps
	limiter *loginLimiter
}

func NewServer(deps Deps) *Server {
	if deps.LoginRPS <= 0 {
		deps.LoginRPS = 1
	}
	if deps.LoginBurst <= 0 {
		deps.LoginBurst = 5
	}
	return &Server{
		Deps:    deps,
		limiter: newLoginLimiter(deps.LoginRPS, deps.LoginBurst),
	}
}

// Routes builds the router
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.withLogging)

	r.Get("/health", s.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.With(s.limiter.Middleware(s.writeErrorResponse)).Post("/auth/login", s.Login)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/auth/me", s.Me)
			r.Get("/menu", s.ListMenu)

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", s.ListOrders)
				r.Post("/", s.CreateOrder)
				r.Get("/completed", s.CompletedOrders)
				r.Post("/move-to-completed", s.MoveToCompleted)
				r.Patch("/{orderID}/items/{itemID}", s.TransitionItem)
				r.Patch("/{orderID}/move-table", s.MoveTable)
			})

			r.Route("/cashier", func(r chi.Router) {
				r.Use(s.requireRole(models.RoleCashier, models.RoleAdmin))
				r.Get("/tables", s.ListTables)
				r.Get("/table/{tableNumber}", s.GetTable)
				r.Post("/pay", s.Pay)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(s.requireRole(models.RoleAdmin))
				r.Post("/menu", s.CreateMenuItem)
				r.Put("/menu/{id}", s.UpdateMenuItem)
				r.Delete("/menu/{id}", s.DeleteMenuItem)
				r.Get("/users", s.ListUsers)
				r.Post("/users", s.CreateUser)
				r.Delete("/users/{id}", s.DeleteUser)
				r.Post("/reset-day", s.ResetDay)
			})

			r.Route("/reports", func(r chi.Router) {
				r.Use(s.requireRole(models.RoleAdmin))
				r.Get("/live", s.LiveReport)
				r.Get("/daily", s.DailyReport)
				r.Get("/period/{period}", s.PeriodReport)
				r.Post("/clear-range", s.ClearRange)
			})
		})
	})

	return r
}

// HealthCheck handles GET /health requests
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true
	for name, p := range s.Health {
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "restaurant-pos",
		"healthy":   healthy,
		"checks":    checks,
	}
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
		response["status"] = "unhealthy"
	}
	s.writeJSON(w, r, status, response)
}
