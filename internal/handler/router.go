package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/rewards-platform/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware платформы вознаграждений.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/me", h.Me)

			r.Get("/tasks", h.ListTasks)
			r.Post("/tasks/start", h.StartTask)
			r.Post("/tasks/finish", h.FinishTask)

			r.Post("/wallet/request", h.RequestWalletTx)
			r.Get("/wallet/my", h.WalletHistory)

			r.Route("/admin", func(r chi.Router) {
				r.Use(custommiddleware.RequireAdmin)

				r.Get("/requests", h.PendingRequests)
				r.Post("/requests/{id}/approve", h.ApproveRequest)
				r.Post("/requests/{id}/reject", h.RejectRequest)

				r.Get("/users", h.ListUsers)
				r.Post("/users/{id}/points", h.SetUserPoints)
				r.Post("/users/{id}/password", h.SetUserPassword)
				r.Post("/users/{id}/reset-tasks", h.ResetUserTasks)
				r.Post("/users/{id}/status", h.SetUserStatus)

				r.Get("/settings", h.GetSettings)
				r.Post("/settings", h.UpdateSettings)

				r.Get("/tasks", h.AdminTasks)
				r.Post("/tasks/create", h.CreateTask)
				r.Post("/tasks/{id}/update", h.UpdateTask)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})

	return r
}
