package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/account"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/auth"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/http/credit"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/http/importcsv"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/http/order"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/http/revision"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/http/stats"
)

type Handlers struct {
	Orders    *order.Handler
	Revisions *revision.Handler
	Credits   *credit.Handler
	Import    *importcsv.Handler
	Stats     *stats.Handler
}

func New(verifier *auth.Verifier, corsOrigins []string, h Handlers) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(verifier.Middleware)

		r.Route("/orders", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			h.Orders.Routes(r)
			r.Route("/{id}/revisions", h.Revisions.OrderRoutes)
		})

		r.Route("/revisions", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			h.Revisions.Routes(r)
		})

		r.Route("/accounts/{id}", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			h.Credits.AccountRoutes(r)
		})

		r.Route("/credits", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			h.Credits.Routes(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(account.RoleAdmin))
			r.Route("/import", h.Import.Routes)
			r.Route("/stats", h.Stats.Routes)
		})
	})

	return router
}
