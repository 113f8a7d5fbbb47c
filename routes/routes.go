package routes

import (
	"net/http"

	"github.com/Dosada05/league-engine/handlers"
	"github.com/Dosada05/league-engine/metrics"
	"github.com/Dosada05/league-engine/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Handlers struct {
	Progression *handlers.ProgressionHandler
	Match       *handlers.MatchHandler
	Bracket     *handlers.BracketHandler
	Format      *handlers.FormatHandler
	WebSocket   *handlers.WebSocketHandler
}

type Options struct {
	Auth           *middleware.Authenticator
	AllowedOrigins []string
	// Ready reports whether dependencies are reachable; nil means always.
	Ready func(r *http.Request) error
}

func SetupRoutes(router chi.Router, h Handlers, opts Options) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if opts.Ready != nil {
			if err := opts.Ready(r); err != nil {
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", metrics.Handler())
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	router.Get("/ws/categories/{categoryID}", h.WebSocket.ServeWs)

	organizerOnly := func(r chi.Router) {
		r.Use(opts.Auth.Authenticate)
		r.Use(middleware.Authorize(middleware.RoleOrganizer, middleware.RoleAdmin))
	}

	router.Route("/formats", func(r chi.Router) {
		r.Get("/", h.Format.GetAllFormats)
		r.Get("/{formatID}", h.Format.GetFormatByID)
		r.Group(func(r chi.Router) {
			organizerOnly(r)
			r.Post("/", h.Format.CreateFormat)
			r.Put("/{formatID}", h.Format.UpdateFormat)
			r.Delete("/{formatID}", h.Format.DeleteFormat)
		})
	})

	router.Route("/categories/{categoryID}", func(r chi.Router) {
		r.Get("/bracket", h.Bracket.GetBracket)
		r.Group(func(r chi.Router) {
			organizerOnly(r)
			r.Post("/synchronize", h.Progression.SynchronizeCategory)
			r.Post("/edges", h.Bracket.CreateEdge)
			r.Delete("/edges/{edgeID}", h.Bracket.DeleteEdge)
		})
	})

	router.Route("/rounds/{roundID}", func(r chi.Router) {
		r.Get("/matches", h.Match.ListRoundMatches)
		r.Group(func(r chi.Router) {
			organizerOnly(r)
			r.Post("/generate", h.Progression.GenerateRound)
			r.Post("/progress", h.Progression.ProgressRound)
			r.Post("/reset", h.Progression.ResetRound)
		})
	})

	router.Route("/matches/{matchID}", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			organizerOnly(r)
			r.Put("/result", h.Match.RecordResult)
			r.Post("/cancel", h.Match.CancelMatch)
		})
	})
}
