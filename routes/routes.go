package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/leaguecraft/tournament-engine/handlers"
	"github.com/leaguecraft/tournament-engine/middleware"
)

// SetupRoutes wires the HTTP surface. Read endpoints are public; everything
// that mutates tournament state requires a platform-issued token, and match
// results may only be reported by the game service itself.
func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	tournamentHandler *handlers.TournamentHandler,
	matchHandler *handlers.MatchHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(jwtSecret)

	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/", tournamentHandler.ListHandler)
		r.Get("/{tournamentID}", tournamentHandler.GetByIDHandler)
		r.Get("/{tournamentID}/entries", tournamentHandler.ListEntriesHandler)
		r.Get("/{tournamentID}/matches", tournamentHandler.ListMatchesHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/{tournamentID}/entries", tournamentHandler.RegisterEntryHandler)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Authorize(middleware.RoleOperator, middleware.RoleService))

				r.Post("/", tournamentHandler.CreateHandler)
				r.Post("/{tournamentID}/autofill", tournamentHandler.AutoFillHandler)
				r.Post("/{tournamentID}/bracket", tournamentHandler.GenerateBracketHandler)
				r.Post("/{tournamentID}/rewards/distribute", tournamentHandler.DistributeRewardsHandler)
				r.Put("/{tournamentID}/banner", tournamentHandler.UploadBannerHandler)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.Authorize(middleware.RoleService))

				r.Post("/{tournamentID}/matches/{matchID}/result", matchHandler.ResolveHandler)
			})
		})
	})

	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeWs)
}
