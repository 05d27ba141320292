package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/aasen99/pro11/handlers"
	"github.com/aasen99/pro11/middleware"
)

// SetupRoutes wires the public and admin surfaces onto the router. Everything
// under /admin requires a bearer token from /admin/login.
func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	corsOrigins []string,
	authHandler *handlers.AuthHandler,
	tournamentHandler *handlers.TournamentHandler,
	teamHandler *handlers.TeamHandler,
	matchHandler *handlers.MatchHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/swagger/*", httpSwagger.Handler())

	router.Post("/admin/login", authHandler.LoginHandler)

	// Public surface: browsing, registration and the two-sided score
	// reporting handshake.
	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/", tournamentHandler.ListTournamentsHandler)
		r.Get("/{tournamentID}", tournamentHandler.GetTournamentHandler)
		r.Get("/{tournamentID}/summary", tournamentHandler.GetSummaryHandler)
		r.Get("/{tournamentID}/standings", tournamentHandler.GetStandingsHandler)

		r.Get("/{tournamentID}/teams", teamHandler.ListTeamsHandler)
		r.Post("/{tournamentID}/teams", teamHandler.RegisterTeamHandler)

		r.Get("/{tournamentID}/matches", matchHandler.ListMatchesHandler)
		r.Get("/{tournamentID}/export/{kind}", tournamentHandler.ExportHandler)
	})

	router.Route("/teams", func(r chi.Router) {
		r.Get("/{teamID}", teamHandler.GetTeamHandler)
	})

	router.Route("/matches", func(r chi.Router) {
		r.Get("/{matchID}", matchHandler.GetMatchHandler)
		r.Post("/{matchID}/result", matchHandler.SubmitResultHandler)
		r.Post("/{matchID}/confirm", matchHandler.ConfirmResultHandler)
		r.Post("/{matchID}/reject", matchHandler.RejectResultHandler)
	})

	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeWs)

	// Admin surface.
	router.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdmin(jwtSecret))

		r.Route("/tournaments", func(r chi.Router) {
			r.Post("/", tournamentHandler.CreateTournamentHandler)
			r.Put("/{tournamentID}", tournamentHandler.UpdateTournamentHandler)
			r.Delete("/{tournamentID}", tournamentHandler.DeleteTournamentHandler)
			r.Patch("/{tournamentID}/status", tournamentHandler.UpdateStatusHandler)

			r.Post("/{tournamentID}/groups", tournamentHandler.GenerateGroupStageHandler)
			r.Post("/{tournamentID}/groups/regenerate", tournamentHandler.RegenerateGroupStageHandler)
			r.Post("/{tournamentID}/knockout", tournamentHandler.SeedKnockoutHandler)
			r.Delete("/{tournamentID}/knockout", tournamentHandler.ResetKnockoutHandler)
			r.Post("/{tournamentID}/knockout/advance", tournamentHandler.AdvanceKnockoutHandler)

			r.Get("/{tournamentID}/conflicts", matchHandler.ListConflictsHandler)
			r.Get("/{tournamentID}/teams/export", tournamentHandler.ExportTeamsHandler)
		})

		r.Route("/teams", func(r chi.Router) {
			r.Post("/{teamID}/approve", teamHandler.ApproveTeamHandler)
			r.Post("/{teamID}/reject", teamHandler.RejectTeamHandler)
			r.Post("/{teamID}/checkin", teamHandler.CheckInTeamHandler)
			r.Post("/{teamID}/paid", teamHandler.MarkPaidHandler)
			r.Patch("/{teamID}", teamHandler.RenameTeamHandler)
			r.Delete("/{teamID}", teamHandler.DeleteTeamHandler)
			r.Post("/{teamID}/logo", teamHandler.UploadLogoHandler)
		})

		r.Route("/matches", func(r chi.Router) {
			r.Put("/schedule", matchHandler.UpdateScheduleHandler)
			r.Put("/{matchID}/result", matchHandler.SetResultHandler)
			r.Post("/{matchID}/walkover", matchHandler.WalkoverHandler)
		})
	})
}
