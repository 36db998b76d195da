package handlers

import (
	"hio-competition-system/middleware"
	"hio-competition-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupCompetitionRoutes(app *fiber.App, competitionService *services.CompetitionService) {
	// 🔓 Public routes — no user context, but still behind Gateway auth
	app.Get("/competitions/published", competitionService.GetPublishedCompetitions)
	app.Get("/competitions/published/:id", competitionService.GetCompetitionByID)

	// 🔐 Authenticated routes
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/clubs", competitionService.CreateClub)
	secured.Get("/clubs", competitionService.GetAllClubs)
	secured.Get("/clubs/:id", competitionService.GetClubByID)

	secured.Post("/competitions", competitionService.CreateCompetition)
	secured.Put("/competitions/:id", competitionService.UpdateCompetition)
	secured.Post("/competitions/:id/publish/now", competitionService.PublishNow)
	secured.Post("/competitions/:id/close", competitionService.CloseCompetition)

	secured.Post("/competitions/:id/enter", competitionService.EnterCompetition)
	secured.Get("/users/me/entries", competitionService.GetMyEntries)
}
