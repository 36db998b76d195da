package handlers

import (
	"hio-competition-system/middleware"
	"hio-competition-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupClaimRoutes wires the win-claim verification workflow: outcome
// reporting, evidence submission, adjudication and the witness link.
func SetupClaimRoutes(
	app *fiber.App,
	entryService *services.EntryService,
	verificationService *services.VerificationService,
	adjudicationService *services.AdjudicationService,
	witnessService *services.WitnessService,
) {
	// 🔓 Witness confirmation link — clicked from an email, no session
	app.Get("/witness/confirm", witnessService.ConfirmEndpoint)

	// 🔐 Authenticated routes
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Player: outcome reporting and evidence submission
	secured.Post("/entries/:id/outcome", entryService.ReportOutcomeEndpoint)
	secured.Post("/entries/:id/claim", verificationService.SubmitClaimEndpoint)
	secured.Get("/entries/:id", entryService.GetEntryEndpoint)
	secured.Post("/claims/:id/witness/resend", witnessService.ResendEndpoint)

	// Adjudicators: review and decide
	secured.Get("/claims/pending", verificationService.PendingClaimsEndpoint)
	secured.Get("/claims/:id", verificationService.GetClaimEndpoint)
	secured.Post("/claims/:id/verify", adjudicationService.VerifyClaimEndpoint)
	secured.Post("/claims/:id/reject", adjudicationService.RejectClaimEndpoint)
}
