package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/otieno254/affiliate_program/handlers"
)

func PublicRoutes(app *fiber.App) {
	app.Get("/r/:code", handlers.TrackReferralClick)

	api := app.Group("/api/v1")
	api.Post("/referrals/conversion", handlers.HandleConversionWebhook)
}
