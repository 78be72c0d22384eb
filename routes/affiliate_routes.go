package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/otieno254/affiliate_program/handlers"
	"github.com/otieno254/affiliate_program/middleware"
)

func AffiliateRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	// Any authenticated user can apply; the rest requires an approved account.
	api.Post("/affiliates/apply", middleware.Protected(), handlers.ApplyAsAffiliate)

	affiliate := api.Group("/affiliates/me", middleware.Protected(), middleware.AffiliateRequired())
	affiliate.Get("", handlers.GetMyAffiliateProfile)
	affiliate.Get("/dashboard", handlers.GetMyDashboard)
	affiliate.Get("/commissions", handlers.GetMyCommissions)
	affiliate.Get("/payouts", handlers.GetMyPayouts)
	affiliate.Post("/payouts", handlers.RequestPayout)
	affiliate.Get("/statement", handlers.GenerateMyStatement)
	affiliate.Get("/creatives", handlers.GetMyCreatives)
}
