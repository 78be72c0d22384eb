package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/otieno254/affiliate_program/handlers"
	"github.com/otieno254/affiliate_program/middleware"
)

func AdminRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	admin := api.Group("/admin", middleware.Protected(), middleware.AdminRequired())

	admin.Get("/applications/pending", handlers.ListPendingApplications)
	admin.Put("/applications/:affiliateId", handlers.ManageApplication)
	admin.Get("/affiliates", handlers.ListAffiliates)
	admin.Get("/dashboard-analytics", handlers.GetDashboardAnalytics)

	commissions := admin.Group("/commissions")
	commissions.Get("", handlers.ListCommissions)
	commissions.Post("", handlers.RecordCommission)
	commissions.Put("/:commissionId/status", handlers.UpdateCommissionStatus)

	payouts := admin.Group("/payouts")
	payouts.Get("", handlers.ListPayouts)
	payouts.Post("/:payoutId/process", handlers.ProcessPayout)

	tiers := admin.Group("/tiers")
	tiers.Post("", handlers.CreateTier)
	tiers.Get("", handlers.ListTiers)
	tiers.Put("/:tierId", handlers.UpdateTier)
	tiers.Delete("/:tierId", handlers.DeleteTier)

	creatives := admin.Group("/creatives")
	creatives.Post("", handlers.CreateCreative)
	creatives.Get("", handlers.ListCreatives)
	creatives.Put("/:creativeId", handlers.UpdateCreative)
	creatives.Delete("/:creativeId", handlers.DeleteCreative)
	creatives.Get("/upload-signature", handlers.GenerateBannerUploadSignature)

	reports := admin.Group("/reports")
	reports.Get("/commissions", handlers.GenerateCommissionReport)

	admin.Get("/activity", handlers.WebSocketUpgrade, handlers.ActivityFeedSocket)
}
