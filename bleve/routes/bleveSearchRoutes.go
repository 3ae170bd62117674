package routes

import (
	"welfare-receipts-backend/bleve/controllers"

	"github.com/gofiber/fiber/v2"
)

func InitBleveRoutes(api fiber.Router, controller *controllers.SearchController) {
	search := api.Group("/search")
	search.Get("/receipts", controller.SearchReceiptsController)
	search.Get("/receipts/stats", controller.ReceiptIndexStatsController)
}
