package routes

import (
	"welfare-receipts-backend/reconciliation/controllers"

	"github.com/gofiber/fiber/v2"
)

func ReconciliationRouterInit(api fiber.Router, controller *controllers.ReconciliationController) {
	reconciliation := api.Group("/reconciliation")
	reconciliation.Get("/anomalies", controller.GetFilteredAnomaliesController)
	reconciliation.Post("/run", controller.RunReconciliationController)
}
