package routes

import (
	"welfare-receipts-backend/payments/controllers"

	"github.com/gofiber/fiber/v2"
)

func PaymentRouterInit(api fiber.Router, controller *controllers.PaymentController) {
	api.Get("/worker-receipts", controller.GetFilteredWorkerReceiptsController)
	api.Get("/worker-receipts/:number", controller.GetWorkerReceiptController)
	api.Get("/worker-payments", controller.GetFilteredWorkerPaymentsController)
}
