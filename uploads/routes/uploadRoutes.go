package routes

import (
	"welfare-receipts-backend/uploads/controllers"

	"github.com/gofiber/fiber/v2"
)

func UploadRouterInit(api fiber.Router, controller *controllers.UploadController) {
	uploads := api.Group("/uploads")
	uploads.Post("/", controller.RegisterBatchController)
	uploads.Get("/", controller.GetFilteredBatchesController)
	uploads.Get("/:id", controller.GetBatchController)
	uploads.Delete("/:id", controller.DeleteBatchController)
	uploads.Post("/:id/validate", controller.ValidateBatchController)
	uploads.Get("/:id/records", controller.GetFilteredRecordsController)
	uploads.Get("/:id/report", controller.DownloadReportController)
	uploads.Get("/:id/workflow-status", controller.WorkflowStatusController)
	uploads.Post("/:id/receipts", controller.GenerateReceiptController)
}
