package routes

import (
	"welfare-receipts-backend/receipts/controllers"

	"github.com/gofiber/fiber/v2"
)

func ReceiptRouterInit(api fiber.Router, controller *controllers.ReceiptController) {
	workerReceipts := api.Group("/worker-receipts")
	workerReceipts.Post("/:number/employer-receipt", controller.CreatePendingEmployerReceiptController)
	workerReceipts.Get("/:number/employer-receipt", controller.GetEmployerReceiptByWorkerReceiptController)
	workerReceipts.Post("/:number/validate", controller.ValidateWorkerReceiptController)

	employer := api.Group("/employer-receipts")
	employer.Get("/", controller.GetFilteredEmployerReceiptsController)
	employer.Get("/:number", controller.GetEmployerReceiptController)
	employer.Get("/:number/board-receipt", controller.GetBoardReceiptByEmployerReceiptController)

	board := api.Group("/board-receipts")
	board.Get("/", controller.GetFilteredBoardReceiptsController)
	board.Get("/:ref", controller.GetBoardReceiptController)
	board.Post("/:ref/process", controller.ProcessBoardReceiptController)
	board.Post("/:ref/reject", controller.RejectBoardReceiptController)
	board.Post("/:ref/reconcile", controller.ReconcileBoardReceiptController)
	board.Get("/:ref/document", controller.BoardReceiptDocumentController)
}
