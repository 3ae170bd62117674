package controllers

import (
	"welfare-receipts-backend/config"
	"welfare-receipts-backend/payments/repositories"
	"welfare-receipts-backend/utils"
	"welfare-receipts-backend/utils/pagination"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type PaymentController struct {
	PaymentRepo repositories.WorkerPaymentRepository
	ReceiptRepo repositories.WorkerReceiptRepository
}

func NewPaymentController(paymentRepo repositories.WorkerPaymentRepository, receiptRepo repositories.WorkerReceiptRepository) *PaymentController {
	return &PaymentController{PaymentRepo: paymentRepo, ReceiptRepo: receiptRepo}
}

func (pc *PaymentController) GetFilteredWorkerReceiptsController(c *fiber.Ctx) error {
	params, err := pagination.ParseListParams(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid query parameters",
			"error":   err.Error(),
		})
	}

	receipts, total, err := pc.ReceiptRepo.GetFilteredReceipts(c.UserContext(), params)
	if err != nil {
		config.Logger.Error("Failed to fetch worker receipts", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to fetch worker receipts",
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    pagination.NewPaginatedResponse(c, receipts, total, params),
	})
}

// GetWorkerReceiptController returns a worker receipt with the payments it aggregates
func (pc *PaymentController) GetWorkerReceiptController(c *fiber.Ctx) error {
	number := c.Params("number")

	receipt, err := pc.ReceiptRepo.GetByNumber(c.UserContext(), number)
	if err != nil {
		return utils.ErrorResponse(c, err, "Failed to fetch worker receipt")
	}
	payments, err := pc.PaymentRepo.GetByReceiptNumber(c.UserContext(), number)
	if err != nil {
		config.Logger.Error("Failed to fetch receipt payments", zap.String("receipt_number", number), zap.Error(err))
		return utils.ErrorResponse(c, err, "Failed to fetch worker receipt")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"receipt":  receipt,
			"payments": payments,
		},
	})
}

func (pc *PaymentController) GetFilteredWorkerPaymentsController(c *fiber.Ctx) error {
	params, err := pagination.ParseListParams(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid query parameters",
			"error":   err.Error(),
		})
	}

	payments, total, err := pc.PaymentRepo.GetFilteredPayments(c.UserContext(), params)
	if err != nil {
		config.Logger.Error("Failed to fetch worker payments", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to fetch worker payments",
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    pagination.NewPaginatedResponse(c, payments, total, params),
	})
}
