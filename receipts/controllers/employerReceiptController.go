package controllers

import (
	"welfare-receipts-backend/config"
	"welfare-receipts-backend/middleware"
	"welfare-receipts-backend/utils"
	"welfare-receipts-backend/utils/pagination"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type employerValidationRequest struct {
	TransactionReference string `json:"transaction_reference"`
}

// CreatePendingEmployerReceiptController is idempotent: a second call returns the
// receipt created by the first one with 200 instead of 201.
func (rc *ReceiptController) CreatePendingEmployerReceiptController(c *fiber.Ctx) error {
	number := c.Params("number")

	receipt, created, err := rc.EmployerFlow.CreatePendingForWorkerReceipt(c.UserContext(), number)
	if err != nil {
		return utils.ErrorResponse(c, err, "Failed to create employer receipt")
	}

	status, message := fiber.StatusOK, "Employer receipt already exists"
	if created {
		status, message = fiber.StatusCreated, "Employer receipt created"
	}
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    receipt,
	})
}

func (rc *ReceiptController) ValidateWorkerReceiptController(c *fiber.Ctx) error {
	var req employerValidationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	number := c.Params("number")
	receipt, err := rc.EmployerFlow.ValidateWorkerReceipt(c.UserContext(), number, req.TransactionReference, middleware.ActingIdentity(c))
	if err != nil {
		config.Logger.Warn("Employer validation failed", zap.String("worker_receipt", number), zap.Error(err))
		return utils.ErrorResponse(c, err, "Failed to validate worker receipt")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Worker receipt validated",
		"data":    receipt,
	})
}

func (rc *ReceiptController) GetEmployerReceiptByWorkerReceiptController(c *fiber.Ctx) error {
	receipt, err := rc.EmployerRepo.GetByWorkerReceiptNumber(c.UserContext(), c.Params("number"))
	if err != nil {
		return utils.ErrorResponse(c, err, "Failed to fetch employer receipt")
	}
	return c.JSON(fiber.Map{"success": true, "data": receipt})
}

func (rc *ReceiptController) GetEmployerReceiptController(c *fiber.Ctx) error {
	receipt, err := rc.EmployerRepo.GetByNumber(c.UserContext(), c.Params("number"))
	if err != nil {
		return utils.ErrorResponse(c, err, "Failed to fetch employer receipt")
	}
	return c.JSON(fiber.Map{"success": true, "data": receipt})
}

func (rc *ReceiptController) GetFilteredEmployerReceiptsController(c *fiber.Ctx) error {
	params, err := pagination.ParseListParams(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid query parameters",
			"error":   err.Error(),
		})
	}

	receipts, total, err := rc.EmployerRepo.GetFilteredReceipts(c.UserContext(), params)
	if err != nil {
		config.Logger.Error("Failed to fetch employer receipts", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to fetch employer receipts",
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    pagination.NewPaginatedResponse(c, receipts, total, params),
	})
}
