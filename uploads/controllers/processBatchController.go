package controllers

import (
	"welfare-receipts-backend/config"
	"welfare-receipts-backend/middleware"
	"welfare-receipts-backend/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type generateReceiptRequest struct {
	BatchRef string `json:"batch_ref"`
}

// ValidateBatchController runs the record validator over every UPLOADED row
func (uc *UploadController) ValidateBatchController(c *fiber.Ctx) error {
	id, err := batchIDParam(c)
	if err != nil {
		return utils.ErrorResponse(c, err, "Invalid batch id")
	}

	result, err := uc.Validator.ValidateBatch(c.UserContext(), id)
	if err != nil {
		config.Logger.Error("Batch validation failed", zap.String("batch_id", id.String()), zap.Error(err))
		return utils.ErrorResponse(c, err, "Failed to validate batch")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Batch validated",
		"data":    result,
	})
}

// GenerateReceiptController aggregates the VALIDATED rows into one worker receipt. A batch
// with nothing left to aggregate answers 200 with processed = 0.
func (uc *UploadController) GenerateReceiptController(c *fiber.Ctx) error {
	id, err := batchIDParam(c)
	if err != nil {
		return utils.ErrorResponse(c, err, "Invalid batch id")
	}

	var req generateReceiptRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Invalid request body",
				"error":   err.Error(),
			})
		}
	}

	result, err := uc.Aggregator.Generate(c.UserContext(), id, req.BatchRef, middleware.ActingIdentity(c))
	if err != nil {
		config.Logger.Error("Receipt generation failed", zap.String("batch_id", id.String()), zap.Error(err))
		return utils.ErrorResponse(c, err, "Failed to generate receipt")
	}

	message := "Receipt generated"
	status := fiber.StatusCreated
	if result.Processed == 0 {
		message = "No validated records to process"
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    result,
	})
}
