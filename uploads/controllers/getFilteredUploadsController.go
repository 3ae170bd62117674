package controllers

import (
	"welfare-receipts-backend/config"
	"welfare-receipts-backend/utils/pagination"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func (uc *UploadController) GetFilteredBatchesController(c *fiber.Ctx) error {
	params, err := pagination.ParseListParams(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid query parameters",
			"error":   err.Error(),
		})
	}

	batches, total, err := uc.UploadRepo.GetFilteredBatches(c.UserContext(), params)
	if err != nil {
		config.Logger.Error("Failed to fetch filtered batches", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to fetch batches",
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    pagination.NewPaginatedResponse(c, batches, total, params),
	})
}

func (uc *UploadController) GetFilteredRecordsController(c *fiber.Ctx) error {
	id, err := batchIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid batch id",
			"error":   err.Error(),
		})
	}
	params, err := pagination.ParseListParams(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid query parameters",
			"error":   err.Error(),
		})
	}

	records, total, err := uc.UploadRepo.GetFilteredRecords(c.UserContext(), id, params)
	if err != nil {
		config.Logger.Error("Failed to fetch batch records", zap.String("batch_id", id.String()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to fetch records",
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    pagination.NewPaginatedResponse(c, records, total, params),
	})
}
