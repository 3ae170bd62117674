package controllers

import (
	"welfare-receipts-backend/bleve/repositories"
	"welfare-receipts-backend/config"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type SearchController struct {
	repo *repositories.BleveRepository
}

func NewSearchController(repo *repositories.BleveRepository) *SearchController {
	return &SearchController{repo: repo}
}

// SearchReceiptsController searches worker, employer and board receipts by any number in
// their chain. Optional filters: kind, status, employer_id, toli_id, size.
func (c *SearchController) SearchReceiptsController(ctx *fiber.Ctx) error {
	size := ctx.QueryInt("size", 20)
	if size < 1 || size > 100 {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "size must be between 1 and 100",
		})
	}

	filters := repositories.ReceiptSearchFilters{
		Kind:       ctx.Query("kind"),
		Status:     ctx.Query("status"),
		EmployerID: ctx.Query("employer_id"),
		ToliID:     ctx.Query("toli_id"),
	}

	results, err := c.repo.SearchReceipts(ctx.Query("q"), filters, size)
	if err != nil {
		config.Logger.Error("Receipt search failed", zap.Error(err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Search failed",
			"error":   err.Error(),
		})
	}

	return ctx.JSON(fiber.Map{
		"success": true,
		"data":    results,
	})
}

func (c *SearchController) ReceiptIndexStatsController(ctx *fiber.Ctx) error {
	count, err := c.repo.IndexedReceipts()
	if err != nil {
		config.Logger.Error("Failed to read receipt index size", zap.Error(err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to read receipt index",
			"error":   err.Error(),
		})
	}
	return ctx.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"indexed_receipts": count},
	})
}
