package controllers

import (
	"welfare-receipts-backend/config"
	"welfare-receipts-backend/middleware"
	"welfare-receipts-backend/reconciliation/repositories"
	"welfare-receipts-backend/reconciliation/services"
	"welfare-receipts-backend/utils/pagination"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type ReconciliationController struct {
	AnomalyRepo repositories.AnomalyRepository
	Service     *services.ReconciliationService
}

func NewReconciliationController(anomalyRepo repositories.AnomalyRepository, service *services.ReconciliationService) *ReconciliationController {
	return &ReconciliationController{AnomalyRepo: anomalyRepo, Service: service}
}

// GetFilteredAnomaliesController lists linkage anomalies. status is OPEN or RESOLVED;
// kind and batch_id narrow further.
func (rc *ReconciliationController) GetFilteredAnomaliesController(c *fiber.Ctx) error {
	params, err := pagination.ParseListParams(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid query parameters",
			"error":   err.Error(),
		})
	}

	anomalies, total, err := rc.AnomalyRepo.GetFilteredAnomalies(c.UserContext(), params)
	if err != nil {
		config.Logger.Error("Failed to fetch anomalies", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to fetch anomalies",
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    pagination.NewPaginatedResponse(c, anomalies, total, params),
	})
}

// RunReconciliationController runs one scan and repair pass synchronously
func (rc *ReconciliationController) RunReconciliationController(c *fiber.Ctx) error {
	config.Logger.Info("Manual reconciliation requested", zap.String("actor", middleware.ActingIdentity(c)))

	scan, repair, err := rc.Service.Run(c.UserContext())
	if err != nil {
		config.Logger.Error("Reconciliation run failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Reconciliation failed",
			"error":   err.Error(),
			"data":    fiber.Map{"scan": scan, "repair": repair},
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Reconciliation completed",
		"data":    fiber.Map{"scan": scan, "repair": repair},
	})
}
