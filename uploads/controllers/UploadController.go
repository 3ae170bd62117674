package controllers

import (
	"path"

	"welfare-receipts-backend/config"
	"welfare-receipts-backend/middleware"
	paymentServices "welfare-receipts-backend/payments/services"
	"welfare-receipts-backend/uploads/repositories"
	"welfare-receipts-backend/uploads/services"
	"welfare-receipts-backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type UploadController struct {
	UploadRepo repositories.UploadRepository
	Tracker    *services.BatchTracker
	Validator  *services.ValidationService
	Aggregator *paymentServices.ReceiptAggregator
}

func NewUploadController(
	uploadRepo repositories.UploadRepository,
	tracker *services.BatchTracker,
	validator *services.ValidationService,
	aggregator *paymentServices.ReceiptAggregator,
) *UploadController {
	return &UploadController{
		UploadRepo: uploadRepo,
		Tracker:    tracker,
		Validator:  validator,
		Aggregator: aggregator,
	}
}

func batchIDParam(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, utils.NewInvalidInput("id", "must be a valid UUID")
	}
	return id, nil
}

// RegisterBatchController accepts an already-parsed upload from the ingestion side
func (uc *UploadController) RegisterBatchController(c *fiber.Ctx) error {
	var input services.RegisterBatchInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	batch, err := uc.Tracker.RegisterBatch(c.UserContext(), input, middleware.ActingIdentity(c))
	if err != nil {
		config.Logger.Warn("Batch registration failed", zap.String("file", input.FileName), zap.Error(err))
		return utils.ErrorResponse(c, err, "Failed to register batch")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Batch registered",
		"data":    batch,
	})
}

// GetBatchController returns the batch with its projected workflow status
func (uc *UploadController) GetBatchController(c *fiber.Ctx) error {
	id, err := batchIDParam(c)
	if err != nil {
		return utils.ErrorResponse(c, err, "Invalid batch id")
	}

	batch, err := uc.UploadRepo.GetBatchByID(c.UserContext(), id)
	if err != nil {
		return utils.ErrorResponse(c, err, "Failed to fetch batch")
	}
	counts, err := uc.UploadRepo.CountRecordsByStatus(c.UserContext(), id)
	if err != nil {
		config.Logger.Error("Failed to count batch records", zap.String("batch_id", id.String()), zap.Error(err))
		return utils.ErrorResponse(c, err, "Failed to fetch batch")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"batch":    batch,
			"workflow": paymentServices.ProjectStatus(counts),
		},
	})
}

func (uc *UploadController) WorkflowStatusController(c *fiber.Ctx) error {
	id, err := batchIDParam(c)
	if err != nil {
		return utils.ErrorResponse(c, err, "Invalid batch id")
	}
	if _, err := uc.UploadRepo.GetBatchByID(c.UserContext(), id); err != nil {
		return utils.ErrorResponse(c, err, "Failed to fetch batch")
	}

	counts, err := uc.UploadRepo.CountRecordsByStatus(c.UserContext(), id)
	if err != nil {
		return utils.ErrorResponse(c, err, "Failed to project workflow status")
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    paymentServices.ProjectStatus(counts),
	})
}

func (uc *UploadController) DeleteBatchController(c *fiber.Ctx) error {
	id, err := batchIDParam(c)
	if err != nil {
		return utils.ErrorResponse(c, err, "Invalid batch id")
	}

	if err := uc.Tracker.DeleteBatch(c.UserContext(), id); err != nil {
		return utils.ErrorResponse(c, err, "Failed to delete batch")
	}

	config.Logger.Info("Batch deleted",
		zap.String("batch_id", id.String()),
		zap.String("actor", middleware.ActingIdentity(c)),
	)
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Batch deleted",
	})
}

// DownloadReportController streams the rejected-records report of a validated batch
func (uc *UploadController) DownloadReportController(c *fiber.Ctx) error {
	id, err := batchIDParam(c)
	if err != nil {
		return utils.ErrorResponse(c, err, "Invalid batch id")
	}

	batch, err := uc.UploadRepo.GetBatchByID(c.UserContext(), id)
	if err != nil {
		return utils.ErrorResponse(c, err, "Failed to fetch batch")
	}
	if batch.ReportPath == "" || uc.Tracker.Reports == nil {
		return utils.ErrorResponse(c, utils.NewNotFound("rejected records report", id.String()), "No report for this batch")
	}

	report, err := uc.Tracker.Reports.DownloadFile(c.UserContext(), batch.ReportPath)
	if err != nil {
		config.Logger.Error("Failed to open rejected records report",
			zap.String("batchID", id.String()),
			zap.String("reportPath", batch.ReportPath),
			zap.Error(err))
		return utils.ErrorResponse(c, err, "Failed to open report")
	}

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Attachment(path.Base(batch.ReportPath))
	return c.SendStream(report)
}
