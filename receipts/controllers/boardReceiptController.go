package controllers

import (
	"bytes"
	"strings"

	"welfare-receipts-backend/config"
	"welfare-receipts-backend/middleware"
	"welfare-receipts-backend/utils"
	"welfare-receipts-backend/utils/pagination"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type processBoardReceiptRequest struct {
	UTRNumber string `json:"utr_number"`
}

type rejectBoardReceiptRequest struct {
	Reason string `json:"reason"`
}

func (rc *ReceiptController) GetFilteredBoardReceiptsController(c *fiber.Ctx) error {
	params, err := pagination.ParseListParams(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid query parameters",
			"error":   err.Error(),
		})
	}

	receipts, total, err := rc.BoardRepo.GetFilteredReceipts(c.UserContext(), params)
	if err != nil {
		config.Logger.Error("Failed to fetch board receipts", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to fetch board receipts",
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    pagination.NewPaginatedResponse(c, receipts, total, params),
	})
}

func (rc *ReceiptController) GetBoardReceiptController(c *fiber.Ctx) error {
	receipt, err := rc.BoardRepo.GetByReference(c.UserContext(), c.Params("ref"))
	if err != nil {
		return utils.ErrorResponse(c, err, "Failed to fetch board receipt")
	}
	return c.JSON(fiber.Map{"success": true, "data": receipt})
}

func (rc *ReceiptController) GetBoardReceiptByEmployerReceiptController(c *fiber.Ctx) error {
	receipt, err := rc.BoardRepo.GetByEmployerReference(c.UserContext(), c.Params("number"))
	if err != nil {
		return utils.ErrorResponse(c, err, "Failed to fetch board receipt")
	}
	return c.JSON(fiber.Map{"success": true, "data": receipt})
}

// ProcessBoardReceiptController is the checker step: PENDING -> VERIFIED with a UTR
func (rc *ReceiptController) ProcessBoardReceiptController(c *fiber.Ctx) error {
	var req processBoardReceiptRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	ref := c.Params("ref")
	receipt, err := rc.BoardFlow.ProcessBoardReceipt(c.UserContext(), ref, req.UTRNumber, middleware.ActingIdentity(c))
	if err != nil {
		config.Logger.Warn("Board verification failed", zap.String("board_reference", ref), zap.Error(err))
		return utils.ErrorResponse(c, err, "Failed to verify board receipt")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Board receipt verified",
		"data":    receipt,
	})
}

func (rc *ReceiptController) RejectBoardReceiptController(c *fiber.Ctx) error {
	var req rejectBoardReceiptRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	ref := c.Params("ref")
	receipt, err := rc.BoardFlow.RejectBoardReceipt(c.UserContext(), ref, req.Reason, middleware.ActingIdentity(c))
	if err != nil {
		return utils.ErrorResponse(c, err, "Failed to reject board receipt")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Board receipt rejected",
		"data":    receipt,
	})
}

func (rc *ReceiptController) ReconcileBoardReceiptController(c *fiber.Ctx) error {
	ref := c.Params("ref")
	receipt, err := rc.BoardFlow.ReconcileBoardReceipt(c.UserContext(), ref, middleware.ActingIdentity(c))
	if err != nil {
		return utils.ErrorResponse(c, err, "Failed to reconcile board receipt")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Board receipt reconciled",
		"data":    receipt,
	})
}

// BoardReceiptDocumentController renders the printable receipt. ?format=pdf returns a PDF,
// anything else HTML.
func (rc *ReceiptController) BoardReceiptDocumentController(c *fiber.Ctx) error {
	ref := c.Params("ref")

	if strings.EqualFold(c.Query("format"), "pdf") {
		var buf bytes.Buffer
		if err := rc.Documents.RenderPDF(c.UserContext(), ref, &buf); err != nil {
			config.Logger.Error("Failed to render board receipt PDF", zap.String("board_reference", ref), zap.Error(err))
			return utils.ErrorResponse(c, err, "Failed to render board receipt")
		}
		c.Set(fiber.HeaderContentType, "application/pdf")
		c.Set(fiber.HeaderContentDisposition, `inline; filename="`+ref+`.pdf"`)
		return c.Send(buf.Bytes())
	}

	html, err := rc.Documents.RenderHTML(c.UserContext(), ref)
	if err != nil {
		return utils.ErrorResponse(c, err, "Failed to render board receipt")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(html)
}
