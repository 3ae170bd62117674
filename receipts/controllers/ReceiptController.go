package controllers

import (
	"welfare-receipts-backend/receipts/repositories"
	"welfare-receipts-backend/receipts/services"
)

type ReceiptController struct {
	EmployerRepo repositories.EmployerReceiptRepository
	BoardRepo    repositories.BoardReceiptRepository
	EmployerFlow *services.EmployerReceiptService
	BoardFlow    *services.BoardReceiptService
	Documents    *services.ReceiptDocumentService
}

func NewReceiptController(
	employerRepo repositories.EmployerReceiptRepository,
	boardRepo repositories.BoardReceiptRepository,
	employerFlow *services.EmployerReceiptService,
	boardFlow *services.BoardReceiptService,
	documents *services.ReceiptDocumentService,
) *ReceiptController {
	return &ReceiptController{
		EmployerRepo: employerRepo,
		BoardRepo:    boardRepo,
		EmployerFlow: employerFlow,
		BoardFlow:    boardFlow,
		Documents:    documents,
	}
}
