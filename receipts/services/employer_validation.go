package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	bleveModels "welfare-receipts-backend/bleve/models"
	"welfare-receipts-backend/config"
	"welfare-receipts-backend/db/models"
	paymentRepositories "welfare-receipts-backend/payments/repositories"
	paymentServices "welfare-receipts-backend/payments/services"
	"welfare-receipts-backend/receipts/repositories"
	"welfare-receipts-backend/utils"

	"go.uber.org/zap"
)

// BoardReceiptCreator opens the board-side receipt once an employer receipt is sent.
type BoardReceiptCreator interface {
	CreateFromEmployerReceipt(ctx context.Context, employerReceipt *models.EmployerPaymentReceipt, maker string) (*models.BoardReceipt, error)
}

type EmployerReceiptService struct {
	WorkerReceipts paymentRepositories.WorkerReceiptRepository
	Payments       paymentRepositories.WorkerPaymentRepository
	Employer       repositories.EmployerReceiptRepository
	Board          BoardReceiptCreator
	Numbers        *paymentServices.ReceiptNumberGenerator
	Anomalies      utils.AnomalyRecorder
	Indexer        utils.ReceiptIndexer
	Notifier       utils.WorkflowNotifier
	Now            func() time.Time
}

func NewEmployerReceiptService(
	workerReceipts paymentRepositories.WorkerReceiptRepository,
	payments paymentRepositories.WorkerPaymentRepository,
	employer repositories.EmployerReceiptRepository,
	board BoardReceiptCreator,
	anomalies utils.AnomalyRecorder,
	indexer utils.ReceiptIndexer,
	notifier utils.WorkflowNotifier,
) *EmployerReceiptService {
	return &EmployerReceiptService{
		WorkerReceipts: workerReceipts,
		Payments:       payments,
		Employer:       employer,
		Board:          board,
		Numbers:        paymentServices.NewReceiptNumberGenerator(paymentServices.EmployerReceiptPrefix, employer.ExistsNumber),
		Anomalies:      anomalies,
		Indexer:        indexer,
		Notifier:       notifier,
		Now:            time.Now,
	}
}

// ValidateWorkerReceipt records the employer's confirmation of a worker receipt and sends
// it to the board. A receipt that is PENDING or already SEND_TO_BOARD is updated in place;
// one the board has accepted can no longer be changed.
func (s *EmployerReceiptService) ValidateWorkerReceipt(ctx context.Context, workerReceiptNumber, transactionReference, validatedBy string) (*models.EmployerPaymentReceipt, error) {
	workerReceiptNumber = strings.TrimSpace(workerReceiptNumber)
	transactionReference = strings.TrimSpace(transactionReference)
	validatedBy = strings.TrimSpace(validatedBy)
	if transactionReference == "" {
		return nil, utils.NewInvalidInput("transaction_reference", "is required")
	}
	if validatedBy == "" {
		return nil, utils.NewInvalidInput("validated_by", "is required")
	}

	workerReceipt, err := s.WorkerReceipts.GetByNumber(ctx, workerReceiptNumber)
	if err != nil {
		return nil, err
	}

	employerReceipt, err := s.saveValidation(ctx, workerReceipt, transactionReference, validatedBy)
	if err != nil {
		return nil, err
	}

	config.Logger.Info("Employer validation recorded",
		zap.String("workerReceiptNumber", workerReceiptNumber),
		zap.String("employerReceiptNumber", employerReceipt.EmployerReceiptNumber),
		zap.String("transactionReference", transactionReference),
		zap.String("validatedBy", validatedBy))

	if s.Board != nil {
		if _, err := s.Board.CreateFromEmployerReceipt(ctx, employerReceipt, validatedBy); err != nil {
			utils.RecordAnomaly(ctx, s.Anomalies, models.BoardReceiptMissingAnomaly, employerReceipt.EmployerReceiptNumber,
				&workerReceipt.BatchID, workerReceiptNumber, err, map[string]interface{}{
					"maker": validatedBy,
				})
		}
	}

	if err := s.PropagateEmployerValidation(ctx, employerReceipt); err != nil {
		utils.RecordAnomaly(ctx, s.Anomalies, models.StatusPropagationAnomaly, employerReceipt.EmployerReceiptNumber,
			&workerReceipt.BatchID, workerReceiptNumber, err, map[string]interface{}{
				"employer_status": string(employerReceipt.Status),
			})
	}

	utils.IndexReceipt(s.Indexer, EmployerReceiptDocument(employerReceipt))
	utils.Notify(s.Notifier, models.WorkflowEvent{
		Type:       models.EmployerValidatedEvent,
		BatchID:    workerReceipt.BatchID.String(),
		Reference:  employerReceipt.EmployerReceiptNumber,
		Status:     string(employerReceipt.Status),
		NextAction: "VERIFY_BOARD_RECEIPT",
		Actor:      validatedBy,
		OccurredAt: s.Now(),
	})

	return employerReceipt, nil
}

// saveValidation writes the validation onto the existing employer receipt or creates one.
// A concurrent insert for the same worker receipt is resolved by retrying the conditional
// update once.
func (s *EmployerReceiptService) saveValidation(ctx context.Context, workerReceipt *models.WorkerPaymentReceipt, transactionReference, validatedBy string) (*models.EmployerPaymentReceipt, error) {
	number := workerReceipt.ReceiptNumber
	now := s.Now()

	existing, err := s.Employer.GetByWorkerReceiptNumber(ctx, number)
	switch {
	case err == nil:
		return s.updateValidation(ctx, existing, transactionReference, validatedBy, now)
	case !utils.IsNotFound(err):
		return nil, err
	}

	employerNumber, err := s.Numbers.Next(ctx)
	if err != nil {
		return nil, err
	}
	receipt := &models.EmployerPaymentReceipt{
		EmployerReceiptNumber: employerNumber,
		WorkerReceiptNumber:   number,
		EmployerID:            workerReceipt.EmployerID,
		ToliID:                workerReceipt.ToliID,
		TransactionReference:  transactionReference,
		ValidatedBy:           validatedBy,
		ValidatedAt:           &now,
		TotalRecords:          workerReceipt.TotalRecords,
		TotalAmount:           workerReceipt.TotalAmount,
		Status:                models.EmployerReceiptSendToBoard,
	}

	err = s.Employer.Create(ctx, receipt)
	if err == nil {
		return receipt, nil
	}
	if !utils.IsConflict(err) {
		return nil, err
	}

	existing, lookupErr := s.Employer.GetByWorkerReceiptNumber(ctx, number)
	if lookupErr != nil {
		// The collision was on the employer number itself.
		return nil, err
	}
	return s.updateValidation(ctx, existing, transactionReference, validatedBy, now)
}

func (s *EmployerReceiptService) updateValidation(ctx context.Context, existing *models.EmployerPaymentReceipt, transactionReference, validatedBy string, now time.Time) (*models.EmployerPaymentReceipt, error) {
	if !existing.Status.AcceptsEmployerValidation() {
		return nil, utils.NewInvalidState("employer receipt", existing.EmployerReceiptNumber, string(existing.Status), "validate")
	}

	updated, err := s.Employer.ApplyValidation(ctx, existing.WorkerReceiptNumber, transactionReference, validatedBy, now)
	if err != nil {
		return nil, err
	}

	current, err := s.Employer.GetByWorkerReceiptNumber(ctx, existing.WorkerReceiptNumber)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, utils.NewInvalidState("employer receipt", current.EmployerReceiptNumber, string(current.Status), "validate")
	}
	return current, nil
}

// PropagateEmployerValidation marks the worker receipt VALIDATED and initiates its
// payments. Payments that never went through the pending step are requested first.
func (s *EmployerReceiptService) PropagateEmployerValidation(ctx context.Context, employerReceipt *models.EmployerPaymentReceipt) error {
	var errs []error
	number := employerReceipt.WorkerReceiptNumber

	if _, err := s.WorkerReceipts.TransitionStatus(ctx, number,
		[]models.WorkerReceiptStatus{models.WorkerReceiptProcessed}, models.WorkerReceiptValidated); err != nil {
		errs = append(errs, err)
	}
	if _, err := s.Payments.TransitionByReceipt(ctx, number, models.WorkerPaymentValidated, models.WorkerPaymentRequested); err != nil {
		errs = append(errs, err)
	}
	if _, err := s.Payments.TransitionByReceipt(ctx, number, models.WorkerPaymentRequested, models.WorkerPaymentInitiated); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("status propagation for employer receipt %s: %w", employerReceipt.EmployerReceiptNumber, errors.Join(errs...))
	}
	return nil
}

// CreatePendingEmployerReceipt eagerly opens a PENDING employer receipt for a worker
// receipt and requests its payments. Calling it again returns the existing receipt
// unchanged with created=false.
func (s *EmployerReceiptService) CreatePendingEmployerReceipt(ctx context.Context, workerReceipt *models.WorkerPaymentReceipt) (*models.EmployerPaymentReceipt, bool, error) {
	if existing, err := s.Employer.GetByWorkerReceiptNumber(ctx, workerReceipt.ReceiptNumber); err == nil {
		return existing, false, nil
	} else if !utils.IsNotFound(err) {
		return nil, false, err
	}

	employerNumber, err := s.Numbers.Next(ctx)
	if err != nil {
		return nil, false, err
	}

	receipt := &models.EmployerPaymentReceipt{
		EmployerReceiptNumber: employerNumber,
		WorkerReceiptNumber:   workerReceipt.ReceiptNumber,
		EmployerID:            workerReceipt.EmployerID,
		ToliID:                workerReceipt.ToliID,
		TotalRecords:          workerReceipt.TotalRecords,
		TotalAmount:           workerReceipt.TotalAmount,
		Status:                models.EmployerReceiptPending,
	}
	if err := s.Employer.Create(ctx, receipt); err != nil {
		if !utils.IsConflict(err) {
			return nil, false, err
		}
		existing, lookupErr := s.Employer.GetByWorkerReceiptNumber(ctx, workerReceipt.ReceiptNumber)
		if lookupErr != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	if _, err := s.Payments.TransitionByReceipt(ctx, workerReceipt.ReceiptNumber,
		models.WorkerPaymentValidated, models.WorkerPaymentRequested); err != nil {
		utils.RecordAnomaly(ctx, s.Anomalies, models.StatusPropagationAnomaly, receipt.EmployerReceiptNumber,
			&workerReceipt.BatchID, workerReceipt.ReceiptNumber, err, map[string]interface{}{
				"employer_status": string(receipt.Status),
			})
	}

	config.Logger.Info("Pending employer receipt created",
		zap.String("workerReceiptNumber", workerReceipt.ReceiptNumber),
		zap.String("employerReceiptNumber", receipt.EmployerReceiptNumber))

	utils.IndexReceipt(s.Indexer, EmployerReceiptDocument(receipt))
	return receipt, true, nil
}

// CreatePendingForWorkerReceipt looks the worker receipt up by number first
func (s *EmployerReceiptService) CreatePendingForWorkerReceipt(ctx context.Context, workerReceiptNumber string) (*models.EmployerPaymentReceipt, bool, error) {
	workerReceipt, err := s.WorkerReceipts.GetByNumber(ctx, strings.TrimSpace(workerReceiptNumber))
	if err != nil {
		return nil, false, err
	}
	return s.CreatePendingEmployerReceipt(ctx, workerReceipt)
}

// EmployerReceiptDocument is the search form of an employer receipt
func EmployerReceiptDocument(receipt *models.EmployerPaymentReceipt) bleveModels.ReceiptSearchDocument {
	amount, _ := receipt.TotalAmount.Float64()
	return bleveModels.ReceiptSearchDocument{
		Kind:                  bleveModels.EmployerReceiptKind,
		Number:                receipt.EmployerReceiptNumber,
		WorkerReceiptNumber:   receipt.WorkerReceiptNumber,
		EmployerReceiptNumber: receipt.EmployerReceiptNumber,
		EmployerID:            receipt.EmployerID,
		ToliID:                receipt.ToliID,
		Status:                string(receipt.Status),
		Amount:                amount,
		CreatedAt:             receipt.CreatedAt,
	}
}
