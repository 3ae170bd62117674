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
	"welfare-receipts-backend/receipts/repositories"
	"welfare-receipts-backend/utils"

	"go.uber.org/zap"
)

const boardReferenceAttempts = 10

type BoardReceiptService struct {
	Board          repositories.BoardReceiptRepository
	Employer       repositories.EmployerReceiptRepository
	WorkerReceipts paymentRepositories.WorkerReceiptRepository
	Payments       paymentRepositories.WorkerPaymentRepository
	Anomalies      utils.AnomalyRecorder
	Indexer        utils.ReceiptIndexer
	Notifier       utils.WorkflowNotifier
	Now            func() time.Time
}

func NewBoardReceiptService(
	board repositories.BoardReceiptRepository,
	employer repositories.EmployerReceiptRepository,
	workerReceipts paymentRepositories.WorkerReceiptRepository,
	payments paymentRepositories.WorkerPaymentRepository,
	anomalies utils.AnomalyRecorder,
	indexer utils.ReceiptIndexer,
	notifier utils.WorkflowNotifier,
) *BoardReceiptService {
	return &BoardReceiptService{
		Board:          board,
		Employer:       employer,
		WorkerReceipts: workerReceipts,
		Payments:       payments,
		Anomalies:      anomalies,
		Indexer:        indexer,
		Notifier:       notifier,
		Now:            time.Now,
	}
}

// CreateFromEmployerReceipt opens the board receipt for an employer receipt. It is
// idempotent per employer receipt: a live (non-rejected) receipt is returned as is. After a
// rejection the resubmission gets a new reference and the rejected receipt is left alone.
func (s *BoardReceiptService) CreateFromEmployerReceipt(ctx context.Context, employerReceipt *models.EmployerPaymentReceipt, maker string) (*models.BoardReceipt, error) {
	if live, err := s.liveReceipt(ctx, employerReceipt.EmployerReceiptNumber); err != nil || live != nil {
		return live, err
	}

	now := s.Now()
	for attempt := 1; attempt <= boardReferenceAttempts; attempt++ {
		reference, err := NextBoardReference(ctx, now.In(utils.DateLocation), attempt, s.Board.CountByReferencePrefix)
		if err != nil {
			return nil, err
		}

		receipt := &models.BoardReceipt{
			BoardReference:      reference,
			BoardID:             BoardIDFromReference(reference),
			EmployerReference:   employerReceipt.EmployerReceiptNumber,
			WorkerReceiptNumber: employerReceipt.WorkerReceiptNumber,
			EmployerID:          employerReceipt.EmployerID,
			ToliID:              employerReceipt.ToliID,
			Amount:              employerReceipt.TotalAmount,
			Maker:               maker,
			Status:              models.BoardReceiptPending,
			ReceiptDate:         now,
		}

		err = s.Board.Create(ctx, receipt)
		if err == nil {
			config.Logger.Info("Board receipt created",
				zap.String("boardReference", receipt.BoardReference),
				zap.String("employerReference", receipt.EmployerReference),
				zap.String("maker", maker))
			s.publish(receipt, models.BoardReceiptCreatedEvent, maker)
			return receipt, nil
		}
		if !utils.IsConflict(err) {
			return nil, err
		}

		// Either another caller created the receipt for this employer reference, or the
		// board reference was taken by a different employer receipt.
		if live, lookupErr := s.liveReceipt(ctx, employerReceipt.EmployerReceiptNumber); lookupErr == nil && live != nil {
			return live, nil
		}
		config.Logger.Debug("Board reference collision, retrying",
			zap.String("reference", reference),
			zap.Int("attempt", attempt))
	}

	return nil, utils.ErrGenerationExhausted
}

// liveReceipt returns the non-rejected board receipt of an employer receipt, or nil
func (s *BoardReceiptService) liveReceipt(ctx context.Context, employerReference string) (*models.BoardReceipt, error) {
	existing, err := s.Board.GetByEmployerReference(ctx, employerReference)
	if utils.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if existing.Status == models.BoardReceiptRejected {
		return nil, nil
	}
	return existing, nil
}

// ProcessBoardReceipt verifies a PENDING board receipt with the bank's UTR. The write is
// conditional, so a receipt is verified at most once; any later attempt fails with
// InvalidStateError naming the current status.
func (s *BoardReceiptService) ProcessBoardReceipt(ctx context.Context, boardReference, utrNumber, checker string) (*models.BoardReceipt, error) {
	boardReference = strings.TrimSpace(boardReference)
	utrNumber = strings.TrimSpace(utrNumber)
	checker = strings.TrimSpace(checker)
	if utrNumber == "" {
		return nil, utils.NewInvalidInput("utr_number", "is required")
	}
	if checker == "" {
		return nil, utils.NewInvalidInput("checker", "is required")
	}

	verified, err := s.Board.Verify(ctx, boardReference, utrNumber, checker, s.Now())
	if err != nil {
		return nil, err
	}
	if !verified {
		return nil, s.transitionRefused(ctx, boardReference, "verify")
	}

	receipt, err := s.Board.GetByReference(ctx, boardReference)
	if err != nil {
		return nil, err
	}

	config.Logger.Info("Board receipt verified",
		zap.String("boardReference", boardReference),
		zap.String("utrNumber", utrNumber),
		zap.String("checker", checker))

	s.propagateOrRecord(ctx, receipt)
	s.publish(receipt, models.BoardVerifiedEvent, checker)
	return receipt, nil
}

// RejectBoardReceipt turns a PENDING board receipt down for good. The employer receipt goes
// back to PENDING so the employer can resubmit, which opens a new board receipt.
func (s *BoardReceiptService) RejectBoardReceipt(ctx context.Context, boardReference, reason, rejectedBy string) (*models.BoardReceipt, error) {
	boardReference = strings.TrimSpace(boardReference)
	reason = strings.TrimSpace(reason)
	rejectedBy = strings.TrimSpace(rejectedBy)
	if reason == "" {
		return nil, utils.NewInvalidInput("reason", "is required")
	}
	if rejectedBy == "" {
		return nil, utils.NewInvalidInput("rejected_by", "is required")
	}

	rejected, err := s.Board.Reject(ctx, boardReference, reason, rejectedBy, s.Now())
	if err != nil {
		return nil, err
	}
	if !rejected {
		return nil, s.transitionRefused(ctx, boardReference, "reject")
	}

	receipt, err := s.Board.GetByReference(ctx, boardReference)
	if err != nil {
		return nil, err
	}

	config.Logger.Info("Board receipt rejected",
		zap.String("boardReference", boardReference),
		zap.String("reason", reason),
		zap.String("rejectedBy", rejectedBy))

	s.propagateOrRecord(ctx, receipt)
	s.publish(receipt, models.BoardRejectedEvent, rejectedBy)
	return receipt, nil
}

// ReconcileBoardReceipt closes a VERIFIED board receipt once the settlement has been
// matched, and reconciles everything upstream of it.
func (s *BoardReceiptService) ReconcileBoardReceipt(ctx context.Context, boardReference, actor string) (*models.BoardReceipt, error) {
	boardReference = strings.TrimSpace(boardReference)

	processed, err := s.Board.MarkProcessed(ctx, boardReference, s.Now())
	if err != nil {
		return nil, err
	}
	if !processed {
		return nil, s.transitionRefused(ctx, boardReference, "reconcile")
	}

	receipt, err := s.Board.GetByReference(ctx, boardReference)
	if err != nil {
		return nil, err
	}

	config.Logger.Info("Board receipt reconciled",
		zap.String("boardReference", boardReference),
		zap.String("actor", actor))

	s.propagateOrRecord(ctx, receipt)
	s.publish(receipt, models.BoardReconciledEvent, actor)
	return receipt, nil
}

// transitionRefused explains why a conditional write touched no row
func (s *BoardReceiptService) transitionRefused(ctx context.Context, boardReference, operation string) error {
	current, err := s.Board.GetByReference(ctx, boardReference)
	if err != nil {
		return err
	}
	return utils.NewInvalidState("board receipt", boardReference, string(current.Status), operation)
}

func (s *BoardReceiptService) propagateOrRecord(ctx context.Context, receipt *models.BoardReceipt) {
	if err := s.PropagateBoardStatus(ctx, receipt); err != nil {
		utils.RecordAnomaly(ctx, s.Anomalies, models.StatusPropagationAnomaly, receipt.BoardReference,
			nil, receipt.WorkerReceiptNumber, err, map[string]interface{}{
				"board_status":       string(receipt.Status),
				"employer_reference": receipt.EmployerReference,
			})
	}
}

// PropagateBoardStatus brings the employer receipt, worker receipt and payments in line
// with the board receipt's current status. Every step is a conditional write, so running
// it again after a partial failure only finishes the missing steps.
func (s *BoardReceiptService) PropagateBoardStatus(ctx context.Context, receipt *models.BoardReceipt) error {
	var errs []error

	switch receipt.Status {
	case models.BoardReceiptVerified:
		if _, err := s.Employer.TransitionStatus(ctx, receipt.EmployerReference,
			[]models.EmployerReceiptStatus{models.EmployerReceiptPending, models.EmployerReceiptSendToBoard},
			models.EmployerReceiptValidated); err != nil {
			errs = append(errs, err)
		}
		if _, err := s.WorkerReceipts.TransitionStatus(ctx, receipt.WorkerReceiptNumber,
			[]models.WorkerReceiptStatus{models.WorkerReceiptProcessed, models.WorkerReceiptValidated},
			models.WorkerReceiptPaymentInitiated); err != nil {
			errs = append(errs, err)
		}
		if _, err := s.Payments.TransitionByReceipt(ctx, receipt.WorkerReceiptNumber,
			models.WorkerPaymentInitiated, models.WorkerPaymentProcessed); err != nil {
			errs = append(errs, err)
		}

	case models.BoardReceiptProcessed:
		if _, err := s.Employer.TransitionStatus(ctx, receipt.EmployerReference,
			[]models.EmployerReceiptStatus{models.EmployerReceiptSendToBoard, models.EmployerReceiptValidated},
			models.EmployerReceiptProcessed); err != nil {
			errs = append(errs, err)
		}
		if _, err := s.WorkerReceipts.TransitionStatus(ctx, receipt.WorkerReceiptNumber,
			[]models.WorkerReceiptStatus{models.WorkerReceiptValidated, models.WorkerReceiptPaymentInitiated},
			models.WorkerReceiptReconciled); err != nil {
			errs = append(errs, err)
		}
		// Payments that missed the verification step are carried through it first.
		if _, err := s.Payments.TransitionByReceipt(ctx, receipt.WorkerReceiptNumber,
			models.WorkerPaymentInitiated, models.WorkerPaymentProcessed); err != nil {
			errs = append(errs, err)
		}
		if _, err := s.Payments.TransitionByReceipt(ctx, receipt.WorkerReceiptNumber,
			models.WorkerPaymentProcessed, models.WorkerPaymentReconciled); err != nil {
			errs = append(errs, err)
		}

	case models.BoardReceiptRejected:
		// a resubmission already superseded this rejection
		if live, err := s.liveReceipt(ctx, receipt.EmployerReference); err != nil {
			return fmt.Errorf("status propagation for board receipt %s: %w", receipt.BoardReference, err)
		} else if live != nil {
			return nil
		}
		if _, err := s.Employer.TransitionStatus(ctx, receipt.EmployerReference,
			[]models.EmployerReceiptStatus{models.EmployerReceiptSendToBoard},
			models.EmployerReceiptPending); err != nil {
			errs = append(errs, err)
		}
		if _, err := s.Payments.TransitionByReceipt(ctx, receipt.WorkerReceiptNumber,
			models.WorkerPaymentInitiated, models.WorkerPaymentRequested); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("status propagation for board receipt %s: %w", receipt.BoardReference, errors.Join(errs...))
	}
	return nil
}

func (s *BoardReceiptService) publish(receipt *models.BoardReceipt, eventType models.WorkflowEventType, actor string) {
	utils.IndexReceipt(s.Indexer, BoardReceiptDocument(receipt))

	nextAction := ""
	switch receipt.Status {
	case models.BoardReceiptPending:
		nextAction = "VERIFY_BOARD_RECEIPT"
	case models.BoardReceiptVerified:
		nextAction = "RECONCILE_BOARD_RECEIPT"
	case models.BoardReceiptRejected:
		nextAction = "RESUBMIT_EMPLOYER_VALIDATION"
	}

	utils.Notify(s.Notifier, models.WorkflowEvent{
		Type:       eventType,
		Reference:  receipt.BoardReference,
		Status:     string(receipt.Status),
		NextAction: nextAction,
		Actor:      actor,
		OccurredAt: s.Now(),
	})
}

// BoardReceiptDocument is the search form of a board receipt
func BoardReceiptDocument(receipt *models.BoardReceipt) bleveModels.ReceiptSearchDocument {
	amount, _ := receipt.Amount.Float64()
	return bleveModels.ReceiptSearchDocument{
		Kind:                  bleveModels.BoardReceiptKind,
		Number:                receipt.BoardReference,
		WorkerReceiptNumber:   receipt.WorkerReceiptNumber,
		EmployerReceiptNumber: receipt.EmployerReference,
		BoardReference:        receipt.BoardReference,
		EmployerID:            receipt.EmployerID,
		ToliID:                receipt.ToliID,
		Status:                string(receipt.Status),
		Amount:                amount,
		UTRNumber:             utils.StringValue(receipt.UTRNumber),
		CreatedAt:             receipt.CreatedAt,
	}
}
