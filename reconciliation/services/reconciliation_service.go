package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"welfare-receipts-backend/config"
	"welfare-receipts-backend/db/models"
	paymentRepositories "welfare-receipts-backend/payments/repositories"
	"welfare-receipts-backend/reconciliation/repositories"
	receiptRepositories "welfare-receipts-backend/receipts/repositories"
	receiptServices "welfare-receipts-backend/receipts/services"
	uploadRepositories "welfare-receipts-backend/uploads/repositories"
	"welfare-receipts-backend/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	scanLimit   = 500
	repairLimit = 200
)

// ScanReport counts the anomalies each detection query produced
type ScanReport struct {
	PaymentLinks       int `json:"payment_links"`
	RawRecordLinks     int `json:"raw_record_links"`
	MissingBoard       int `json:"missing_board_receipts"`
	EmployerPropagated int `json:"employer_propagation"`
	BoardPropagated    int `json:"board_propagation"`
}

type RepairReport struct {
	Attempted int `json:"attempted"`
	Resolved  int `json:"resolved"`
	Failed    int `json:"failed"`
}

type ReconciliationService struct {
	Anomalies      repositories.AnomalyRepository
	Recorder       *AnomalyRecorder
	Uploads        uploadRepositories.UploadRepository
	Payments       paymentRepositories.WorkerPaymentRepository
	WorkerReceipts paymentRepositories.WorkerReceiptRepository
	Employer       receiptRepositories.EmployerReceiptRepository
	Board          receiptRepositories.BoardReceiptRepository
	EmployerFlow   *receiptServices.EmployerReceiptService
	BoardFlow      *receiptServices.BoardReceiptService
	Limiter        *rate.Limiter
	Now            func() time.Time
}

func NewReconciliationService(
	anomalies repositories.AnomalyRepository,
	recorder *AnomalyRecorder,
	uploads uploadRepositories.UploadRepository,
	payments paymentRepositories.WorkerPaymentRepository,
	workerReceipts paymentRepositories.WorkerReceiptRepository,
	employer receiptRepositories.EmployerReceiptRepository,
	board receiptRepositories.BoardReceiptRepository,
	employerFlow *receiptServices.EmployerReceiptService,
	boardFlow *receiptServices.BoardReceiptService,
	repairsPerSecond float64,
) *ReconciliationService {
	if repairsPerSecond <= 0 {
		repairsPerSecond = 5
	}
	return &ReconciliationService{
		Anomalies:      anomalies,
		Recorder:       recorder,
		Uploads:        uploads,
		Payments:       payments,
		WorkerReceipts: workerReceipts,
		Employer:       employer,
		Board:          board,
		EmployerFlow:   employerFlow,
		BoardFlow:      boardFlow,
		Limiter:        rate.NewLimiter(rate.Limit(repairsPerSecond), 1),
		Now:            time.Now,
	}
}

// Scan looks for half-finished linkage that was never recorded (for example because the
// process died between steps) and records it.
func (s *ReconciliationService) Scan(ctx context.Context) (*ScanReport, error) {
	report := &ScanReport{}

	type detection struct {
		kind    models.AnomalyKind
		find    func(context.Context, int) ([]repositories.LinkCandidate, error)
		counter *int
		cause   string
	}
	detections := []detection{
		{models.PaymentReceiptLinkAnomaly, s.Anomalies.FindPaymentsMissingReceipt, &report.PaymentLinks, "payment has no receipt number"},
		{models.RawRecordLinkAnomaly, s.Anomalies.FindAggregatedValidatedRecords, &report.RawRecordLinks, "raw record aggregated but still VALIDATED"},
		{models.StatusPropagationAnomaly, s.Anomalies.FindUnpropagatedEmployerReceipts, &report.EmployerPropagated, "worker receipt not moved after employer validation"},
		{models.StatusPropagationAnomaly, s.Anomalies.FindUnpropagatedBoardReceipts, &report.BoardPropagated, "employer receipt not moved after board transition"},
	}

	for _, d := range detections {
		candidates, err := d.find(ctx, scanLimit)
		if err != nil {
			return report, fmt.Errorf("detection of %s failed: %w", d.kind, err)
		}
		for _, c := range candidates {
			if err := s.record(ctx, d.kind, c.EntityKey, c.BatchID, utils.StringValue(c.ReceiptNumber), d.cause); err != nil {
				return report, err
			}
			*d.counter++
		}
	}

	awaiting, err := s.Employer.GetAwaitingBoardReceipt(ctx, scanLimit)
	if err != nil {
		return report, fmt.Errorf("detection of %s failed: %w", models.BoardReceiptMissingAnomaly, err)
	}
	for _, er := range awaiting {
		if err := s.record(ctx, models.BoardReceiptMissingAnomaly, er.EmployerReceiptNumber, nil,
			er.WorkerReceiptNumber, "employer receipt sent to board without board receipt"); err != nil {
			return report, err
		}
		report.MissingBoard++
	}

	config.Logger.Info("Linkage scan finished",
		zap.Int("paymentLinks", report.PaymentLinks),
		zap.Int("rawRecordLinks", report.RawRecordLinks),
		zap.Int("missingBoardReceipts", report.MissingBoard),
		zap.Int("employerPropagation", report.EmployerPropagated),
		zap.Int("boardPropagation", report.BoardPropagated))
	return report, nil
}

func (s *ReconciliationService) record(ctx context.Context, kind models.AnomalyKind, entityKey string, batchID *uuid.UUID, receiptNumber, cause string) error {
	anomaly := models.LinkageAnomaly{
		Kind:          kind,
		EntityKey:     entityKey,
		BatchID:       batchID,
		ReceiptNumber: receiptNumber,
		Status:        models.AnomalyOpen,
		LastError:     cause,
	}
	if s.Recorder != nil {
		return s.Recorder.Record(ctx, anomaly)
	}
	return s.Anomalies.Upsert(ctx, &anomaly)
}

// RepairOpen works through the open anomalies at the configured rate
func (s *ReconciliationService) RepairOpen(ctx context.Context) (*RepairReport, error) {
	report := &RepairReport{}

	anomalies, err := s.Anomalies.GetOpen(ctx, repairLimit)
	if err != nil {
		return report, err
	}

	for i := range anomalies {
		if s.Limiter != nil {
			if err := s.Limiter.Wait(ctx); err != nil {
				return report, err
			}
		}
		report.Attempted++
		if err := s.repairAndMark(ctx, &anomalies[i]); err != nil {
			report.Failed++
			continue
		}
		report.Resolved++
	}

	if report.Attempted > 0 {
		config.Logger.Info("Linkage repair pass finished",
			zap.Int("attempted", report.Attempted),
			zap.Int("resolved", report.Resolved),
			zap.Int("failed", report.Failed))
	}
	return report, nil
}

// Run performs a scan followed by a repair pass
func (s *ReconciliationService) Run(ctx context.Context) (*ScanReport, *RepairReport, error) {
	scan, err := s.Scan(ctx)
	if err != nil {
		return scan, nil, err
	}
	repair, err := s.RepairOpen(ctx)
	return scan, repair, err
}

// RepairByKey repairs one anomaly; resolved or unknown anomalies are ignored
func (s *ReconciliationService) RepairByKey(ctx context.Context, kind models.AnomalyKind, entityKey string) error {
	anomaly, err := s.Anomalies.GetByKey(ctx, kind, entityKey)
	if err != nil {
		if utils.IsNotFound(err) {
			return nil
		}
		return err
	}
	if anomaly.Status != models.AnomalyOpen {
		return nil
	}
	return s.repairAndMark(ctx, anomaly)
}

func (s *ReconciliationService) repairAndMark(ctx context.Context, anomaly *models.LinkageAnomaly) error {
	if err := s.repair(ctx, anomaly); err != nil {
		config.Logger.Warn("Linkage repair failed",
			zap.String("kind", string(anomaly.Kind)),
			zap.String("entityKey", anomaly.EntityKey),
			zap.Int("attempts", anomaly.Attempts+1),
			zap.Error(err))
		if markErr := s.Anomalies.MarkFailed(ctx, anomaly.ID, err.Error()); markErr != nil {
			config.Logger.Error("Failed to update linkage anomaly", zap.Error(markErr))
		}
		return err
	}
	if err := s.Anomalies.MarkResolved(ctx, anomaly.ID, s.Now()); err != nil {
		return err
	}
	config.Logger.Info("Linkage anomaly resolved",
		zap.String("kind", string(anomaly.Kind)),
		zap.String("entityKey", anomaly.EntityKey))
	return nil
}

func (s *ReconciliationService) repair(ctx context.Context, anomaly *models.LinkageAnomaly) error {
	switch anomaly.Kind {
	case models.PaymentReceiptLinkAnomaly:
		return s.repairPaymentLink(ctx, anomaly)
	case models.RawRecordLinkAnomaly:
		return s.repairRawRecordLink(ctx, anomaly)
	case models.BoardReceiptMissingAnomaly:
		return s.repairMissingBoardReceipt(ctx, anomaly)
	case models.StatusPropagationAnomaly:
		return s.repairPropagation(ctx, anomaly)
	default:
		return fmt.Errorf("unknown anomaly kind %s", anomaly.Kind)
	}
}

func (s *ReconciliationService) repairPaymentLink(ctx context.Context, anomaly *models.LinkageAnomaly) error {
	paymentID, err := uuid.Parse(anomaly.EntityKey)
	if err != nil {
		return fmt.Errorf("invalid payment id %q: %w", anomaly.EntityKey, err)
	}
	payment, err := s.Payments.GetByID(ctx, paymentID)
	if err != nil {
		return err
	}
	if payment.ReceiptNumber != nil && *payment.ReceiptNumber != "" {
		return nil
	}

	receiptNumber, err := s.receiptForBatch(ctx, anomaly.ReceiptNumber, payment.BatchID)
	if err != nil {
		return err
	}
	linked, err := s.Payments.LinkReceiptNumber(ctx, paymentID, receiptNumber)
	if err != nil {
		return err
	}
	if !linked {
		return fmt.Errorf("payment %s could not be linked to %s", paymentID, receiptNumber)
	}
	return nil
}

func (s *ReconciliationService) repairRawRecordLink(ctx context.Context, anomaly *models.LinkageAnomaly) error {
	recordID, err := uuid.Parse(anomaly.EntityKey)
	if err != nil {
		return fmt.Errorf("invalid raw record id %q: %w", anomaly.EntityKey, err)
	}
	record, err := s.Uploads.GetRecordByID(ctx, recordID)
	if err != nil {
		return err
	}
	switch record.Status {
	case models.RawRecordRequestGenerated:
		return nil
	case models.RawRecordValidated:
	default:
		return utils.NewInvalidState("raw record", recordID.String(), string(record.Status), "link")
	}

	receiptNumber, err := s.receiptForBatch(ctx, anomaly.ReceiptNumber, record.BatchID)
	if err != nil {
		return err
	}
	marked, err := s.Uploads.MarkRecordRequestGenerated(ctx, recordID, receiptNumber, s.Now())
	if err != nil {
		return err
	}
	if !marked {
		return fmt.Errorf("raw record %s could not be linked to %s", recordID, receiptNumber)
	}
	return nil
}

// receiptForBatch confirms the recorded receipt number, or falls back to the batch's only
// worker receipt.
func (s *ReconciliationService) receiptForBatch(ctx context.Context, recorded string, batchID uuid.UUID) (string, error) {
	if recorded != "" {
		if _, err := s.WorkerReceipts.GetByNumber(ctx, recorded); err != nil {
			return "", err
		}
		return recorded, nil
	}
	receipts, err := s.WorkerReceipts.GetByBatchID(ctx, batchID)
	if err != nil {
		return "", err
	}
	if len(receipts) != 1 {
		return "", fmt.Errorf("batch %s has %d worker receipts, cannot choose one", batchID, len(receipts))
	}
	return receipts[0].ReceiptNumber, nil
}

func (s *ReconciliationService) repairMissingBoardReceipt(ctx context.Context, anomaly *models.LinkageAnomaly) error {
	if s.BoardFlow == nil {
		return errors.New("board receipt service not configured")
	}
	employerReceipt, err := s.Employer.GetByNumber(ctx, anomaly.EntityKey)
	if err != nil {
		return err
	}
	if employerReceipt.Status == models.EmployerReceiptPending {
		return utils.NewInvalidState("employer receipt", employerReceipt.EmployerReceiptNumber, string(employerReceipt.Status), "send to board")
	}
	maker := employerReceipt.ValidatedBy
	if maker == "" {
		maker = "reconciliation"
	}
	_, err = s.BoardFlow.CreateFromEmployerReceipt(ctx, employerReceipt, maker)
	return err
}

// repairPropagation re-applies the transitions implied by the current state of the
// owning receipt. Board references and employer receipt numbers are told apart by prefix.
func (s *ReconciliationService) repairPropagation(ctx context.Context, anomaly *models.LinkageAnomaly) error {
	if strings.HasPrefix(anomaly.EntityKey, "BRD-") {
		if s.BoardFlow == nil {
			return errors.New("board receipt service not configured")
		}
		board, err := s.Board.GetByReference(ctx, anomaly.EntityKey)
		if err != nil {
			return err
		}
		return s.BoardFlow.PropagateBoardStatus(ctx, board)
	}

	employerReceipt, err := s.Employer.GetByNumber(ctx, anomaly.EntityKey)
	if err != nil {
		return err
	}
	switch employerReceipt.Status {
	case models.EmployerReceiptPending:
		_, err := s.Payments.TransitionByReceipt(ctx, employerReceipt.WorkerReceiptNumber,
			models.WorkerPaymentValidated, models.WorkerPaymentRequested)
		return err
	case models.EmployerReceiptSendToBoard:
		if s.EmployerFlow == nil {
			return errors.New("employer receipt service not configured")
		}
		return s.EmployerFlow.PropagateEmployerValidation(ctx, employerReceipt)
	default:
		if s.BoardFlow == nil {
			return errors.New("board receipt service not configured")
		}
		board, err := s.Board.GetByEmployerReference(ctx, employerReceipt.EmployerReceiptNumber)
		if err != nil {
			return err
		}
		return s.BoardFlow.PropagateBoardStatus(ctx, board)
	}
}
