package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"welfare-receipts-backend/db/models"
	"welfare-receipts-backend/internal/testdb"
	paymentRepositories "welfare-receipts-backend/payments/repositories"
	paymentServices "welfare-receipts-backend/payments/services"
	"welfare-receipts-backend/receipts/repositories"
	uploadRepositories "welfare-receipts-backend/uploads/repositories"
	"welfare-receipts-backend/utils"

	"gorm.io/gorm"
)

type workflowFixture struct {
	db             *gorm.DB
	payments       paymentRepositories.WorkerPaymentRepository
	workerReceipts paymentRepositories.WorkerReceiptRepository
	employer       repositories.EmployerReceiptRepository
	board          repositories.BoardReceiptRepository
	anomalies      *testdb.Anomalies
	notifier       *testdb.Notifier
	boardFlow      *BoardReceiptService
	employerFlow   *EmployerReceiptService
	aggregator     *paymentServices.ReceiptAggregator
}

var workflowDay = time.Date(2025, 1, 1, 12, 0, 0, 0, time.Local)

func newWorkflowFixture(t *testing.T) *workflowFixture {
	t.Helper()
	db := testdb.Open(t)
	uploads := uploadRepositories.NewUploadRepository(db)

	f := &workflowFixture{
		db:             db,
		payments:       paymentRepositories.NewWorkerPaymentRepository(db),
		workerReceipts: paymentRepositories.NewWorkerReceiptRepository(db),
		employer:       repositories.NewEmployerReceiptRepository(db),
		board:          repositories.NewBoardReceiptRepository(db),
		anomalies:      &testdb.Anomalies{},
		notifier:       &testdb.Notifier{},
	}
	f.boardFlow = NewBoardReceiptService(f.board, f.employer, f.workerReceipts, f.payments, f.anomalies, nil, f.notifier)
	f.boardFlow.Now = func() time.Time { return workflowDay }
	f.employerFlow = NewEmployerReceiptService(f.workerReceipts, f.payments, f.employer, f.boardFlow, f.anomalies, nil, f.notifier)
	f.aggregator = paymentServices.NewReceiptAggregator(db, uploads, f.payments, f.workerReceipts, nil, f.anomalies, nil, nil)
	return f
}

// workerReceipt aggregates a fresh batch of two 800.00 rows and returns its receipt number
func (f *workflowFixture) workerReceipt(t *testing.T) string {
	t.Helper()
	batch := testdb.SeedBatch(t, f.db, models.BatchValidated,
		testdb.Record(1, "800.00", models.RawRecordValidated),
		testdb.Record(2, "800.00", models.RawRecordValidated),
	)
	result, err := f.aggregator.Generate(context.Background(), batch.ID, "", "maker")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return result.ReceiptNumber
}

func (f *workflowFixture) paymentStatuses(t *testing.T, receiptNumber string) map[models.WorkerPaymentStatus]int {
	t.Helper()
	payments, err := f.payments.GetByReceiptNumber(context.Background(), receiptNumber)
	if err != nil {
		t.Fatalf("GetByReceiptNumber: %v", err)
	}
	out := make(map[models.WorkerPaymentStatus]int)
	for _, p := range payments {
		out[p.Status]++
	}
	return out
}

func TestCreatePendingEmployerReceiptIsIdempotent(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	wrn := f.workerReceipt(t)

	first, created, err := f.employerFlow.CreatePendingForWorkerReceipt(ctx, wrn)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if !created || first.Status != models.EmployerReceiptPending {
		t.Fatalf("expected a new PENDING receipt, got created=%v %+v", created, first)
	}
	if got := first.TotalAmount.StringFixed(2); got != "1600.00" {
		t.Fatalf("expected amount 1600.00, got %s", got)
	}

	second, created, err := f.employerFlow.CreatePendingForWorkerReceipt(ctx, wrn)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if created || second.EmployerReceiptNumber != first.EmployerReceiptNumber {
		t.Fatalf("expected the existing receipt back, got created=%v %s", created, second.EmployerReceiptNumber)
	}

	if st := f.paymentStatuses(t, wrn); st[models.WorkerPaymentRequested] != 2 {
		t.Fatalf("expected both payments requested, got %v", st)
	}

	if _, _, err := f.employerFlow.CreatePendingForWorkerReceipt(ctx, "RCP-MISSING"); !utils.IsNotFound(err) {
		t.Fatalf("expected not found for an unknown worker receipt, got %v", err)
	}
}

func TestEmployerValidationOpensBoardReceipt(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	wrn := f.workerReceipt(t)

	er, err := f.employerFlow.ValidateWorkerReceipt(ctx, wrn, "TXN-1", "employer@example.com")
	if err != nil {
		t.Fatalf("ValidateWorkerReceipt: %v", err)
	}
	if er.Status != models.EmployerReceiptSendToBoard || er.TransactionReference != "TXN-1" || er.ValidatedAt == nil {
		t.Fatalf("unexpected employer receipt %+v", er)
	}

	board, err := f.board.GetByEmployerReference(ctx, er.EmployerReceiptNumber)
	if err != nil {
		t.Fatalf("board receipt not created: %v", err)
	}
	if board.BoardReference != "BRD-20250101-001" || board.BoardID != "20250101001" {
		t.Fatalf("unexpected board reference %s / %s", board.BoardReference, board.BoardID)
	}
	if board.Status != models.BoardReceiptPending || board.Maker != "employer@example.com" {
		t.Fatalf("unexpected board receipt %+v", board)
	}

	wr, err := f.workerReceipts.GetByNumber(ctx, wrn)
	if err != nil {
		t.Fatalf("GetByNumber: %v", err)
	}
	if wr.Status != models.WorkerReceiptValidated {
		t.Fatalf("expected worker receipt VALIDATED, got %s", wr.Status)
	}
	if st := f.paymentStatuses(t, wrn); st[models.WorkerPaymentInitiated] != 2 {
		t.Fatalf("expected both payments initiated, got %v", st)
	}
	if len(f.anomalies.Records) != 0 {
		t.Fatalf("unexpected anomalies %v", f.anomalies.Kinds())
	}

	again, err := f.employerFlow.ValidateWorkerReceipt(ctx, wrn, "TXN-2", "employer@example.com")
	if err != nil {
		t.Fatalf("second validation while SEND_TO_BOARD: %v", err)
	}
	if again.EmployerReceiptNumber != er.EmployerReceiptNumber || again.TransactionReference != "TXN-2" {
		t.Fatalf("expected the same employer receipt updated in place, got %+v", again)
	}
	var employerRows int64
	if err := f.db.Model(&models.EmployerPaymentReceipt{}).Where("worker_receipt_number = ?", wrn).Count(&employerRows).Error; err != nil {
		t.Fatal(err)
	}
	if employerRows != 1 {
		t.Fatalf("expected one employer receipt row, got %d", employerRows)
	}
	if board, _ := f.board.GetByEmployerReference(ctx, er.EmployerReceiptNumber); board.BoardReference != "BRD-20250101-001" {
		t.Fatalf("second validation should reuse the board receipt, got %s", board.BoardReference)
	}

	if _, err := f.employerFlow.ValidateWorkerReceipt(ctx, wrn, "", "employer"); !utils.IsInvalidInput(err) {
		t.Fatalf("expected invalid input without a transaction reference, got %v", err)
	}
	if _, err := f.employerFlow.ValidateWorkerReceipt(ctx, "RCP-NOPE", "TXN", "employer"); !utils.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestBoardVerificationHappensOnce(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	wrn := f.workerReceipt(t)

	if _, err := f.employerFlow.ValidateWorkerReceipt(ctx, wrn, "TXN-1", "maker"); err != nil {
		t.Fatalf("ValidateWorkerReceipt: %v", err)
	}
	const ref = "BRD-20250101-001"

	verified, err := f.boardFlow.ProcessBoardReceipt(ctx, ref, "UTR123", "alice")
	if err != nil {
		t.Fatalf("ProcessBoardReceipt: %v", err)
	}
	if verified.Status != models.BoardReceiptVerified || utils.StringValue(verified.UTRNumber) != "UTR123" ||
		utils.StringValue(verified.Checker) != "alice" || verified.VerifiedAt == nil {
		t.Fatalf("unexpected verified receipt %+v", verified)
	}

	if _, err := f.boardFlow.ProcessBoardReceipt(ctx, ref, "UTR999", "bob"); !utils.IsInvalidState(err) {
		t.Fatalf("expected invalid state on second verification, got %v", err)
	}
	stored, err := f.board.GetByReference(ctx, ref)
	if err != nil {
		t.Fatalf("GetByReference: %v", err)
	}
	if utils.StringValue(stored.UTRNumber) != "UTR123" || utils.StringValue(stored.Checker) != "alice" {
		t.Fatalf("verification fields were overwritten: %+v", stored)
	}

	er, err := f.employer.GetByWorkerReceiptNumber(ctx, wrn)
	if err != nil {
		t.Fatalf("GetByWorkerReceiptNumber: %v", err)
	}
	if er.Status != models.EmployerReceiptValidated {
		t.Fatalf("expected employer receipt VALIDATED, got %s", er.Status)
	}
	wr, _ := f.workerReceipts.GetByNumber(ctx, wrn)
	if wr.Status != models.WorkerReceiptPaymentInitiated {
		t.Fatalf("expected worker receipt PAYMENT_INITIATED, got %s", wr.Status)
	}
	if st := f.paymentStatuses(t, wrn); st[models.WorkerPaymentProcessed] != 2 {
		t.Fatalf("expected both payments processed, got %v", st)
	}

	if _, err := f.boardFlow.ProcessBoardReceipt(ctx, "BRD-20250101-999", "UTR1", "alice"); !utils.IsNotFound(err) {
		t.Fatalf("expected not found for an unknown reference, got %v", err)
	}
	if _, err := f.boardFlow.ProcessBoardReceipt(ctx, ref, " ", "alice"); !utils.IsInvalidInput(err) {
		t.Fatalf("expected invalid input for a blank UTR, got %v", err)
	}
}

func TestBoardReconciliationClosesTheChain(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	wrn := f.workerReceipt(t)

	if _, err := f.employerFlow.ValidateWorkerReceipt(ctx, wrn, "TXN-1", "maker"); err != nil {
		t.Fatalf("ValidateWorkerReceipt: %v", err)
	}
	const ref = "BRD-20250101-001"

	if _, err := f.boardFlow.ReconcileBoardReceipt(ctx, ref, "ops"); !utils.IsInvalidState(err) {
		t.Fatalf("a PENDING receipt cannot be reconciled, got %v", err)
	}
	if _, err := f.boardFlow.ProcessBoardReceipt(ctx, ref, "UTR123", "alice"); err != nil {
		t.Fatalf("ProcessBoardReceipt: %v", err)
	}
	done, err := f.boardFlow.ReconcileBoardReceipt(ctx, ref, "ops")
	if err != nil {
		t.Fatalf("ReconcileBoardReceipt: %v", err)
	}
	if done.Status != models.BoardReceiptProcessed || done.ProcessedAt == nil {
		t.Fatalf("unexpected reconciled receipt %+v", done)
	}

	er, _ := f.employer.GetByWorkerReceiptNumber(ctx, wrn)
	wr, _ := f.workerReceipts.GetByNumber(ctx, wrn)
	if er.Status != models.EmployerReceiptProcessed || wr.Status != models.WorkerReceiptReconciled {
		t.Fatalf("upstream not reconciled: employer %s, worker %s", er.Status, wr.Status)
	}
	if st := f.paymentStatuses(t, wrn); st[models.WorkerPaymentReconciled] != 2 {
		t.Fatalf("expected both payments reconciled, got %v", st)
	}

	types := f.notifier.Types()
	if types[len(types)-1] != models.BoardReconciledEvent {
		t.Fatalf("expected BOARD_RECONCILED last, got %v", types)
	}
}

func TestBoardRejectionAndResubmission(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	wrn := f.workerReceipt(t)

	er, err := f.employerFlow.ValidateWorkerReceipt(ctx, wrn, "TXN-1", "maker")
	if err != nil {
		t.Fatalf("ValidateWorkerReceipt: %v", err)
	}
	const ref = "BRD-20250101-001"

	rejected, err := f.boardFlow.RejectBoardReceipt(ctx, ref, "amount mismatch", "bob")
	if err != nil {
		t.Fatalf("RejectBoardReceipt: %v", err)
	}
	if rejected.Status != models.BoardReceiptRejected || rejected.RejectionReason != "amount mismatch" {
		t.Fatalf("unexpected rejected receipt %+v", rejected)
	}
	if utils.StringValue(rejected.RejectedBy) != "bob" || rejected.RejectedAt == nil {
		t.Fatalf("expected the rejection to be attributed to bob, got %+v", rejected)
	}
	if rejected.Checker != nil || rejected.UTRNumber != nil {
		t.Fatalf("rejection must not touch checker or UTR, got %+v", rejected)
	}
	back, _ := f.employer.GetByNumber(ctx, er.EmployerReceiptNumber)
	if back.Status != models.EmployerReceiptPending {
		t.Fatalf("expected employer receipt back to PENDING, got %s", back.Status)
	}
	if st := f.paymentStatuses(t, wrn); st[models.WorkerPaymentRequested] != 2 {
		t.Fatalf("expected payments back to requested, got %v", st)
	}

	if _, err := f.employerFlow.ValidateWorkerReceipt(ctx, wrn, "TXN-2", "maker2"); err != nil {
		t.Fatalf("resubmission: %v", err)
	}
	resubmitted, err := f.board.GetByEmployerReference(ctx, er.EmployerReceiptNumber)
	if err != nil {
		t.Fatalf("GetByEmployerReference: %v", err)
	}
	if resubmitted.BoardReference != "BRD-20250101-002" {
		t.Fatalf("expected a new board receipt for the resubmission, got %s", resubmitted.BoardReference)
	}
	if resubmitted.Status != models.BoardReceiptPending || resubmitted.Maker != "maker2" || resubmitted.RejectedBy != nil {
		t.Fatalf("unexpected resubmitted receipt %+v", resubmitted)
	}
	if st := f.paymentStatuses(t, wrn); st[models.WorkerPaymentInitiated] != 2 {
		t.Fatalf("expected payments initiated again, got %v", st)
	}

	// a third validation while the new receipt is pending reuses it
	if _, err := f.employerFlow.ValidateWorkerReceipt(ctx, wrn, "TXN-3", "maker2"); err != nil {
		t.Fatalf("third validation: %v", err)
	}
	var boardRows int64
	if err := f.db.Model(&models.BoardReceipt{}).Where("employer_reference = ?", er.EmployerReceiptNumber).Count(&boardRows).Error; err != nil {
		t.Fatal(err)
	}
	if boardRows != 2 {
		t.Fatalf("expected the rejected and the live board receipt only, got %d rows", boardRows)
	}
}

func TestRejectedBoardReceiptIsFinal(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	wrn := f.workerReceipt(t)

	if _, err := f.employerFlow.ValidateWorkerReceipt(ctx, wrn, "TXN-1", "maker"); err != nil {
		t.Fatalf("ValidateWorkerReceipt: %v", err)
	}
	const ref = "BRD-20250101-001"
	if _, err := f.boardFlow.RejectBoardReceipt(ctx, ref, "bad", "bob"); err != nil {
		t.Fatalf("RejectBoardReceipt: %v", err)
	}
	if _, err := f.employerFlow.ValidateWorkerReceipt(ctx, wrn, "TXN-2", "maker"); err != nil {
		t.Fatalf("resubmission: %v", err)
	}

	if _, err := f.boardFlow.ProcessBoardReceipt(ctx, ref, "UTR1", "alice"); !utils.IsInvalidState(err) {
		t.Fatalf("expected invalid state verifying a rejected receipt, got %v", err)
	}
	if _, err := f.boardFlow.RejectBoardReceipt(ctx, ref, "again", "carol"); !utils.IsInvalidState(err) {
		t.Fatalf("expected invalid state rejecting twice, got %v", err)
	}

	old, err := f.board.GetByReference(ctx, ref)
	if err != nil {
		t.Fatalf("GetByReference: %v", err)
	}
	if old.Status != models.BoardReceiptRejected || old.Checker != nil || old.UTRNumber != nil {
		t.Fatalf("rejected receipt was rewritten: %+v", old)
	}
	if utils.StringValue(old.RejectedBy) != "bob" || old.RejectionReason != "bad" {
		t.Fatalf("rejection details were rewritten: %+v", old)
	}

	// replaying the old rejection must not pull the resubmission back
	if err := f.boardFlow.PropagateBoardStatus(ctx, old); err != nil {
		t.Fatalf("PropagateBoardStatus: %v", err)
	}
	if employer, _ := f.employer.GetByNumber(ctx, old.EmployerReference); employer.Status != models.EmployerReceiptSendToBoard {
		t.Fatalf("expected employer receipt to stay SEND_TO_BOARD, got %s", employer.Status)
	}
	if st := f.paymentStatuses(t, wrn); st[models.WorkerPaymentInitiated] != 2 {
		t.Fatalf("expected payments to stay initiated, got %v", st)
	}

	verified, err := f.boardFlow.ProcessBoardReceipt(ctx, "BRD-20250101-002", "UTR1", "alice")
	if err != nil {
		t.Fatalf("verifying the resubmitted receipt: %v", err)
	}
	if utils.StringValue(verified.Checker) != "alice" || utils.StringValue(verified.UTRNumber) != "UTR1" {
		t.Fatalf("unexpected verified receipt %+v", verified)
	}
	if old, _ = f.board.GetByReference(ctx, ref); old.Checker != nil || old.Status != models.BoardReceiptRejected {
		t.Fatalf("verifying the new receipt touched the rejected one: %+v", old)
	}
}

func TestEmployerValidationRefusedAfterBoardAccepts(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	wrn := f.workerReceipt(t)

	if _, err := f.employerFlow.ValidateWorkerReceipt(ctx, wrn, "TXN-1", "maker"); err != nil {
		t.Fatalf("ValidateWorkerReceipt: %v", err)
	}
	if _, err := f.boardFlow.ProcessBoardReceipt(ctx, "BRD-20250101-001", "UTR123", "alice"); err != nil {
		t.Fatalf("ProcessBoardReceipt: %v", err)
	}
	if _, err := f.employerFlow.ValidateWorkerReceipt(ctx, wrn, "TXN-2", "maker"); !utils.IsInvalidState(err) {
		t.Fatalf("expected invalid state once the board verified, got %v", err)
	}
}

type failingBoardCreator struct{ calls int }

func (b *failingBoardCreator) CreateFromEmployerReceipt(context.Context, *models.EmployerPaymentReceipt, string) (*models.BoardReceipt, error) {
	b.calls++
	return nil, errors.New("board service unavailable")
}

func TestEmployerValidationSurvivesBoardReceiptFailure(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	wrn := f.workerReceipt(t)
	board := &failingBoardCreator{}
	f.employerFlow.Board = board

	er, err := f.employerFlow.ValidateWorkerReceipt(ctx, wrn, "TXN-1", "employer@example.com")
	if err != nil {
		t.Fatalf("board failure must not fail employer validation: %v", err)
	}
	if board.calls != 1 {
		t.Fatalf("expected one board creation attempt, got %d", board.calls)
	}

	saved, err := f.employer.GetByNumber(ctx, er.EmployerReceiptNumber)
	if err != nil {
		t.Fatalf("employer receipt was not kept: %v", err)
	}
	if saved.Status != models.EmployerReceiptSendToBoard || saved.TransactionReference != "TXN-1" {
		t.Fatalf("unexpected employer receipt %+v", saved)
	}
	wr, err := f.workerReceipts.GetByNumber(ctx, wrn)
	if err != nil {
		t.Fatalf("GetByNumber: %v", err)
	}
	if wr.Status != models.WorkerReceiptValidated {
		t.Fatalf("expected worker receipt VALIDATED, got %s", wr.Status)
	}
	if st := f.paymentStatuses(t, wrn); st[models.WorkerPaymentInitiated] != 2 {
		t.Fatalf("expected both payments initiated, got %v", st)
	}
	if _, err := f.board.GetByEmployerReference(ctx, er.EmployerReceiptNumber); !utils.IsNotFound(err) {
		t.Fatalf("expected no board receipt, got %v", err)
	}

	if len(f.anomalies.Records) != 1 {
		t.Fatalf("expected one anomaly, got %v", f.anomalies.Kinds())
	}
	anomaly := f.anomalies.Records[0]
	if anomaly.Kind != models.BoardReceiptMissingAnomaly || anomaly.EntityKey != er.EmployerReceiptNumber ||
		anomaly.ReceiptNumber != wrn || anomaly.LastError == "" {
		t.Fatalf("unexpected anomaly %+v", anomaly)
	}

	// the awaiting-board query is what the reconciliation scan uses to find it again
	awaiting, err := f.employer.GetAwaitingBoardReceipt(ctx, 10)
	if err != nil {
		t.Fatalf("GetAwaitingBoardReceipt: %v", err)
	}
	if len(awaiting) != 1 || awaiting[0].EmployerReceiptNumber != er.EmployerReceiptNumber {
		t.Fatalf("expected the employer receipt to await a board receipt, got %d", len(awaiting))
	}
}
