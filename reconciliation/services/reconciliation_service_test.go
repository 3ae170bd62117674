package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"welfare-receipts-backend/db/models"
	"welfare-receipts-backend/internal/testdb"
	paymentRepositories "welfare-receipts-backend/payments/repositories"
	paymentServices "welfare-receipts-backend/payments/services"
	"welfare-receipts-backend/reconciliation/repositories"
	receiptRepositories "welfare-receipts-backend/receipts/repositories"
	receiptServices "welfare-receipts-backend/receipts/services"
	uploadRepositories "welfare-receipts-backend/uploads/repositories"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

type reconciliationFixture struct {
	db         *gorm.DB
	anomalies  repositories.AnomalyRepository
	uploads    uploadRepositories.UploadRepository
	payments   paymentRepositories.WorkerPaymentRepository
	receipts   paymentRepositories.WorkerReceiptRepository
	employer   receiptRepositories.EmployerReceiptRepository
	board      receiptRepositories.BoardReceiptRepository
	employerUI *receiptServices.EmployerReceiptService
	aggregator *paymentServices.ReceiptAggregator
	service    *ReconciliationService
}

func newReconciliationFixture(t *testing.T) *reconciliationFixture {
	t.Helper()
	db := testdb.Open(t)
	f := &reconciliationFixture{
		db:        db,
		anomalies: repositories.NewAnomalyRepository(db),
		uploads:   uploadRepositories.NewUploadRepository(db),
		payments:  paymentRepositories.NewWorkerPaymentRepository(db),
		receipts:  paymentRepositories.NewWorkerReceiptRepository(db),
		employer:  receiptRepositories.NewEmployerReceiptRepository(db),
		board:     receiptRepositories.NewBoardReceiptRepository(db),
	}
	recorder := NewAnomalyRecorder(f.anomalies, nil)

	boardFlow := receiptServices.NewBoardReceiptService(f.board, f.employer, f.receipts, f.payments, recorder, nil, nil)
	f.employerUI = receiptServices.NewEmployerReceiptService(f.receipts, f.payments, f.employer, boardFlow, recorder, nil, nil)
	f.aggregator = paymentServices.NewReceiptAggregator(db, f.uploads, f.payments, f.receipts, nil, recorder, nil, nil)
	f.service = NewReconciliationService(f.anomalies, recorder, f.uploads, f.payments, f.receipts,
		f.employer, f.board, f.employerUI, boardFlow, 1000)
	f.service.Limiter = nil
	return f
}

func (f *reconciliationFixture) generate(t *testing.T) (*models.UploadedBatch, string) {
	t.Helper()
	batch := testdb.SeedBatch(t, f.db, models.BatchValidated,
		testdb.Record(1, "500.00", models.RawRecordValidated),
		testdb.Record(2, "700.00", models.RawRecordValidated),
	)
	result, err := f.aggregator.Generate(context.Background(), batch.ID, "", "maker")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return batch, result.ReceiptNumber
}

func TestScanAndRepairBrokenLinks(t *testing.T) {
	f := newReconciliationFixture(t)
	ctx := context.Background()
	batch, receiptNumber := f.generate(t)

	payments, err := f.payments.GetByReceiptNumber(ctx, receiptNumber)
	if err != nil || len(payments) != 2 {
		t.Fatalf("expected 2 linked payments, got %d (%v)", len(payments), err)
	}
	unlinked := payments[0]
	if err := f.db.Model(&models.WorkerPayment{}).Where("id = ?", unlinked.ID).
		Update("receipt_number", nil).Error; err != nil {
		t.Fatal(err)
	}

	records, err := f.uploads.GetRecordsByStatus(ctx, batch.ID, models.RawRecordRequestGenerated)
	if err != nil || len(records) != 2 {
		t.Fatalf("expected 2 generated records, got %d (%v)", len(records), err)
	}
	reverted := records[1]
	if err := f.db.Model(&models.RawUploadRecord{}).Where("id = ?", reverted.ID).
		Update("status", models.RawRecordValidated).Error; err != nil {
		t.Fatal(err)
	}

	scan, repair, err := f.service.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if scan.PaymentLinks != 1 || scan.RawRecordLinks != 1 {
		t.Fatalf("unexpected scan %+v", scan)
	}
	if repair.Attempted != 2 || repair.Resolved != 2 || repair.Failed != 0 {
		t.Fatalf("unexpected repair %+v", repair)
	}

	fixed, err := f.payments.GetByID(ctx, unlinked.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fixed.ReceiptNumber == nil || *fixed.ReceiptNumber != receiptNumber {
		t.Fatalf("payment not relinked: %v", fixed.ReceiptNumber)
	}
	record, err := f.uploads.GetRecordByID(ctx, reverted.ID)
	if err != nil {
		t.Fatal(err)
	}
	if record.Status != models.RawRecordRequestGenerated {
		t.Fatalf("raw record not relinked: %s", record.Status)
	}

	open, err := f.anomalies.CountOpen(ctx)
	if err != nil || open != 0 {
		t.Fatalf("expected no open anomalies, got %d (%v)", open, err)
	}

	again, err := f.service.Scan(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if *again != (ScanReport{}) {
		t.Fatalf("second scan should find nothing, got %+v", again)
	}
}

func TestRepairFinishesEmployerPropagation(t *testing.T) {
	f := newReconciliationFixture(t)
	ctx := context.Background()
	_, receiptNumber := f.generate(t)

	er, err := f.employerUI.ValidateWorkerReceipt(ctx, receiptNumber, "TXN-9", "employer")
	if err != nil {
		t.Fatalf("ValidateWorkerReceipt: %v", err)
	}

	// roll the downstream steps back as if the process died after the employer write
	if _, err := f.receipts.TransitionStatus(ctx, receiptNumber,
		[]models.WorkerReceiptStatus{models.WorkerReceiptValidated}, models.WorkerReceiptProcessed); err != nil {
		t.Fatal(err)
	}
	if _, err := f.payments.TransitionByReceipt(ctx, receiptNumber,
		models.WorkerPaymentInitiated, models.WorkerPaymentRequested); err != nil {
		t.Fatal(err)
	}

	scan, err := f.service.Scan(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if scan.EmployerPropagated != 1 {
		t.Fatalf("expected one employer propagation anomaly, got %+v", scan)
	}

	task, err := NewLinkageRepairTask(models.StatusPropagationAnomaly, er.EmployerReceiptNumber)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.service.HandleLinkageRepairTask(ctx, task); err != nil {
		t.Fatalf("HandleLinkageRepairTask: %v", err)
	}

	wr, err := f.receipts.GetByNumber(ctx, receiptNumber)
	if err != nil {
		t.Fatal(err)
	}
	if wr.Status != models.WorkerReceiptValidated {
		t.Fatalf("expected worker receipt VALIDATED, got %s", wr.Status)
	}
	payments, _ := f.payments.GetByReceiptNumber(ctx, receiptNumber)
	for _, p := range payments {
		if p.Status != models.WorkerPaymentInitiated {
			t.Fatalf("payment %s left at %s", p.ID, p.Status)
		}
	}

	anomaly, err := f.anomalies.GetByKey(ctx, models.StatusPropagationAnomaly, er.EmployerReceiptNumber)
	if err != nil {
		t.Fatal(err)
	}
	if anomaly.Status != models.AnomalyResolved || anomaly.ResolvedAt == nil || anomaly.Attempts != 1 {
		t.Fatalf("unexpected anomaly after repair %+v", anomaly)
	}

	// a resolved anomaly is left alone
	if err := f.service.RepairByKey(ctx, models.StatusPropagationAnomaly, er.EmployerReceiptNumber); err != nil {
		t.Fatalf("RepairByKey on resolved anomaly: %v", err)
	}
}

func TestFailedRepairStaysOpen(t *testing.T) {
	f := newReconciliationFixture(t)
	ctx := context.Background()

	err := f.service.Recorder.Record(ctx, models.LinkageAnomaly{
		Kind:      models.PaymentReceiptLinkAnomaly,
		EntityKey: "not-a-uuid",
		LastError: "seeded",
	})
	if err != nil {
		t.Fatal(err)
	}

	report, err := f.service.RepairOpen(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Attempted != 1 || report.Failed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	anomaly, err := f.anomalies.GetByKey(ctx, models.PaymentReceiptLinkAnomaly, "not-a-uuid")
	if err != nil {
		t.Fatal(err)
	}
	if anomaly.Status != models.AnomalyOpen || anomaly.Attempts != 1 || anomaly.LastError == "seeded" {
		t.Fatalf("expected an open anomaly with the failure recorded, got %+v", anomaly)
	}
}

func TestUpsertReopensResolvedAnomaly(t *testing.T) {
	f := newReconciliationFixture(t)
	ctx := context.Background()

	first := models.LinkageAnomaly{Kind: models.BoardReceiptMissingAnomaly, EntityKey: "ERC-1", LastError: "first"}
	if err := f.anomalies.Upsert(ctx, &first); err != nil {
		t.Fatal(err)
	}
	stored, _ := f.anomalies.GetByKey(ctx, models.BoardReceiptMissingAnomaly, "ERC-1")
	if err := f.anomalies.MarkResolved(ctx, stored.ID, time.Now()); err != nil {
		t.Fatal(err)
	}

	second := models.LinkageAnomaly{Kind: models.BoardReceiptMissingAnomaly, EntityKey: "ERC-1", LastError: "second"}
	if err := f.anomalies.Upsert(ctx, &second); err != nil {
		t.Fatal(err)
	}

	reopened, err := f.anomalies.GetByKey(ctx, models.BoardReceiptMissingAnomaly, "ERC-1")
	if err != nil {
		t.Fatal(err)
	}
	if reopened.ID != stored.ID || reopened.Status != models.AnomalyOpen || reopened.LastError != "second" || reopened.ResolvedAt != nil {
		t.Fatalf("expected the same row reopened, got %+v", reopened)
	}
	if n, _ := f.anomalies.CountOpen(ctx); n != 1 {
		t.Fatalf("expected exactly one open anomaly, got %d", n)
	}
}

func TestLinkageRepairTaskPayload(t *testing.T) {
	task, err := NewLinkageRepairTask(models.RawRecordLinkAnomaly, "abc")
	if err != nil {
		t.Fatal(err)
	}
	if task.Type() != TypeLinkageRepair {
		t.Fatalf("unexpected task type %s", task.Type())
	}
	var payload LinkageRepairPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Kind != models.RawRecordLinkAnomaly || payload.EntityKey != "abc" {
		t.Fatalf("unexpected payload %+v", payload)
	}

	f := newReconciliationFixture(t)
	bad := asynq.NewTask(TypeLinkageRepair, []byte("{"))
	if err := f.service.HandleLinkageRepairTask(context.Background(), bad); err == nil {
		t.Fatal("expected malformed payload to fail")
	}
}
