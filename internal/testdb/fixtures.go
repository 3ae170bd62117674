package testdb

import (
	"context"
	"sync"
	"testing"
	"time"

	"welfare-receipts-backend/db/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Record returns a row that passes every validation rule, paying amount for
// amount/100 hours at 100 per hour, worked yesterday.
func Record(row int, amount string, status models.RawRecordStatus) models.RawUploadRecord {
	amt := decimal.RequireFromString(amount)
	rate := decimal.NewFromInt(100)
	workDate := time.Now().AddDate(0, 0, -1)
	return models.RawUploadRecord{
		RowNumber:     row,
		WorkerID:      "W-" + uuid.NewString()[:6],
		WorkerName:    "Worker Name",
		EmployerID:    "EMP01",
		ToliID:        "TOLI01",
		BankAccount:   "ACCT12345678",
		Phone:         "9876543210",
		Email:         "worker@example.com",
		WorkDate:      &workDate,
		HoursWorked:   decimal.NewNullDecimal(amt.Div(rate)),
		HourlyRate:    decimal.NewNullDecimal(rate),
		PaymentAmount: amt,
		Status:        status,
	}
}

// SeedBatch inserts a batch with the given status and its rows.
func SeedBatch(t *testing.T, db *gorm.DB, status models.BatchStatus, records ...models.RawUploadRecord) *models.UploadedBatch {
	t.Helper()

	batch := &models.UploadedBatch{
		ID:             uuid.New(),
		BatchReference: "BATCH-TEST",
		FileName:       "payments.xlsx",
		FileHash:       uuid.NewString(),
		EmployerID:     "EMP01",
		ToliID:         "TOLI01",
		TotalCount:     len(records),
		Status:         status,
		UploadedBy:     "uploader@example.com",
	}
	if err := db.Create(batch).Error; err != nil {
		t.Fatalf("failed to seed batch: %v", err)
	}
	for i := range records {
		records[i].BatchID = batch.ID
		if err := db.Create(&records[i]).Error; err != nil {
			t.Fatalf("failed to seed record %d: %v", records[i].RowNumber, err)
		}
	}
	return batch
}

// Notifier collects published workflow events.
type Notifier struct {
	mu     sync.Mutex
	Events []models.WorkflowEvent
}

func (n *Notifier) Publish(ev models.WorkflowEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Events = append(n.Events, ev)
}

// Types returns the published event types in order.
func (n *Notifier) Types() []models.WorkflowEventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.WorkflowEventType, 0, len(n.Events))
	for _, ev := range n.Events {
		out = append(out, ev.Type)
	}
	return out
}

// Anomalies collects recorded linkage anomalies.
type Anomalies struct {
	mu      sync.Mutex
	Records []models.LinkageAnomaly
}

func (a *Anomalies) Record(_ context.Context, anomaly models.LinkageAnomaly) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Records = append(a.Records, anomaly)
	return nil
}

// Kinds returns the recorded anomaly kinds in order.
func (a *Anomalies) Kinds() []models.AnomalyKind {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.AnomalyKind, 0, len(a.Records))
	for _, r := range a.Records {
		out = append(out, r.Kind)
	}
	return out
}
