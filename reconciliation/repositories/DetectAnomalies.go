package repositories

import (
	"context"

	"welfare-receipts-backend/db/models"
)

// latestBatchReceipt resolves the newest worker receipt of a payment's batch
const latestBatchReceipt = `(SELECT w.receipt_number FROM worker_payment_receipts w
	WHERE w.batch_id = p.batch_id ORDER BY w.created_at DESC LIMIT 1)`

// FindPaymentsMissingReceipt finds payments that were persisted under a receipt but never
// received its number.
func (r *anomalyRepository) FindPaymentsMissingReceipt(ctx context.Context, limit int) ([]LinkCandidate, error) {
	var rows []LinkCandidate
	err := r.db.WithContext(ctx).Raw(`
		SELECT p.id AS entity_key, p.batch_id AS batch_id,
			COALESCE(rr.receipt_number, `+latestBatchReceipt+`) AS receipt_number
		FROM worker_payments p
		LEFT JOIN raw_upload_records rr ON rr.id = p.source_record_id
		WHERE p.receipt_number IS NULL
		ORDER BY p.created_at ASC
		LIMIT ?`, limit).Scan(&rows).Error
	return rows, err
}

// FindAggregatedValidatedRecords finds raw records that already have a payment but are
// still VALIDATED.
func (r *anomalyRepository) FindAggregatedValidatedRecords(ctx context.Context, limit int) ([]LinkCandidate, error) {
	var rows []LinkCandidate
	err := r.db.WithContext(ctx).Raw(`
		SELECT rr.id AS entity_key, rr.batch_id AS batch_id,
			COALESCE(p.receipt_number, `+latestBatchReceipt+`) AS receipt_number
		FROM raw_upload_records rr
		JOIN worker_payments p ON p.source_record_id = rr.id
		WHERE rr.status = ?
		ORDER BY rr.created_at ASC
		LIMIT ?`, models.RawRecordValidated, limit).Scan(&rows).Error
	return rows, err
}

// FindUnpropagatedEmployerReceipts finds employer receipts sent to the board whose worker
// receipt never moved past PROCESSED.
func (r *anomalyRepository) FindUnpropagatedEmployerReceipts(ctx context.Context, limit int) ([]LinkCandidate, error) {
	var rows []LinkCandidate
	err := r.db.WithContext(ctx).Raw(`
		SELECT e.employer_receipt_number AS entity_key, w.batch_id AS batch_id,
			e.worker_receipt_number AS receipt_number
		FROM employer_payment_receipts e
		JOIN worker_payment_receipts w ON w.receipt_number = e.worker_receipt_number
		WHERE e.status = ? AND w.status = ?
		ORDER BY e.created_at ASC
		LIMIT ?`, models.EmployerReceiptSendToBoard, models.WorkerReceiptProcessed, limit).Scan(&rows).Error
	return rows, err
}

// FindUnpropagatedBoardReceipts finds verified or processed board receipts whose employer
// receipt still lags behind.
func (r *anomalyRepository) FindUnpropagatedBoardReceipts(ctx context.Context, limit int) ([]LinkCandidate, error) {
	var rows []LinkCandidate
	err := r.db.WithContext(ctx).Raw(`
		SELECT b.board_reference AS entity_key, w.batch_id AS batch_id,
			b.worker_receipt_number AS receipt_number
		FROM board_receipts b
		JOIN employer_payment_receipts e ON e.employer_receipt_number = b.employer_reference
		LEFT JOIN worker_payment_receipts w ON w.receipt_number = b.worker_receipt_number
		WHERE (b.status = ? AND e.status IN ?)
			OR (b.status = ? AND e.status <> ?)
		ORDER BY b.created_at ASC
		LIMIT ?`,
		models.BoardReceiptVerified,
		[]models.EmployerReceiptStatus{models.EmployerReceiptPending, models.EmployerReceiptSendToBoard},
		models.BoardReceiptProcessed, models.EmployerReceiptProcessed,
		limit).Scan(&rows).Error
	return rows, err
}
