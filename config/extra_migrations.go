package config

import "gorm.io/gorm"

// RunExtraMigrations creates the indexes AutoMigrate cannot express.
func RunExtraMigrations(db *gorm.DB) error {
	if err := CreateOpenAnomalyIndex(db); err != nil {
		return err
	}
	if err := CreatePendingBoardReceiptIndex(db); err != nil {
		return err
	}
	return CreateActiveBoardReceiptIndex(db)
}

// CreateOpenAnomalyIndex speeds up the repair loop, which only ever reads OPEN anomalies.
func CreateOpenAnomalyIndex(db *gorm.DB) error {
	return db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_linkage_anomalies_open
		ON linkage_anomalies (created_at)
		WHERE status = 'OPEN';
	`).Error
}

// CreatePendingBoardReceiptIndex backs the board checker's queue of PENDING receipts.
func CreatePendingBoardReceiptIndex(db *gorm.DB) error {
	return db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_board_receipts_pending
		ON board_receipts (receipt_date)
		WHERE status = 'PENDING';
	`).Error
}

// CreateActiveBoardReceiptIndex allows one live board receipt per employer receipt while
// keeping every rejected one on record.
func CreateActiveBoardReceiptIndex(db *gorm.DB) error {
	// older schemas had a plain unique index on employer_reference
	if err := db.Exec(`DROP INDEX IF EXISTS idx_board_receipts_employer_reference;`).Error; err != nil {
		return err
	}
	return db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_board_receipts_active_employer
		ON board_receipts (employer_reference)
		WHERE status <> 'REJECTED';
	`).Error
}
