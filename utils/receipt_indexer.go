package utils

import (
	bleveModels "welfare-receipts-backend/bleve/models"
	"welfare-receipts-backend/config"

	"go.uber.org/zap"
)

// ReceiptIndexer keeps the receipt search index in step with the database.
type ReceiptIndexer interface {
	IndexReceipt(doc bleveModels.ReceiptSearchDocument) error
}

// IndexReceipt indexes doc when an indexer is configured. Failures are only logged.
func IndexReceipt(indexer ReceiptIndexer, doc bleveModels.ReceiptSearchDocument) {
	if indexer == nil {
		return
	}
	if err := indexer.IndexReceipt(doc); err != nil {
		config.Logger.Warn("Failed to index receipt",
			zap.String("kind", doc.Kind),
			zap.String("number", doc.Number),
			zap.Error(err))
	}
}
