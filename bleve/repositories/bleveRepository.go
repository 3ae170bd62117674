package repositories

import (
	bleveindex "welfare-receipts-backend/bleve/services"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
)

const receiptsIndex = "receipts"

type BleveRepository struct {
	indexer *bleveindex.IndexingService
}

// NewBleveRepository registers the receipt mapping on indexer before first use
func NewBleveRepository(indexer *bleveindex.IndexingService) *BleveRepository {
	indexer.RegisterMapping(receiptsIndex, receiptIndexMapping())
	return &BleveRepository{indexer: indexer}
}

// receiptIndexMapping indexes every reference field as a single keyword so that receipt
// numbers match exactly or by prefix.
func receiptIndexMapping() mapping.IndexMapping {
	keywordField := bleve.NewTextFieldMapping()
	keywordField.Analyzer = keyword.Name
	keywordField.Store = true

	amountField := bleve.NewNumericFieldMapping()
	amountField.Store = true

	dateField := bleve.NewDateTimeFieldMapping()
	dateField.Store = true

	doc := bleve.NewDocumentMapping()
	for _, name := range []string{
		"kind", "number", "worker_receipt_number", "employer_receipt_number",
		"board_reference", "employer_id", "toli_id", "status", "utr_number",
	} {
		doc.AddFieldMappingsAt(name, keywordField)
	}
	doc.AddFieldMappingsAt("amount", amountField)
	doc.AddFieldMappingsAt("created_at", dateField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = doc
	return indexMapping
}
