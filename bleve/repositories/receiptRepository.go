package repositories

import (
	"context"
	"strings"

	bleveModels "welfare-receipts-backend/bleve/models"
	"welfare-receipts-backend/config"
	"welfare-receipts-backend/db/models"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReceiptSearchFilters narrows a receipt search to exact field values
type ReceiptSearchFilters struct {
	Kind       string
	Status     string
	EmployerID string
	ToliID     string
}

var referenceFields = []string{"number", "worker_receipt_number", "employer_receipt_number", "board_reference", "utr_number"}

func (r *BleveRepository) IndexReceipt(doc bleveModels.ReceiptSearchDocument) error {
	if err := r.indexer.IndexDocument(receiptsIndex, doc.DocID(), doc); err != nil {
		config.Logger.Error("Failed to index receipt into Bleve",
			zap.Error(err),
			zap.String("doc_id", doc.DocID()))
		return err
	}
	return nil
}

// SearchReceipts finds receipts whose own number or any chained reference equals or starts
// with queryString.
func (r *BleveRepository) SearchReceipts(queryString string, filters ReceiptSearchFilters, size int) (*bleveModels.SearchResponse, error) {
	queryString = strings.ToUpper(strings.TrimSpace(queryString))
	finalQuery := bleve.NewBooleanQuery()

	if queryString != "" {
		refQuery := bleve.NewBooleanQuery()
		for _, field := range referenceFields {
			exact := bleve.NewTermQuery(queryString)
			exact.SetField(field)
			exact.SetBoost(10.0)
			refQuery.AddShould(exact)

			prefix := bleve.NewPrefixQuery(queryString)
			prefix.SetField(field)
			prefix.SetBoost(5.0)
			refQuery.AddShould(prefix)
		}
		for _, field := range []string{"employer_id", "toli_id"} {
			exact := bleve.NewTermQuery(queryString)
			exact.SetField(field)
			exact.SetBoost(3.0)
			refQuery.AddShould(exact)
		}
		finalQuery.AddMust(refQuery)
	}

	addExact := func(field, value string) {
		if value = strings.TrimSpace(value); value != "" {
			q := bleve.NewTermQuery(value)
			q.SetField(field)
			finalQuery.AddMust(q)
		}
	}
	addExact("kind", strings.ToLower(filters.Kind))
	addExact("status", strings.ToUpper(filters.Status))
	addExact("employer_id", filters.EmployerID)
	addExact("toli_id", filters.ToliID)

	var q query.Query = finalQuery
	if queryString == "" && filters == (ReceiptSearchFilters{}) {
		q = bleve.NewMatchAllQuery()
	}

	result, err := r.indexer.SearchIndex(receiptsIndex, q, size)
	if err != nil {
		return nil, err
	}

	response := &bleveModels.SearchResponse{Total: result.Total, Hits: make([]bleveModels.SearchHit, 0, len(result.Hits))}
	for _, hit := range result.Hits {
		response.Hits = append(response.Hits, bleveModels.SearchHit{
			ID:     hit.ID,
			Score:  hit.Score,
			Fields: hit.Fields,
		})
	}
	return response, nil
}

// IndexExistingReceipts rebuilds the receipt index from the database, dropping documents
// of receipts that no longer exist.
func (r *BleveRepository) IndexExistingReceipts(ctx context.Context, db *gorm.DB) error {
	if err := r.indexer.ResetIndex(receiptsIndex); err != nil {
		return err
	}
	docs := make(map[string]interface{})

	var workerReceipts []models.WorkerPaymentReceipt
	if err := db.WithContext(ctx).Find(&workerReceipts).Error; err != nil {
		return err
	}
	for _, w := range workerReceipts {
		amount, _ := w.TotalAmount.Float64()
		doc := bleveModels.ReceiptSearchDocument{
			Kind: bleveModels.WorkerReceiptKind, Number: w.ReceiptNumber, WorkerReceiptNumber: w.ReceiptNumber,
			EmployerID: w.EmployerID, ToliID: w.ToliID, Status: string(w.Status), Amount: amount, CreatedAt: w.CreatedAt,
		}
		docs[doc.DocID()] = doc
	}

	var employerReceipts []models.EmployerPaymentReceipt
	if err := db.WithContext(ctx).Find(&employerReceipts).Error; err != nil {
		return err
	}
	for _, e := range employerReceipts {
		amount, _ := e.TotalAmount.Float64()
		doc := bleveModels.ReceiptSearchDocument{
			Kind: bleveModels.EmployerReceiptKind, Number: e.EmployerReceiptNumber, WorkerReceiptNumber: e.WorkerReceiptNumber,
			EmployerReceiptNumber: e.EmployerReceiptNumber, EmployerID: e.EmployerID, ToliID: e.ToliID,
			Status: string(e.Status), Amount: amount, CreatedAt: e.CreatedAt,
		}
		docs[doc.DocID()] = doc
	}

	var boardReceipts []models.BoardReceipt
	if err := db.WithContext(ctx).Find(&boardReceipts).Error; err != nil {
		return err
	}
	for _, b := range boardReceipts {
		amount, _ := b.Amount.Float64()
		utr := ""
		if b.UTRNumber != nil {
			utr = *b.UTRNumber
		}
		doc := bleveModels.ReceiptSearchDocument{
			Kind: bleveModels.BoardReceiptKind, Number: b.BoardReference, WorkerReceiptNumber: b.WorkerReceiptNumber,
			EmployerReceiptNumber: b.EmployerReference, BoardReference: b.BoardReference, EmployerID: b.EmployerID,
			ToliID: b.ToliID, Status: string(b.Status), Amount: amount, UTRNumber: utr, CreatedAt: b.CreatedAt,
		}
		docs[doc.DocID()] = doc
	}

	if len(docs) == 0 {
		return nil
	}
	return r.indexer.BulkIndexDocuments(receiptsIndex, docs)
}

// IndexedReceipts is the number of documents in the receipt index
func (r *BleveRepository) IndexedReceipts() (uint64, error) {
	return r.indexer.DocCount(receiptsIndex)
}
