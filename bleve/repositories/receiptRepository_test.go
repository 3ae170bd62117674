package repositories

import (
	"testing"
	"time"

	bleveModels "welfare-receipts-backend/bleve/models"
	bleveindex "welfare-receipts-backend/bleve/services"

	"go.uber.org/zap"
)

func newMemRepository(t *testing.T) *BleveRepository {
	t.Helper()
	indexer := bleveindex.NewIndexingService(zap.NewNop(), "")
	t.Cleanup(func() { indexer.Close() })
	return NewBleveRepository(indexer)
}

func seedChain(t *testing.T, repo *BleveRepository) {
	t.Helper()
	created := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	docs := []bleveModels.ReceiptSearchDocument{
		{Kind: bleveModels.WorkerReceiptKind, Number: "RCP-20250101-090000-123", WorkerReceiptNumber: "RCP-20250101-090000-123",
			EmployerID: "EMP01", ToliID: "TOLI01", Status: "VALIDATED", Amount: 1600, CreatedAt: created},
		{Kind: bleveModels.EmployerReceiptKind, Number: "ERC-20250101-091500-456", WorkerReceiptNumber: "RCP-20250101-090000-123",
			EmployerReceiptNumber: "ERC-20250101-091500-456", EmployerID: "EMP01", ToliID: "TOLI01", Status: "SEND_TO_BOARD", Amount: 1600, CreatedAt: created},
		{Kind: bleveModels.BoardReceiptKind, Number: "BRD-20250101-001", WorkerReceiptNumber: "RCP-20250101-090000-123",
			EmployerReceiptNumber: "ERC-20250101-091500-456", BoardReference: "BRD-20250101-001", EmployerID: "EMP01", ToliID: "TOLI01",
			Status: "VERIFIED", Amount: 1600, UTRNumber: "UTR123", CreatedAt: created},
		{Kind: bleveModels.WorkerReceiptKind, Number: "RCP-20250102-100000-999", WorkerReceiptNumber: "RCP-20250102-100000-999",
			EmployerID: "EMP02", ToliID: "TOLI02", Status: "PROCESSED", Amount: 300, CreatedAt: created},
	}
	for _, doc := range docs {
		if err := repo.IndexReceipt(doc); err != nil {
			t.Fatalf("IndexReceipt(%s): %v", doc.DocID(), err)
		}
	}
}

func hitIDs(resp *bleveModels.SearchResponse) map[string]bool {
	ids := make(map[string]bool, len(resp.Hits))
	for _, h := range resp.Hits {
		ids[h.ID] = true
	}
	return ids
}

func TestSearchReceiptsByChainedReference(t *testing.T) {
	repo := newMemRepository(t)
	seedChain(t, repo)

	resp, err := repo.SearchReceipts("rcp-20250101-090000-123", ReceiptSearchFilters{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	ids := hitIDs(resp)
	if resp.Total != 3 || !ids["worker_receipt:RCP-20250101-090000-123"] ||
		!ids["employer_receipt:ERC-20250101-091500-456"] || !ids["board_receipt:BRD-20250101-001"] {
		t.Fatalf("expected the whole chain, got %v", ids)
	}
}

func TestSearchReceiptsByPrefixAndFilters(t *testing.T) {
	repo := newMemRepository(t)
	seedChain(t, repo)

	resp, err := repo.SearchReceipts("BRD-20250101", ReceiptSearchFilters{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Hits[0].ID != "board_receipt:BRD-20250101-001" {
		t.Fatalf("unexpected prefix hits %v", hitIDs(resp))
	}

	resp, err = repo.SearchReceipts("UTR123", ReceiptSearchFilters{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 {
		t.Fatalf("expected the UTR to find the board receipt, got %v", hitIDs(resp))
	}

	resp, err = repo.SearchReceipts("", ReceiptSearchFilters{Kind: "WORKER_RECEIPT"}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 2 {
		t.Fatalf("expected both worker receipts, got %v", hitIDs(resp))
	}

	resp, err = repo.SearchReceipts("", ReceiptSearchFilters{EmployerID: "EMP02", Status: "processed"}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Hits[0].ID != "worker_receipt:RCP-20250102-100000-999" {
		t.Fatalf("unexpected filtered hits %v", hitIDs(resp))
	}

	resp, err = repo.SearchReceipts("", ReceiptSearchFilters{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 4 {
		t.Fatalf("expected match all, got %d", resp.Total)
	}
}

func TestIndexReceiptReplacesDocument(t *testing.T) {
	repo := newMemRepository(t)
	doc := bleveModels.ReceiptSearchDocument{Kind: bleveModels.BoardReceiptKind, Number: "BRD-20250101-002",
		BoardReference: "BRD-20250101-002", Status: "PENDING"}
	if err := repo.IndexReceipt(doc); err != nil {
		t.Fatal(err)
	}
	doc.Status = "VERIFIED"
	if err := repo.IndexReceipt(doc); err != nil {
		t.Fatal(err)
	}

	resp, err := repo.SearchReceipts("", ReceiptSearchFilters{Status: "VERIFIED"}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 {
		t.Fatalf("expected the updated document, got %d hits", resp.Total)
	}
	resp, _ = repo.SearchReceipts("", ReceiptSearchFilters{Status: "PENDING"}, 10)
	if resp.Total != 0 {
		t.Fatalf("stale status still indexed")
	}
}

func TestResetDropsIndexedReceipts(t *testing.T) {
	indexer := bleveindex.NewIndexingService(zap.NewNop(), t.TempDir())
	t.Cleanup(func() { indexer.Close() })
	repo := NewBleveRepository(indexer)
	seedChain(t, repo)

	if n, err := repo.IndexedReceipts(); err != nil || n != 4 {
		t.Fatalf("expected 4 indexed receipts, got %d (%v)", n, err)
	}
	if err := indexer.ResetIndex(receiptsIndex); err != nil {
		t.Fatal(err)
	}
	if n, err := repo.IndexedReceipts(); err != nil || n != 0 {
		t.Fatalf("expected an empty index after reset, got %d (%v)", n, err)
	}

	// the keyword mapping survives the reset
	seedChain(t, repo)
	resp, err := repo.SearchReceipts("BRD-20250101-001", ReceiptSearchFilters{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 {
		t.Fatalf("expected exact reference match after reset, got %d", resp.Total)
	}
}
