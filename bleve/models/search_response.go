package models

import "time"

// Receipt kinds held in the receipts index
const (
	WorkerReceiptKind   = "worker_receipt"
	EmployerReceiptKind = "employer_receipt"
	BoardReceiptKind    = "board_receipt"
)

// ReceiptSearchDocument is the indexed form of any receipt in the chain. Number is the
// receipt's own number; the other references point up or down the chain.
type ReceiptSearchDocument struct {
	Kind                  string    `json:"kind"`
	Number                string    `json:"number"`
	WorkerReceiptNumber   string    `json:"worker_receipt_number"`
	EmployerReceiptNumber string    `json:"employer_receipt_number,omitempty"`
	BoardReference        string    `json:"board_reference,omitempty"`
	EmployerID            string    `json:"employer_id"`
	ToliID                string    `json:"toli_id"`
	Status                string    `json:"status"`
	Amount                float64   `json:"amount"`
	UTRNumber             string    `json:"utr_number,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
}

// DocID is unique across receipt kinds
func (d ReceiptSearchDocument) DocID() string {
	return d.Kind + ":" + d.Number
}

type SearchHit struct {
	ID     string                 `json:"id"`
	Score  float64                `json:"score"`
	Fields map[string]interface{} `json:"fields,omitempty"`
}

type SearchResponse struct {
	Total uint64      `json:"total"`
	Hits  []SearchHit `json:"hits"`
}
