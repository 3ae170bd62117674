package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	paymentRepositories "welfare-receipts-backend/payments/repositories"
	paymentServices "welfare-receipts-backend/payments/services"
	"welfare-receipts-backend/receipts/repositories"
	"welfare-receipts-backend/utils"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/divan/num2words"
	"github.com/shopspring/decimal"
)

// BoardReceiptDocumentData feeds the printable board receipt
type BoardReceiptDocumentData struct {
	BoardReference        string
	BoardID               string
	ReceiptDate           string
	Status                string
	EmployerID            string
	ToliID                string
	EmployerReceiptNumber string
	WorkerReceiptNumber   string
	TransactionReference  string
	UTRNumber             string
	TotalRecords          int
	Amount                string
	AmountInWords         string
	Maker                 string
	Checker               string
	VerifiedAt            string
	RejectedBy            string
	RejectionReason       string
	GeneratedAt           string
}

const boardReceiptTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Board Receipt {{.BoardReference}}</title>
<style>
body { font-family: Arial, sans-serif; font-size: 12px; margin: 24px; }
h1 { font-size: 18px; text-align: center; margin-bottom: 4px; }
.sub { text-align: center; color: #555; margin-bottom: 16px; }
table { width: 100%; border-collapse: collapse; }
td { border: 1px solid #999; padding: 6px; }
td.label { width: 35%; background: #f2f2f2; font-weight: bold; }
.words { margin-top: 12px; font-style: italic; }
.sign { margin-top: 48px; display: flex; justify-content: space-between; }
</style>
</head>
<body>
<h1>Board Receipt</h1>
<div class="sub">{{.BoardReference}} &middot; {{.Status}}</div>
<table>
<tr><td class="label">Board ID</td><td>{{.BoardID}}</td></tr>
<tr><td class="label">Receipt Date</td><td>{{.ReceiptDate}}</td></tr>
<tr><td class="label">Employer</td><td>{{.EmployerID}}</td></tr>
<tr><td class="label">Toli</td><td>{{.ToliID}}</td></tr>
<tr><td class="label">Employer Receipt</td><td>{{.EmployerReceiptNumber}}</td></tr>
<tr><td class="label">Worker Receipt</td><td>{{.WorkerReceiptNumber}}</td></tr>
<tr><td class="label">Transaction Reference</td><td>{{.TransactionReference}}</td></tr>
<tr><td class="label">UTR Number</td><td>{{if .UTRNumber}}{{.UTRNumber}}{{else if .RejectedBy}}Not issued{{else}}Awaiting verification{{end}}</td></tr>
{{if .RejectedBy}}<tr><td class="label">Rejected By</td><td>{{.RejectedBy}}: {{.RejectionReason}}</td></tr>{{end}}
<tr><td class="label">Worker Payments</td><td>{{.TotalRecords}}</td></tr>
<tr><td class="label">Amount</td><td>{{.Amount}}</td></tr>
</table>
<div class="words">{{.AmountInWords}}</div>
<div class="sign">
<div>Maker: {{.Maker}}</div>
<div>Checker: {{if .Checker}}{{.Checker}}{{else}}-{{end}}{{if .VerifiedAt}} ({{.VerifiedAt}}){{end}}</div>
</div>
<p class="sub">Generated {{.GeneratedAt}}</p>
</body>
</html>`

var boardReceiptHTML = template.Must(template.New("board-receipt").Parse(boardReceiptTemplate))

type ReceiptDocumentService struct {
	Board          repositories.BoardReceiptRepository
	Employer       repositories.EmployerReceiptRepository
	WorkerReceipts paymentRepositories.WorkerReceiptRepository
	Now            func() time.Time
}

func NewReceiptDocumentService(board repositories.BoardReceiptRepository, employer repositories.EmployerReceiptRepository, workerReceipts paymentRepositories.WorkerReceiptRepository) *ReceiptDocumentService {
	return &ReceiptDocumentService{
		Board:          board,
		Employer:       employer,
		WorkerReceipts: workerReceipts,
		Now:            time.Now,
	}
}

// BuildDocumentData collects the board receipt and its upstream receipts
func (s *ReceiptDocumentService) BuildDocumentData(ctx context.Context, boardReference string) (*BoardReceiptDocumentData, error) {
	receipt, err := s.Board.GetByReference(ctx, boardReference)
	if err != nil {
		return nil, err
	}

	data := &BoardReceiptDocumentData{
		BoardReference:        receipt.BoardReference,
		BoardID:               receipt.BoardID,
		ReceiptDate:           receipt.ReceiptDate.In(utils.DateLocation).Format("02 Jan 2006"),
		Status:                paymentServices.StatusLabel(string(receipt.Status)),
		EmployerID:            receipt.EmployerID,
		ToliID:                receipt.ToliID,
		EmployerReceiptNumber: receipt.EmployerReference,
		WorkerReceiptNumber:   receipt.WorkerReceiptNumber,
		UTRNumber:             utils.StringValue(receipt.UTRNumber),
		Amount:                FormatAmount(receipt.Amount),
		AmountInWords:         AmountInWords(receipt.Amount),
		Maker:                 receipt.Maker,
		Checker:               utils.StringValue(receipt.Checker),
		RejectedBy:            utils.StringValue(receipt.RejectedBy),
		RejectionReason:       receipt.RejectionReason,
		GeneratedAt:           s.Now().In(utils.DateLocation).Format("02 Jan 2006 15:04"),
	}
	if receipt.VerifiedAt != nil {
		data.VerifiedAt = receipt.VerifiedAt.In(utils.DateLocation).Format("02 Jan 2006 15:04")
	}

	if employerReceipt, err := s.Employer.GetByNumber(ctx, receipt.EmployerReference); err == nil {
		data.TransactionReference = employerReceipt.TransactionReference
		data.TotalRecords = employerReceipt.TotalRecords
	} else if !utils.IsNotFound(err) {
		return nil, err
	}
	if data.TotalRecords == 0 {
		if workerReceipt, err := s.WorkerReceipts.GetByNumber(ctx, receipt.WorkerReceiptNumber); err == nil {
			data.TotalRecords = workerReceipt.TotalRecords
		}
	}

	return data, nil
}

// RenderHTML renders the printable board receipt
func (s *ReceiptDocumentService) RenderHTML(ctx context.Context, boardReference string) (string, error) {
	data, err := s.BuildDocumentData(ctx, boardReference)
	if err != nil {
		return "", err
	}
	return RenderBoardReceiptHTML(*data)
}

// RenderPDF renders the board receipt through headless Chrome
func (s *ReceiptDocumentService) RenderPDF(ctx context.Context, boardReference string, w io.Writer) error {
	html, err := s.RenderHTML(ctx, boardReference)
	if err != nil {
		return err
	}
	return HTMLToPDF(ctx, html, w)
}

func RenderBoardReceiptHTML(data BoardReceiptDocumentData) (string, error) {
	var buf bytes.Buffer
	if err := boardReceiptHTML.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute board receipt template: %w", err)
	}
	return buf.String(), nil
}

// HTMLToPDF serves htmlContent on a loopback listener and prints it to an A4 PDF
func HTMLToPDF(ctx context.Context, htmlContent string, w io.Writer) error {
	browserCtx, cancel := chromedp.NewContext(ctx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, 30*time.Second)
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(htmlContent))
	})

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	server := &http.Server{Handler: mux}
	go server.Serve(listener)
	defer server.Close()

	url := fmt.Sprintf("http://%s", listener.Addr().String())

	var buf []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			buf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				WithMarginTop(0.4).
				WithMarginBottom(0.4).
				WithMarginLeft(0.4).
				WithMarginRight(0.4).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to print board receipt: %w", err)
	}

	_, err = w.Write(buf)
	return err
}

// FormatAmount renders 2 decimal places with thousands separators
func FormatAmount(amount decimal.Decimal) string {
	fixed := amount.StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	parts := strings.SplitN(fixed, ".", 2)
	integerPart := parts[0]

	var grouped strings.Builder
	for i, ch := range integerPart {
		if i > 0 && (len(integerPart)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(ch)
	}
	return sign + grouped.String() + "." + parts[1]
}

// AmountInWords spells the rupee amount, e.g. "Rupees one thousand six hundred only"
func AmountInWords(amount decimal.Decimal) string {
	amount = amount.Abs().Round(2)
	rupees := amount.IntPart()
	paise := amount.Sub(decimal.NewFromInt(rupees)).Mul(decimal.NewFromInt(100)).IntPart()

	words := "Rupees " + num2words.Convert(int(rupees))
	if paise > 0 {
		words += " and " + num2words.Convert(int(paise)) + " paise"
	}
	return words + " only"
}
