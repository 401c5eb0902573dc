package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Receipt holds the fields rendered onto a payment receipt.
type Receipt struct {
	PaymentID     string
	TransactionID string
	CourseTitle   string
	StudentName   string
	StudentEmail  string
	Amount        float64
	Currency      string
	PaidAt        time.Time
}

// ReceiptExporter renders payment receipts as PDF documents.
type ReceiptExporter struct {
	appName string
}

// NewReceiptExporter constructs a receipt exporter.
func NewReceiptExporter(appName string) *ReceiptExporter {
	return &ReceiptExporter{appName: appName}
}

// Render produces the PDF bytes for a completed payment.
func (e *ReceiptExporter) Render(r Receipt) ([]byte, error) {
	if r.PaymentID == "" {
		return nil, fmt.Errorf("receipt requires a payment id")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, e.appName+" Payment Receipt", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Arial", "", 10)
	rows := [][2]string{
		{"Receipt No.", r.PaymentID},
		{"Transaction", r.TransactionID},
		{"Course", r.CourseTitle},
		{"Student", fmt.Sprintf("%s <%s>", r.StudentName, r.StudentEmail)},
		{"Amount", fmt.Sprintf("%.2f %s", r.Amount, r.Currency)},
		{"Paid at", r.PaidAt.UTC().Format(time.RFC1123)},
	}
	for _, row := range rows {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(45, 8, row[0], "1", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(135, 8, row[1], "1", 1, "", false, 0, "")
	}

	pdf.Ln(8)
	pdf.SetFont("Arial", "I", 9)
	pdf.CellFormat(0, 6, "This receipt confirms a completed course purchase.", "", 1, "", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render receipt pdf: %w", err)
	}
	return buf.Bytes(), nil
}
