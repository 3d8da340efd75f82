package payslippdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
)

// Line is one labelled amount in an earnings or deductions table.
type Line struct {
	Label   string
	Actual  decimal.Decimal
	Payable decimal.Decimal
}

type Document struct {
	PayslipID    string
	EmployeeName string
	EmployeeID   string
	Email        string
	Year         int
	Month        int
	Currency     string
	Status       string

	Earnings   []Line
	Deductions []Line

	TotalDays       int
	PayableDays     decimal.Decimal
	UnpaidLeaveDays decimal.Decimal
	HalfDayLeaves   int

	TotalEarnings   decimal.Decimal
	TotalDeductions decimal.Decimal
	NetAmount       decimal.Decimal
	GeneratedAt     time.Time
}

// Render lays out a single A4 payslip and returns the PDF bytes.
func Render(doc Document) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Payslip %04d-%02d", doc.Year, doc.Month), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, fmt.Sprintf("Payslip - %s %d", time.Month(doc.Month).String(), doc.Year))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Employee: %s (%s)", doc.EmployeeName, doc.EmployeeID))
	pdf.Ln(6)
	if doc.Email != "" {
		pdf.Cell(0, 7, fmt.Sprintf("Email: %s", doc.Email))
		pdf.Ln(6)
	}
	pdf.Cell(0, 7, fmt.Sprintf("Payslip ID: %s    Status: %s", doc.PayslipID, doc.Status))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Days: %d total, %s payable, %s unpaid, %d half days",
		doc.TotalDays, doc.PayableDays.StringFixed(1), doc.UnpaidLeaveDays.StringFixed(1), doc.HalfDayLeaves))
	pdf.Ln(10)

	table(pdf, "Earnings", "Actual", "Paid", doc.Earnings, doc.Currency)
	table(pdf, "Deductions", "", "Amount", doc.Deductions, doc.Currency)

	pdf.SetFont("Helvetica", "B", 12)
	summary := []struct {
		label string
		value decimal.Decimal
	}{
		{"Total earnings", doc.TotalEarnings},
		{"Total deductions", doc.TotalDeductions},
		{"Net pay", doc.NetAmount},
	}
	for _, s := range summary {
		pdf.CellFormat(120, 8, s.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(60, 8, money(s.value, doc.Currency), "", 1, "R", false, 0, "")
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.Cell(0, 6, "Generated "+doc.GeneratedAt.UTC().Format(time.RFC3339))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render payslip pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func table(pdf *gofpdf.Fpdf, title, firstCol, secondCol string, lines []Line, currency string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetFillColor(235, 235, 235)
	pdf.CellFormat(90, 8, title, "1", 0, "L", true, 0, "")
	pdf.CellFormat(45, 8, firstCol, "1", 0, "R", true, 0, "")
	pdf.CellFormat(45, 8, secondCol, "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	for _, l := range lines {
		actual := ""
		if firstCol != "" {
			actual = money(l.Actual, currency)
		}
		pdf.CellFormat(90, 7, l.Label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(45, 7, actual, "1", 0, "R", false, 0, "")
		pdf.CellFormat(45, 7, money(l.Payable, currency), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(6)
}

func money(v decimal.Decimal, currency string) string {
	return v.StringFixed(2) + " " + currency
}
