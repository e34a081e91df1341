package infra

// pdf.go — customer-facing fiscal receipt confirmation using go-pdf/fpdf.
// Rendered once a receipt reaches "done": fiscal attributes, document sum and
// registration timestamps on thermal-receipt-sized paper.
// The output file is saved to storagePath/receipt_{externalID}.pdf.

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-pdf/fpdf"

	"fiscalgate/internal/model"
)

// GenerateReceiptPDF writes the confirmation PDF for a fiscalized receipt.
// storagePath is created if needed; returns the absolute path of the file.
func GenerateReceiptPDF(rec *model.Receipt, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}

	fileName := fmt.Sprintf("receipt_%s.pdf", rec.ExternalID)
	filePath := filepath.Join(storagePath, fileName)

	// 74mm × 105mm — close to thermal receipt paper
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 74, Ht: 105},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 8

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentW, 7, "Fiscal Receipt", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	if rec.ReceiptAt != nil {
		pdf.CellFormat(contentW, 4, rec.ReceiptAt.Format("02.01.2006 15:04:05"), "", 1, "C", false, 0, "")
	}
	pdf.Ln(2)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	// ── Fiscal attributes ────────────────────────────────────────────────────
	row := func(label, value string) {
		if value == "" {
			return
		}
		pdf.SetFont("Helvetica", "", 7)
		pdf.CellFormat(contentW*0.55, 4, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(contentW*0.45, 4, value, "", 1, "R", false, 0, "")
	}

	if rec.RegistrationNumber != nil {
		row("Reg. number:", *rec.RegistrationNumber)
	}
	if rec.FNNumber != nil {
		row("FN number:", *rec.FNNumber)
	}
	if rec.FiscalDocumentNumber != nil {
		row("Document no:", strconv.FormatInt(*rec.FiscalDocumentNumber, 10))
	}
	if rec.FiscalDocumentAttribute != nil {
		row("Document attr:", strconv.FormatInt(*rec.FiscalDocumentAttribute, 10))
	}
	if rec.FiscalReceiptNumber != nil {
		row("Receipt no:", strconv.FormatInt(*rec.FiscalReceiptNumber, 10))
	}
	if rec.ShiftNumber != nil {
		row("Shift:", strconv.FormatInt(*rec.ShiftNumber, 10))
	}

	pdf.Ln(2)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	// ── Total ────────────────────────────────────────────────────────────────
	total := rec.Total
	if rec.DocSum != nil {
		total = *rec.DocSum
	}
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(contentW*0.55, 6, "TOTAL:", "", 0, "L", false, 0, "")
	pdf.CellFormat(contentW*0.45, 6, total.StringFixed(2), "", 1, "R", false, 0, "")

	// ── Footer ───────────────────────────────────────────────────────────────
	pdf.Ln(3)
	pdf.SetFont("Helvetica", "I", 6)
	pdf.CellFormat(contentW, 4, "Registered with the federal tax service", "", 1, "C", false, 0, "")

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}

	return filePath, nil
}
