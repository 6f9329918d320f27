package infra

// pdf.go — Recibo PDF generation using go-pdf/fpdf.
// Generates A7-size thermal receipt-style documents: header, serie-folio,
// item table, bold total, payment method and change line.
// The output file is saved to storagePath/recibo_{serie}_{folio}.pdf.

import (
	"fmt"
	"os"
	"path/filepath"

	"hospicaja/internal/model"

	"github.com/go-pdf/fpdf"
)

var tipoReciboLabels = map[string]string{
	model.ReciboPagoCuenta:  "Pago de Cuenta",
	model.ReciboPagoParcial: "Pago Parcial",
	model.ReciboAnticipo:    "Anticipo",
	model.ReciboReembolso:   "Reembolso",
}

// GenerateReciboPDF renders a recibo to PDF and returns the absolute path.
// storagePath is created if needed.
func GenerateReciboPDF(rec *model.Recibo, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}

	fileName := fmt.Sprintf("recibo_%s_%d.pdf", rec.Serie, rec.Folio)
	filePath := filepath.Join(storagePath, fileName)

	// A7 ≈ 74mm × 105mm — close to thermal receipt paper
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
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(contentW, 7, "Hospital — Caja", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 8)
	label := tipoReciboLabels[rec.Tipo]
	if label == "" {
		label = rec.Tipo
	}
	pdf.CellFormat(contentW, 5, "Recibo de "+label, "", 1, "C", false, 0, "")
	pdf.Ln(2)

	// ── Recibo info ──────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(contentW, 5, fmt.Sprintf("Recibo %s-%06d", rec.Serie, rec.Folio), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, rec.EmitidoAt.Format("02/01/2006  15:04"), "", 1, "L", false, 0, "")
	if rec.Estado == "reimpreso" {
		pdf.SetFont("Helvetica", "I", 7)
		pdf.CellFormat(contentW, 4, "** REIMPRESIÓN **", "", 1, "L", false, 0, "")
	}
	pdf.Ln(2)

	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	// ── Items ────────────────────────────────────────────────────────────────
	col1 := contentW * 0.52
	col2 := contentW * 0.16
	col3 := contentW * 0.32

	if len(rec.Items) > 0 {
		pdf.SetFont("Helvetica", "B", 7)
		pdf.CellFormat(col1, 5, "Concepto", "B", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 5, "Cant", "B", 0, "C", false, 0, "")
		pdf.CellFormat(col3, 5, "Subtotal", "B", 1, "R", false, 0, "")

		pdf.SetFont("Helvetica", "", 7)
		for _, item := range rec.Items {
			descr := item.Descripcion
			if len(descr) > 22 {
				descr = descr[:21] + "…"
			}
			pdf.CellFormat(col1, 5, descr, "", 0, "L", false, 0, "")
			pdf.CellFormat(col2, 5, fmt.Sprintf("x%d", item.Cantidad), "", 0, "C", false, 0, "")
			pdf.CellFormat(col3, 5, "$"+item.Subtotal.StringFixed(2), "", 1, "R", false, 0, "")
		}

		pdf.Ln(2)
		pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
		pdf.Ln(2)
	}

	// ── Totals ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "", 7)
	if !rec.Impuesto.IsZero() {
		pdf.CellFormat(col1+col2, 5, "Subtotal:", "", 0, "L", false, 0, "")
		pdf.CellFormat(col3, 5, "$"+rec.Subtotal.StringFixed(2), "", 1, "R", false, 0, "")
		pdf.CellFormat(col1+col2, 5, "Impuesto:", "", 0, "L", false, 0, "")
		pdf.CellFormat(col3, 5, "$"+rec.Impuesto.StringFixed(2), "", 1, "R", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(col1+col2, 6, "TOTAL:", "", 0, "L", false, 0, "")
	pdf.CellFormat(col3, 6, "$"+rec.Total.StringFixed(2), "", 1, "R", false, 0, "")

	pdf.Ln(2)
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(col1+col2, 4, "Pago ("+rec.MetodoPago+"):", "", 0, "L", false, 0, "")
	pdf.CellFormat(col3, 4, "$"+rec.MontoRecibido.StringFixed(2), "", 1, "R", false, 0, "")
	if !rec.Cambio.IsZero() {
		pdf.CellFormat(col1+col2, 4, "Cambio:", "", 0, "L", false, 0, "")
		pdf.CellFormat(col3, 4, "$"+rec.Cambio.StringFixed(2), "", 1, "R", false, 0, "")
	}

	// ── Footer ───────────────────────────────────────────────────────────────
	pdf.Ln(3)
	pdf.SetFont("Helvetica", "I", 7)
	pdf.CellFormat(contentW, 4, "Conserve este recibo", "", 1, "C", false, 0, "")

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}

	return filePath, nil
}
