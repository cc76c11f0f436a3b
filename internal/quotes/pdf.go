package quotes

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// RenderPDF writes the printable PDF document for a quote. The core
// Helvetica font covers French accents through the cp1252 translator.
func RenderPDF(w io.Writer, details *QuoteWithDetails) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Devis %s", details.DocNumber), true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, tr(fmt.Sprintf("Devis %s", details.DocNumber)))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Client : %s", details.ClientName)))
	pdf.Ln(6)
	if details.CompanyName != nil {
		pdf.Cell(0, 6, tr(fmt.Sprintf("Entreprise : %s", *details.CompanyName)))
		pdf.Ln(6)
	}
	pdf.Cell(0, 6, tr(fmt.Sprintf("Responsable : %s", details.EmployeeName)))
	pdf.Ln(6)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Date : %s — Échéance : %s",
		details.QuoteDate.Format("2006-01-02"), details.DueDate.Format("2006-01-02"))))
	pdf.Ln(6)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Statut : %s", details.Status)))
	pdf.Ln(10)

	if len(details.Lines) > 0 {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(10, 7, "#", "1", 0, "C", false, 0, "")
		pdf.CellFormat(75, 7, tr("Description"), "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 7, tr("Qté"), "1", 0, "R", false, 0, "")
		pdf.CellFormat(20, 7, tr("Unité"), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, tr("Prix unit."), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, tr("Montant"), "1", 1, "R", false, 0, "")

		pdf.SetFont("Helvetica", "", 10)
		for _, line := range details.Lines {
			pdf.CellFormat(10, 6, fmt.Sprintf("%d", line.LineNo), "1", 0, "C", false, 0, "")
			pdf.CellFormat(75, 6, tr(truncate(line.Description, 48)), "1", 0, "L", false, 0, "")
			pdf.CellFormat(20, 6, fmt.Sprintf("%g", line.Quantity), "1", 0, "R", false, 0, "")
			pdf.CellFormat(20, 6, tr(line.Unit), "1", 0, "L", false, 0, "")
			pdf.CellFormat(30, 6, tr(FormatMoney(line.UnitPrice)), "1", 0, "R", false, 0, "")
			pdf.CellFormat(35, 6, tr(FormatMoney(line.Amount())), "1", 1, "R", false, 0, "")
		}
	} else {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.Cell(0, 6, tr("Estimation sans détail de lignes."))
		pdf.Ln(6)
	}

	pdf.Ln(6)
	totals := details.Totals
	totalRow := func(label string, amount float64, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 10)
		pdf.CellFormat(125, 6, "", "", 0, "", false, 0, "")
		pdf.CellFormat(35, 6, tr(label), "", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, tr(FormatMoney(amount)), "", 1, "R", false, 0, "")
	}
	totalRow("Sous-total", totals.Subtotal, false)
	totalRow(fmt.Sprintf("TPS (%g %%)", totals.FederalRate), totals.FederalTax, false)
	if totals.FederalRebate > 0 {
		totalRow("Remb. TPS", -totals.FederalRebate, false)
	}
	totalRow(fmt.Sprintf("TVQ (%g %%)", totals.ProvincialRate), totals.ProvincialTax, false)
	totalRow("Total", totals.GrandTotal, true)

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 8)
	pdf.Cell(0, 5, tr(fmt.Sprintf("Généré le %s", time.Now().Format("2006-01-02 15:04"))))

	return pdf.Output(w)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
