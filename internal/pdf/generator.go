package pdf

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/nurpe/lease-contracts/internal/document"
	"github.com/nurpe/lease-contracts/internal/model"
)

const fontName = "Helvetica"

type Generator struct {
	currency string
}

func NewGenerator(currency string) *Generator {
	return &Generator{currency: currency}
}

// GenerateContract renders the contract text. Provisional documents carry a
// banner; final documents embed the captured signature images.
func (g *Generator) GenerateContract(doc model.ContractDocument) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(fontName, "", 7)
		pdf.CellFormat(0, 5, tr(fmt.Sprintf("%s  |  page %d", doc.Contract.VerificationToken, pdf.PageNo())), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont(fontName, "B", 14)
	pdf.CellFormat(0, 10, tr(fmt.Sprintf("Lease agreement #%d", doc.Contract.ID)), "", 1, "C", false, 0, "")

	if doc.Stage == model.DocumentProvisional {
		pdf.SetFillColor(255, 243, 205)
		pdf.SetFont(fontName, "B", 10)
		pdf.CellFormat(0, 8, tr("PROVISIONAL COPY - awaiting signatures, not valid as a signed contract"), "1", 1, "C", true, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont(fontName, "", 10)
	for _, line := range strings.Split(document.StripImages(doc.Content), "\n") {
		if strings.TrimSpace(line) == "" {
			pdf.Ln(3)
			continue
		}
		pdf.MultiCell(0, 5, tr(line), "", "L", false)
	}

	if doc.Stage == model.DocumentFinal {
		g.signatureImages(pdf, tr, &doc.Contract)
	}

	pdf.Ln(6)
	pdf.SetFont(fontName, "", 8)
	pdf.MultiCell(0, 4, tr(fmt.Sprintf("Verification token: %s", safeValue(doc.Contract.VerificationToken))), "", "L", false)
	pdf.MultiCell(0, 4, tr(fmt.Sprintf("Content hash (SHA-256): %s", safeValue(doc.ContentHash))), "", "L", false)
	pdf.MultiCell(0, 4, tr(fmt.Sprintf("Generated at: %s UTC", doc.GeneratedAt.UTC().Format("02/01/2006 15:04:05"))), "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) signatureImages(pdf *gofpdf.Fpdf, tr func(string) string, c *model.Contract) {
	header := false
	for _, role := range model.AllSignerRoles {
		sig := c.SignatureFor(role)
		if !sig.IsSigned() {
			continue
		}
		data, kind, ok := decodeImage(sig.Image)
		if !ok {
			continue
		}
		if !header {
			pdf.Ln(6)
			pdf.SetFont(fontName, "B", 11)
			pdf.CellFormat(0, 8, tr("Captured signatures"), "", 1, "L", false, 0, "")
			header = true
		}
		name := "sig-" + string(role)
		opts := gofpdf.ImageOptions{ImageType: kind, ReadDpi: false}
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
		if !pdf.Ok() {
			pdf.ClearError()
			continue
		}
		pdf.SetFont(fontName, "", 9)
		pdf.CellFormat(0, 5, tr(fmt.Sprintf("%s - %s", strings.ToUpper(string(role)), sig.SignedAt.UTC().Format("02/01/2006 15:04"))), "", 1, "L", false, 0, "")
		pdf.ImageOptions(name, pdf.GetX(), pdf.GetY(), 50, 0, true, opts, 0, "")
	}
}

// decodeImage accepts raw base64 or a data URL holding a PNG or JPEG.
func decodeImage(raw string) ([]byte, string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, "", false
	}
	if i := strings.Index(raw, ","); strings.HasPrefix(raw, "data:") && i > 0 {
		raw = raw[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, "", false
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", false
	}
	switch format {
	case "png":
		return data, "PNG", true
	case "jpeg":
		return data, "JPG", true
	}
	return nil, "", false
}

// GenerateDossier renders the judicial dossier as a printable report.
func (g *Generator) GenerateDossier(d model.JudicialDossier) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont(fontName, "B", 14)
	pdf.CellFormat(0, 10, tr(fmt.Sprintf("Judicial dossier - contract #%d", d.Contract.ContractID)), "", 1, "C", false, 0, "")
	pdf.SetFont(fontName, "", 9)
	pdf.CellFormat(0, 5, tr(fmt.Sprintf("Prepared at %s", formatDate(d.PreparedAt))), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	section(pdf, tr, "Contract")
	lines := []string{
		fmt.Sprintf("Token: %s", safeValue(d.Contract.VerificationToken)),
		fmt.Sprintf("Type: %s  Status: %s", d.Contract.ContractType, d.Contract.Status),
		fmt.Sprintf("Tenant: %s", safeValue(d.Contract.TenantName)),
		fmt.Sprintf("Landlord: %s", safeValue(d.Contract.OwnerName)),
		fmt.Sprintf("Property: %s", safeValue(d.Contract.PropertyAddress)),
		fmt.Sprintf("Monthly rent: %s", document.Money(d.Contract.MonthlyRent, g.currency)),
		fmt.Sprintf("Jurisdiction: %s", safeValue(d.Contract.Jurisdiction)),
		fmt.Sprintf("Content hash: %s", safeValue(d.Contract.ContentHash)),
	}
	for _, line := range lines {
		pdf.MultiCell(0, 5, tr(line), "", "L", false)
	}
	pdf.Ln(2)

	section(pdf, tr, "Financial summary")
	drawTableRow(pdf, tr, []string{"Total rent", "Total paid", "Overdue", "Balance"}, []float64{45, 45, 45, 45}, true)
	drawTableRow(pdf, tr, []string{
		document.Money(d.Financial.TotalRent, g.currency),
		document.Money(d.Financial.TotalPaid, g.currency),
		document.Money(d.Financial.TotalOverdue, g.currency),
		document.Money(d.Financial.Balance, g.currency),
	}, []float64{45, 45, 45, 45}, false)
	pdf.Ln(2)

	section(pdf, tr, "Timeline")
	widths := []float64{25, 40, 115}
	drawTableRow(pdf, tr, []string{"Date", "Type", "Description"}, widths, true)
	for _, entry := range d.Timeline {
		drawTableRow(pdf, tr, []string{formatDate(entry.Date), entry.Type, truncate(entry.Description, 70)}, widths, false)
	}
	pdf.Ln(2)

	section(pdf, tr, "Legal basis")
	for _, basis := range d.LegalBasis {
		pdf.MultiCell(0, 5, tr("- "+basis), "", "L", false)
	}

	if len(d.MissingItems) > 0 {
		pdf.Ln(2)
		pdf.SetTextColor(200, 0, 0)
		section(pdf, tr, "Missing items")
		for _, item := range d.MissingItems {
			pdf.MultiCell(0, 5, tr("- "+item), "", "L", false)
		}
		pdf.SetTextColor(0, 0, 0)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func section(pdf *gofpdf.Fpdf, tr func(string) string, title string) {
	pdf.SetFont(fontName, "B", 11)
	pdf.CellFormat(0, 7, tr(title), "", 1, "L", false, 0, "")
	pdf.SetFont(fontName, "", 9)
}

func drawTableRow(pdf *gofpdf.Fpdf, tr func(string) string, cols []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(fontName, style, 9)
	for i, col := range cols {
		pdf.CellFormat(widths[i], 6, tr(col), "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func safeValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02/01/2006")
}
