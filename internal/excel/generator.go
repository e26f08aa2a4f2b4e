package excel

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nurpe/lease-contracts/internal/model"
)

const (
	summarySheet   = "Summary"
	timelineSheet  = "Timeline"
	checklistSheet = "Checklist"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateDossier exports the judicial dossier as a workbook with a summary,
// the merged timeline and the document checklist.
func (g *Generator) GenerateDossier(d model.JudicialDossier) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	g.writeSummary(file, d)

	if _, err := file.NewSheet(timelineSheet); err != nil {
		return nil, err
	}
	g.writeTimeline(file, d.Timeline)

	if _, err := file.NewSheet(checklistSheet); err != nil {
		return nil, err
	}
	g.writeChecklist(file, d)

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, d model.JudicialDossier) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(summarySheet, cell, value)
	}

	rows := [][2]interface{}{
		{"Contract", d.Contract.ContractID},
		{"Verification token", d.Contract.VerificationToken},
		{"Type", string(d.Contract.ContractType)},
		{"Status", string(d.Contract.Status)},
		{"Tenant", d.Contract.TenantName},
		{"Landlord", d.Contract.OwnerName},
		{"Property", d.Contract.PropertyAddress},
		{"Jurisdiction", d.Contract.Jurisdiction},
		{"Content hash", d.Contract.ContentHash},
		{"Prepared at", formatDateTime(d.PreparedAt)},
		{"Ready", d.Ready},
	}
	for i, row := range rows {
		set(fmt.Sprintf("A%d", i+1), row[0])
		set(fmt.Sprintf("B%d", i+1), row[1])
	}

	tableRow := len(rows) + 2
	set(fmt.Sprintf("A%d", tableRow), "Currency")
	set(fmt.Sprintf("B%d", tableRow), d.Financial.Currency)
	money := [][2]interface{}{
		{"Total rent", d.Financial.TotalRent},
		{"Total paid", d.Financial.TotalPaid},
		{"Total overdue", d.Financial.TotalOverdue},
		{"Balance", d.Financial.Balance},
	}
	for i, row := range money {
		r := tableRow + 1 + i
		set(fmt.Sprintf("A%d", r), row[0])
		set(fmt.Sprintf("B%d", r), row[1])
	}

	_ = file.SetColWidth(summarySheet, "A", "A", 24)
	_ = file.SetColWidth(summarySheet, "B", "B", 70)
}

func (g *Generator) writeTimeline(file *excelize.File, timeline []model.TimelineEntry) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(timelineSheet, cell, value)
	}

	headers := []string{"Date", "Source", "Type", "Description", "Effect", "Amount", "Currency"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		set(cell, header)
	}
	for i, entry := range timeline {
		row := i + 2
		set(fmt.Sprintf("A%d", row), formatDate(entry.Date))
		set(fmt.Sprintf("B%d", row), string(entry.Source))
		set(fmt.Sprintf("C%d", row), entry.Type)
		set(fmt.Sprintf("D%d", row), entry.Description)
		if entry.Effect != nil {
			set(fmt.Sprintf("E%d", row), string(entry.Effect.Kind))
			set(fmt.Sprintf("F%d", row), entry.Effect.Amount)
			set(fmt.Sprintf("G%d", row), entry.Effect.Currency)
		}
	}

	_ = file.SetColWidth(timelineSheet, "A", "A", 12)
	_ = file.SetColWidth(timelineSheet, "B", "C", 26)
	_ = file.SetColWidth(timelineSheet, "D", "D", 60)
	_ = file.SetColWidth(timelineSheet, "E", "G", 12)
}

func (g *Generator) writeChecklist(file *excelize.File, d model.JudicialDossier) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(checklistSheet, cell, value)
	}

	set("A1", "Document")
	set("B1", "Reference")
	set("C1", "Available")
	for i, doc := range d.Documents {
		row := i + 2
		set(fmt.Sprintf("A%d", row), doc.Name)
		set(fmt.Sprintf("B%d", row), doc.Reference)
		set(fmt.Sprintf("C%d", row), yesNo(doc.Available))
	}

	row := len(d.Documents) + 3
	set(fmt.Sprintf("A%d", row), "Missing items")
	for i, item := range d.MissingItems {
		set(fmt.Sprintf("A%d", row+1+i), item)
	}

	row += len(d.MissingItems) + 2
	set(fmt.Sprintf("A%d", row), "Legal basis")
	for i, basis := range d.LegalBasis {
		set(fmt.Sprintf("A%d", row+1+i), basis)
	}

	_ = file.SetColWidth(checklistSheet, "A", "A", 60)
	_ = file.SetColWidth(checklistSheet, "B", "B", 40)
	_ = file.SetColWidth(checklistSheet, "C", "C", 10)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}
