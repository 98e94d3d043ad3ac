package excel

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ardmere/crmparse/internal/core/domain"
)

const (
	sheetInteractions = "Interactions"
	sheetDeals        = "Deals"
	sheetContacts     = "Contacts"
)

// Writer renders pipeline snapshots as XLSX workbooks, one sheet per
// warehouse table. Rows keep the order the snapshot delivered them in.
type Writer struct{}

func NewWriter() *Writer {
	return &Writer{}
}

func (wr *Writer) WritePipeline(_ context.Context, out io.Writer, report domain.PipelineReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetInteractions); err != nil {
		return fmt.Errorf("rename interactions sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetDeals); err != nil {
		return fmt.Errorf("create deals sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetContacts); err != nil {
		return fmt.Errorf("create contacts sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := writeInteractions(f, headerStyle, report.Interactions); err != nil {
		return err
	}
	if err := writeDeals(f, headerStyle, report.Deals); err != nil {
		return err
	}
	if err := writeContacts(f, headerStyle, report.Contacts); err != nil {
		return err
	}

	stamp := report.GeneratedAt.UTC().Format(time.RFC3339)
	if err := f.SetDocProps(&excelize.DocProperties{
		Creator:  "crmparse",
		Created:  stamp,
		Modified: stamp,
	}); err != nil {
		return fmt.Errorf("set workbook properties: %w", err)
	}

	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeInteractions(f *excelize.File, headerStyle int, records []domain.InteractionRecord) error {
	header := []any{
		"Interaction ID", "Occurred At", "Channel", "Company ID", "Contact ID",
		"Summary", "Next Step", "Follow-Up Date", "Sentiment", "Action Items",
		"Risk Flags", "Owner", "Confidence",
	}
	if err := writeHeader(f, sheetInteractions, header, headerStyle); err != nil {
		return err
	}
	for i, record := range records {
		row := []any{
			record.ID,
			record.OccurredAt.UTC().Format(time.RFC3339),
			string(record.Channel),
			deref(record.CompanyID),
			deref(record.ContactID),
			record.Summary,
			deref(record.NextStep),
			deref(record.FollowUpDate),
			sentimentText(record.Sentiment),
			strings.Join(record.ActionItems, "; "),
			strings.Join(record.RiskFlags, "; "),
			deref(record.Owner),
			record.Confidence,
		}
		if err := writeRow(f, sheetInteractions, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeDeals(f *excelize.File, headerStyle int, records []domain.DealRecord) error {
	header := []any{
		"Deal ID", "Company ID", "Contact ID", "Amount", "Currency",
		"Stage", "Next Step", "Close Date", "Health Score",
	}
	if err := writeHeader(f, sheetDeals, header, headerStyle); err != nil {
		return err
	}
	for i, record := range records {
		row := []any{
			record.ID,
			deref(record.CompanyID),
			deref(record.ContactID),
			record.Amount,
			record.Currency,
			deref(record.Stage),
			deref(record.NextStep),
			deref(record.CloseDate),
			floatCell(record.HealthScore),
		}
		if err := writeRow(f, sheetDeals, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeContacts(f *excelize.File, headerStyle int, records []domain.ContactRecord) error {
	header := []any{
		"Contact ID", "Full Name", "Title", "Email", "Phone",
		"Company ID", "Tags", "Last Touch At",
	}
	if err := writeHeader(f, sheetContacts, header, headerStyle); err != nil {
		return err
	}
	for i, record := range records {
		row := []any{
			record.ID,
			deref(record.FullName),
			deref(record.Title),
			deref(record.Email),
			deref(record.Phone),
			deref(record.CompanyID),
			strings.Join(record.Tags, "; "),
			record.LastTouchAt.UTC().Format(time.RFC3339),
		}
		if err := writeRow(f, sheetContacts, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, header []any, style int) error {
	if err := writeRow(f, sheet, 1, header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return fmt.Errorf("resolve header range on %s: %w", sheet, err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("style header on %s: %w", sheet, err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("resolve row %d on %s: %w", row, sheet, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d on %s: %w", row, sheet, err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func sentimentText(s *domain.Sentiment) string {
	if s == nil {
		return ""
	}
	return string(*s)
}

func floatCell(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
