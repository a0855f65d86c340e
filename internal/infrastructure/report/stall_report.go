// Package report renders workflow reports as Excel workbooks
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/garyjia/ethics-review/internal/application/port"
	"github.com/garyjia/ethics-review/internal/domain/entity"
)

const stallSheet = "Stalled"

var stallHeader = []interface{}{
	"Application ID", "Title", "Owner", "Stage", "Reviewer role", "Last activity (UTC)", "Idle (hours)",
}

// ExcelRenderer implements port.ReportRenderer with excelize
type ExcelRenderer struct{}

// NewExcelRenderer creates a new Excel report renderer
func NewExcelRenderer() *ExcelRenderer {
	return &ExcelRenderer{}
}

// RenderStallReport renders stalled applications as an xlsx workbook
func (r *ExcelRenderer) RenderStallReport(items []*entity.StalledItem, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), stallSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := f.SetCellValue(stallSheet, "A1", fmt.Sprintf("Stalled applications as of %s", generatedAt.UTC().Format(time.RFC3339))); err != nil {
		return nil, fmt.Errorf("failed to write title: %w", err)
	}
	if err := f.SetSheetRow(stallSheet, "A3", &stallHeader); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}
	if err := f.SetCellStyle(stallSheet, "A3", "G3", bold); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}

	for i, item := range items {
		row := []interface{}{
			item.ApplicationID,
			item.Title,
			item.OwnerUserID,
			item.Stage,
			item.Role,
			item.UpdatedAt.UTC().Format("2006-01-02 15:04"),
			fmt.Sprintf("%.1f", item.Idle.Hours()),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+4)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(stallSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if err := f.SetColWidth(stallSheet, "B", "B", 40); err != nil {
		return nil, fmt.Errorf("failed to size columns: %w", err)
	}
	if err := f.SetColWidth(stallSheet, "C", "G", 18); err != nil {
		return nil, fmt.Errorf("failed to size columns: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// StallReportName returns the archive path for a report generated at t
func StallReportName(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s/stalled-%s.xlsx", t.Format("2006/01"), t.Format("20060102-150405"))
}

var _ port.ReportRenderer = (*ExcelRenderer)(nil)
