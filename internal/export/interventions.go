// Package export renders report workbooks.
package export

import (
	"bytes"
	"fmt"
	"time"

	"pestops-bknd/internal/models"

	"github.com/xuri/excelize/v2"
)

const InterventionsSheet = "Interventions"

var InterventionsHeader = []string{
	"Intervention ID",
	"Site",
	"Station",
	"Agent",
	"Consumption",
	"Incident",
	"Bait Replaced",
	"Station Cleaned",
	"Notes",
	"Recorded On Device",
	"Received",
}

var interventionColumnWidths = []float64{38, 28, 14, 24, 13, 18, 14, 15, 40, 20, 20}

const timeLayout = "2006-01-02 15:04:05"

// Interventions writes rows to a single-sheet XLSX workbook with a frozen,
// styled header row. Times are written in UTC.
func Interventions(rows []models.InterventionExportRow) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(InterventionsSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	header := make([]interface{}, len(InterventionsHeader))
	for i, h := range InterventionsHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(InterventionsSheet, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(InterventionsHeader), 1)
	if err := f.SetCellStyle(InterventionsSheet, "A1", last, headerStyle); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}

	for i, w := range interventionColumnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(InterventionsSheet, col, col, w); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := []interface{}{
			row.ID,
			row.SiteName,
			row.StationIdentifier,
			row.AgentName,
			string(row.ConsumptionLevel),
			string(row.IncidentType),
			yesNo(row.BaitReplaced),
			yesNo(row.StationCleaned),
			deref(row.Notes),
			formatTime(row.LocalCreatedAt),
			row.CreatedAt.UTC().Format(timeLayout),
		}
		if err := f.SetSheetRow(InterventionsSheet, cell, &values); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(InterventionsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(timeLayout)
}
