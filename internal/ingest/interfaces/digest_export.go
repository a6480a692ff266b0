package interfaces

import (
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"pumpline-historian/internal/backpressure"
	ingest "pumpline-historian/internal/ingest/domain"
)

// BuildDigestXLSX renders a run's per-window counts and backpressure history
// as a workbook. Per-window counts are always surfaced somewhere durable;
// this is the weekly digest form of that guarantee.
func BuildDigestXLSX(reports []ingest.WindowReport, adjustments []backpressure.Adjustment) ([]byte, error) {
	if len(reports) == 0 {
		return nil, errors.New("digest: no window reports")
	}

	f := excelize.NewFile()
	windowsSheet := "windows"
	adjustmentsSheet := "adjustments"
	f.SetSheetName("Sheet1", windowsSheet)
	f.NewSheet(adjustmentsSheet)

	headers := []string{"Window Start", "Window End", "Considered", "Written", "Unresolved", "Unparseable", "Out Of Window", "Deduplicated", "Elapsed (s)", "Result"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(windowsSheet, cell, header)
	}
	for row, report := range reports {
		result := "ok"
		if report.Failed {
			result = "failed"
		}
		values := []interface{}{
			report.Window.Start.Format(time.RFC3339),
			report.Window.End.Format(time.RFC3339),
			report.Considered,
			report.Written,
			report.Unresolved,
			report.Unparseable,
			report.OutOfWindow,
			report.Deduplicated,
			report.Elapsed.Seconds(),
			result,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(windowsSheet, cell, value)
		}
	}

	adjHeaders := []string{"Cycle", "Action", "Batch From", "Batch To", "Workers From", "Workers To"}
	for i, header := range adjHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(adjustmentsSheet, cell, header)
	}
	for row, adj := range adjustments {
		values := []interface{}{
			row + 1,
			string(adj.Action),
			adj.BatchFrom,
			adj.BatchTo,
			adj.WorkersFrom,
			adj.WorkersTo,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(adjustmentsSheet, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("digest: write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
