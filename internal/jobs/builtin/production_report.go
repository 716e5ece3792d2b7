// Package builtin registers the back-office job handlers shipped with the
// engine. Every handler is idempotent: re-running an attempt overwrites the
// same scratch file and the durable key is derived from the job id.
package builtin

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/fabworks/backoffice/internal/jobs"
)

const (
	KindProductionReport = "report.production"

	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ProductionReport renders the monthly production figures workbook.
//
// Payload:
//
//	range  string  reporting period, e.g. "2024-01" (required)
//	lines  []map   production figures: article, quantity, scrap, machine
func ProductionReport(ctx context.Context, jc *jobs.Context, payload map[string]any) (*jobs.Result, error) {
	period, _ := payload["range"].(string)
	if period == "" {
		return nil, fmt.Errorf("production report: missing 'range' in payload")
	}

	lines, _ := payload["lines"].([]any)

	jc.Progress(10)

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Production"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	header := []string{"Article", "Quantity", "Scrap", "Machine"}
	for col, title := range header {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return nil, err
		}
	}
	_ = f.SetCellValue(sheet, "F1", fmt.Sprintf("Period: %s", period))

	for row, raw := range lines {
		line, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("production report: line %d is malformed", row+1)
		}
		values := []any{line["article"], line["quantity"], line["scrap"], line["machine"]}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
		jc.Progress(10 + 80*(row+1)/max(len(lines), 1))
	}

	name := fmt.Sprintf("production-%s.xlsx", period)
	path, err := jc.ScratchPath(name)
	if err != nil {
		return nil, err
	}
	if err := f.SaveAs(path); err != nil {
		return nil, fmt.Errorf("production report: writing workbook: %w", err)
	}

	jc.Progress(95)

	return &jobs.Result{
		LocalPath: path,
		Name:      name,
		Mime:      mimeXLSX,
	}, nil
}
