package exame

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Exames"

var exportHeaders = []string{
	"id", "code", "name", "description", "price", "kind", "active", "base_id", "created_at", "updated_at",
}

// ExportExcel renders the live catalog, in List order, as an XLSX workbook.
func (s *Service) ExportExcel(ctx context.Context) ([]byte, error) {
	items, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(exportSheet, cell, h)
	}
	for i, it := range items {
		row := i + 2
		var baseID any = ""
		if it.BaseID != nil {
			baseID = *it.BaseID
		}
		values := []any{
			it.ID,
			it.Code,
			it.Name,
			it.Description,
			it.Price.InexactFloat64(),
			string(it.Kind),
			it.Active,
			baseID,
			it.CreatedAt.Format("2006-01-02 15:04:05"),
			it.UpdatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(exportSheet, cell, v)
		}
	}
	_ = f.SetColWidth(exportSheet, "A", "J", 20)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}
