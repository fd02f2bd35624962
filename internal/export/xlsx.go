package export

import (
	"fmt"

	"github.com/RecoveryAshes/MapsHarvest/internal/models"
	"github.com/xuri/excelize/v2"
)

// SheetName XLSX 工作表名
const SheetName = "Records"

// XLSXWriter 用excelize写出工作簿
type XLSXWriter struct{}

func (XLSXWriter) Format() Format { return FormatXLSX }

func (XLSXWriter) Write(path string, records []models.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return err
	}

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("写入表头失败: %w", err)
	}

	for i, r := range records {
		cells := row(r)
		values := make([]any, len(cells))
		for j, c := range cells {
			values[j] = c
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("写入第%d行失败: %w", i+2, err)
		}
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(columns), 1)
		_ = f.SetCellStyle(SheetName, "A1", last, style)
	}
	for i := 1; i <= len(columns); i++ {
		col, _ := excelize.ColumnNumberToName(i)
		_ = f.SetColWidth(SheetName, col, col, 28)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("保存工作簿失败: %w", err)
	}
	return nil
}
