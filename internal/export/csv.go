package export

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/RecoveryAshes/MapsHarvest/internal/models"
)

// CSVWriter 写出CSV,首行为列名
type CSVWriter struct{}

func (CSVWriter) Format() Format { return FormatCSV }

func (CSVWriter) Write(path string, records []models.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建文件失败: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return err
	}
	for _, r := range records {
		if err := w.Write(row(r)); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
