package export

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/RecoveryAshes/MapsHarvest/internal/models"
)

// JSONWriter 写出带缩进的JSON数组
type JSONWriter struct{}

func (JSONWriter) Format() Format { return FormatJSON }

func (JSONWriter) Write(path string, records []models.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建文件失败: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("编码JSON失败: %w", err)
	}
	return f.Close()
}
