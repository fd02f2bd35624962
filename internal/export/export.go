// Package export 把去重后的记录写成 CSV / JSON / XLSX / SQLite
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/RecoveryAshes/MapsHarvest/internal/models"
	"github.com/RecoveryAshes/MapsHarvest/internal/utils"
)

// Format 导出格式
type Format string

const (
	FormatCSV    Format = "csv"
	FormatJSON   Format = "json"
	FormatXLSX   Format = "xlsx"
	FormatSQLite Format = "sqlite"
)

const (
	// TimestampLayout 文件名中的时间戳格式
	TimestampLayout = "2006-01-02_15-04-05"

	// DefaultSQLiteFile 所有运行共用的数据库文件
	DefaultSQLiteFile = "mapsharvest.db"

	filteredSuffix = "_filtered"
)

// Writer 单一格式的写出器
type Writer interface {
	Format() Format
	Write(path string, records []models.Record) error
}

// Options 导出参数
type Options struct {
	Dir       string
	Formats   []string
	Filename  string // 为空时使用搜索词
	Timestamp bool
	Filter    Filter

	// IdentityKey SQLite 按该键更新已有记录
	IdentityKey models.IdentityKey
	SQLiteFile  string
}

// Exporter 按配置的格式依次写出记录
type Exporter struct {
	opts    Options
	writers []Writer
	now     func() time.Time
}

// ParseFormat 解析格式名, "excel" 视为 xlsx
func ParseFormat(s string) (Format, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case "csv", "json", "xlsx", "sqlite":
		return Format(f), nil
	case "excel":
		return FormatXLSX, nil
	case "db", "sqlite3":
		return FormatSQLite, nil
	default:
		return "", fmt.Errorf("不支持的导出格式: %s (有效值: csv, json, xlsx, sqlite)", s)
	}
}

// NewExporter 创建导出器
func NewExporter(opts Options) (*Exporter, error) {
	if opts.Dir == "" {
		opts.Dir = "output"
	}
	if opts.SQLiteFile == "" {
		opts.SQLiteFile = DefaultSQLiteFile
	}
	if len(opts.IdentityKey) == 0 {
		opts.IdentityKey = models.KeyNameWebsite
	}

	seen := make(map[Format]bool)
	var writers []Writer
	for _, name := range opts.Formats {
		f, err := ParseFormat(name)
		if err != nil {
			return nil, err
		}
		if seen[f] {
			continue
		}
		seen[f] = true

		switch f {
		case FormatCSV:
			writers = append(writers, CSVWriter{})
		case FormatJSON:
			writers = append(writers, JSONWriter{})
		case FormatXLSX:
			writers = append(writers, XLSXWriter{})
		case FormatSQLite:
			writers = append(writers, NewSQLiteWriter(opts.IdentityKey))
		}
	}
	if len(writers) == 0 {
		return nil, fmt.Errorf("至少需要一种导出格式")
	}

	return &Exporter{opts: opts, writers: writers, now: time.Now}, nil
}

// Export 过滤后写出所有格式,返回生成的文件
// 某个格式失败时继续写其它格式
func (e *Exporter) Export(name string, records []models.Record) ([]string, error) {
	if !e.opts.Filter.Empty() {
		before := len(records)
		records = e.opts.Filter.Apply(records)
		utils.Infof("过滤后保留 %d/%d 条记录 (%s)", len(records), before, e.opts.Filter)
	}
	if len(records) == 0 {
		utils.Warn("没有可导出的记录")
		return nil, nil
	}

	if err := os.MkdirAll(e.opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("创建导出目录失败: %w", err)
	}

	base := e.opts.Filename
	if base == "" {
		base = name
	}
	base = SanitizeName(base)
	if !e.opts.Filter.Empty() {
		base += filteredSuffix
	}
	now := e.now()

	var (
		files []string
		errs  []error
	)
	for _, w := range e.writers {
		path := filepath.Join(e.opts.Dir, Filename(base, w.Format(), e.opts.Timestamp, now))
		if w.Format() == FormatSQLite {
			path = filepath.Join(e.opts.Dir, e.opts.SQLiteFile)
		}

		if err := w.Write(path, records); err != nil {
			utils.Errorf("导出%s失败: %v", w.Format(), err)
			errs = append(errs, fmt.Errorf("%s: %w", w.Format(), err))
			continue
		}
		utils.Infof("💾 已导出 %d 条记录: %s", len(records), path)
		files = append(files, path)
	}

	return files, errors.Join(errs...)
}

var unsafeName = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)

// SanitizeName 把搜索词转成可用的文件名
func SanitizeName(s string) string {
	s = strings.Trim(unsafeName.ReplaceAllString(strings.TrimSpace(s), "_"), "_")
	if s == "" {
		return "results"
	}
	return s
}

// Filename 生成 <base>_<时间戳>.<ext> 形式的文件名
func Filename(base string, format Format, timestamp bool, now time.Time) string {
	ext := string(format)
	if format == FormatSQLite {
		ext = "db"
	}
	if !timestamp {
		return fmt.Sprintf("%s.%s", base, ext)
	}
	return fmt.Sprintf("%s_%s.%s", base, now.Format(TimestampLayout), ext)
}

// columns 表格格式的列
var columns = []string{"Name", "Address", "Phone", "Phone Valid", "Website", "Website Valid", "Emails", "Query"}

// row 记录展开为一行
func row(r models.Record) []string {
	return []string{
		r.Name,
		r.Address,
		r.Phone,
		flag(r.PhoneValid),
		r.Website,
		flag(r.WebsiteValid),
		r.Emails.String(),
		r.Query,
	}
}

func flag(b *bool) string {
	switch {
	case b == nil:
		return ""
	case *b:
		return "Yes"
	default:
		return "No"
	}
}
