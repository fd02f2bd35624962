package export

import (
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RecoveryAshes/MapsHarvest/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var fixedNow = time.Date(2026, 3, 9, 14, 5, 7, 0, time.UTC)

func boolPtr(b bool) *bool { return &b }

func sampleRecords() []models.Record {
	return []models.Record{
		{
			Name:         "Acme Dental",
			Address:      "1 Main St",
			Phone:        "+1 650-253-0000",
			PhoneValid:   boolPtr(true),
			Website:      "https://acme.test/",
			WebsiteValid: boolPtr(true),
			Emails:       models.NewEmailSet("sales@acme.test", "hello@acme.test"),
			Query:        "dentist Austin",
		},
		{
			Name:         "Bright Smiles",
			Address:      models.Unknown,
			Phone:        "512-555-0100",
			PhoneValid:   boolPtr(false),
			Website:      models.Unknown,
			WebsiteValid: boolPtr(false),
			Query:        "dentist Austin",
		},
	}
}

func newTestExporter(t *testing.T, opts Options) *Exporter {
	t.Helper()
	e, err := NewExporter(opts)
	require.NoError(t, err)
	e.now = func() time.Time { return fixedNow }
	return e
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Format
		wantErr bool
	}{
		{"csv", "CSV", FormatCSV, false},
		{"excel别名", "excel", FormatXLSX, false},
		{"sqlite别名", "db", FormatSQLite, false},
		{"未知格式", "pdf", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewExporter_Invalid(t *testing.T) {
	_, err := NewExporter(Options{})
	assert.Error(t, err, "没有格式时应返回错误")
	_, err = NewExporter(Options{Formats: []string{"csv", "pdf"}})
	assert.Error(t, err)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "dentist_Austin_USA", SanitizeName("dentist Austin USA"))
	assert.Equal(t, "café_São_Paulo", SanitizeName(" café / São Paulo "))
	assert.Equal(t, "results", SanitizeName("///"))
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "leads_2026-03-09_14-05-07.csv", Filename("leads", FormatCSV, true, fixedNow))
	assert.Equal(t, "leads.xlsx", Filename("leads", FormatXLSX, false, fixedNow))
	assert.Equal(t, "leads.db", Filename("leads", FormatSQLite, false, fixedNow))
}

func TestFilter(t *testing.T) {
	records := sampleRecords()
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"无条件", Filter{}, []string{"Acme Dental", "Bright Smiles"}},
		{"名称忽略大小写", Filter{NameContains: "SMILE"}, []string{"Bright Smiles"}},
		{"电话前缀", Filter{PhonePrefix: "+1"}, []string{"Acme Dental"}},
		{"条件同时满足", Filter{NameContains: "acme", PhonePrefix: "512"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names := []string{}
			for _, r := range tt.filter.Apply(records) {
				names = append(names, r.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestExporter_AllFormats(t *testing.T) {
	dir := t.TempDir()
	e := newTestExporter(t, Options{
		Dir:       dir,
		Formats:   []string{"csv", "json", "xlsx", "sqlite"},
		Timestamp: true,
	})

	files, err := e.Export("dentist Austin", sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "dentist_Austin_2026-03-09_14-05-07.csv"),
		filepath.Join(dir, "dentist_Austin_2026-03-09_14-05-07.json"),
		filepath.Join(dir, "dentist_Austin_2026-03-09_14-05-07.xlsx"),
		filepath.Join(dir, DefaultSQLiteFile),
	}, files)

	t.Run("CSV", func(t *testing.T) {
		f, err := os.Open(files[0])
		require.NoError(t, err)
		defer f.Close()
		rows, err := csv.NewReader(f).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, columns, rows[0])
		assert.Equal(t, "hello@acme.test, sales@acme.test", rows[1][6])
		assert.Equal(t, "Yes", rows[1][3])
		assert.Equal(t, "No", rows[2][5])
	})

	t.Run("JSON", func(t *testing.T) {
		data, err := os.ReadFile(files[1])
		require.NoError(t, err)
		var got []models.Record
		require.NoError(t, json.Unmarshal(data, &got))
		require.Len(t, got, 2)
		assert.Equal(t, []string{"hello@acme.test", "sales@acme.test"}, got[0].Emails.Sorted())
	})

	t.Run("XLSX", func(t *testing.T) {
		f, err := excelize.OpenFile(files[2])
		require.NoError(t, err)
		defer f.Close()
		rows, err := f.GetRows(SheetName)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, "Name", rows[0][0])
		assert.Equal(t, "Bright Smiles", rows[2][0])
	})

	t.Run("SQLite", func(t *testing.T) {
		db, err := sql.Open("sqlite", files[3])
		require.NoError(t, err)
		defer db.Close()
		var n int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM records").Scan(&n))
		assert.Equal(t, 2, n)
	})
}

func TestExporter_SQLiteUpsert(t *testing.T) {
	dir := t.TempDir()
	e := newTestExporter(t, Options{Dir: dir, Formats: []string{"sqlite"}})

	records := sampleRecords()
	_, err := e.Export("first", records)
	require.NoError(t, err)

	records[0].Phone = "+1 650-000-0000"
	records[0].Emails.Add("new@acme.test")
	extra := models.Record{Name: "Lone Star Ortho", Website: "https://lonestar.test/"}
	_, err = e.Export("second", append(records, extra))
	require.NoError(t, err)

	db, err := sql.Open("sqlite", filepath.Join(dir, DefaultSQLiteFile))
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM records").Scan(&n))
	assert.Equal(t, 3, n, "身份键相同的记录被更新而不是重复插入")

	var phone, emails string
	var valid sql.NullBool
	require.NoError(t, db.QueryRow("SELECT phone, emails, phone_valid FROM records WHERE name = ?", "Acme Dental").Scan(&phone, &emails, &valid))
	assert.Equal(t, "+1 650-000-0000", phone)
	assert.Equal(t, "hello@acme.test,new@acme.test,sales@acme.test", emails)
	assert.True(t, valid.Valid && valid.Bool)

	require.NoError(t, db.QueryRow("SELECT phone_valid FROM records WHERE name = ?", "Lone Star Ortho").Scan(&valid))
	assert.False(t, valid.Valid, "未校验时为NULL")
}

func TestExporter_FilterAndFilename(t *testing.T) {
	dir := t.TempDir()
	e := newTestExporter(t, Options{
		Dir:      dir,
		Formats:  []string{"csv"},
		Filename: "leads",
		Filter:   Filter{NameContains: "acme"},
	})

	files, err := e.Export("dentist Austin", sampleRecords())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(dir, "leads_filtered.csv"), files[0])

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Bright Smiles")
}

func TestExporter_NothingToExport(t *testing.T) {
	dir := t.TempDir()
	e := newTestExporter(t, Options{Dir: dir, Formats: []string{"csv"}, Filter: Filter{PhonePrefix: "+44"}})

	files, err := e.Export("dentist", sampleRecords())
	require.NoError(t, err)
	assert.Empty(t, files)

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

func TestExporter_PartialFailure(t *testing.T) {
	dir := t.TempDir()
	e := newTestExporter(t, Options{Dir: dir, Formats: []string{"csv", "json"}})
	// 占用json目标路径使写入失败
	blocked := filepath.Join(dir, "q_2026-03-09_14-05-07.json")
	e.opts.Timestamp = true
	require.NoError(t, os.Mkdir(blocked, 0755))

	files, err := e.Export("q", sampleRecords())
	require.Error(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "q_2026-03-09_14-05-07.csv")}, files)
}
