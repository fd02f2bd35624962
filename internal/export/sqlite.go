package export

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/RecoveryAshes/MapsHarvest/internal/models"
	_ "modernc.org/sqlite"
)

const recordsSchema = `
CREATE TABLE IF NOT EXISTS records (
	identity      TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	address       TEXT NOT NULL,
	phone         TEXT NOT NULL,
	phone_valid   INTEGER,
	website       TEXT NOT NULL,
	website_valid INTEGER,
	emails        TEXT NOT NULL,
	query         TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_query ON records(query);
`

const upsertRecord = `
INSERT INTO records (identity, name, address, phone, phone_valid, website, website_valid, emails, query, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(identity) DO UPDATE SET
	name = excluded.name,
	address = excluded.address,
	phone = excluded.phone,
	phone_valid = excluded.phone_valid,
	website = excluded.website,
	website_valid = excluded.website_valid,
	emails = excluded.emails,
	query = excluded.query,
	updated_at = excluded.updated_at
`

// SQLiteWriter 把记录写入SQLite,身份键相同的记录会被更新
// 多次运行共用一个数据库文件
type SQLiteWriter struct {
	key models.IdentityKey
}

// NewSQLiteWriter 创建SQLite写出器
func NewSQLiteWriter(key models.IdentityKey) SQLiteWriter {
	if len(key) == 0 {
		key = models.KeyNameWebsite
	}
	return SQLiteWriter{key: key}
}

func (SQLiteWriter) Format() Format { return FormatSQLite }

func (w SQLiteWriter) Write(path string, records []models.Record) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("打开数据库失败: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return fmt.Errorf("设置busy_timeout失败: %w", err)
	}
	if _, err := db.Exec(recordsSchema); err != nil {
		return fmt.Errorf("初始化表结构失败: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(upsertRecord)
	if err != nil {
		return fmt.Errorf("准备语句失败: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range records {
		_, err := stmt.Exec(
			w.key.Of(r),
			r.Name,
			r.Address,
			r.Phone,
			nullBool(r.PhoneValid),
			r.Website,
			nullBool(r.WebsiteValid),
			strings.Join(r.Emails.Sorted(), ","),
			r.Query,
			now,
		)
		if err != nil {
			return fmt.Errorf("写入记录 %q 失败: %w", r.Name, err)
		}
	}
	return tx.Commit()
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}
