package models

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
)

// Snapshot 运行快照,用于中途导出和断点续跑
type Snapshot struct {
	RunID string `json:"run_id"`
	Query string `json:"query"`

	// 进度信息
	NextIndex int      `json:"next_index"` // 下一个待处理的条目位置
	Total     int      `json:"total"`      // 收敛后的条目总数
	Records   []Record `json:"records"`    // 去重后的记录

	Stats RunStats `json:"stats"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// SnapshotFilename 生成快照文件名
func SnapshotFilename(query string) string {
	name := strings.Trim(unsafeName.ReplaceAllString(strings.ToLower(query), "_"), "_")
	if name == "" {
		name = "run"
	}
	return fmt.Sprintf("snapshot_%s.json", name)
}

// ToJSON 序列化为JSON
func (s *Snapshot) ToJSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// FromJSON 从JSON反序列化
func (s *Snapshot) FromJSON(data []byte) error {
	return json.Unmarshal(data, s)
}

// SaveToFile 保存到文件
func (s *Snapshot) SaveToFile(path string) error {
	s.UpdatedAt = time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = s.UpdatedAt
	}
	data, err := s.ToJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadSnapshotFromFile 从文件加载
func LoadSnapshotFromFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var s Snapshot
	if err := s.FromJSON(data); err != nil {
		return nil, fmt.Errorf("解析快照失败: %w", err)
	}
	return &s, nil
}
