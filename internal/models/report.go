package models

import (
	"encoding/json"
	"time"
)

// RunReport 运行报告
type RunReport struct {
	// 运行信息
	RunID     string    `json:"run_id"`
	Query     string    `json:"query"`
	SearchURL string    `json:"search_url"`
	Status    RunStatus `json:"status"`
	Error     string    `json:"error,omitempty"`

	// 时间信息
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  float64   `json:"duration"` // 秒

	// 统计信息
	Stats RunStats `json:"stats"`

	// 跳过/失败的条目
	SkippedItems []ItemFailure `json:"skipped_items,omitempty"`

	// 输出文件
	Outputs []string `json:"outputs,omitempty"`

	// 配置快照
	Config RunConfig `json:"config"`
}

// ItemFailure 单个条目的失败信息
type ItemFailure struct {
	Index     int       `json:"index"`
	State     ItemState `json:"state"`
	ErrorType string    `json:"error_type"` // interaction, navigation, panic等
	ErrorMsg  string    `json:"error_msg"`
}

// NewRunReport 创建运行报告
func NewRunReport(cfg RunConfig) *RunReport {
	return &RunReport{
		RunID:     NewRunID(),
		Query:     cfg.Query.String(),
		SearchURL: cfg.Query.SearchURL(cfg.SearchBaseURL, cfg.Language),
		Status:    RunStatusPending,
		StartTime: time.Now(),
		Config:    cfg,
	}
}

// Finish 记录结束时间和最终状态
func (r *RunReport) Finish(status RunStatus, err error) {
	r.Status = status
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime).Seconds()
	r.Stats.Duration = r.Duration
	if err != nil {
		r.Error = err.Error()
	}
}

// ToJSON 序列化为JSON
func (r *RunReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// FromJSON 从JSON反序列化
func (r *RunReport) FromJSON(data []byte) error {
	return json.Unmarshal(data, r)
}
