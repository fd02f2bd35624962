package core

import (
	"sync"

	"github.com/RecoveryAshes/MapsHarvest/internal/models"
)

// RecordSink 按身份键去重的记录集合
// 写入和读取可以并发进行,Records 返回快照
type RecordSink struct {
	key    models.IdentityKey
	policy models.DedupePolicy

	mu      sync.RWMutex
	order   []string // 首次插入顺序
	records map[string]models.Record
}

// NewRecordSink 创建记录集合,key 为空时使用 name+website
func NewRecordSink(key models.IdentityKey, policy models.DedupePolicy) *RecordSink {
	if len(key) == 0 {
		key = models.KeyNameWebsite
	}
	if policy == "" {
		policy = models.PolicyLastWriteWins
	}
	return &RecordSink{
		key:     key,
		policy:  policy,
		records: make(map[string]models.Record),
	}
}

// Add 写入一条记录,返回是否与已有记录冲突
// 冲突时按策略处理,记录位置保持首次插入的位置
func (s *RecordSink) Add(r models.Record) bool {
	k := s.key.Of(r)
	r = r.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.records[k]
	if !exists {
		s.order = append(s.order, k)
		s.records[k] = r
		return false
	}

	switch s.policy {
	case models.PolicyFirstWriteWins:
		return true
	case models.PolicyMergeEmails:
		merged := prev.Emails.Clone()
		merged.Union(r.Emails)
		r.Emails = merged
	}
	s.records[k] = r
	return true
}

// Restore 用快照中的记录预填充
func (s *RecordSink) Restore(records []models.Record) {
	for _, r := range records {
		s.Add(r)
	}
}

// Records 按首次插入顺序返回去重后的记录副本
func (s *RecordSink) Records() []models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Record, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.records[k].Clone())
	}
	return out
}

// Len 去重后的记录数
func (s *RecordSink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// EmailCount 所有记录的邮箱总数
func (s *RecordSink) EmailCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, r := range s.records {
		n += len(r.Emails)
	}
	return n
}

// Key 当前使用的身份键
func (s *RecordSink) Key() models.IdentityKey {
	return s.key
}
