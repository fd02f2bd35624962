package export

import (
	"fmt"
	"strings"

	"github.com/RecoveryAshes/MapsHarvest/internal/models"
)

// Filter 导出前的记录过滤
type Filter struct {
	NameContains string // 名称包含(忽略大小写)
	PhonePrefix  string // 电话前缀
}

// Empty 是否未设置任何条件
func (f Filter) Empty() bool {
	return strings.TrimSpace(f.NameContains) == "" && strings.TrimSpace(f.PhonePrefix) == ""
}

// Match 记录是否满足所有条件
func (f Filter) Match(r models.Record) bool {
	if name := strings.TrimSpace(f.NameContains); name != "" {
		if !strings.Contains(strings.ToLower(r.Name), strings.ToLower(name)) {
			return false
		}
	}
	if prefix := strings.TrimSpace(f.PhonePrefix); prefix != "" {
		if !strings.HasPrefix(strings.TrimSpace(r.Phone), prefix) {
			return false
		}
	}
	return true
}

// Apply 返回满足条件的记录,保持原顺序
func (f Filter) Apply(records []models.Record) []models.Record {
	out := make([]models.Record, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

func (f Filter) String() string {
	return fmt.Sprintf("名称包含=%q, 电话前缀=%q", f.NameContains, f.PhonePrefix)
}
