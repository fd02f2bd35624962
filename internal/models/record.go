package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Unknown 字段解析失败时使用的占位值
const Unknown = "N/A"

// EmailSet 邮箱集合(无序,自动去重)
type EmailSet map[string]struct{}

// NewEmailSet 由邮箱列表创建集合
func NewEmailSet(emails ...string) EmailSet {
	s := make(EmailSet, len(emails))
	for _, e := range emails {
		s.Add(e)
	}
	return s
}

// Add 添加邮箱,统一转为小写
func (s EmailSet) Add(email string) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return
	}
	s[email] = struct{}{}
}

// Union 合并另一个集合
func (s EmailSet) Union(other EmailSet) {
	for e := range other {
		s[e] = struct{}{}
	}
}

// Has 判断是否包含邮箱
func (s EmailSet) Has(email string) bool {
	_, ok := s[strings.ToLower(email)]
	return ok
}

// Sorted 返回排序后的邮箱列表,便于稳定输出
func (s EmailSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for e := range s {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// String 以 ", " 连接,与导出格式一致
func (s EmailSet) String() string {
	return strings.Join(s.Sorted(), ", ")
}

// Clone 深拷贝
func (s EmailSet) Clone() EmailSet {
	c := make(EmailSet, len(s))
	c.Union(s)
	return c
}

// MarshalJSON 输出为有序数组
func (s EmailSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON 从数组读取
func (s *EmailSet) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*s = NewEmailSet(list...)
	return nil
}

// Record 单个商家的提取结果
// 仅在条目成功聚焦后生成,去重合并之外不再修改
type Record struct {
	Name         string   `json:"name"`
	Address      string   `json:"address"`
	Phone        string   `json:"phone"`
	Website      string   `json:"website"`
	Emails       EmailSet `json:"emails"`
	PhoneValid   *bool    `json:"phone_valid,omitempty"`
	WebsiteValid *bool    `json:"website_valid,omitempty"`

	// 来源信息
	Query string `json:"query,omitempty"` // 生成该记录的搜索词
	Index int    `json:"index"`           // 结果列表中的位置
}

// Clone 深拷贝记录
func (r Record) Clone() Record {
	c := r
	if r.Emails != nil {
		c.Emails = r.Emails.Clone()
	}
	if r.PhoneValid != nil {
		v := *r.PhoneValid
		c.PhoneValid = &v
	}
	if r.WebsiteValid != nil {
		v := *r.WebsiteValid
		c.WebsiteValid = &v
	}
	return c
}

// HasWebsite 网站字段是否为可访问的http(s)地址
func (r Record) HasWebsite() bool {
	return IsHTTPURL(r.Website)
}

// IsHTTPURL 判断字符串是否为http(s)地址
func IsHTTPURL(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// KeyField 身份键可选字段
type KeyField string

const (
	KeyName    KeyField = "name"
	KeyAddress KeyField = "address"
	KeyPhone   KeyField = "phone"
	KeyWebsite KeyField = "website"
)

// IdentityKey 决定两条记录是否指向同一商家的字段组合
type IdentityKey []KeyField

var (
	// KeyNameWebsite 默认身份键
	KeyNameWebsite = IdentityKey{KeyName, KeyWebsite}
	// KeyNamePhoneWebsite 更严格的身份键
	KeyNamePhoneWebsite = IdentityKey{KeyName, KeyPhone, KeyWebsite}
)

// ParseIdentityKey 解析形如 "name+phone+website" 的配置
func ParseIdentityKey(raw string) (IdentityKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return KeyNameWebsite, nil
	}

	seen := make(map[KeyField]bool)
	var key IdentityKey
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == '+' || r == ',' }) {
		f := KeyField(strings.ToLower(strings.TrimSpace(part)))
		switch f {
		case KeyName, KeyAddress, KeyPhone, KeyWebsite:
		default:
			return nil, fmt.Errorf("未知的身份键字段: %s", part)
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		key = append(key, f)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("身份键不能为空")
	}
	return key, nil
}

// String 返回 "name+website" 形式
func (k IdentityKey) String() string {
	parts := make([]string, len(k))
	for i, f := range k {
		parts[i] = string(f)
	}
	return strings.Join(parts, "+")
}

// Of 计算记录的身份键值,字段按原值比较
func (k IdentityKey) Of(r Record) string {
	parts := make([]string, len(k))
	for i, f := range k {
		var v string
		switch f {
		case KeyName:
			v = r.Name
		case KeyAddress:
			v = r.Address
		case KeyPhone:
			v = r.Phone
		case KeyWebsite:
			v = r.Website
		}
		parts[i] = v
	}
	return strings.Join(parts, "\x1f")
}
