package models

import (
	"fmt"
	"strings"
)

// SelectorChain 同一逻辑字段的候选定位器,按优先级排列
type SelectorChain []string

// Valid 过滤掉空白定位器
func (c SelectorChain) Valid() SelectorChain {
	out := make(SelectorChain, 0, len(c))
	for _, s := range c {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SelectorConfig 页面各字段的定位器配置
type SelectorConfig struct {
	Listing  SelectorChain `mapstructure:"listing" json:"listing"`
	Name     SelectorChain `mapstructure:"name" json:"name"`
	Address  SelectorChain `mapstructure:"address" json:"address"`
	Phone    SelectorChain `mapstructure:"phone" json:"phone"`
	Website  SelectorChain `mapstructure:"website" json:"website"`
	ShowMore SelectorChain `mapstructure:"show_more" json:"show_more"`

	// AutoDetect 定位器链全部失效时,按出现次数最多的div类名推断条目定位器
	AutoDetect bool `mapstructure:"auto_detect" json:"auto_detect"`
}

// DefaultSelectorConfig 默认定位器
func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		Listing: SelectorChain{
			`div[role="article"]`,
			`.Nv2PK`,
			`div[jsaction="pane.wfvdle23"]`,
			`div[aria-label][role="listitem"]`,
		},
		Name: SelectorChain{
			`h1 span[aria-level="1"]`,
			`h1.DUwDvf`,
			`h1 span`,
			`h1[class*="section-hero-header-title"] span`,
		},
		Address: SelectorChain{
			`button[data-item-id="address"] .Io6YTe`,
			`button[data-item-id="address"] span`,
			`button[aria-label^="Address"] span`,
		},
		Phone: SelectorChain{
			`button[data-item-id^="phone"] .Io6YTe`,
			`button[data-item-id="phone"] span`,
			`button[aria-label^="Phone"] span`,
		},
		Website: SelectorChain{
			`a[data-item-id="authority"]`,
			`a[aria-label^="Website"]`,
		},
		ShowMore: SelectorChain{
			`button[jsaction*="pane.paginationSection.showMore"]`,
		},
		AutoDetect: true,
	}
}

// Validate 检查必需的定位器链
func (c *SelectorConfig) Validate() error {
	required := map[string]SelectorChain{
		"listing": c.Listing,
		"name":    c.Name,
		"website": c.Website,
	}
	for field, chain := range required {
		if len(chain.Valid()) == 0 {
			return fmt.Errorf("定位器链不能为空: %s", field)
		}
	}
	return nil
}
