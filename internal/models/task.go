package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// RunStatus 运行状态
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"   // 待执行
	RunStatusRunning   RunStatus = "running"   // 执行中
	RunStatusCompleted RunStatus = "completed" // 已完成
	RunStatusStopped   RunStatus = "stopped"   // 被请求停止
	RunStatusFailed    RunStatus = "failed"    // 失败
)

// ItemState 单个结果条目的处理状态
type ItemState string

const (
	ItemUnfocused  ItemState = "unfocused"
	ItemFocusing   ItemState = "focusing"
	ItemExtracting ItemState = "extracting"
	ItemDone       ItemState = "done"
	ItemSkipped    ItemState = "skipped"
	ItemFailed     ItemState = "failed" // 处理过程中出现未预期错误
)

// HarvestMode 邮箱采集方式
type HarvestMode string

const (
	HarvestBrowser HarvestMode = "browser" // 复用浏览器会话导航
	HarvestHTTP    HarvestMode = "http"    // 使用独立HTTP客户端抓取
	HarvestOff     HarvestMode = "off"
)

// DedupePolicy 身份键冲突时的处理策略
type DedupePolicy string

const (
	PolicyLastWriteWins  DedupePolicy = "last-write-wins"
	PolicyFirstWriteWins DedupePolicy = "first-write-wins"
	PolicyMergeEmails    DedupePolicy = "merge-emails"
)

// DefaultSearchBaseURL 地图搜索入口
const DefaultSearchBaseURL = "https://www.google.com/maps/search/"

// QueryTerms 搜索词
type QueryTerms struct {
	Category string `mapstructure:"category" json:"category"`
	Region   string `mapstructure:"region" json:"region"`
	Country  string `mapstructure:"country" json:"country"`
}

// String 组合为 "<类别> <地区> <国家>"
func (q QueryTerms) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{q.Category, q.Region, q.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Empty 是否没有任何搜索词
func (q QueryTerms) Empty() bool {
	return q.String() == ""
}

// SearchURL 生成搜索页地址
func (q QueryTerms) SearchURL(baseURL, language string) string {
	if baseURL == "" {
		baseURL = DefaultSearchBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u := baseURL + strings.ReplaceAll(url.PathEscape(q.String()), "%20", "+")
	if language != "" {
		u += "?hl=" + url.QueryEscape(language)
	}
	return u
}

// ParseQueryLine 解析批量文件中的一行: "类别|地区|国家"
func ParseQueryLine(line string) (QueryTerms, error) {
	parts := strings.Split(line, "|")
	if len(parts) > 3 {
		return QueryTerms{}, fmt.Errorf("搜索词格式错误,应为 '类别|地区|国家': %s", line)
	}
	var q QueryTerms
	for i, p := range parts {
		p = strings.TrimSpace(p)
		switch i {
		case 0:
			q.Category = p
		case 1:
			q.Region = p
		case 2:
			q.Country = p
		}
	}
	if q.Empty() {
		return QueryTerms{}, fmt.Errorf("搜索词为空")
	}
	return q, nil
}

// ScrollConfig 滚动收敛参数
type ScrollConfig struct {
	StableThreshold int           `mapstructure:"stable_threshold" json:"stable_threshold"` // 连续无变化次数阈值 (默认:50)
	MaxProbes       int           `mapstructure:"max_probes" json:"max_probes"`             // 总探测次数上限
	DeltaY          int           `mapstructure:"delta_y" json:"delta_y"`                   // 每次滚动距离, 0 表示一个视口高度
	PauseMin        time.Duration `mapstructure:"pause_min" json:"pause_min"`
	PauseMax        time.Duration `mapstructure:"pause_max" json:"pause_max"`
}

// ExtractConfig 详情提取参数
type ExtractConfig struct {
	ClickRetries    int           `mapstructure:"click_retries" json:"click_retries"` // 每种点击策略的尝试次数 (默认:3)
	ClickRetryDelay time.Duration `mapstructure:"click_retry_delay" json:"click_retry_delay"`
	ClickTimeout    time.Duration `mapstructure:"click_timeout" json:"click_timeout"`
	SettleMin       time.Duration `mapstructure:"settle_min" json:"settle_min"` // 点击后等待详情渲染
	SettleMax       time.Duration `mapstructure:"settle_max" json:"settle_max"`
	ReturnWait      time.Duration `mapstructure:"return_wait" json:"return_wait"` // 回到搜索页后的等待
	ValidatePhone   bool          `mapstructure:"validate_phone" json:"validate_phone"`
	PhoneRegion     string        `mapstructure:"phone_region" json:"phone_region"`
}

// HarvestConfig 邮箱采集参数
type HarvestConfig struct {
	Mode     HarvestMode   `mapstructure:"mode" json:"mode"`
	Paths    []string      `mapstructure:"paths" json:"paths"`       // 猜测的联系页路径
	Timeout  time.Duration `mapstructure:"timeout" json:"timeout"`   // 单页超时
	Interval time.Duration `mapstructure:"interval" json:"interval"` // 子页面之间的最小间隔
	// Exclude 包含任一片段的邮箱被丢弃,为空时保留所有匹配
	Exclude []string `mapstructure:"exclude" json:"exclude,omitempty"`
}

// DedupeConfig 去重参数
type DedupeConfig struct {
	Key    string       `mapstructure:"key" json:"key"` // 如 "name+website"
	Policy DedupePolicy `mapstructure:"policy" json:"policy"`
}

// RunConfig 单次运行的不可变配置
// 由调用方持有,引擎只读
type RunConfig struct {
	Query         QueryTerms `mapstructure:"query" json:"query"`
	SearchBaseURL string     `mapstructure:"search_base_url" json:"search_base_url"`
	Language      string     `mapstructure:"language" json:"language"`

	// 浏览器会话
	Proxy       string   `mapstructure:"proxy" json:"proxy,omitempty"`
	UserAgents  []string `mapstructure:"user_agents" json:"-"`
	UserDataDir string   `mapstructure:"user_data_dir" json:"user_data_dir,omitempty"`
	Headless    bool     `mapstructure:"headless" json:"headless"`
	Stealth     bool     `mapstructure:"stealth" json:"stealth"`
	BrowserBin  string   `mapstructure:"browser_bin" json:"browser_bin,omitempty"`

	// 导航
	NavigateTimeout time.Duration `mapstructure:"navigate_timeout" json:"navigate_timeout"`
	NavigateRetries int           `mapstructure:"navigate_retries" json:"navigate_retries"`
	LaunchRetries   int           `mapstructure:"launch_retries" json:"launch_retries"`
	InitialWait     time.Duration `mapstructure:"initial_wait" json:"initial_wait"`
	PausePoll       time.Duration `mapstructure:"pause_poll" json:"pause_poll"`

	Scroll    ScrollConfig   `mapstructure:"scroll" json:"scroll"`
	Extract   ExtractConfig  `mapstructure:"extract" json:"extract"`
	Harvest   HarvestConfig  `mapstructure:"harvest" json:"harvest"`
	Dedupe    DedupeConfig   `mapstructure:"dedupe" json:"dedupe"`
	Selectors SelectorConfig `mapstructure:"selectors" json:"-"`

	// 断点续跑
	StartIndex    int `mapstructure:"start_index" json:"start_index"`
	SnapshotEvery int `mapstructure:"snapshot_every" json:"snapshot_every"`
}

// DefaultUserAgents 默认轮换的User-Agent
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.3 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/113.0.0.0 Safari/537.36",
}

// DefaultHarvestPaths 默认猜测的联系页路径
var DefaultHarvestPaths = []string{"contact", "about", "contact-us", "about-us", "contactus"}

// SuggestedEmailExclude 常见的误匹配片段(图片文件名、占位地址、退信地址),需显式配置
var SuggestedEmailExclude = []string{
	"example.com", "sentry.io", "wixpress.com", "noreply", "no-reply",
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp",
}

// DefaultRunConfig 默认运行配置
func DefaultRunConfig() RunConfig {
	return RunConfig{
		SearchBaseURL:   DefaultSearchBaseURL,
		Language:        "en",
		UserAgents:      append([]string(nil), DefaultUserAgents...),
		Headless:        false,
		Stealth:         true,
		NavigateTimeout: 30 * time.Second,
		NavigateRetries: 3,
		LaunchRetries:   3,
		InitialWait:     5 * time.Second,
		PausePoll:       time.Second,
		Scroll: ScrollConfig{
			StableThreshold: 50,
			MaxProbes:       500,
			PauseMin:        time.Second,
			PauseMax:        2 * time.Second,
		},
		Extract: ExtractConfig{
			ClickRetries:    3,
			ClickRetryDelay: 2 * time.Second,
			ClickTimeout:    5 * time.Second,
			SettleMin:       3 * time.Second,
			SettleMax:       5 * time.Second,
			ReturnWait:      3 * time.Second,
			ValidatePhone:   true,
			PhoneRegion:     "US",
		},
		Harvest: HarvestConfig{
			Mode:     HarvestBrowser,
			Paths:    append([]string(nil), DefaultHarvestPaths...),
			Timeout:  15 * time.Second,
			Interval: 2 * time.Second,
		},
		Dedupe: DedupeConfig{
			Key:    KeyNameWebsite.String(),
			Policy: PolicyLastWriteWins,
		},
		Selectors:     DefaultSelectorConfig(),
		SnapshotEvery: 10,
	}
}

// Validate 验证配置
func (c *RunConfig) Validate() error {
	if c.Query.Empty() {
		return fmt.Errorf("搜索词不能为空")
	}
	if c.Proxy != "" {
		if _, err := url.Parse(c.Proxy); err != nil {
			return fmt.Errorf("代理地址无效: %w", err)
		}
	}
	if c.Scroll.StableThreshold < 1 || c.Scroll.StableThreshold > 1000 {
		return fmt.Errorf("稳定阈值必须在1-1000之间")
	}
	if c.Scroll.MaxProbes < c.Scroll.StableThreshold {
		return fmt.Errorf("滚动探测上限(%d)不能小于稳定阈值(%d)", c.Scroll.MaxProbes, c.Scroll.StableThreshold)
	}
	if c.Scroll.PauseMin < 0 || c.Scroll.PauseMax < c.Scroll.PauseMin {
		return fmt.Errorf("滚动间隔范围无效: %v-%v", c.Scroll.PauseMin, c.Scroll.PauseMax)
	}
	if c.Extract.ClickRetries < 1 || c.Extract.ClickRetries > 10 {
		return fmt.Errorf("点击重试次数必须在1-10之间")
	}
	if c.Extract.SettleMin < 0 || c.Extract.SettleMax < c.Extract.SettleMin {
		return fmt.Errorf("详情等待范围无效: %v-%v", c.Extract.SettleMin, c.Extract.SettleMax)
	}
	switch c.Harvest.Mode {
	case HarvestBrowser, HarvestHTTP, HarvestOff:
	default:
		return fmt.Errorf("无效的邮箱采集模式: %s (有效值: browser, http, off)", c.Harvest.Mode)
	}
	if _, err := ParseIdentityKey(c.Dedupe.Key); err != nil {
		return err
	}
	switch c.Dedupe.Policy {
	case PolicyLastWriteWins, PolicyFirstWriteWins, PolicyMergeEmails:
	default:
		return fmt.Errorf("无效的去重策略: %s", c.Dedupe.Policy)
	}
	if c.StartIndex < 0 {
		return fmt.Errorf("起始位置不能为负数")
	}
	return c.Selectors.Validate()
}

// RunStats 运行统计
type RunStats struct {
	Discovered int     `json:"discovered"` // 滚动收敛后发现的条目数
	Processed  int     `json:"processed"`  // 已处理条目数
	Extracted  int     `json:"extracted"`  // 成功生成记录数
	Skipped    int     `json:"skipped"`    // 聚焦失败跳过数
	Failed     int     `json:"failed"`     // 出现异常的条目数
	Emails     int     `json:"emails"`     // 采集到的邮箱总数
	Records    int     `json:"records"`    // 去重后的记录数
	Duration   float64 `json:"duration"`   // 总耗时(秒)
}

// Progress 进度事件
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message,omitempty"` // 日志行
}
