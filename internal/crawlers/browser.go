package crawlers

import (
	"context"
	"errors"
	"time"
)

// 错误类型定义
var (
	// ErrInteraction 点击/聚焦失败,条目将被跳过
	ErrInteraction = errors.New("交互失败")
	// ErrNavigation 页面导航失败
	ErrNavigation = errors.New("导航失败")
	// ErrTimeout 操作超时
	ErrTimeout = errors.New("操作超时")
	// ErrSessionLaunch 浏览器无法启动,整个运行失败
	ErrSessionLaunch = errors.New("浏览器会话启动失败")
)

// ClickMode 点击策略
type ClickMode string

const (
	ClickDirect     ClickMode = "direct"     // 普通点击,等待元素可交互
	ClickForced     ClickMode = "forced"     // 跳过可交互检查,直接触发click事件
	ClickCoordinate ClickMode = "coordinate" // 在元素包围盒中心点击鼠标
)

// Element 页面元素句柄
// 句柄只在下一次导航或重新查询之前有效,不应跨导航缓存
type Element interface {
	Text(ctx context.Context) (string, error)
	// Attribute 返回属性值,属性不存在时 ok 为 false
	Attribute(ctx context.Context, name string) (value string, ok bool, err error)
	Click(ctx context.Context, mode ClickMode) error
	ScrollIntoView(ctx context.Context) error
}

// Browser 浏览器会话能力
// 所有调用都是阻塞的,同一时间只由一个worker使用
type Browser interface {
	// Navigate 导航并等待加载,失败返回包装后的 ErrNavigation 或 ErrTimeout
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// QueryAll 按文档顺序返回所有匹配元素(可能为空)
	QueryAll(ctx context.Context, locator string) ([]Element, error)
	// QueryOne 返回第一个匹配元素,没有匹配时返回 nil
	QueryOne(ctx context.Context, locator string) (Element, error)
	// ScrollBy 垂直滚动,dy<=0 时滚动一个视口高度
	ScrollBy(ctx context.Context, dy int) error
	// Measure 返回条目数量和内容高度
	Measure(ctx context.Context, itemLocator string) (count int, extent int, err error)
	// CurrentMarkup 返回当前渲染后的页面HTML
	CurrentMarkup(ctx context.Context) (string, error)
	Close() error
}
