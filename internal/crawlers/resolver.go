package crawlers

import (
	"context"
	"strings"

	"github.com/RecoveryAshes/MapsHarvest/internal/models"
	"github.com/rs/zerolog/log"
)

// ModeKind 解析方式
type ModeKind int

const (
	ModeKindExistence ModeKind = iota // 只需要元素存在
	ModeKindText                      // 读取文本,空白文本视为未命中
	ModeKindAttribute                 // 读取属性
)

// Mode 解析模式
type Mode struct {
	Kind ModeKind
	Attr string
}

var (
	ModeExistence = Mode{Kind: ModeKindExistence}
	ModeText      = Mode{Kind: ModeKindText}
)

// ModeAttribute 读取指定属性
func ModeAttribute(name string) Mode {
	return Mode{Kind: ModeKindAttribute, Attr: name}
}

// Resolution 解析结果
type Resolution struct {
	Element Element // 命中的元素,全部未命中时为nil
	Value   string  // 文本/属性值,全部未命中时为 models.Unknown
	Locator string  // 命中的定位器
}

// Found 是否命中
func (r Resolution) Found() bool {
	return r.Element != nil
}

// Resolver 按定位器链顺序解析字段
// 定位器报错或无匹配都视为未命中,本层不做重试
type Resolver struct {
	browser Browser
}

// NewResolver 创建解析器
func NewResolver(b Browser) *Resolver {
	return &Resolver{browser: b}
}

// Resolve 依次尝试定位器链,返回第一个命中
func (r *Resolver) Resolve(ctx context.Context, chain models.SelectorChain, mode Mode) Resolution {
	for _, locator := range chain.Valid() {
		el, err := r.browser.QueryOne(ctx, locator)
		if err != nil {
			log.Debug().Err(err).Str("locator", locator).Msg("定位器出错,尝试下一个")
			continue
		}
		if el == nil {
			continue
		}

		switch mode.Kind {
		case ModeKindExistence:
			return Resolution{Element: el, Locator: locator}
		case ModeKindText:
			text, err := el.Text(ctx)
			if err != nil {
				log.Debug().Err(err).Str("locator", locator).Msg("读取文本失败")
				continue
			}
			if text = strings.TrimSpace(text); text == "" {
				continue
			}
			return Resolution{Element: el, Value: text, Locator: locator}
		case ModeKindAttribute:
			v, ok, err := el.Attribute(ctx, mode.Attr)
			if err != nil || !ok {
				continue
			}
			if v = strings.TrimSpace(v); v == "" {
				continue
			}
			return Resolution{Element: el, Value: v, Locator: locator}
		}
	}

	if mode.Kind == ModeKindExistence {
		return Resolution{}
	}
	return Resolution{Value: models.Unknown}
}

// Text 文本模式的便捷方法
func (r *Resolver) Text(ctx context.Context, chain models.SelectorChain) string {
	return r.Resolve(ctx, chain, ModeText).Value
}

// Attribute 属性模式的便捷方法
func (r *Resolver) Attribute(ctx context.Context, chain models.SelectorChain, name string) string {
	return r.Resolve(ctx, chain, ModeAttribute(name)).Value
}

// Exists 存在模式的便捷方法
func (r *Resolver) Exists(ctx context.Context, chain models.SelectorChain) Element {
	return r.Resolve(ctx, chain, ModeExistence).Element
}
