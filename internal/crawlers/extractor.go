package crawlers

import (
	"context"
	"fmt"

	"github.com/RecoveryAshes/MapsHarvest/internal/models"
	"github.com/RecoveryAshes/MapsHarvest/internal/utils"
	"github.com/rs/zerolog/log"
)

// DefaultClickStrategies 逐级升级的点击策略
var DefaultClickStrategies = []ClickMode{ClickDirect, ClickForced, ClickCoordinate}

// PhoneChecker 电话号码有效性检查
type PhoneChecker interface {
	Valid(phone string) bool
}

// ItemResult 单个条目的处理结果
type ItemResult struct {
	Index    int
	State    models.ItemState
	Strategy ClickMode      // 聚焦成功所用的策略
	Record   *models.Record // 仅在 State 为 Done 时非空
	Err      error
}

// Extractor 聚焦单个条目并提取详情字段
type Extractor struct {
	browser    Browser
	resolver   *Resolver
	cfg        models.ExtractConfig
	selectors  models.SelectorConfig
	strategies []ClickMode
	phone      PhoneChecker

	sleep SleepFunc
}

// NewExtractor 创建详情提取器,phone 为 nil 时不检查电话有效性
func NewExtractor(b Browser, cfg models.ExtractConfig, selectors models.SelectorConfig, phone PhoneChecker) *Extractor {
	return &Extractor{
		browser:    b,
		resolver:   NewResolver(b),
		cfg:        cfg,
		selectors:  selectors,
		strategies: DefaultClickStrategies,
		phone:      phone,
		sleep:      utils.SleepContext,
	}
}

// Extract 执行 Unfocused -> Focusing -> Extracting -> Done|Skipped
func (x *Extractor) Extract(ctx context.Context, index int, item Element) ItemResult {
	res := ItemResult{Index: index, State: models.ItemFocusing}

	mode, err := x.Focus(ctx, index, item)
	if err != nil {
		res.State = models.ItemSkipped
		res.Err = err
		return res
	}
	res.Strategy = mode

	// 详情面板异步渲染,没有可靠的完成信号
	if err := x.sleep(ctx, utils.RandomDuration(x.cfg.SettleMin, x.cfg.SettleMax)); err != nil {
		res.State = models.ItemFailed
		res.Err = err
		return res
	}

	res.State = models.ItemExtracting
	rec := x.extractFields(ctx, index)
	res.Record = &rec
	res.State = models.ItemDone
	return res
}

// Focus 依次尝试点击策略,每种策略最多重试 ClickRetries 次
func (x *Extractor) Focus(ctx context.Context, index int, item Element) (ClickMode, error) {
	if err := item.ScrollIntoView(ctx); err != nil {
		log.Debug().Err(err).Int("index", index).Msg("滚动到条目失败")
	}

	retries := x.cfg.ClickRetries
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for _, mode := range x.strategies {
		for attempt := 1; attempt <= retries; attempt++ {
			if lastErr = x.click(ctx, item, mode); lastErr == nil {
				if mode != ClickDirect {
					utils.Debugf("条目 %d 使用 %s 策略聚焦成功", index, mode)
				}
				return mode, nil
			}

			log.Warn().Err(lastErr).
				Int("index", index).
				Str("strategy", string(mode)).
				Int("attempt", attempt).
				Msg("点击条目失败")

			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if attempt < retries {
				if err := x.sleep(ctx, x.cfg.ClickRetryDelay); err != nil {
					return "", err
				}
			}
		}
	}

	return "", fmt.Errorf("%w: 条目 %d 所有点击策略均失败: %v", ErrInteraction, index, lastErr)
}

func (x *Extractor) click(ctx context.Context, item Element, mode ClickMode) error {
	if x.cfg.ClickTimeout <= 0 {
		return item.Click(ctx, mode)
	}
	clickCtx, cancel := context.WithTimeout(ctx, x.cfg.ClickTimeout)
	defer cancel()
	return item.Click(clickCtx, mode)
}

func (x *Extractor) extractFields(ctx context.Context, index int) models.Record {
	rec := models.Record{
		Index:   index,
		Name:    x.resolver.Text(ctx, x.selectors.Name),
		Address: x.resolver.Text(ctx, x.selectors.Address),
		Phone:   x.resolver.Text(ctx, x.selectors.Phone),
		Website: x.resolver.Attribute(ctx, x.selectors.Website, "href"),
		Emails:  models.NewEmailSet(),
	}

	for field, v := range map[string]string{"name": rec.Name, "address": rec.Address, "phone": rec.Phone, "website": rec.Website} {
		if v == models.Unknown {
			log.Debug().Int("index", index).Str("field", field).Msg("字段未解析到,使用占位值")
		}
	}

	websiteValid := rec.HasWebsite()
	rec.WebsiteValid = &websiteValid
	if x.phone != nil && x.cfg.ValidatePhone {
		phoneValid := rec.Phone != models.Unknown && x.phone.Valid(rec.Phone)
		rec.PhoneValid = &phoneValid
	}
	return rec
}

// WithStrategies 替换点击策略顺序
func (x *Extractor) WithStrategies(modes ...ClickMode) *Extractor {
	x.strategies = modes
	return x
}

