package crawlers

import (
	"context"
	"time"

	"github.com/RecoveryAshes/MapsHarvest/internal/models"
	"github.com/RecoveryAshes/MapsHarvest/internal/utils"
	"github.com/rs/zerolog/log"
)

// SleepFunc 可被取消的等待
type SleepFunc func(ctx context.Context, d time.Duration) error

// Stabilizer 滚动结果列表直到条目数量和列表高度不再变化
type Stabilizer struct {
	browser     Browser
	resolver    *Resolver
	cfg         models.ScrollConfig
	itemLocator string
	showMore    models.SelectorChain

	sleep SleepFunc
}

// NewStabilizer 创建滚动收敛器
func NewStabilizer(b Browser, cfg models.ScrollConfig, itemLocator string, showMore models.SelectorChain) *Stabilizer {
	return &Stabilizer{
		browser:     b,
		resolver:    NewResolver(b),
		cfg:         cfg,
		itemLocator: itemLocator,
		showMore:    showMore,
		sleep:       utils.SleepContext,
	}
}

// Stabilize 返回收敛后的条目数量
// 连续 StableThreshold 次探测无变化,或探测次数达到 MaxProbes 时结束
func (s *Stabilizer) Stabilize(ctx context.Context) (int, error) {
	return s.converge(ctx, 0)
}

// Reach 重新打开搜索页后滚动到至少 want 个条目
// 列表提前稳定时返回实际数量
func (s *Stabilizer) Reach(ctx context.Context, want int) (int, error) {
	return s.converge(ctx, want)
}

func (s *Stabilizer) converge(ctx context.Context, want int) (int, error) {
	count, extent, err := s.browser.Measure(ctx, s.itemLocator)
	if err != nil {
		return 0, classify(ErrNavigation, err)
	}

	if want > 0 && count >= want {
		return count, nil
	}

	stable := 0
	for probe := 1; probe <= s.cfg.MaxProbes; probe++ {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		if err := s.browser.ScrollBy(ctx, s.cfg.DeltaY); err != nil {
			log.Debug().Err(err).Int("probe", probe).Msg("滚动失败")
		}
		s.clickShowMore(ctx)

		if err := s.sleep(ctx, utils.RandomDuration(s.cfg.PauseMin, s.cfg.PauseMax)); err != nil {
			return count, err
		}

		c, e, err := s.browser.Measure(ctx, s.itemLocator)
		if err != nil {
			log.Debug().Err(err).Int("probe", probe).Msg("测量失败,按无变化处理")
			c, e = count, extent
		}

		if c == count && e == extent {
			stable++
			if stable >= s.cfg.StableThreshold {
				utils.Infof("列表已稳定: %d 个条目 (探测%d次)", count, probe)
				return count, nil
			}
			continue
		}

		utils.Debugf("列表增长: %d -> %d 个条目", count, c)
		stable = 0
		count, extent = c, e
		if want > 0 && count >= want {
			return count, nil
		}
	}

	utils.Warnf("达到滚动探测上限(%d次),当前 %d 个条目", s.cfg.MaxProbes, count)
	return count, nil
}

// clickShowMore 存在"显示更多"按钮时点击,不存在时什么也不做
func (s *Stabilizer) clickShowMore(ctx context.Context) {
	if len(s.showMore) == 0 {
		return
	}
	btn := s.resolver.Exists(ctx, s.showMore)
	if btn == nil {
		return
	}
	if err := btn.Click(ctx, ClickDirect); err != nil {
		log.Debug().Err(err).Msg("点击显示更多失败")
	}
}
