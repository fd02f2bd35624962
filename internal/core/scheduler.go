package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RecoveryAshes/MapsHarvest/internal/models"
	"github.com/RecoveryAshes/MapsHarvest/internal/utils"
)

// Scheduler 按固定间隔重复执行同一个运行
// 到点时若已有运行持有会话则跳过本次
type Scheduler struct {
	engine   *Engine
	interval time.Duration
	config   func() models.RunConfig

	// OnResult 每次运行结束后调用,被跳过的运行不会调用
	OnResult func(report *models.RunReport, err error)
}

// NewScheduler 创建定时器, config 在每次运行前调用以生成配置
func NewScheduler(engine *Engine, interval time.Duration, config func() models.RunConfig) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("定时间隔必须大于0: %v", interval)
	}
	if config == nil {
		return nil, fmt.Errorf("缺少运行配置")
	}
	return &Scheduler{
		engine:   engine,
		interval: interval,
		config:   config,
	}, nil
}

// Run 立即执行一次,之后每个间隔执行一次,直到ctx结束
func (s *Scheduler) Run(ctx context.Context) error {
	utils.Infof("⏰ 定时运行已启动,间隔: %v", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			utils.Info("定时运行已结束")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick 执行一次运行
func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	cfg := s.config()
	report, err := s.engine.StartRun(ctx, cfg)
	if errors.Is(err, ErrRunActive) {
		utils.Warnf("已有运行中的任务,跳过本次定时运行: %s", cfg.Query)
		return
	}
	if err != nil {
		utils.Errorf("定时运行失败: %v", err)
	} else {
		utils.Infof("定时运行完成: %s, %d条记录", cfg.Query, report.Stats.Records)
	}

	if s.OnResult != nil {
		s.OnResult(report, err)
	}
}
