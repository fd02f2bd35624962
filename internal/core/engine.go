package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RecoveryAshes/MapsHarvest/internal/crawlers"
	"github.com/RecoveryAshes/MapsHarvest/internal/models"
	"github.com/RecoveryAshes/MapsHarvest/internal/utils"
)

// ErrRunActive 已有运行持有浏览器会话
var ErrRunActive = errors.New("已有运行中的任务")

const (
	// launchRetryDelay 浏览器启动失败后的重试间隔
	launchRetryDelay = 2 * time.Second

	defaultMonitorInterval = 30 * time.Second
)

// SessionFactory 启动浏览器会话
type SessionFactory func(opts crawlers.SessionOptions) (crawlers.Browser, error)

// RodSessionFactory 使用go-rod启动真实浏览器
func RodSessionFactory(opts crawlers.SessionOptions) (crawlers.Browser, error) {
	s, err := crawlers.LaunchSession(opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// RecordExporter 接收去重后的记录并写出,返回生成的文件
type RecordExporter interface {
	Export(name string, records []models.Record) ([]string, error)
}

// EngineOptions 引擎依赖
type EngineOptions struct {
	// OutputDir 报告和快照目录,为空时不写文件
	OutputDir string

	Headers    models.HeaderProvider
	Exporter   RecordExporter
	Monitor    *crawlers.ResourceMonitor
	Metrics    *Metrics
	NewSession SessionFactory

	// OnProgress 进度和日志事件,在运行goroutine中同步调用
	OnProgress func(models.Progress)
}

// RunResult 异步运行的结果
type RunResult struct {
	Report *models.RunReport
	Err    error
}

// RunOption 单次运行的可选参数
type RunOption func(*runOptions)

type runOptions struct {
	snapshot *models.Snapshot
}

// WithSnapshot 从快照恢复已采集的记录和进度
func WithSnapshot(s *models.Snapshot) RunOption {
	return func(o *runOptions) {
		o.snapshot = s
	}
}

// SnapshotPath 搜索词对应的快照文件
func SnapshotPath(outputDir string, query models.QueryTerms) string {
	return filepath.Join(outputDir, "snapshots", models.SnapshotFilename(query.String()))
}

// LoadResumeSnapshot 读取可用于续跑的快照,不存在时返回 nil
func LoadResumeSnapshot(outputDir string, query models.QueryTerms) (*models.Snapshot, error) {
	path := SnapshotPath(outputDir, query)
	snap, err := models.LoadSnapshotFromFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("读取快照失败 [%s]: %w", path, err)
	}
	if snap.Query != query.String() {
		utils.Warnf("快照搜索词不匹配 (%q != %q),忽略", snap.Query, query.String())
		return nil, nil
	}
	return snap, nil
}

// RunView 当前运行状态
type RunView struct {
	RunID    string           `json:"run_id,omitempty"`
	Query    string           `json:"query,omitempty"`
	Status   models.RunStatus `json:"status"`
	Paused   bool             `json:"paused"`
	Progress models.Progress  `json:"progress"`
	Stats    models.RunStats  `json:"stats"`
	Error    string           `json:"error,omitempty"`
}

// Engine 提取引擎
// 同一时间只允许一个运行持有浏览器会话
type Engine struct {
	opts EngineOptions
	gate *PauseController

	runMu  sync.Mutex
	active atomic.Bool

	mu      sync.RWMutex
	current *Session

	sleep crawlers.SleepFunc
}

// NewEngine 创建引擎
func NewEngine(opts EngineOptions) *Engine {
	if opts.NewSession == nil {
		opts.NewSession = RodSessionFactory
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	return &Engine{
		opts:  opts,
		gate:  NewPauseController(DefaultPausePoll),
		sleep: utils.SleepContext,
	}
}

// StartRun 执行一次完整运行并等待结束
func (e *Engine) StartRun(ctx context.Context, cfg models.RunConfig, opts ...RunOption) (*models.RunReport, error) {
	done, err := e.StartRunAsync(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	res := <-done
	return res.Report, res.Err
}

// StartRunAsync 获取运行锁后在后台执行,已有运行时返回 ErrRunActive
func (e *Engine) StartRunAsync(ctx context.Context, cfg models.RunConfig, opts ...RunOption) (<-chan RunResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("运行配置无效: %w", err)
	}
	if !e.runMu.TryLock() {
		return nil, ErrRunActive
	}
	e.active.Store(true)

	var ro runOptions
	for _, opt := range opts {
		opt(&ro)
	}

	e.gate.Reset()
	e.gate.SetPoll(cfg.PausePoll)

	s := newSession(e, cfg, ro.snapshot)
	e.mu.Lock()
	e.current = s
	e.mu.Unlock()

	done := make(chan RunResult, 1)
	go func() {
		report, err := s.run(ctx)
		e.active.Store(false)
		e.runMu.Unlock()

		done <- RunResult{Report: report, Err: err}
		close(done)
	}()
	return done, nil
}

// Active 是否有运行正在进行
func (e *Engine) Active() bool {
	return e.active.Load()
}

// SetPaused 设置或清除暂停,在下一个条目开始前生效
func (e *Engine) SetPaused(paused bool) {
	e.gate.SetPaused(paused)
	if paused {
		utils.Info("已暂停,当前条目完成后生效")
	} else {
		utils.Info("已恢复")
	}
}

// Paused 是否处于暂停
func (e *Engine) Paused() bool {
	return e.gate.Paused()
}

// RequestStop 请求在下一个条目之前结束运行,已采集的记录仍会导出
func (e *Engine) RequestStop() {
	e.gate.RequestStop()
	utils.Info("已请求停止,当前条目完成后结束")
}

// CurrentRecords 当前(或最近一次)运行的去重记录,运行中也可调用
func (e *Engine) CurrentRecords() []models.Record {
	e.mu.RLock()
	s := e.current
	e.mu.RUnlock()
	if s == nil {
		return []models.Record{}
	}
	return s.sink.Records()
}

// View 当前(或最近一次)运行的状态
func (e *Engine) View() RunView {
	e.mu.RLock()
	s := e.current
	e.mu.RUnlock()
	if s == nil {
		return RunView{Status: models.RunStatusPending, Paused: e.gate.Paused()}
	}
	v := s.view()
	v.Paused = e.gate.Paused()
	return v
}

// Metrics 运行指标
func (e *Engine) Metrics() *Metrics {
	return e.opts.Metrics
}

// launch 启动浏览器,失败时按 LaunchRetries 重试
func (e *Engine) launch(ctx context.Context, cfg models.RunConfig, opts crawlers.SessionOptions) (crawlers.Browser, error) {
	var lastErr error
	for retry := 0; retry <= cfg.LaunchRetries; retry++ {
		if retry > 0 {
			utils.Warnf("浏览器启动失败,第%d次重试...", retry)
			if err := e.sleep(ctx, launchRetryDelay); err != nil {
				return nil, err
			}
		}

		b, err := e.opts.NewSession(opts)
		if err == nil {
			if retry > 0 {
				utils.Infof("浏览器启动成功(第%d次重试)", retry)
			}
			return b, nil
		}
		lastErr = err
		utils.Warnf("浏览器启动失败: %v", err)
	}

	if errors.Is(lastErr, crawlers.ErrSessionLaunch) {
		return nil, fmt.Errorf("重试%d次后仍失败: %w", cfg.LaunchRetries, lastErr)
	}
	return nil, fmt.Errorf("%w: 重试%d次后仍失败: %v", crawlers.ErrSessionLaunch, cfg.LaunchRetries, lastErr)
}
