package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/RecoveryAshes/MapsHarvest/internal/crawlers"
	"github.com/RecoveryAshes/MapsHarvest/internal/models"
	"github.com/RecoveryAshes/MapsHarvest/internal/utils"
	"github.com/rs/zerolog/log"
)

// Session 单次运行的全部可变状态
// 浏览器会话和导航状态在运行期间只属于这一个worker
type Session struct {
	engine    *Engine
	cfg       models.RunConfig
	searchURL string
	sink      *RecordSink
	report    *models.RunReport
	start     int

	browser     crawlers.Browser
	sessionOpts crawlers.SessionOptions
	locator     string
	total       int
	stabilizer  *crawlers.Stabilizer
	extractor   *crawlers.Extractor
	harvester   *crawlers.Harvester

	mu            sync.RWMutex
	status        models.RunStatus
	stats         models.RunStats
	failures      []models.ItemFailure
	progress      models.Progress
	sinceSnapshot int
	runErr        error
}

func newSession(e *Engine, cfg models.RunConfig, snap *models.Snapshot) *Session {
	key, err := models.ParseIdentityKey(cfg.Dedupe.Key)
	if err != nil {
		key = models.KeyNameWebsite
	}

	s := &Session{
		engine:    e,
		cfg:       cfg,
		searchURL: cfg.Query.SearchURL(cfg.SearchBaseURL, cfg.Language),
		sink:      NewRecordSink(key, cfg.Dedupe.Policy),
		report:    models.NewRunReport(cfg),
		start:     cfg.StartIndex,
		status:    models.RunStatusPending,
	}

	if snap != nil {
		s.sink.Restore(snap.Records)
		if snap.NextIndex > s.start {
			s.start = snap.NextIndex
		}
		if snap.RunID != "" {
			s.report.RunID = snap.RunID
		}
		utils.Infof("从快照恢复: %d 条记录, 从第 %d 个条目继续", s.sink.Len(), s.start+1)
	}
	return s
}

// run 执行完整流程: 启动 → 打开搜索页 → 滚动收敛 → 逐个提取 → 导出
func (s *Session) run(ctx context.Context) (*models.RunReport, error) {
	e := s.engine
	s.setStatus(models.RunStatusRunning)
	e.opts.Metrics.runStarted()

	s.logf("开始运行: %s", s.cfg.Query)
	s.logf("搜索地址: %s", s.searchURL)

	err := s.execute(ctx)

	status := models.RunStatusCompleted
	switch {
	case err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		status = models.RunStatusStopped
		err = nil
	case err != nil:
		status = models.RunStatusFailed
	case e.gate.Stopped():
		status = models.RunStatusStopped
	}

	return s.finish(status, err), err
}

func (s *Session) execute(ctx context.Context) error {
	e := s.engine

	if e.opts.Monitor != nil {
		if err := e.opts.Monitor.Preflight(); err != nil {
			return err
		}
		e.opts.Monitor.StartMonitoring(defaultMonitorInterval)
		defer e.opts.Monitor.StopMonitoring()
	}

	headers := http.Header{}
	if e.opts.Headers != nil {
		h, err := e.opts.Headers.GetHeaders()
		if err != nil {
			return fmt.Errorf("加载请求头部失败: %w", err)
		}
		headers = h
	}
	s.sessionOpts = crawlers.SessionOptionsFromConfig(s.cfg, headers)

	b, err := e.launch(ctx, s.cfg, s.sessionOpts)
	if err != nil {
		return err
	}
	s.browser = b
	defer func() {
		if err := b.Close(); err != nil {
			utils.Warnf("关闭浏览器失败: %v", err)
		}
	}()

	if err := s.openSearch(ctx); err != nil {
		return fmt.Errorf("打开搜索页失败: %w", err)
	}

	locator, err := crawlers.DetectListingLocator(ctx, b, s.cfg.Selectors.Listing, s.cfg.Selectors.AutoDetect)
	if errors.Is(err, crawlers.ErrNoListing) {
		s.logf("搜索结果为空,没有可处理的条目")
		return nil
	}
	if err != nil {
		return fmt.Errorf("查找结果条目失败: %w", err)
	}
	s.locator = locator

	s.stabilizer = crawlers.NewStabilizer(b, s.cfg.Scroll, locator, s.cfg.Selectors.ShowMore)
	total, err := s.stabilizer.Stabilize(ctx)
	if err != nil {
		return fmt.Errorf("滚动加载结果失败: %w", err)
	}
	s.total = total
	s.updateStats(func(st *models.RunStats) { st.Discovered = total })
	e.opts.Metrics.discovered.Set(float64(total))
	s.logf("共发现 %d 个结果条目", total)

	if s.start >= total {
		s.logf("起始位置 %d 超出条目数量,无需处理", s.start)
		return nil
	}

	s.buildWorkers()

	it := crawlers.NewIterator(b, locator, e.gate, func(current, total int) {
		s.emit(current, total, "")
	}).OnItemError(s.recordFailure)

	next, err := it.Run(ctx, s.start, total, s.processItem)
	s.saveSnapshot(next)
	return err
}

// openSearch 打开搜索页,失败时按 NavigateRetries 重试
func (s *Session) openSearch(ctx context.Context) error {
	if err := s.navigateSearch(ctx); err != nil {
		return err
	}
	return s.engine.sleep(ctx, s.cfg.InitialWait)
}

func (s *Session) navigateSearch(ctx context.Context) error {
	var err error
	for attempt := 0; attempt <= s.cfg.NavigateRetries; attempt++ {
		if attempt > 0 {
			log.Warn().Err(err).Int("attempt", attempt).Msg("搜索页导航失败,重试")
		}
		if err = s.browser.Navigate(ctx, s.searchURL, s.cfg.NavigateTimeout); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}

// returnToSearch 重新发起搜索而不是浏览器后退,并滚动到下一个条目可见
func (s *Session) returnToSearch(ctx context.Context, next int) error {
	if err := s.navigateSearch(ctx); err != nil {
		return fmt.Errorf("返回搜索页失败: %w", err)
	}
	if err := s.engine.sleep(ctx, s.cfg.Extract.ReturnWait); err != nil {
		return err
	}
	if next < s.total {
		if _, err := s.stabilizer.Reach(ctx, next+1); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) buildWorkers() {
	var phone crawlers.PhoneChecker
	if s.cfg.Extract.ValidatePhone {
		phone = utils.NewPhoneValidator(s.cfg.Extract.PhoneRegion)
	}
	s.extractor = crawlers.NewExtractor(s.browser, s.cfg.Extract, s.cfg.Selectors, phone)

	switch s.cfg.Harvest.Mode {
	case models.HarvestBrowser:
		s.harvester = crawlers.NewHarvester(crawlers.NewBrowserFetcher(s.browser), s.cfg.Harvest)
	case models.HarvestHTTP:
		fetcher := crawlers.NewCollyFetcher(s.sessionOpts.UserAgent, s.engine.opts.Headers)
		s.harvester = crawlers.NewHarvester(fetcher, s.cfg.Harvest)
	}
}

// processItem 聚焦并提取一个条目,采集邮箱后写入记录集合
func (s *Session) processItem(ctx context.Context, index int, item crawlers.Element) error {
	res := s.extractor.Extract(ctx, index, item)
	s.engine.opts.Metrics.itemFinished(res.State)

	switch res.State {
	case models.ItemDone:
	case models.ItemSkipped:
		return res.Err
	default:
		// 已经点开详情,需要回到搜索页
		if err := s.returnToSearch(ctx, index+1); err != nil {
			log.Warn().Err(err).Int("index", index).Msg("返回搜索页失败")
		}
		return res.Err
	}

	rec := *res.Record
	rec.Query = s.cfg.Query.String()
	if s.harvester != nil && rec.HasWebsite() {
		found := s.harvester.Harvest(ctx, rec.Website)
		rec.Emails.Union(found)
		s.engine.opts.Metrics.emails.Add(float64(len(found)))
	}

	s.sink.Add(rec)
	s.updateStats(func(st *models.RunStats) {
		st.Processed++
		st.Extracted++
	})
	s.engine.opts.Metrics.records.Set(float64(s.sink.Len()))
	s.logf("[%d/%d] %s | %s | %s | 邮箱 %d 个", index+1, s.total, rec.Name, rec.Phone, rec.Website, len(rec.Emails))

	s.mu.Lock()
	s.sinceSnapshot++
	due := s.cfg.SnapshotEvery > 0 && s.sinceSnapshot >= s.cfg.SnapshotEvery
	if due {
		s.sinceSnapshot = 0
	}
	s.mu.Unlock()
	if due {
		s.saveSnapshot(index + 1)
	}

	if err := s.returnToSearch(ctx, index+1); err != nil {
		log.Warn().Err(err).Int("index", index).Msg("返回搜索页失败")
	}
	return nil
}

// recordFailure 记录失败条目,聚焦失败算作跳过
func (s *Session) recordFailure(index int, err error) {
	f := models.ItemFailure{Index: index, State: models.ItemFailed, ErrorType: "unknown", ErrorMsg: err.Error()}
	switch {
	case errors.Is(err, crawlers.ErrInteraction):
		f.State, f.ErrorType = models.ItemSkipped, "interaction"
	case errors.Is(err, crawlers.ErrItemPanic):
		f.ErrorType = "panic"
		s.engine.opts.Metrics.itemFinished(models.ItemFailed)
	case errors.Is(err, crawlers.ErrTimeout):
		f.ErrorType = "timeout"
	case errors.Is(err, crawlers.ErrNavigation):
		f.ErrorType = "navigation"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		f.ErrorType = "cancelled"
	}

	s.mu.Lock()
	s.failures = append(s.failures, f)
	s.stats.Processed++
	if f.State == models.ItemSkipped {
		s.stats.Skipped++
	} else {
		s.stats.Failed++
	}
	s.mu.Unlock()
}

func (s *Session) saveSnapshot(next int) {
	dir := s.engine.opts.OutputDir
	if dir == "" || s.cfg.SnapshotEvery <= 0 {
		return
	}
	path := SnapshotPath(dir, s.cfg.Query)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		utils.Warnf("创建快照目录失败: %v", err)
		return
	}

	snap := &models.Snapshot{
		RunID:     s.report.RunID,
		Query:     s.cfg.Query.String(),
		NextIndex: next,
		Total:     s.total,
		Records:   s.sink.Records(),
		Stats:     s.Stats(),
		CreatedAt: s.report.StartTime,
	}
	if err := snap.SaveToFile(path); err != nil {
		utils.Warnf("保存快照失败: %v", err)
		return
	}
	utils.Debugf("快照已保存: %s (下一个条目 %d)", path, next)
}

// finish 导出记录并生成报告,运行失败时同样导出已采集的记录
func (s *Session) finish(status models.RunStatus, runErr error) *models.RunReport {
	e := s.engine
	records := s.sink.Records()

	var outputs []string
	if e.opts.Exporter != nil && len(records) > 0 {
		files, err := e.opts.Exporter.Export(s.cfg.Query.String(), records)
		if err != nil {
			utils.Errorf("导出记录失败: %v", err)
		}
		outputs = files
	}

	if status == models.RunStatusCompleted && e.opts.OutputDir != "" {
		path := SnapshotPath(e.opts.OutputDir, s.cfg.Query)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			utils.Debugf("删除快照失败: %v", err)
		}
	}

	s.mu.Lock()
	s.status = status
	s.runErr = runErr
	s.stats.Records = len(records)
	s.stats.Emails = s.sink.EmailCount()
	report := s.report
	report.Stats = s.stats
	report.SkippedItems = append([]models.ItemFailure(nil), s.failures...)
	report.Outputs = outputs
	report.Finish(status, runErr)
	s.stats.Duration = report.Duration
	s.mu.Unlock()

	e.opts.Metrics.runFinished(status, report.Duration)

	if e.opts.OutputDir != "" {
		if _, err := utils.NewReporter(e.opts.OutputDir).GenerateReport(report); err != nil {
			utils.Warnf("生成报告失败: %v", err)
		}
	}

	if runErr != nil {
		utils.Errorf("运行失败: %v", runErr)
	}
	s.logf("运行结束 [%s]: 记录 %d 条, 跳过 %d, 失败 %d, 耗时 %.1f秒",
		status, report.Stats.Records, report.Stats.Skipped, report.Stats.Failed, report.Duration)
	return report
}

// logf 写日志并同步到进度事件
func (s *Session) logf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	utils.Info(msg)

	s.mu.RLock()
	current, total := s.progress.Current, s.progress.Total
	s.mu.RUnlock()
	s.emit(current, total, msg)
}

func (s *Session) emit(current, total int, msg string) {
	p := models.Progress{Current: current, Total: total, Message: msg}
	s.mu.Lock()
	s.progress.Current, s.progress.Total = current, total
	s.mu.Unlock()

	if cb := s.engine.opts.OnProgress; cb != nil {
		cb(p)
	}
}

func (s *Session) setStatus(status models.RunStatus) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

func (s *Session) updateStats(fn func(*models.RunStats)) {
	s.mu.Lock()
	fn(&s.stats)
	s.mu.Unlock()
}

// Stats 当前统计
func (s *Session) Stats() models.RunStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.stats
	st.Records = s.sink.Len()
	return st
}

func (s *Session) view() RunView {
	stats := s.Stats()
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := RunView{
		RunID:    s.report.RunID,
		Query:    s.cfg.Query.String(),
		Status:   s.status,
		Progress: s.progress,
		Stats:    stats,
	}
	if s.runErr != nil {
		v.Error = s.runErr.Error()
	}
	return v
}
