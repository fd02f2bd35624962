package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RecoveryAshes/MapsHarvest/internal/core"
	"github.com/RecoveryAshes/MapsHarvest/internal/crawlers"
	"github.com/RecoveryAshes/MapsHarvest/internal/export"
	"github.com/RecoveryAshes/MapsHarvest/internal/models"
	"github.com/RecoveryAshes/MapsHarvest/internal/utils"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "对一个搜索词执行提取",
	RunE: func(cmd *cobra.Command, args []string) error {
		query := appConfig.Query()
		if query.Empty() {
			return fmt.Errorf("请通过 --category/--region/--country 或配置文件 search 指定搜索词")
		}

		ctx, stop := signalContext()
		defer stop()

		if appConfig.Schedule.Interval > 0 {
			return runScheduled(ctx, query)
		}

		var opts []core.RunOption
		if resume {
			snap, err := core.LoadResumeSnapshot(appConfig.Export.Dir, query)
			if err != nil {
				return err
			}
			if snap != nil {
				opts = append(opts, core.WithSnapshot(snap))
			} else {
				utils.Info("没有可用的快照,从头开始")
			}
		}

		report, err := runWithProgress(ctx, appConfig.RunConfig(query), opts...)
		if report != nil {
			printReport(report)
		}
		if err != nil {
			return fmt.Errorf("运行失败: %w", err)
		}
		utils.Info("✨ 提取任务完成!")
		return nil
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "从文件读取多个搜索词依次执行",
	RunE: func(cmd *cobra.Command, args []string) error {
		queries, err := utils.ReadQueriesFromFile(queryFile)
		if err != nil {
			return fmt.Errorf("读取搜索词文件失败: %w", err)
		}
		if err := ValidateBatchDelay(batchDelay); err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		engine, err := newEngine(nil)
		if err != nil {
			return err
		}

		runner := core.NewBatchRunner(engine, appConfig.RunConfig(models.QueryTerms{}),
			time.Duration(batchDelay)*time.Second, continueOnError)
		if _, err := runner.RunBatch(ctx, queries); err != nil {
			return fmt.Errorf("批量运行失败: %w", err)
		}

		utils.Info("✨ 批量运行完成!")
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动HTTP控制接口",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ValidateListenAddr(appConfig.Server.Addr); err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		engine, err := newEngine(nil)
		if err != nil {
			return err
		}

		srv := core.NewControlServer(engine, core.ControlOptions{
			RunConfig:    appConfig.RunConfig,
			DefaultQuery: appConfig.Query(),
			Token:        appConfig.Server.Token,
			OnResult: func(report *models.RunReport, err error) {
				if report != nil {
					printReport(report)
				}
			},
		})

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return srv.Serve(gctx, appConfig.Server.Addr)
		})
		if appConfig.Schedule.Interval > 0 {
			g.Go(func() error {
				return ignoreCanceled(scheduler(engine, appConfig.Query()).Run(gctx))
			})
		}
		return g.Wait()
	},
}

// applyFlags 用显式指定的命令行参数覆盖配置
func applyFlags(cmd *cobra.Command, cfg *core.Config) error {
	changed := cmd.Flags().Changed

	if changed("category") {
		cfg.Search.Category = category
	}
	if changed("region") {
		cfg.Search.Region = region
	}
	if changed("country") {
		cfg.Search.Country = country
	}
	if changed("headless") {
		cfg.Browser.Headless = headless
	}
	if changed("proxy") {
		cfg.Browser.Proxy = proxy
	}
	if changed("user-data-dir") {
		cfg.Browser.UserDataDir = userDataDir
	}
	if changed("header-file") {
		cfg.Browser.HeaderFile = headerFile
	}
	if changed("stable-threshold") {
		cfg.Scroll.StableThreshold = stableThreshold
	}
	if changed("max-probes") {
		cfg.Scroll.MaxProbes = maxProbes
	}
	if changed("harvest") {
		cfg.Harvest.Mode = models.HarvestMode(harvestMode)
	}
	if changed("dedupe-key") {
		cfg.Dedupe.Key = dedupeKey
	}
	if changed("dedupe-policy") {
		cfg.Dedupe.Policy = models.DedupePolicy(dedupePolicy)
	}
	if changed("output") {
		cfg.Export.Dir = outputDir
	}
	if changed("format") {
		cfg.Export.Formats = formats
	}
	if changed("filename") {
		cfg.Export.Filename = filename
	}
	if changed("name-contains") {
		cfg.Export.NameContains = nameContains
	}
	if changed("phone-prefix") {
		cfg.Export.PhonePrefix = phonePrefix
	}
	if changed("interval") {
		d, err := ParseInterval(interval)
		if err != nil {
			return err
		}
		cfg.Schedule.Interval = d
	}
	if changed("addr") {
		cfg.Server.Addr = serverAddr
	}
	if changed("token") {
		cfg.Server.Token = serverToken
	}

	return ValidateConfig(cfg)
}

// newEngine 按配置组装引擎
func newEngine(onProgress func(models.Progress)) (*core.Engine, error) {
	headerManager, err := core.NewHeaderManager(appConfig.Browser.HeaderFile, headers)
	if err != nil {
		return nil, fmt.Errorf("创建HTTP头部管理器失败: %w", err)
	}

	key, err := models.ParseIdentityKey(appConfig.Dedupe.Key)
	if err != nil {
		return nil, err
	}
	exporter, err := export.NewExporter(export.Options{
		Dir:       appConfig.Export.Dir,
		Formats:   appConfig.Export.Formats,
		Filename:  appConfig.Export.Filename,
		Timestamp: appConfig.Export.Timestamp,
		Filter: export.Filter{
			NameContains: appConfig.Export.NameContains,
			PhonePrefix:  appConfig.Export.PhonePrefix,
		},
		IdentityKey: key,
	})
	if err != nil {
		return nil, err
	}

	return core.NewEngine(core.EngineOptions{
		OutputDir:  appConfig.Export.Dir,
		Headers:    headerManager,
		Exporter:   exporter,
		Monitor:    crawlers.NewResourceMonitor(appConfig.ResourceMonitorConfig()),
		OnProgress: onProgress,
	}), nil
}

// runWithProgress 执行运行,同时在终端显示进度条
func runWithProgress(ctx context.Context, cfg models.RunConfig, opts ...core.RunOption) (*models.RunReport, error) {
	if noProgress {
		engine, err := newEngine(nil)
		if err != nil {
			return nil, err
		}
		return engine.StartRun(ctx, cfg, opts...)
	}

	events := make(chan models.Progress, 64)
	engine, err := newEngine(func(p models.Progress) {
		if p.Message == "" {
			events <- p
		}
	})
	if err != nil {
		return nil, err
	}

	var report *models.RunReport
	g := new(errgroup.Group)
	g.Go(func() error {
		defer close(events)
		r, err := engine.StartRun(ctx, cfg, opts...)
		report = r
		return err
	})
	g.Go(func() error {
		drainProgress(events)
		return nil
	})
	err = g.Wait()
	return report, err
}

// drainProgress 消费进度事件直到通道关闭
func drainProgress(events <-chan models.Progress) {
	var bar *progressbar.ProgressBar
	for p := range events {
		if p.Total <= 0 {
			continue
		}
		if bar == nil {
			bar = utils.NewProgressBar(p.Total, "提取商家")
		}
		_ = bar.Set(p.Current)
	}
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}
}

// runScheduled 按间隔重复运行直到收到中断信号
func runScheduled(ctx context.Context, query models.QueryTerms) error {
	engine, err := newEngine(nil)
	if err != nil {
		return err
	}
	return ignoreCanceled(scheduler(engine, query).Run(ctx))
}

func scheduler(engine *core.Engine, query models.QueryTerms) *core.Scheduler {
	s, _ := core.NewScheduler(engine, appConfig.Schedule.Interval, func() models.RunConfig {
		return appConfig.RunConfig(query)
	})
	s.OnResult = func(report *models.RunReport, err error) {
		if report != nil {
			printReport(report)
		}
	}
	return s
}

// runValidateConfig --validate-config
func runValidateConfig() error {
	utils.Info("🔍 验证配置...")

	headerManager, err := core.NewHeaderManager(appConfig.Browser.HeaderFile, headers)
	if err != nil {
		return err
	}
	if err := headerManager.LoadConfig(); err != nil {
		return fmt.Errorf("加载头部配置失败: %w", err)
	}
	if err := headerManager.Validate(); err != nil {
		return fmt.Errorf("头部配置验证失败: %w", err)
	}

	query := appConfig.Query()
	if query.Empty() {
		query = models.QueryTerms{Category: "placeholder"}
	}
	cfg := appConfig.RunConfig(query)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("运行配置验证失败: %w", err)
	}

	utils.Info("✅ 配置验证通过!")
	utils.Infof("当前有效的HTTP头部: %s", headerManager.SafeString())
	utils.Infof("去重: %s (%s), 邮箱采集: %s, 导出格式: %v",
		cfg.Dedupe.Key, cfg.Dedupe.Policy, cfg.Harvest.Mode, appConfig.Export.Formats)
	return nil
}

// printReport 打印运行统计
func printReport(report *models.RunReport) {
	stats := report.Stats
	fmt.Println("==================================================")
	fmt.Println("📊 运行统计")
	fmt.Println("==================================================")
	fmt.Printf("🔎 搜索词: %s\n", report.Query)
	fmt.Printf("📌 状态: %s\n", report.Status)
	fmt.Printf("✅ 发现条目: %d\n", stats.Discovered)
	fmt.Printf("✅ 成功提取: %d\n", stats.Extracted)
	fmt.Printf("⏭️  跳过条目: %d\n", stats.Skipped)
	fmt.Printf("❌ 失败条目: %d\n", stats.Failed)
	fmt.Printf("📇 去重后记录: %d\n", stats.Records)
	fmt.Printf("📧 邮箱: %d\n", stats.Emails)
	fmt.Printf("⏱️  总耗时: %.2f秒\n", report.Duration)
	for _, out := range report.Outputs {
		fmt.Printf("💾 %s\n", out)
	}
	fmt.Println("==================================================")
}

// signalContext Ctrl+C 时取消运行,已采集的记录仍会导出
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			utils.Warnf("收到中断信号: %v, 正在停止并导出已采集的记录...", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
