package core

import (
	"context"
	"fmt"
	"time"

	"github.com/RecoveryAshes/MapsHarvest/internal/models"
	"github.com/RecoveryAshes/MapsHarvest/internal/utils"
)

// BatchRunner 依次对多个搜索词执行运行
type BatchRunner struct {
	engine        *Engine
	base          models.RunConfig
	batchDelay    time.Duration
	continueOnErr bool
}

// BatchResult 单个搜索词的运行结果
type BatchResult struct {
	Query       models.QueryTerms
	Success     bool
	Error       error
	Report      *models.RunReport
	ProcessedAt time.Time
	Duration    float64
}

// BatchSummary 批量运行摘要
type BatchSummary struct {
	TotalQueries  int
	SuccessCount  int
	FailCount     int
	TotalRecords  int
	TotalEmails   int
	TotalDuration float64
	Results       []BatchResult
}

// NewBatchRunner 创建批量运行器, base 中的搜索词会被逐个替换
func NewBatchRunner(engine *Engine, base models.RunConfig, batchDelay time.Duration, continueOnErr bool) *BatchRunner {
	return &BatchRunner{
		engine:        engine,
		base:          base,
		batchDelay:    batchDelay,
		continueOnErr: continueOnErr,
	}
}

// RunBatch 批量执行搜索词列表
// ctx 取消或运行被停止时不再开始新的搜索词
func (br *BatchRunner) RunBatch(ctx context.Context, queries []models.QueryTerms) (*BatchSummary, error) {
	utils.Infof("🚀 开始批量运行: %d个搜索词", len(queries))

	summary := &BatchSummary{
		TotalQueries: len(queries),
		Results:      make([]BatchResult, 0, len(queries)),
	}

	startTime := time.Now()
	sleep := br.engine.sleep

	for i, query := range queries {
		if err := ctx.Err(); err != nil {
			utils.Warn("批量运行被取消")
			break
		}

		utils.Infof("==================== [%d/%d] ====================", i+1, len(queries))
		utils.Infof("搜索词: %s", query)

		result := br.runSingle(ctx, query)
		summary.Results = append(summary.Results, result)

		if result.Success {
			summary.SuccessCount++
			summary.TotalRecords += result.Report.Stats.Records
			summary.TotalEmails += result.Report.Stats.Emails
		} else {
			summary.FailCount++
			utils.Errorf("❌ 运行失败: %v", result.Error)

			if !br.continueOnErr {
				utils.Warn("批量运行中止 (--continue-on-error=false)")
				break
			}
		}

		if result.Report != nil && result.Report.Status == models.RunStatusStopped {
			utils.Warn("运行已被停止,跳过剩余搜索词")
			break
		}

		if i < len(queries)-1 && br.batchDelay > 0 {
			utils.Debugf("等待 %.0f 秒后处理下一个搜索词...", br.batchDelay.Seconds())
			if err := sleep(ctx, br.batchDelay); err != nil {
				break
			}
		}
	}

	summary.TotalDuration = time.Since(startTime).Seconds()
	br.printSummary(summary)

	return summary, nil
}

// runSingle 执行单个搜索词
func (br *BatchRunner) runSingle(ctx context.Context, query models.QueryTerms) BatchResult {
	result := BatchResult{
		Query:       query,
		ProcessedAt: time.Now(),
	}
	startTime := time.Now()

	cfg := br.base
	cfg.Query = query
	cfg.StartIndex = 0

	report, err := br.engine.StartRun(ctx, cfg)
	result.Report = report
	result.Duration = time.Since(startTime).Seconds()
	if err != nil {
		result.Error = fmt.Errorf("运行失败: %w", err)
		return result
	}

	result.Success = true
	return result
}

// printSummary 打印批量运行摘要
func (br *BatchRunner) printSummary(summary *BatchSummary) {
	utils.Info("==================================================")
	utils.Info("📊 批量运行摘要")
	utils.Info("==================================================")
	utils.Infof("总搜索词数: %d", summary.TotalQueries)
	utils.Infof("✅ 成功: %d", summary.SuccessCount)
	utils.Infof("❌ 失败: %d", summary.FailCount)
	utils.Infof("📇 总记录数: %d", summary.TotalRecords)
	utils.Infof("📧 总邮箱数: %d", summary.TotalEmails)
	utils.Infof("⏱️  总耗时: %.2f秒", summary.TotalDuration)
	utils.Info("==================================================")

	if summary.FailCount > 0 {
		utils.Warn("失败的搜索词:")
		for _, result := range summary.Results {
			if !result.Success {
				utils.Warnf("  - %s: %v", result.Query, result.Error)
			}
		}
	}
}
