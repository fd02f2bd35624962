package main

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/RecoveryAshes/MapsHarvest/internal/core"
	"github.com/RecoveryAshes/MapsHarvest/internal/export"
	"github.com/RecoveryAshes/MapsHarvest/internal/models"
	"github.com/RecoveryAshes/MapsHarvest/internal/utils"
)

// minInterval 定时运行的最小间隔
const minInterval = time.Minute

// ValidateConfig 验证命令行覆盖后的配置
// 范围检查在 RunConfig.Validate 中完成,这里只检查运行配置之外的部分
func ValidateConfig(cfg *core.Config) error {
	if err := utils.ValidateProxyURL(cfg.Browser.Proxy); err != nil {
		return err
	}
	if err := ValidateFormats(cfg.Export.Formats); err != nil {
		return err
	}
	if _, err := models.ParseIdentityKey(cfg.Dedupe.Key); err != nil {
		return fmt.Errorf("无效的去重身份键: %w", err)
	}

	switch cfg.Harvest.Mode {
	case models.HarvestBrowser, models.HarvestHTTP, models.HarvestOff:
	default:
		return fmt.Errorf("无效的邮箱采集方式: %s (有效值: browser, http, off)", cfg.Harvest.Mode)
	}

	switch cfg.Dedupe.Policy {
	case models.PolicyLastWriteWins, models.PolicyFirstWriteWins, models.PolicyMergeEmails:
	default:
		return fmt.Errorf("无效的去重策略: %s (有效值: last-write-wins, first-write-wins, merge-emails)", cfg.Dedupe.Policy)
	}

	if cfg.Scroll.StableThreshold < 1 || cfg.Scroll.StableThreshold > 1000 {
		return fmt.Errorf("滚动稳定阈值必须在1-1000之间,当前值: %d", cfg.Scroll.StableThreshold)
	}
	if cfg.Scroll.MaxProbes < cfg.Scroll.StableThreshold {
		return fmt.Errorf("滚动探测上限(%d)不能小于稳定阈值(%d)", cfg.Scroll.MaxProbes, cfg.Scroll.StableThreshold)
	}

	if cfg.Schedule.Interval != 0 && cfg.Schedule.Interval < minInterval {
		return fmt.Errorf("定时间隔不能小于%v,当前值: %v", minInterval, cfg.Schedule.Interval)
	}
	return nil
}

// ValidateFormats 验证导出格式
func ValidateFormats(formats []string) error {
	if len(formats) == 0 {
		return fmt.Errorf("至少需要一种导出格式")
	}
	for _, f := range formats {
		if _, err := export.ParseFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// ValidateBatchDelay 验证批量延迟
func ValidateBatchDelay(seconds int) error {
	if seconds < 0 || seconds > 3600 {
		return fmt.Errorf("批量延迟必须在0-3600秒之间,当前值: %d", seconds)
	}
	return nil
}

// ValidateListenAddr 验证监听地址
func ValidateListenAddr(addr string) error {
	if addr == "" {
		return fmt.Errorf("监听地址不能为空")
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("无效的监听地址 %q: %w", addr, err)
	}
	return nil
}

// ParseInterval 解析定时间隔, 纯数字视为分钟
func ParseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	var minutes int
	if _, err := fmt.Sscanf(s, "%d", &minutes); err == nil && fmt.Sprint(minutes) == s {
		return time.Duration(minutes) * time.Minute, nil
	}
	return 0, fmt.Errorf("无效的定时间隔: %s (示例: 30m, 6h)", s)
}
