package crawlers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ErrInsufficientResources 系统资源不足以启动浏览器
var ErrInsufficientResources = errors.New("系统资源不足")

// ResourceMonitorConfig 资源监控器配置
type ResourceMonitorConfig struct {
	MinAvailableMemory int64 // 启动浏览器所需的最小可用内存(字节)
	CPULoadThreshold   int   // CPU负载阈值(%),>=200 视为禁用
}

// ResourceStatus 资源状态
type ResourceStatus struct {
	TotalMemory     uint64  // 系统总内存(字节)
	AvailableMemory uint64  // 可用内存(字节)
	CPUUsage        float64 // CPU使用率(%)
	MemoryPressure  string  // normal, warning, critical
}

// ResourceMonitor 系统资源监控器
// 启动浏览器前做一次检查,运行期间周期性采样供日志和指标使用
type ResourceMonitor struct {
	config ResourceMonitorConfig

	last ResourceStatus
	mu   sync.RWMutex

	cancelFunc context.CancelFunc
	isRunning  bool
	runMu      sync.Mutex

	// 便于测试替换
	sample func() (ResourceStatus, error)
}

// NewResourceMonitor 创建资源监控器
func NewResourceMonitor(config ResourceMonitorConfig) *ResourceMonitor {
	if config.MinAvailableMemory == 0 {
		config.MinAvailableMemory = 300 * 1024 * 1024 // 300MB
	}
	if config.CPULoadThreshold == 0 {
		config.CPULoadThreshold = 95
	}
	rm := &ResourceMonitor{config: config}
	rm.sample = rm.readSystem
	return rm
}

func (rm *ResourceMonitor) readSystem() (ResourceStatus, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return ResourceStatus{}, fmt.Errorf("获取系统内存失败: %w", err)
	}

	var usage float64
	// 100毫秒采样,避免阻塞过久
	if percentages, err := cpu.Percent(100*time.Millisecond, false); err != nil {
		log.Warn().Err(err).Msg("获取CPU使用率失败")
	} else if len(percentages) > 0 {
		usage = percentages[0]
	}

	return ResourceStatus{
		TotalMemory:     vm.Total,
		AvailableMemory: vm.Available,
		CPUUsage:        usage,
		MemoryPressure:  pressureLevel(vm.Available),
	}, nil
}

func pressureLevel(available uint64) string {
	mb := available / (1024 * 1024)
	switch {
	case mb < 300:
		return "critical"
	case mb < 500:
		return "warning"
	default:
		return "normal"
	}
}

// Preflight 检查当前资源是否允许启动浏览器
// 无法读取系统信息时放行
func (rm *ResourceMonitor) Preflight() error {
	status, err := rm.sample()
	if err != nil {
		log.Warn().Err(err).Msg("资源检查失败,跳过")
		return nil
	}
	rm.store(status)

	log.Info().Msgf("系统内存: 总计 %.2f GB, 可用 %.2f GB, CPU %.1f%%",
		float64(status.TotalMemory)/(1024*1024*1024),
		float64(status.AvailableMemory)/(1024*1024*1024),
		status.CPUUsage)

	if int64(status.AvailableMemory) < rm.config.MinAvailableMemory {
		return fmt.Errorf("%w: 可用内存 %dMB, 需要至少 %dMB", ErrInsufficientResources,
			status.AvailableMemory/(1024*1024), rm.config.MinAvailableMemory/(1024*1024))
	}
	if rm.config.CPULoadThreshold < 200 && status.CPUUsage > float64(rm.config.CPULoadThreshold) {
		return fmt.Errorf("%w: CPU负载过高(当前%.1f%%)", ErrInsufficientResources, status.CPUUsage)
	}
	return nil
}

// StartMonitoring 启动后台采样(幂等)
func (rm *ResourceMonitor) StartMonitoring(interval time.Duration) {
	rm.runMu.Lock()
	defer rm.runMu.Unlock()

	if rm.isRunning {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	rm.cancelFunc = cancel
	rm.isRunning = true

	go rm.monitoringLoop(ctx, interval)
}

func (rm *ResourceMonitor) monitoringLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status, err := rm.sample()
			if err != nil {
				continue
			}
			prev := rm.Status().MemoryPressure
			rm.store(status)
			if status.MemoryPressure != prev && status.MemoryPressure != "normal" {
				log.Warn().Msgf("可用内存不足(当前%dMB),浏览器可能变慢或崩溃", status.AvailableMemory/(1024*1024))
			}
		}
	}
}

// StopMonitoring 停止后台采样
func (rm *ResourceMonitor) StopMonitoring() {
	rm.runMu.Lock()
	defer rm.runMu.Unlock()

	if rm.isRunning && rm.cancelFunc != nil {
		rm.cancelFunc()
		rm.isRunning = false
		rm.cancelFunc = nil
	}
}

// Status 最近一次采样结果
func (rm *ResourceMonitor) Status() ResourceStatus {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.last
}

func (rm *ResourceMonitor) store(s ResourceStatus) {
	rm.mu.Lock()
	rm.last = s
	rm.mu.Unlock()
}
