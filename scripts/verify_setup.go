package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/RecoveryAshes/MapsHarvest/internal/crawlers"
	"github.com/go-rod/rod/lib/launcher"
)

func main() {
	fmt.Println("==============================================")
	fmt.Println("  MapsHarvest 环境验证")
	fmt.Println("==============================================")
	fmt.Println()

	allOK := true

	fmt.Printf("✅ Go版本: %s\n", runtime.Version())
	fmt.Printf("✅ 操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	// 检查浏览器
	if path, found := launcher.LookPath(); found {
		fmt.Printf("✅ 找到Chrome/Chromium: %s\n", path)
	} else {
		fmt.Println("⚠️  未找到本地Chrome/Chromium - 首次运行时将自动下载")
		fmt.Println("   也可以通过 browser.bin 指定浏览器路径")
	}

	// 检查系统资源
	monitor := crawlers.NewResourceMonitor(crawlers.ResourceMonitorConfig{})
	if err := monitor.Preflight(); err != nil {
		fmt.Printf("❌ 系统资源不足: %v\n", err)
		allOK = false
	} else {
		status := monitor.Status()
		fmt.Printf("✅ 可用内存: %.0f MB, CPU: %.1f%%\n",
			float64(status.AvailableMemory)/(1024*1024), status.CPUUsage)
	}

	// 检查项目结构
	fmt.Println()
	fmt.Println("检查项目结构...")
	requiredDirs := []string{
		"cmd/mapsharvest",
		"internal/core",
		"internal/crawlers",
		"internal/export",
		"internal/utils",
		"internal/models",
		"configs",
	}
	for _, dir := range requiredDirs {
		if _, err := os.Stat(dir); err == nil {
			fmt.Printf("✅ %s/\n", dir)
		} else {
			fmt.Printf("❌ %s/ 不存在\n", dir)
			allOK = false
		}
	}

	fmt.Println()
	fmt.Println("==============================================")
	if allOK {
		fmt.Println("✅ 环境验证通过!")
		fmt.Println()
		fmt.Println("下一步:")
		fmt.Println("  1. 运行 'go build ./cmd/mapsharvest' 构建项目")
		fmt.Println("  2. 运行 './mapsharvest --validate-config' 检查配置")
		fmt.Println("  3. 运行 './mapsharvest run -k dentist -r Austin --country USA'")
		os.Exit(0)
	}
	fmt.Println("❌ 环境验证失败,请解决上述问题。")
	os.Exit(1)
}
