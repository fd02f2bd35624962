package utils

import (
	"bufio"
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/RecoveryAshes/MapsHarvest/internal/models"
)

// ReadQueriesFromFile 从文件中读取搜索词列表
// 每行格式为 "类别|地区|国家",空行和#开头的行被忽略
func ReadQueriesFromFile(path string) ([]models.QueryTerms, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开搜索词文件失败: %w", err)
	}
	defer file.Close()

	queries := make([]models.QueryTerms, 0)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		q, err := models.ParseQueryLine(line)
		if err != nil {
			Warnf("跳过无效搜索词 (行 %d): %s - %v", lineNum, line, err)
			continue
		}
		queries = append(queries, q)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取搜索词文件失败: %w", err)
	}

	if len(queries) == 0 {
		return nil, fmt.Errorf("搜索词文件中没有有效的搜索词")
	}

	Infof("从文件加载了 %d 个搜索词", len(queries))
	return queries, nil
}

// RandomDuration 返回 [min, max] 之间的随机时长
func RandomDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)+1))
}

// SleepContext 等待d,ctx结束时提前返回ctx.Err()
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// PickOne 随机选取一个元素,空列表返回空字符串
func PickOne(items []string) string {
	if len(items) == 0 {
		return ""
	}
	return items[rand.Intn(len(items))]
}
