package crawlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/RecoveryAshes/MapsHarvest/internal/utils"
	"github.com/rs/zerolog/log"
)

// ErrItemPanic 处理单个条目时发生panic
var ErrItemPanic = errors.New("条目处理panic")

const requeryAttempts = 2

// Gate 条目之间检查的暂停/停止开关
type Gate interface {
	// Wait 暂停期间阻塞,恢复、停止或ctx结束时返回
	Wait(ctx context.Context) error
	Stopped() bool
}

// ItemFunc 处理单个条目,item 是本轮重新查询得到的句柄
type ItemFunc func(ctx context.Context, index int, item Element) error

// ProgressFunc 进度回调
type ProgressFunc func(current, total int)

// ItemErrorFunc 单个条目失败时的回调
type ItemErrorFunc func(index int, err error)

// Iterator 按索引逐个处理结果条目
// 每一轮都重新查询条目列表,旧句柄在导航后失效
type Iterator struct {
	browser     Browser
	itemLocator string
	gate        Gate
	onProgress  ProgressFunc
	onError     ItemErrorFunc
}

// NewIterator 创建条目遍历器
func NewIterator(b Browser, itemLocator string, gate Gate, onProgress ProgressFunc) *Iterator {
	return &Iterator{
		browser:     b,
		itemLocator: itemLocator,
		gate:        gate,
		onProgress:  onProgress,
	}
}

// Run 处理 [start, total) 范围内的条目,返回下一个未处理的索引
// 单个条目的错误或panic不会中断遍历
func (it *Iterator) Run(ctx context.Context, start, total int, fn ItemFunc) (int, error) {
	for i := start; i < total; i++ {
		if it.gate != nil {
			if err := it.gate.Wait(ctx); err != nil {
				return i, err
			}
			if it.gate.Stopped() {
				utils.Infof("收到停止请求,在条目 %d 之前结束", i)
				return i, nil
			}
		}
		if err := ctx.Err(); err != nil {
			return i, err
		}

		items, err := it.requery(ctx, i)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return i, ctx.Err()
			}
			it.fail(i, err)
		case i >= len(items):
			utils.Warnf("条目列表缩减为 %d 个,在索引 %d 处提前结束", len(items), i)
			return i, nil
		default:
			if err := it.process(ctx, i, items[i], fn); err != nil {
				it.fail(i, err)
			}
		}

		if it.onProgress != nil {
			it.onProgress(i+1, total)
		}
	}
	return total, nil
}

// requery 重新查询条目列表,失败时重试一次
func (it *Iterator) requery(ctx context.Context, index int) ([]Element, error) {
	var err error
	for attempt := 0; attempt < requeryAttempts; attempt++ {
		var items []Element
		items, err = it.browser.QueryAll(ctx, it.itemLocator)
		if err == nil {
			return items, nil
		}
		if ctx.Err() != nil {
			break
		}
		log.Warn().Err(err).Int("index", index).Int("attempt", attempt+1).Msg("重新查询条目列表失败")
	}
	return nil, fmt.Errorf("%w: 重新查询条目列表失败: %v", ErrInteraction, err)
}

func (it *Iterator) fail(index int, err error) {
	log.Warn().Err(err).Int("index", index).Msg("条目处理失败,继续下一个")
	if it.onError != nil {
		it.onError(index, err)
	}
}

func (it *Iterator) process(ctx context.Context, index int, item Element, fn ItemFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrItemPanic, r)
			utils.Errorf("捕获panic: 索引=%d, 错误=%v, 类型=panic恢复", index, r)
		}
	}()
	return fn(ctx, index, item)
}

// OnItemError 设置条目失败回调
func (it *Iterator) OnItemError(fn ItemErrorFunc) *Iterator {
	it.onError = fn
	return it
}
