package core

import (
	"context"
	"sync/atomic"
	"time"
)

// DefaultPausePoll 暂停期间的轮询间隔
const DefaultPausePoll = time.Second

// PauseController 外部可随时切换的暂停/停止开关
// 只在条目之间检查,不会打断正在处理的条目
type PauseController struct {
	paused  atomic.Bool
	stopped atomic.Bool
	poll    atomic.Int64
}

// NewPauseController 创建开关,poll<=0 时使用默认轮询间隔
func NewPauseController(poll time.Duration) *PauseController {
	pc := &PauseController{}
	pc.SetPoll(poll)
	return pc
}

// SetPoll 修改轮询间隔
func (pc *PauseController) SetPoll(poll time.Duration) {
	if poll <= 0 {
		poll = DefaultPausePoll
	}
	pc.poll.Store(int64(poll))
}

// SetPaused 设置或清除暂停
func (pc *PauseController) SetPaused(paused bool) {
	pc.paused.Store(paused)
}

// Paused 是否处于暂停
func (pc *PauseController) Paused() bool {
	return pc.paused.Load()
}

// RequestStop 请求在下一个条目之前结束运行
func (pc *PauseController) RequestStop() {
	pc.stopped.Store(true)
}

// Stopped 是否已请求停止
func (pc *PauseController) Stopped() bool {
	return pc.stopped.Load()
}

// Reset 新的运行开始前清除状态
func (pc *PauseController) Reset() {
	pc.paused.Store(false)
	pc.stopped.Store(false)
}

// Wait 暂停期间轮询等待,恢复、停止或ctx结束时返回
func (pc *PauseController) Wait(ctx context.Context) error {
	if !pc.Paused() {
		return ctx.Err()
	}

	ticker := time.NewTicker(time.Duration(pc.poll.Load()))
	defer ticker.Stop()

	for pc.Paused() && !pc.Stopped() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
