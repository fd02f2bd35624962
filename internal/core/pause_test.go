package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPauseController_NotPaused(t *testing.T) {
	pc := NewPauseController(time.Millisecond)
	assert.NoError(t, pc.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, pc.Wait(ctx), context.Canceled, "未暂停时也应反映ctx状态")
}

func TestPauseController_ResumeReleasesWait(t *testing.T) {
	pc := NewPauseController(time.Millisecond)
	pc.SetPaused(true)

	done := make(chan error, 1)
	go func() { done <- pc.Wait(context.Background()) }()

	select {
	case <-done:
		t.Fatal("暂停期间不应返回")
	case <-time.After(20 * time.Millisecond):
	}

	pc.SetPaused(false)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("恢复后应返回")
	}
}

func TestPauseController_StopReleasesWait(t *testing.T) {
	pc := NewPauseController(time.Millisecond)
	pc.SetPaused(true)

	done := make(chan error, 1)
	go func() { done <- pc.Wait(context.Background()) }()
	pc.RequestStop()

	select {
	case err := <-done:
		assert.NoError(t, err)
		assert.True(t, pc.Stopped())
	case <-time.After(time.Second):
		t.Fatal("停止后应返回")
	}
}

func TestPauseController_ContextEndsWait(t *testing.T) {
	pc := NewPauseController(time.Hour)
	pc.SetPaused(true)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pc.Wait(ctx), context.DeadlineExceeded)
}

func TestPauseController_Reset(t *testing.T) {
	pc := NewPauseController(0)
	pc.SetPaused(true)
	pc.RequestStop()
	pc.Reset()
	assert.False(t, pc.Paused())
	assert.False(t, pc.Stopped())
	assert.Equal(t, int64(DefaultPausePoll), pc.poll.Load())
}
