package crawlers

import (
	"context"
	"testing"

	"github.com/RecoveryAshes/MapsHarvest/internal/models"
)

func newTestStabilizer(b *fakeBrowser, threshold, maxProbes int, showMore models.SelectorChain) *Stabilizer {
	s := NewStabilizer(b, models.ScrollConfig{StableThreshold: threshold, MaxProbes: maxProbes}, "div.item", showMore)
	s.sleep = noSleep
	return s
}

func TestStabilizer_ConstantSource(t *testing.T) {
	b := newFakeBrowser()
	b.measures = []measurement{{5, 1000}}

	count, err := newTestStabilizer(b, 50, 500, nil).Stabilize(context.Background())
	if err != nil {
		t.Fatalf("Stabilize() error = %v", err)
	}
	if count != 5 {
		t.Errorf("count = %d, want 5", count)
	}
	if b.scrolls != 50 {
		t.Errorf("探测次数 = %d, want 50", b.scrolls)
	}
}

func TestStabilizer_Growth(t *testing.T) {
	b := newFakeBrowser()
	// 基线3, 第1次探测3, 第2次探测6, 之后保持6
	b.measures = []measurement{{3, 300}, {3, 300}, {6, 600}}

	count, err := newTestStabilizer(b, 50, 500, nil).Stabilize(context.Background())
	if err != nil {
		t.Fatalf("Stabilize() error = %v", err)
	}
	if count != 6 {
		t.Errorf("count = %d, want 6", count)
	}
	// 第2次探测变化后计数器归零,再需要50次无变化
	if b.scrolls != 52 {
		t.Errorf("探测次数 = %d, want 52", b.scrolls)
	}
}

func TestStabilizer_ExtentChangeResets(t *testing.T) {
	b := newFakeBrowser()
	// 数量不变但高度变化也视为变化
	b.measures = []measurement{{4, 100}, {4, 100}, {4, 100}, {4, 180}}

	count, err := newTestStabilizer(b, 3, 100, nil).Stabilize(context.Background())
	if err != nil {
		t.Fatalf("Stabilize() error = %v", err)
	}
	if count != 4 {
		t.Errorf("count = %d, want 4", count)
	}
	if b.scrolls != 6 {
		t.Errorf("探测次数 = %d, want 6", b.scrolls)
	}
}

func TestStabilizer_ProbeCap(t *testing.T) {
	b := newFakeBrowser()
	for i := 0; i < 20; i++ {
		b.measures = append(b.measures, measurement{i, i * 100})
	}

	count, err := newTestStabilizer(b, 5, 10, nil).Stabilize(context.Background())
	if err != nil {
		t.Fatalf("Stabilize() error = %v", err)
	}
	if b.scrolls != 10 {
		t.Errorf("探测次数 = %d, want 10", b.scrolls)
	}
	if count != 10 {
		t.Errorf("count = %d, want 10", count)
	}
}

func TestStabilizer_ShowMore(t *testing.T) {
	b := newFakeBrowser()
	b.measures = []measurement{{2, 10}}
	chain := models.SelectorChain{"button.more"}

	// 按钮不存在时不报错
	if _, err := newTestStabilizer(b, 3, 10, chain).Stabilize(context.Background()); err != nil {
		t.Fatalf("Stabilize() error = %v", err)
	}

	btn := &fakeElement{}
	b.set("button.more", btn)
	b.measureCalls = 0
	if _, err := newTestStabilizer(b, 3, 10, chain).Stabilize(context.Background()); err != nil {
		t.Fatalf("Stabilize() error = %v", err)
	}
	if btn.clickCount() != 3 {
		t.Errorf("显示更多点击次数 = %d, want 3", btn.clickCount())
	}
}

func TestStabilizer_Cancelled(t *testing.T) {
	b := newFakeBrowser()
	b.measures = []measurement{{7, 70}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	count, err := newTestStabilizer(b, 50, 500, nil).Stabilize(ctx)
	if err == nil {
		t.Error("取消后应返回错误")
	}
	if count != 7 {
		t.Errorf("count = %d, want 7", count)
	}
}

func TestStabilizer_Reach(t *testing.T) {
	b := newFakeBrowser()
	b.measures = []measurement{{7, 700}, {14, 1400}, {21, 2100}, {28, 2800}}

	count, err := newTestStabilizer(b, 50, 500, nil).Reach(context.Background(), 20)
	if err != nil {
		t.Fatalf("Reach() error = %v", err)
	}
	if count != 21 {
		t.Errorf("count = %d, want 21", count)
	}
	if b.scrolls != 2 {
		t.Errorf("探测次数 = %d, want 2", b.scrolls)
	}

	// 已经足够时不滚动
	b2 := newFakeBrowser()
	b2.measures = []measurement{{30, 3000}}
	if _, err := newTestStabilizer(b2, 50, 500, nil).Reach(context.Background(), 10); err != nil {
		t.Fatal(err)
	}
	if b2.scrolls != 0 {
		t.Errorf("探测次数 = %d, want 0", b2.scrolls)
	}
}
