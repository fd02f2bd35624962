package crawlers

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fakeElement 内存中的元素
type fakeElement struct {
	text    string
	textErr error
	attrs   map[string]string

	// failModes 中的策略点击总是失败
	failModes map[ClickMode]bool
	// onClick 点击成功后调用
	onClick func()
	panics  bool

	mu     sync.Mutex
	clicks []ClickMode
}

func (e *fakeElement) Text(ctx context.Context) (string, error) {
	return e.text, e.textErr
}

func (e *fakeElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, ok := e.attrs[name]
	return v, ok, nil
}

func (e *fakeElement) Click(ctx context.Context, mode ClickMode) error {
	if e.panics {
		panic("元素已失效")
	}
	e.mu.Lock()
	e.clicks = append(e.clicks, mode)
	e.mu.Unlock()
	if e.failModes[mode] || e.failModes["*"] {
		return fmt.Errorf("%w: 元素被遮挡", ErrInteraction)
	}
	if e.onClick != nil {
		e.onClick()
	}
	return nil
}

func (e *fakeElement) ScrollIntoView(ctx context.Context) error { return nil }

func (e *fakeElement) clickCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.clicks)
}

type measurement struct{ count, extent int }

// fakeBrowser 内存中的浏览器会话
type fakeBrowser struct {
	mu sync.Mutex

	elements map[string][]Element
	queryErr map[string]error

	measures     []measurement
	measureCalls int
	scrolls      int

	pages       map[string]string // url -> markup
	navErr      map[string]error
	current     string
	navigations []string
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{
		elements: make(map[string][]Element),
		queryErr: make(map[string]error),
		pages:    make(map[string]string),
		navErr:   make(map[string]error),
	}
}

func (b *fakeBrowser) set(locator string, els ...Element) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.elements[locator] = els
}

func (b *fakeBrowser) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.navigations = append(b.navigations, url)
	if err := b.navErr[url]; err != nil {
		return err
	}
	if _, ok := b.pages[url]; !ok {
		return fmt.Errorf("%w: 404 %s", ErrNavigation, url)
	}
	b.current = url
	return nil
}

func (b *fakeBrowser) QueryAll(ctx context.Context, locator string) ([]Element, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.queryErr[locator]; err != nil {
		return nil, err
	}
	return append([]Element(nil), b.elements[locator]...), nil
}

func (b *fakeBrowser) QueryOne(ctx context.Context, locator string) (Element, error) {
	els, err := b.QueryAll(ctx, locator)
	if err != nil || len(els) == 0 {
		return nil, err
	}
	return els[0], nil
}

func (b *fakeBrowser) ScrollBy(ctx context.Context, dy int) error {
	b.mu.Lock()
	b.scrolls++
	b.mu.Unlock()
	return nil
}

// Measure 依次返回预设序列,序列用完后重复最后一个值
func (b *fakeBrowser) Measure(ctx context.Context, itemLocator string) (int, int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.measures) == 0 {
		return 0, 0, nil
	}
	i := b.measureCalls
	if i >= len(b.measures) {
		i = len(b.measures) - 1
	}
	b.measureCalls++
	m := b.measures[i]
	return m.count, m.extent, nil
}

func (b *fakeBrowser) CurrentMarkup(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pages[b.current], nil
}

func (b *fakeBrowser) Close() error { return nil }

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }
