package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/RecoveryAshes/MapsHarvest/internal/crawlers"
	"github.com/RecoveryAshes/MapsHarvest/internal/models"
)

const testSearchBase = "https://maps.test/search/"

// fakeBusiness 结果列表中的一个商家
type fakeBusiness struct {
	name    string
	phone   string
	website string

	// failClicks 为true时所有点击策略都失败
	failClicks bool
	onClick    func()
}

// fakeSite 模拟搜索结果页、详情面板和商家网站
type fakeSite struct {
	mu sync.Mutex

	selectors  models.SelectorConfig
	businesses []*fakeBusiness
	pages      map[string]string

	onSearch bool
	detail   int
	current  string

	clicks      map[int]int
	navigations int
	closed      bool
}

func newFakeSite(businesses ...*fakeBusiness) *fakeSite {
	return &fakeSite{
		selectors:  models.DefaultSelectorConfig(),
		businesses: businesses,
		pages:      make(map[string]string),
		detail:     -1,
		clicks:     make(map[int]int),
	}
}

func (s *fakeSite) factory() SessionFactory {
	return func(opts crawlers.SessionOptions) (crawlers.Browser, error) {
		return s, nil
	}
}

func (s *fakeSite) clickCount(i int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clicks[i]
}

func (s *fakeSite) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigations++
	if strings.HasPrefix(url, testSearchBase) {
		s.onSearch = true
		s.detail = -1
		s.current = url
		return nil
	}
	if _, ok := s.pages[url]; !ok {
		return fmt.Errorf("%w: 404 %s", crawlers.ErrNavigation, url)
	}
	s.onSearch = false
	s.current = url
	return nil
}

func (s *fakeSite) QueryAll(ctx context.Context, locator string) ([]crawlers.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case locator == s.selectors.Listing[0] && s.onSearch:
		items := make([]crawlers.Element, len(s.businesses))
		for i := range s.businesses {
			items[i] = &fakeItem{site: s, index: i}
		}
		return items, nil
	case s.detail < 0:
		return nil, nil
	}

	biz := s.businesses[s.detail]
	switch locator {
	case s.selectors.Name[0]:
		return []crawlers.Element{&fakeField{text: biz.name}}, nil
	case s.selectors.Phone[0]:
		if biz.phone != "" {
			return []crawlers.Element{&fakeField{text: biz.phone}}, nil
		}
	case s.selectors.Website[0]:
		if biz.website != "" {
			return []crawlers.Element{&fakeField{attrs: map[string]string{"href": biz.website}}}, nil
		}
	}
	return nil, nil
}

func (s *fakeSite) QueryOne(ctx context.Context, locator string) (crawlers.Element, error) {
	els, err := s.QueryAll(ctx, locator)
	if err != nil || len(els) == 0 {
		return nil, err
	}
	return els[0], nil
}

func (s *fakeSite) ScrollBy(ctx context.Context, dy int) error { return nil }

func (s *fakeSite) Measure(ctx context.Context, itemLocator string) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.businesses)
	return n, n * 100, nil
}

func (s *fakeSite) CurrentMarkup(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages[s.current], nil
}

func (s *fakeSite) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// fakeItem 结果列表中的条目句柄
type fakeItem struct {
	site  *fakeSite
	index int
}

func (it *fakeItem) Text(ctx context.Context) (string, error) {
	return it.site.businesses[it.index].name, nil
}

func (it *fakeItem) Attribute(ctx context.Context, name string) (string, bool, error) {
	return "", false, nil
}

func (it *fakeItem) Click(ctx context.Context, mode crawlers.ClickMode) error {
	s := it.site
	s.mu.Lock()
	s.clicks[it.index]++
	biz := s.businesses[it.index]
	if biz.failClicks {
		s.mu.Unlock()
		return fmt.Errorf("%w: 条目被遮挡", crawlers.ErrInteraction)
	}
	s.detail = it.index
	s.mu.Unlock()

	if biz.onClick != nil {
		biz.onClick()
	}
	return nil
}

func (it *fakeItem) ScrollIntoView(ctx context.Context) error { return nil }

// fakeField 详情面板中的字段
type fakeField struct {
	text  string
	attrs map[string]string
}

func (f *fakeField) Text(ctx context.Context) (string, error) { return f.text, nil }

func (f *fakeField) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, ok := f.attrs[name]
	return v, ok, nil
}

func (f *fakeField) Click(ctx context.Context, mode crawlers.ClickMode) error { return nil }

func (f *fakeField) ScrollIntoView(ctx context.Context) error { return nil }

// memoryExporter 记录导出调用
type memoryExporter struct {
	mu      sync.Mutex
	name    string
	records []models.Record
	calls   int
}

func (m *memoryExporter) Export(name string, records []models.Record) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.name = name
	m.records = records
	return []string{name + ".csv"}, nil
}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

// testRunConfig 所有等待都为0的运行配置
func testRunConfig() models.RunConfig {
	cfg := models.DefaultRunConfig()
	cfg.Query = models.QueryTerms{Category: "dentist", Region: "Austin", Country: "USA"}
	cfg.SearchBaseURL = testSearchBase
	cfg.InitialWait = 0
	cfg.PausePoll = 5 * time.Millisecond
	cfg.LaunchRetries = 2
	cfg.NavigateRetries = 1
	cfg.Scroll = models.ScrollConfig{StableThreshold: 2, MaxProbes: 10}
	cfg.Extract = models.ExtractConfig{ClickRetries: 1, ValidatePhone: true, PhoneRegion: "US"}
	cfg.Harvest = models.HarvestConfig{Mode: models.HarvestBrowser, Paths: []string{"contact"}, Timeout: time.Second}
	cfg.SnapshotEvery = 0
	return cfg
}

func newTestEngine(site *fakeSite, opts EngineOptions) *Engine {
	opts.NewSession = site.factory()
	e := NewEngine(opts)
	e.sleep = noSleep
	return e
}
