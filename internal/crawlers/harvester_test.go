package crawlers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/RecoveryAshes/MapsHarvest/internal/models"
)

// mapFetcher 按URL返回预设页面,未配置的URL返回错误
type mapFetcher struct {
	mu      sync.Mutex
	pages   map[string]string
	fetched []string
}

func (f *mapFetcher) Fetch(ctx context.Context, url string, timeout time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, url)
	markup, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("%w: 404 %s", ErrNavigation, url)
	}
	return markup, nil
}

func TestExtractEmails(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   []string
	}{
		{
			name:   "正文中的邮箱",
			markup: `<p>Write to Info@AcmeDental.com today</p>`,
			want:   []string{"info@acmedental.com"},
		},
		{
			name:   "mailto链接",
			markup: `<a href="mailto:front.desk@acme.io?subject=Hi">Email us</a>`,
			want:   []string{"front.desk@acme.io"},
		},
		{
			name:   "保留所有匹配",
			markup: `<p>you@example.com noreply@acme.io</p>`,
			want:   []string{"noreply@acme.io", "you@example.com"},
		},
		{
			name:   "重复邮箱只保留一个",
			markup: `<p>a@b.co</p><p>A@B.CO</p><a href="mailto:a@b.co">x</a>`,
			want:   []string{"a@b.co"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractEmails(tt.markup).Sorted()
			if len(got) != len(tt.want) {
				t.Fatalf("ExtractEmails() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ExtractEmails()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestHarvester_UnionOfSuccessfulPages(t *testing.T) {
	f := &mapFetcher{pages: map[string]string{
		"https://acme.com/":        `<p>hello@acme.com</p>`,
		"https://acme.com/contact": `<a href="mailto:sales@acme.com">sales</a>`,
		"https://acme.com/about":   `<p>founder@acme.com and hello@acme.com</p>`,
	}}
	h := NewHarvester(f, models.HarvestConfig{Paths: models.DefaultHarvestPaths, Timeout: time.Second})

	emails := h.Harvest(context.Background(), "https://acme.com/")

	want := []string{"founder@acme.com", "hello@acme.com", "sales@acme.com"}
	got := emails.Sorted()
	if len(got) != len(want) {
		t.Fatalf("Harvest() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Harvest()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	// 首页 + 5个猜测路径,失败的3个路径不会中断
	if len(f.fetched) != 6 {
		t.Errorf("抓取页面数 = %d, want 6: %v", len(f.fetched), f.fetched)
	}
}

func TestHarvester_Exclude(t *testing.T) {
	f := &mapFetcher{pages: map[string]string{
		"https://acme.com/": `<img src="logo@2x.png"><p>hello@acme.com noreply@acme.com</p>`,
	}}

	all := NewHarvester(f, models.HarvestConfig{})
	if got := all.Harvest(context.Background(), "https://acme.com/"); len(got) != 3 {
		t.Errorf("未配置排除时应保留所有匹配: %v", got.Sorted())
	}

	h := NewHarvester(f, models.HarvestConfig{Exclude: models.SuggestedEmailExclude})
	got := h.Harvest(context.Background(), "https://acme.com/")
	if !got.Has("hello@acme.com") || len(got) != 1 {
		t.Errorf("Harvest() = %v, want [hello@acme.com]", got.Sorted())
	}
}

func TestHarvester_SiteWithPath(t *testing.T) {
	f := &mapFetcher{pages: map[string]string{
		"https://acme.com/locations/austin": `<p>austin@acme.com</p>`,
		"https://acme.com/contact-us":       `<p>team@acme.com</p>`,
	}}
	h := NewHarvester(f, models.HarvestConfig{Paths: []string{"contact-us"}})

	got := h.Harvest(context.Background(), "https://acme.com/locations/austin")
	if !got.Has("austin@acme.com") || !got.Has("team@acme.com") || len(got) != 2 {
		t.Errorf("Harvest() = %v", got.Sorted())
	}
	if f.fetched[1] != "https://acme.com/contact-us" {
		t.Errorf("猜测路径应基于站点根目录: %v", f.fetched)
	}
}

func TestHarvester_InvalidSite(t *testing.T) {
	f := &mapFetcher{}
	h := NewHarvester(f, models.HarvestConfig{Paths: models.DefaultHarvestPaths})

	got := h.Harvest(context.Background(), models.Unknown)
	if len(got) != 0 {
		t.Errorf("无效网站应返回空集合: %v", got.Sorted())
	}
	if len(f.fetched) != 0 {
		t.Errorf("无效网站不应发起请求: %v", f.fetched)
	}
}

func TestHarvester_Cancelled(t *testing.T) {
	f := &mapFetcher{pages: map[string]string{"https://acme.com/": `<p>a@acme.com</p>`}}
	h := NewHarvester(f, models.HarvestConfig{Paths: models.DefaultHarvestPaths})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got := h.Harvest(ctx, "https://acme.com/")
	if len(got) != 0 || len(f.fetched) != 0 {
		t.Errorf("取消后不应继续抓取: %v", f.fetched)
	}
}

func TestBrowserFetcher(t *testing.T) {
	b := newFakeBrowser()
	b.pages["https://acme.com/"] = `<p>hi@acme.com</p>`
	f := NewBrowserFetcher(b)

	markup, err := f.Fetch(context.Background(), "https://acme.com/", time.Second)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if markup != `<p>hi@acme.com</p>` {
		t.Errorf("Fetch() = %q", markup)
	}
	if _, err := f.Fetch(context.Background(), "https://acme.com/missing", time.Second); err == nil {
		t.Error("页面不存在时应返回错误")
	}
}
