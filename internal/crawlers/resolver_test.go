package crawlers

import (
	"context"
	"errors"
	"testing"

	"github.com/RecoveryAshes/MapsHarvest/internal/models"
)

func TestResolver_TextFallback(t *testing.T) {
	b := newFakeBrowser()
	b.set("#b", &fakeElement{text: "Acme"})

	r := NewResolver(b)
	res := r.Resolve(context.Background(), models.SelectorChain{"#a", "#b"}, ModeText)
	if res.Value != "Acme" {
		t.Errorf("Value = %q, want %q", res.Value, "Acme")
	}
	if res.Locator != "#b" {
		t.Errorf("Locator = %q, want #b", res.Locator)
	}
}

func TestResolver_Misses(t *testing.T) {
	tests := []struct {
		name  string
		setup func(b *fakeBrowser)
		chain models.SelectorChain
		mode  Mode
		want  string
	}{
		{
			name:  "全部未命中",
			setup: func(b *fakeBrowser) {},
			chain: models.SelectorChain{"#a", "#b"},
			mode:  ModeText,
			want:  models.Unknown,
		},
		{
			name: "空白文本视为未命中",
			setup: func(b *fakeBrowser) {
				b.set("#a", &fakeElement{text: "   \n"})
				b.set("#b", &fakeElement{text: " 123 Main St "})
			},
			chain: models.SelectorChain{"#a", "#b"},
			mode:  ModeText,
			want:  "123 Main St",
		},
		{
			name: "定位器出错视为未命中",
			setup: func(b *fakeBrowser) {
				b.queryErr["a[[["] = errors.New("invalid selector")
				b.set("#ok", &fakeElement{text: "fine"})
			},
			chain: models.SelectorChain{"a[[[", "#ok"},
			mode:  ModeText,
			want:  "fine",
		},
		{
			name: "读取文本出错视为未命中",
			setup: func(b *fakeBrowser) {
				b.set("#a", &fakeElement{textErr: errors.New("detached")})
			},
			chain: models.SelectorChain{"#a"},
			mode:  ModeText,
			want:  models.Unknown,
		},
		{
			name: "属性模式",
			setup: func(b *fakeBrowser) {
				b.set("a.noattr", &fakeElement{attrs: map[string]string{}})
				b.set("a.site", &fakeElement{attrs: map[string]string{"href": "https://acme.example/"}})
			},
			chain: models.SelectorChain{"a.noattr", "a.site"},
			mode:  ModeAttribute("href"),
			want:  "https://acme.example/",
		},
		{
			name: "同一定位器取文档顺序第一个",
			setup: func(b *fakeBrowser) {
				b.set("h1", &fakeElement{text: "First"}, &fakeElement{text: "Second"})
			},
			chain: models.SelectorChain{"h1"},
			mode:  ModeText,
			want:  "First",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBrowser()
			tt.setup(b)
			got := NewResolver(b).Resolve(context.Background(), tt.chain, tt.mode).Value
			if got != tt.want {
				t.Errorf("Value = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolver_Existence(t *testing.T) {
	b := newFakeBrowser()
	r := NewResolver(b)

	if el := r.Exists(context.Background(), models.SelectorChain{"button.more"}); el != nil {
		t.Error("不存在的元素应返回nil")
	}

	btn := &fakeElement{}
	b.set("button.more", btn)
	res := r.Resolve(context.Background(), models.SelectorChain{"button.more"}, ModeExistence)
	if !res.Found() || res.Element != btn {
		t.Error("应返回匹配的元素")
	}
	if res.Value != "" {
		t.Errorf("存在模式不应有值: %q", res.Value)
	}
}
