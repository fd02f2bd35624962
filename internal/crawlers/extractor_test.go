package crawlers

import (
	"context"
	"errors"
	"testing"

	"github.com/RecoveryAshes/MapsHarvest/internal/models"
)

type stubPhone struct{ valid bool }

func (p stubPhone) Valid(string) bool { return p.valid }

func newTestExtractor(b Browser, phone PhoneChecker) *Extractor {
	cfg := models.ExtractConfig{ClickRetries: 3, ValidatePhone: true}
	x := NewExtractor(b, cfg, models.DefaultSelectorConfig(), phone)
	x.sleep = noSleep
	return x
}

func setDetail(b *fakeBrowser, name, phone, website string) {
	b.set(`h1 span[aria-level="1"]`, &fakeElement{text: name})
	if phone != "" {
		b.set(`button[data-item-id^="phone"] .Io6YTe`, &fakeElement{text: phone})
	}
	if website != "" {
		b.set(`a[data-item-id="authority"]`, &fakeElement{attrs: map[string]string{"href": website}})
	}
}

func TestExtractor_Done(t *testing.T) {
	b := newFakeBrowser()
	setDetail(b, "Acme Dental", "+1 512-555-0100", "https://acme.example/")

	res := newTestExtractor(b, stubPhone{valid: true}).Extract(context.Background(), 4, &fakeElement{})
	if res.State != models.ItemDone {
		t.Fatalf("State = %s, want done (err=%v)", res.State, res.Err)
	}
	rec := res.Record
	if rec.Name != "Acme Dental" || rec.Phone != "+1 512-555-0100" || rec.Website != "https://acme.example/" {
		t.Errorf("字段不正确: %+v", rec)
	}
	if rec.Address != models.Unknown {
		t.Errorf("未解析的地址应为占位值: %q", rec.Address)
	}
	if rec.Index != 4 {
		t.Errorf("Index = %d, want 4", rec.Index)
	}
	if rec.WebsiteValid == nil || !*rec.WebsiteValid {
		t.Error("网站应标记为有效")
	}
	if rec.PhoneValid == nil || !*rec.PhoneValid {
		t.Error("电话应标记为有效")
	}
	if res.Strategy != ClickDirect {
		t.Errorf("Strategy = %s, want direct", res.Strategy)
	}
}

func TestExtractor_UnknownPhoneInvalid(t *testing.T) {
	b := newFakeBrowser()
	setDetail(b, "No Phone Cafe", "", "")

	res := newTestExtractor(b, stubPhone{valid: true}).Extract(context.Background(), 0, &fakeElement{})
	if res.Record.PhoneValid == nil || *res.Record.PhoneValid {
		t.Error("缺失的电话应标记为无效")
	}
	if *res.Record.WebsiteValid {
		t.Error("缺失的网站应标记为无效")
	}
}

func TestExtractor_Escalation(t *testing.T) {
	tests := []struct {
		name      string
		failModes map[ClickMode]bool
		wantState models.ItemState
		wantMode  ClickMode
		wantTries int
	}{
		{"直接点击成功", nil, models.ItemDone, ClickDirect, 1},
		{"升级到强制点击", map[ClickMode]bool{ClickDirect: true}, models.ItemDone, ClickForced, 4},
		{"升级到坐标点击", map[ClickMode]bool{ClickDirect: true, ClickForced: true}, models.ItemDone, ClickCoordinate, 7},
		{"全部失败跳过", map[ClickMode]bool{"*": true}, models.ItemSkipped, "", 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBrowser()
			setDetail(b, "Acme", "", "")
			item := &fakeElement{failModes: tt.failModes}

			res := newTestExtractor(b, nil).Extract(context.Background(), 2, item)
			if res.State != tt.wantState {
				t.Errorf("State = %s, want %s", res.State, tt.wantState)
			}
			if res.Strategy != tt.wantMode {
				t.Errorf("Strategy = %s, want %s", res.Strategy, tt.wantMode)
			}
			if item.clickCount() != tt.wantTries {
				t.Errorf("点击次数 = %d, want %d", item.clickCount(), tt.wantTries)
			}
			if tt.wantState == models.ItemSkipped {
				if !errors.Is(res.Err, ErrInteraction) {
					t.Errorf("错误应为 ErrInteraction: %v", res.Err)
				}
				if res.Record != nil {
					t.Error("跳过的条目不应产生记录")
				}
			}
		})
	}
}

func TestExtractor_NoPhoneChecker(t *testing.T) {
	b := newFakeBrowser()
	setDetail(b, "Acme", "555", "")

	res := newTestExtractor(b, nil).Extract(context.Background(), 0, &fakeElement{})
	if res.Record.PhoneValid != nil {
		t.Error("未配置电话校验时不应设置 PhoneValid")
	}
}
