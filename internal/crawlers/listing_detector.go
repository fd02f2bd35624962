package crawlers

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/MapsHarvest/internal/models"
	"github.com/RecoveryAshes/MapsHarvest/internal/utils"
	"golang.org/x/net/html"
)

// ErrNoListing 结果页上没有找到任何条目
var ErrNoListing = errors.New("未找到结果条目")

// 出现次数低于此值的类名不视为列表条目
const minListingRepeats = 3

var plainClass = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// DetectListingLocator 返回能匹配到结果条目的定位器
// 定位器链全部未命中且允许自动探测时,使用出现次数最多的div类名
func DetectListingLocator(ctx context.Context, b Browser, chain models.SelectorChain, autoDetect bool) (string, error) {
	for _, locator := range chain.Valid() {
		items, err := b.QueryAll(ctx, locator)
		if err != nil {
			continue
		}
		if len(items) > 0 {
			utils.Debugf("条目定位器: %s (%d 个)", locator, len(items))
			return locator, nil
		}
	}

	if !autoDetect {
		return "", ErrNoListing
	}

	markup, err := b.CurrentMarkup(ctx)
	if err != nil {
		return "", err
	}
	locator, n := MostCommonDivClass(markup)
	if locator == "" {
		return "", ErrNoListing
	}
	utils.Warnf("定位器链未命中,自动探测到条目定位器: %s (%d 个)", locator, n)
	return locator, nil
}

// MostCommonDivClass 统计div的class属性,返回出现最多的组合对应的选择器
func MostCommonDivClass(markup string) (string, int) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return "", 0
	}
	doc := goquery.NewDocumentFromNode(root)

	counts := make(map[string]int)
	var order []string
	doc.Find("div[class]").Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		fields := strings.Fields(class)
		if len(fields) == 0 {
			return
		}
		for _, f := range fields {
			if !plainClass.MatchString(f) {
				return
			}
		}
		key := "div." + strings.Join(fields, ".")
		if counts[key] == 0 {
			order = append(order, key)
		}
		counts[key]++
	})

	best, bestN := "", 0
	for _, key := range order {
		if counts[key] > bestN {
			best, bestN = key, counts[key]
		}
	}
	if bestN < minListingRepeats {
		return "", 0
	}
	return best, bestN
}
