package crawlers

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/MapsHarvest/internal/models"
	"github.com/RecoveryAshes/MapsHarvest/internal/utils"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+`)

// ExtractEmails 从HTML中提取邮箱,包括正文匹配和 mailto: 链接
func ExtractEmails(markup string) models.EmailSet {
	found := models.NewEmailSet()

	for _, m := range emailPattern.FindAllString(markup, -1) {
		if email := cleanEmail(m); email != "" {
			found.Add(email)
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return found
	}
	doc.Find(`a[href^="mailto:"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		addr := strings.TrimPrefix(href, "mailto:")
		if i := strings.IndexByte(addr, '?'); i >= 0 {
			addr = addr[:i]
		}
		for _, part := range strings.Split(addr, ",") {
			if email := cleanEmail(part); email != "" {
				found.Add(email)
			}
		}
	})
	return found
}

func cleanEmail(raw string) string {
	email := strings.ToLower(strings.Trim(strings.TrimSpace(raw), ".-"))
	if !emailPattern.MatchString(email) {
		return ""
	}
	return email
}

// FilterEmails 去掉包含任一排除片段的邮箱,片段不区分大小写
func FilterEmails(emails models.EmailSet, exclude []string) models.EmailSet {
	if len(exclude) == 0 {
		return emails
	}
	out := models.NewEmailSet()
	for email := range emails {
		if !excluded(email, exclude) {
			out.Add(email)
		}
	}
	return out
}

func excluded(email string, exclude []string) bool {
	for _, p := range exclude {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" && strings.Contains(email, p) {
			return true
		}
	}
	return false
}

// Harvester 从商家网站首页和猜测的联系页中采集邮箱
type Harvester struct {
	fetcher PageFetcher
	paths   []string
	exclude []string
	timeout time.Duration
	limiter *rate.Limiter
}

// NewHarvester 创建邮箱采集器
func NewHarvester(f PageFetcher, cfg models.HarvestConfig) *Harvester {
	h := &Harvester{
		fetcher: f,
		paths:   cfg.Paths,
		exclude: cfg.Exclude,
		timeout: cfg.Timeout,
	}
	if cfg.Interval > 0 {
		h.limiter = rate.NewLimiter(rate.Every(cfg.Interval), 1)
	}
	return h
}

// Harvest 依次抓取网站页面和每个猜测路径,合并找到的邮箱
// 单个页面失败只记录日志,空集合也是正常结果
func (h *Harvester) Harvest(ctx context.Context, site string) models.EmailSet {
	emails := models.NewEmailSet()

	root, err := models.SiteRoot(site)
	if err != nil {
		log.Debug().Err(err).Str("site", site).Msg("网站地址无效,跳过邮箱采集")
		return emails
	}

	pages := make([]string, 0, len(h.paths)+1)
	pages = append(pages, site)
	for _, p := range h.paths {
		pages = append(pages, models.JoinSitePath(root, p))
	}

	succeeded := 0
	for _, page := range pages {
		if h.limiter != nil {
			if err := h.limiter.Wait(ctx); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}

		markup, err := h.fetcher.Fetch(ctx, page, h.timeout)
		if err != nil {
			log.Debug().Err(err).Str("url", page).Msg("联系页抓取失败,继续下一个")
			continue
		}
		succeeded++
		emails.Union(FilterEmails(ExtractEmails(markup), h.exclude))
	}

	utils.Debugf("邮箱采集完成 [%s]: 成功页面 %d/%d, 邮箱 %d 个", root, succeeded, len(pages), len(emails))
	return emails
}
