package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/RecoveryAshes/MapsHarvest/internal/models"
	"github.com/RecoveryAshes/MapsHarvest/internal/utils"
	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"
)

// PageFetcher 获取页面的渲染后HTML
type PageFetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) (string, error)
}

// BrowserFetcher 复用浏览器会话导航到页面
type BrowserFetcher struct {
	browser Browser
}

// NewBrowserFetcher 创建浏览器抓取器
func NewBrowserFetcher(b Browser) *BrowserFetcher {
	return &BrowserFetcher{browser: b}
}

// Fetch 导航并读取页面HTML
func (f *BrowserFetcher) Fetch(ctx context.Context, url string, timeout time.Duration) (string, error) {
	if err := f.browser.Navigate(ctx, url, timeout); err != nil {
		return "", err
	}
	return f.browser.CurrentMarkup(ctx)
}

// CollyFetcher 使用Colly直接请求页面,不执行JavaScript
type CollyFetcher struct {
	collector      *colly.Collector
	headerProvider models.HeaderProvider
	userAgent      string
}

// NewCollyFetcher 创建HTTP抓取器
func NewCollyFetcher(userAgent string, headerProvider models.HeaderProvider) *CollyFetcher {
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // 很多小商家网站证书配置不规范
			},
		},
	}

	c := colly.NewCollector(
		colly.AllowURLRevisit(),
	)
	c.SetClient(httpClient)
	c.ParseHTTPErrorResponse = false
	if userAgent != "" {
		c.UserAgent = userAgent
	}

	return &CollyFetcher{
		collector:      c,
		headerProvider: headerProvider,
		userAgent:      userAgent,
	}
}

// Fetch 请求页面并返回解压后的HTML
func (f *CollyFetcher) Fetch(ctx context.Context, url string, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	c := f.collector.Clone()
	c.Context = ctx

	var (
		body     []byte
		fetchErr error
	)
	c.OnResponse(func(r *colly.Response) {
		decoded, err := decompressResponse(r.Headers.Get("Content-Encoding"), r.Body)
		if err != nil {
			utils.Warnf("解压响应失败 [%s]: %v", r.Request.URL, err)
			decoded = r.Body
		}
		body = decoded
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = err
	})

	hdr := http.Header{}
	hdr.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	hdr.Set("Accept-Encoding", "gzip, deflate, br")
	if f.headerProvider != nil {
		headers, err := f.headerProvider.GetHeaders()
		if err != nil {
			utils.Warnf("获取HTTP头部失败: %v", err)
		} else {
			for name, values := range headers {
				if len(values) > 0 && !strings.EqualFold(name, "User-Agent") {
					hdr.Set(name, values[0])
				}
			}
		}
	}

	if err := c.Request(http.MethodGet, url, nil, nil, hdr); err != nil {
		return "", classify(ErrNavigation, err)
	}
	c.Wait()

	if fetchErr != nil {
		return "", classify(ErrNavigation, fetchErr)
	}
	if ctx.Err() != nil {
		return "", classify(ErrNavigation, ctx.Err())
	}
	return string(body), nil
}

// decompressResponse 根据Content-Encoding解压响应体
// 支持 gzip, deflate, br
func decompressResponse(contentEncoding string, body []byte) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "gzip":
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			// net/http 可能已经透明解压
			return body, nil
		}
		defer reader.Close()
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip读取失败: %w", err)
		}
		return decompressed, nil

	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return decompressed, nil

	case "br":
		decompressed, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decompressed, nil

	case "":
		return body, nil

	default:
		utils.Warnf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}
