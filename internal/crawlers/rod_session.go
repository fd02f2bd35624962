package crawlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/RecoveryAshes/MapsHarvest/internal/models"
	"github.com/RecoveryAshes/MapsHarvest/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// 结果列表所在的可滚动容器,不存在时退回到window
const scrollJS = `(dy) => {
	const feed = document.querySelector('div[role="feed"]');
	const d = dy > 0 ? dy : window.innerHeight;
	if (feed) { feed.scrollBy(0, d); } else { window.scrollBy(0, d); }
}`

const measureJS = `(sel) => {
	const feed = document.querySelector('div[role="feed"]');
	let count = 0;
	try { count = document.querySelectorAll(sel).length; } catch (e) {}
	return { count: count, extent: feed ? feed.scrollHeight : document.body.scrollHeight };
}`

// SessionOptions 浏览器会话参数
type SessionOptions struct {
	Headless    bool
	Stealth     bool
	Proxy       string
	UserDataDir string
	BrowserBin  string
	UserAgent   string
	Language    string      // 如 "en"
	Headers     http.Header // 额外请求头部
}

// SessionOptionsFromConfig 由运行配置生成会话参数,User-Agent随机选取
func SessionOptionsFromConfig(cfg models.RunConfig, headers http.Header) SessionOptions {
	return SessionOptions{
		Headless:    cfg.Headless,
		Stealth:     cfg.Stealth,
		Proxy:       cfg.Proxy,
		UserDataDir: cfg.UserDataDir,
		BrowserBin:  cfg.BrowserBin,
		UserAgent:   utils.PickOne(cfg.UserAgents),
		Language:    cfg.Language,
		Headers:     headers,
	}
}

// RodSession 基于go-rod的浏览器会话,只维护一个标签页
type RodSession struct {
	opts     SessionOptions
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

// LaunchSession 启动浏览器并打开一个标签页
// 配置了用户数据目录但启动失败时,退回到不带用户数据目录的普通启动
func LaunchSession(opts SessionOptions) (*RodSession, error) {
	s := &RodSession{opts: opts}

	controlURL, err := s.launch(opts.UserDataDir)
	if err != nil && opts.UserDataDir != "" {
		utils.Warnf("使用用户数据目录启动浏览器失败,改为普通启动: %v", err)
		controlURL, err = s.launch("")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionLaunch, err)
	}

	s.browser = rod.New().ControlURL(controlURL)
	if err := s.browser.Connect(); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: 连接浏览器失败: %v", ErrSessionLaunch, err)
	}

	if err := s.newPage(); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: %v", ErrSessionLaunch, err)
	}

	utils.Debugf("浏览器已启动: %s", controlURL)
	return s, nil
}

func (s *RodSession) launch(userDataDir string) (string, error) {
	l := launcher.New().Headless(s.opts.Headless)

	if s.opts.BrowserBin != "" {
		l = l.Bin(s.opts.BrowserBin)
	}
	if userDataDir != "" {
		l = l.UserDataDir(userDataDir)
	}
	if proxy := chromeProxy(s.opts.Proxy); proxy != "" {
		l = l.Proxy(proxy)
		utils.Debugf("浏览器代理: %s", utils.RedactURL(s.opts.Proxy))
	}
	if s.opts.Language != "" {
		l = l.Set("lang", languageTag(s.opts.Language))
	}
	l = l.Set("ignore-certificate-errors")

	controlURL, err := l.Launch()
	if err != nil {
		l.Kill()
		return "", fmt.Errorf("启动浏览器失败: %w", err)
	}
	s.launcher = l
	return controlURL, nil
}

func (s *RodSession) newPage() error {
	var (
		page *rod.Page
		err  error
	)
	if s.opts.Stealth {
		page, err = stealth.Page(s.browser)
	} else {
		page, err = s.browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return fmt.Errorf("创建标签页失败: %w", err)
	}

	if s.opts.UserAgent != "" {
		ua := &proto.NetworkSetUserAgentOverride{UserAgent: s.opts.UserAgent}
		if s.opts.Language != "" {
			ua.AcceptLanguage = acceptLanguage(s.opts.Language)
		}
		if err := page.SetUserAgent(ua); err != nil {
			return fmt.Errorf("设置User-Agent失败: %w", err)
		}
	}

	if pairs := models.HeaderPairs(s.opts.Headers); len(pairs) > 0 {
		if _, err := page.SetExtraHeaders(pairs); err != nil {
			return fmt.Errorf("设置请求头部失败: %w", err)
		}
	}

	s.page = page
	return nil
}

// Navigate 导航到url并等待加载完成
func (s *RodSession) Navigate(ctx context.Context, u string, timeout time.Duration) error {
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()
	p := s.page.Context(ctx)
	if err := p.Navigate(u); err != nil {
		return classify(ErrNavigation, err)
	}
	if err := p.WaitLoad(); err != nil {
		return classify(ErrNavigation, err)
	}
	return nil
}

// QueryAll 不等待,立即返回当前匹配的元素
func (s *RodSession) QueryAll(ctx context.Context, locator string) ([]Element, error) {
	els, err := s.page.Context(ctx).Elements(locator)
	if err != nil {
		return nil, err
	}
	out := make([]Element, len(els))
	for i, el := range els {
		out[i] = &rodElement{el: el, page: s.page}
	}
	return out, nil
}

// QueryOne 返回第一个匹配元素
func (s *RodSession) QueryOne(ctx context.Context, locator string) (Element, error) {
	has, el, err := s.page.Context(ctx).Has(locator)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, nil
	}
	return &rodElement{el: el, page: s.page}, nil
}

// ScrollBy 滚动结果列表
func (s *RodSession) ScrollBy(ctx context.Context, dy int) error {
	_, err := s.page.Context(ctx).Eval(scrollJS, dy)
	return err
}

// Measure 统计条目数量和列表高度
func (s *RodSession) Measure(ctx context.Context, itemLocator string) (int, int, error) {
	res, err := s.page.Context(ctx).Eval(measureJS, itemLocator)
	if err != nil {
		return 0, 0, err
	}
	return res.Value.Get("count").Int(), res.Value.Get("extent").Int(), nil
}

// CurrentMarkup 当前页面HTML
func (s *RodSession) CurrentMarkup(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

// Close 关闭浏览器并清理launcher
func (s *RodSession) Close() error {
	var err error
	if s.browser != nil {
		err = s.browser.Close()
		s.browser = nil
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher = nil
	}
	utils.Debugf("浏览器已关闭")
	return err
}

type rodElement struct {
	el   *rod.Element
	page *rod.Page
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}

func (e *rodElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *rodElement) Click(ctx context.Context, mode ClickMode) error {
	el := e.el.Context(ctx)
	var err error
	switch mode {
	case ClickDirect:
		err = el.Click(proto.InputMouseButtonLeft, 1)
	case ClickForced:
		_, err = el.Eval(`() => this.click()`)
	case ClickCoordinate:
		err = e.clickCenter(ctx)
	default:
		return fmt.Errorf("未知点击策略: %s", mode)
	}
	if err != nil {
		return classify(ErrInteraction, err)
	}
	return nil
}

func (e *rodElement) clickCenter(ctx context.Context) error {
	shape, err := e.el.Context(ctx).Shape()
	if err != nil {
		return err
	}
	box := shape.Box()
	if box == nil {
		return errors.New("元素没有可见区域")
	}
	mouse := e.page.Context(ctx).Mouse
	if err := mouse.MoveTo(proto.Point{X: box.X + box.Width/2, Y: box.Y + box.Height/2}); err != nil {
		return err
	}
	return mouse.Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) ScrollIntoView(ctx context.Context) error {
	return e.el.Context(ctx).ScrollIntoView()
}

// classify 将底层错误包装为领域错误,超时单独归类
// withTimeout timeout<=0 时只返回可取消的ctx
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

func classify(kind, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// chromeProxy 转换为 --proxy-server 可接受的形式,去掉认证信息
func chromeProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	if u.User != nil {
		utils.Warnf("浏览器代理不支持内联认证信息,已忽略用户名密码")
	}
	return u.Scheme + "://" + u.Host
}

func languageTag(lang string) string {
	if lang == "en" {
		return "en-US"
	}
	return lang
}

func acceptLanguage(lang string) string {
	tag := languageTag(lang)
	base := strings.SplitN(tag, "-", 2)[0]
	if base == tag {
		return tag
	}
	return fmt.Sprintf("%s,%s;q=0.9", tag, base)
}
