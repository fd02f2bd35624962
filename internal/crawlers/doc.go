// Package crawlers 提供地图结果页的浏览器驱动提取功能
//
// # 概述
//
// crawlers包实现了单个浏览器会话上的结果提取流程:
// 滚动收敛结果列表、逐个聚焦条目、按定位器链解析详情字段、到商家网站采集邮箱。
// 所有浏览器操作都通过 Browser/Element 接口完成,生产环境使用基于go-rod的 RodSession,
// 测试使用内存中的假实现。
//
// # 核心组件
//
// ## Resolver (定位器链解析)
//
// 按顺序尝试 SelectorChain 中的定位器,定位器报错或无匹配都视为未命中。
// 文本模式下空白文本也视为未命中。全部未命中时返回 models.Unknown。
//
//	r := NewResolver(session)
//	name := r.Text(ctx, selectors.Name)
//	site := r.Attribute(ctx, selectors.Website, "href")
//
// ## Stabilizer (滚动收敛)
//
// 每次探测滚动一个视口、点击可能存在的"显示更多"按钮、随机等待后重新测量(条目数, 列表高度)。
// 连续 StableThreshold 次无变化即认为加载完成,或在 MaxProbes 次后停止。
//
//	count, err := NewStabilizer(session, cfg.Scroll, locator, selectors.ShowMore).Stabilize(ctx)
//
// ## Iterator / Extractor (条目遍历与详情提取)
//
// Iterator 每一轮重新查询条目列表,索引超出当前列表长度时提前结束。
// 单个条目的错误或panic只记录日志。条目之间检查暂停/停止开关。
//
// Extractor 的状态流转: Unfocused -> Focusing -> Extracting -> Done | Skipped。
// 聚焦依次使用 direct、forced、coordinate 三种点击策略,每种重试 ClickRetries 次。
//
// ## Harvester (邮箱采集)
//
// 抓取商家网站页面以及根路径下的猜测联系页(contact, about ...),合并正文和 mailto: 链接中的邮箱。
// 单个页面失败不会中断采集。页面获取方式可选:
//   - BrowserFetcher: 复用浏览器会话,能执行JavaScript
//   - CollyFetcher: 独立HTTP请求,速度更快
//
// ## ResourceMonitor (资源检查)
//
// 启动浏览器前检查可用内存和CPU负载,运行期间周期性采样。
//
// # 错误处理
//
//   - 定位器未命中: 在Resolver内部处理,不向上返回
//   - ErrInteraction: 所有点击策略失败,条目标记为跳过
//   - ErrNavigation / ErrTimeout: 搜索页由调用方重试,联系页直接放弃
//   - ErrSessionLaunch: 浏览器无法启动,整个运行失败
package crawlers
