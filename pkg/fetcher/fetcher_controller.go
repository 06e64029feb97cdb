// Package fetcher 提供带限流和重试的页面抓取
// 并发由固定大小的许可池控制，瞬时失败按指数退避重试
package fetcher

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"curse_spider/pkg/js"
	"curse_spider/pkg/proxy"
	"curse_spider/pkg/ratelimit"
	"curse_spider/pkg/useragent"
)

// 抓取结果状态
const (
	StatusOK       = "ok"        // 成功取到页面内容
	StatusNotFound = "not_found" // 页面不存在，无需重试
	StatusFailed   = "failed"    // 尝试次数用尽仍失败
)

// Result 一次抓取的结果
// failed不是错误，调用方应把它当作"本单元无数据"
type Result struct {
	Body       string // 页面内容，仅StatusOK时有效
	Status     string // 抓取结果状态
	StatusCode int    // 最后一次HTTP状态码，渲染模式下为0
	Attempts   int    // 实际尝试次数
}

// Logger 日志接口，由controllers.LoggerManager实现
type Logger interface {
	Log(level, message string)
}

// FetcherController 页面抓取控制器
type FetcherController struct {
	config     Config
	permits    chan struct{}                    // 并发许可池
	limiter    *ratelimit.RateLimitController   // 请求节奏控制
	userAgents *useragent.UserAgentController   // UA轮换，可为nil
	proxies    *proxy.ProxyPool                 // 代理池，可为nil
	renderer   *js.JSController                 // 浏览器渲染器，非nil时走渲染模式
	client     *http.Client                     // 直连客户端
	logger     Logger                           // 日志输出，可为nil
}

// NewFetcherController 创建新的抓取控制器
// limiter必须提供，userAgents/proxies/renderer/logger均可为nil
func NewFetcherController(config Config, limiter *ratelimit.RateLimitController,
	userAgents *useragent.UserAgentController, proxies *proxy.ProxyPool,
	renderer *js.JSController, logger Logger) *FetcherController {

	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	// 负的退避基础值会让抖动计算崩溃，直接收紧为0
	if config.BackoffBase < 0 {
		config.BackoffBase = 0
	}

	return &FetcherController{
		config:     config,
		permits:    make(chan struct{}, config.Concurrency),
		limiter:    limiter,
		userAgents: userAgents,
		proxies:    proxies,
		renderer:   renderer,
		client:     &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}
}

// FetchPage 抓取单个页面
// 404立即返回not_found，瞬时失败按退避重试，用尽后返回failed
func (f *FetcherController) FetchPage(ctx context.Context, pageURL string) Result {
	// 获取并发许可
	select {
	case <-ctx.Done():
		return Result{Status: StatusFailed}
	case f.permits <- struct{}{}:
	}
	defer func() { <-f.permits }()

	var lastCode int
	for attempt := 1; attempt <= f.config.MaxAttempts; attempt++ {
		// 第一次尝试之外都要先退避
		if attempt > 1 {
			delay := BackoffDelay(f.config.BackoffBase, f.config.BackoffFactor, attempt-1)
			delay += time.Duration(rand.Int63n(int64(f.config.BackoffBase)/2 + 1))
			if err := sleepCtx(ctx, delay); err != nil {
				return Result{Status: StatusFailed, StatusCode: lastCode, Attempts: attempt - 1}
			}
		}

		// 等待限流器放行
		if err := f.limiter.Wait(ctx); err != nil {
			return Result{Status: StatusFailed, StatusCode: lastCode, Attempts: attempt - 1}
		}

		body, code, err := f.doAttempt(ctx, pageURL)
		if err != nil {
			f.warn(fmt.Sprintf("抓取失败(第%d/%d次尝试): %s: %v", attempt, f.config.MaxAttempts, pageURL, err))
			continue
		}

		lastCode = code

		// 404视为确定性缺失，不重试
		if code == http.StatusNotFound {
			f.limiter.Politeness(ctx)
			return Result{Status: StatusNotFound, StatusCode: code, Attempts: attempt}
		}

		if code >= 200 && code < 300 {
			// 成功返回前执行礼貌延迟，压低整体请求速率
			f.limiter.Politeness(ctx)
			return Result{Body: body, Status: StatusOK, StatusCode: code, Attempts: attempt}
		}

		if retryableStatus[code] {
			f.warn(fmt.Sprintf("可重试状态码 %d (第%d/%d次尝试): %s", code, attempt, f.config.MaxAttempts, pageURL))
		} else {
			f.warn(fmt.Sprintf("非预期状态码 %d (第%d/%d次尝试): %s", code, attempt, f.config.MaxAttempts, pageURL))
		}
	}

	// 用尽后同样执行礼貌延迟，调用方跳过本页后不会立刻压向下一页
	f.limiter.Politeness(ctx)
	return Result{Status: StatusFailed, StatusCode: lastCode, Attempts: f.config.MaxAttempts}
}

// doAttempt 执行单次抓取尝试
func (f *FetcherController) doAttempt(ctx context.Context, pageURL string) (string, int, error) {
	// 渲染模式交给浏览器，任何错误都按瞬时失败处理
	if f.renderer != nil {
		result, err := f.renderer.RenderPage(ctx, pageURL, &js.RenderOptions{
			WaitSelector: f.config.WaitSelector,
		})
		if err != nil {
			return "", 0, err
		}
		return result.HTML, http.StatusOK, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "GET", pageURL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("创建请求失败: %w", err)
	}

	if f.userAgents != nil {
		req.Header.Set("User-Agent", f.userAgents.GetRandomUA())
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	client, proxyURL := f.pickClient()
	resp, err := client.Do(req)
	if err != nil {
		// 走代理失败时把该代理标记为不可用
		if proxyURL != "" && f.proxies != nil {
			f.proxies.MarkUnavailable(proxyURL)
		}
		return "", 0, fmt.Errorf("HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("读取响应失败: %w", err)
	}

	return string(body), resp.StatusCode, nil
}

// pickClient 选择本次尝试使用的HTTP客户端
// 有可用代理时走代理，否则直连
func (f *FetcherController) pickClient() (*http.Client, string) {
	if f.proxies == nil {
		return f.client, ""
	}

	p := f.proxies.GetProxy()
	if p == nil {
		return f.client, ""
	}

	parsed, err := url.Parse(p.URL)
	if err != nil {
		return f.client, ""
	}

	return &http.Client{
		Timeout:   f.config.Timeout,
		Transport: &http.Transport{Proxy: http.ProxyURL(parsed)},
	}, p.URL
}

// BackoffDelay 计算第retry次重试前的退避时长(不含抖动)
// retry从1开始，时长随次数严格递增
func BackoffDelay(base time.Duration, factor float64, retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	return time.Duration(float64(base) * math.Pow(factor, float64(retry-1)))
}

// warn 输出一条告警日志
func (f *FetcherController) warn(message string) {
	if f.logger != nil {
		f.logger.Log("WARN", message)
		return
	}
	log.Printf("[WARN] %s", message)
}

// sleepCtx 可被上下文打断的休眠
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
