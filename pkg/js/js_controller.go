// Package js 提供基于chromedp的页面渲染能力
// 用于目录页只有在浏览器里才能渲染出卡片的场景
package js

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// JSController JavaScript渲染控制器
type JSController struct {
	config  Config
	pool    *BrowserPool
	metrics *Metrics
}

// BrowserPool 浏览器实例池
type BrowserPool struct {
	contexts []context.Context
	cancels  []context.CancelFunc
	current  int
	size     int
	mu       sync.Mutex
}

// Metrics 性能指标
type Metrics struct {
	TotalRequests   int64
	FailedRequests  int64
	AverageLoadTime time.Duration
	mu              sync.Mutex
}

// NewJSController 创建新的JS渲染控制器
func NewJSController(config Config) (*JSController, error) {
	if config.PoolSize < 1 {
		config.PoolSize = 1
	}
	if config.PageTimeout <= 0 {
		config.PageTimeout = 30 * time.Second
	}

	pool, err := newBrowserPool(config.PoolSize)
	if err != nil {
		return nil, err
	}

	return &JSController{
		config:  config,
		pool:    pool,
		metrics: &Metrics{},
	}, nil
}

// RenderPage 渲染页面并获取完整HTML
func (jc *JSController) RenderPage(ctx context.Context, url string, opts *RenderOptions) (*RenderResult, error) {
	start := time.Now()

	// 从池中获取浏览器上下文
	browserCtx := jc.pool.acquire()

	// 渲染超时与外部取消同时生效
	timeoutCtx, cancel := context.WithTimeout(browserCtx, jc.config.PageTimeout)
	defer cancel()

	stop := propagateCancel(ctx, cancel)
	defer stop()

	// 准备任务列表
	tasks := []chromedp.Action{
		network.Enable(),
	}
	if jc.config.UserAgent != "" {
		headers := network.Headers{"User-Agent": jc.config.UserAgent}
		tasks = append(tasks, network.SetExtraHTTPHeaders(headers))
	}
	tasks = append(tasks,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if opts != nil && opts.WaitSelector != "" {
		tasks = append(tasks, chromedp.WaitVisible(opts.WaitSelector, chromedp.ByQuery))
	}

	result := &RenderResult{}
	tasks = append(tasks, chromedp.OuterHTML("html", &result.HTML))

	// 执行渲染任务
	if err := chromedp.Run(timeoutCtx, tasks...); err != nil {
		jc.updateMetrics(time.Since(start), true)
		return nil, fmt.Errorf("render failed: %w", err)
	}

	result.LoadTime = time.Since(start)
	jc.updateMetrics(result.LoadTime, false)
	return result, nil
}

// Close 关闭所有浏览器实例
func (jc *JSController) Close() {
	jc.pool.close()
}

// GetMetrics 获取性能指标快照
func (jc *JSController) GetMetrics() (total, failed int64, avgLoad time.Duration) {
	jc.metrics.mu.Lock()
	defer jc.metrics.mu.Unlock()
	return jc.metrics.TotalRequests, jc.metrics.FailedRequests, jc.metrics.AverageLoadTime
}

// newBrowserPool 创建浏览器实例池
func newBrowserPool(size int) (*BrowserPool, error) {
	pool := &BrowserPool{
		contexts: make([]context.Context, size),
		cancels:  make([]context.CancelFunc, size),
		size:     size,
	}

	// 创建浏览器实例
	for i := 0; i < size; i++ {
		ctx, cancel := chromedp.NewContext(context.Background())
		pool.contexts[i] = ctx
		pool.cancels[i] = cancel
	}

	return pool, nil
}

// acquire 轮转获取浏览器实例
func (p *BrowserPool) acquire() context.Context {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx := p.contexts[p.current]
	p.current = (p.current + 1) % p.size
	return ctx
}

// close 释放所有浏览器实例
func (p *BrowserPool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, cancel := range p.cancels {
		cancel()
	}
}

// propagateCancel 把外部上下文的取消传递给渲染任务
func propagateCancel(outer context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-outer.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// updateMetrics 更新性能指标
func (jc *JSController) updateMetrics(duration time.Duration, failed bool) {
	jc.metrics.mu.Lock()
	defer jc.metrics.mu.Unlock()

	jc.metrics.TotalRequests++
	if failed {
		jc.metrics.FailedRequests++
	}
	jc.metrics.AverageLoadTime = time.Duration(
		(int64(jc.metrics.AverageLoadTime)*(jc.metrics.TotalRequests-1) + int64(duration)) /
			jc.metrics.TotalRequests)
}
