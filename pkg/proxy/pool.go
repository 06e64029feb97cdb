// Package proxy 提供代理IP池的管理功能
// 代理列表来自配置，失败的代理会被标记为不可用
package proxy

import (
	"fmt"
	"net/url"
	"sync"
)

// Proxy 定义单个代理的详细信息
type Proxy struct {
	URL       string // 代理服务器的完整URL地址
	Available bool   // 代理当前是否可用
}

// ProxyPool 代理池的核心结构
// 管理代理列表并提供线程安全的操作方法
type ProxyPool struct {
	proxies []*Proxy     // 代理列表，存储所有已添加的代理
	next    int          // 轮转游标
	mu      sync.RWMutex // 读写锁，保护并发访问代理列表
}

// NewProxyPool 创建新的代理池实例
// urls: 配置中的代理URL列表，非法URL会被跳过并返回错误
func NewProxyPool(urls []string) (*ProxyPool, error) {
	pool := &ProxyPool{
		proxies: make([]*Proxy, 0, len(urls)),
	}

	for _, u := range urls {
		if err := pool.AddProxy(u); err != nil {
			return nil, err
		}
	}

	return pool, nil
}

// AddProxy 向代理池添加新的代理
func (p *ProxyPool) AddProxy(proxyURL string) error {
	// 验证代理URL格式是否正确
	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("代理URL缺少协议或主机: %s", proxyURL)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.proxies = append(p.proxies, &Proxy{
		URL:       proxyURL,
		Available: true,
	})
	return nil
}

// GetProxy 轮转获取下一个可用代理
// 没有可用代理时返回nil，调用方应直连
func (p *ProxyPool) GetProxy() *Proxy {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := 0; i < len(p.proxies); i++ {
		proxy := p.proxies[p.next%len(p.proxies)]
		p.next++
		if proxy.Available {
			return proxy
		}
	}

	return nil
}

// MarkUnavailable 将指定代理标记为不可用
func (p *ProxyPool) MarkUnavailable(proxyURL string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, proxy := range p.proxies {
		if proxy.URL == proxyURL {
			proxy.Available = false
			return
		}
	}
}

// AvailableCount 返回当前可用代理数量
func (p *ProxyPool) AvailableCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	count := 0
	for _, proxy := range p.proxies {
		if proxy.Available {
			count++
		}
	}
	return count
}
