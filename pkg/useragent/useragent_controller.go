// Package useragent 提供请求UA的轮换管理
package useragent

import (
	"math/rand"
	"sync"
)

// UserAgent 定义单个UA的结构
type UserAgent struct {
	Value  string // UA字符串
	Weight int    // 使用权重
}

// UserAgentController UA管理器
// UA列表来自配置，按权重随机轮换
type UserAgentController struct {
	config Config       // 配置信息
	agents []*UserAgent // UA列表
	mu     sync.RWMutex // 读写锁
}

// NewUserAgentController 创建新的UA控制器
func NewUserAgentController(config Config, agents []*UserAgent) *UserAgentController {
	return &UserAgentController{
		config: config,
		agents: agents,
	}
}

// GetRandomUA 按权重随机获取一个UA
func (uac *UserAgentController) GetRandomUA() string {
	uac.mu.RLock()
	defer uac.mu.RUnlock()

	if len(uac.agents) == 0 {
		return uac.config.DefaultUA
	}

	// 计算总权重
	totalWeight := 0
	for _, ua := range uac.agents {
		totalWeight += ua.Weight
	}

	if totalWeight <= 0 {
		// 如果总权重为0，直接随机选择
		return uac.agents[rand.Intn(len(uac.agents))].Value
	}

	// 按权重随机选择
	r := rand.Intn(totalWeight)
	for _, ua := range uac.agents {
		r -= ua.Weight
		if r < 0 {
			return ua.Value
		}
	}

	return uac.config.DefaultUA
}

// AddUA 向轮换列表追加一个UA
func (uac *UserAgentController) AddUA(value string, weight int) {
	uac.mu.Lock()
	defer uac.mu.Unlock()

	uac.agents = append(uac.agents, &UserAgent{Value: value, Weight: weight})
}

// Count 返回当前UA数量
func (uac *UserAgentController) Count() int {
	uac.mu.RLock()
	defer uac.mu.RUnlock()
	return len(uac.agents)
}
