// Package ratelimit 控制对目标站点的请求节奏
// 本地使用令牌桶限制速率，配置Redis后叠加分布式滑动窗口
package ratelimit

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"curse_spider/pkg/redis"
)

// RateLimitController 请求频率限制控制器
type RateLimitController struct {
	redisClient *redis.RedisClient // Redis客户端，为nil时只做本地限流
	config      Config             // 配置信息
	limiter     *Limiter           // 本地令牌桶
	metrics     *RateLimitMetrics  // 限流指标
}

// Limiter 令牌桶限制器
type Limiter struct {
	rate       float64    // 每秒补充的令牌数
	burst      int        // 桶容量
	tokens     float64    // 当前令牌数
	lastUpdate time.Time  // 上次补充时间
	mu         sync.Mutex // 互斥锁
}

// RateLimitMetrics 限流指标
type RateLimitMetrics struct {
	TotalRequests     int64      // 总请求数
	ThrottledRequests int64      // 被限流等待过的请求数
	mu                sync.Mutex // 互斥锁
}

// NewRateLimitController 创建新的限流控制器
// redisClient可以为nil，此时不做分布式限流
func NewRateLimitController(redisClient *redis.RedisClient, config Config) *RateLimitController {
	if config.Rate <= 0 {
		config.Rate = 1
	}
	if config.Burst < 1 {
		config.Burst = 1
	}

	return &RateLimitController{
		redisClient: redisClient,
		config:      config,
		limiter: &Limiter{
			rate:       config.Rate,
			burst:      config.Burst,
			tokens:     float64(config.Burst),
			lastUpdate: time.Now(),
		},
		metrics: &RateLimitMetrics{},
	}
}

// Wait 阻塞直到允许发起下一次请求
// 上下文取消时立即返回错误
func (rlc *RateLimitController) Wait(ctx context.Context) error {
	throttled := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// 检查分布式限流
		if err := rlc.checkDistributedLimit(); err != nil {
			throttled = true
			if err := sleepCtx(ctx, 200*time.Millisecond); err != nil {
				return err
			}
			continue
		}

		// 检查本地令牌桶
		if rlc.limiter.allow() {
			rlc.recordRequest(throttled)
			return nil
		}

		throttled = true
		if err := sleepCtx(ctx, 100*time.Millisecond); err != nil {
			return err
		}
	}
}

// Politeness 执行礼貌延迟: 基础值加均匀随机抖动
// 在每次成功请求返回前调用，降低对目标站点的压力
func (rlc *RateLimitController) Politeness(ctx context.Context) error {
	delay := rlc.config.DelayBase
	if rlc.config.DelayJitter > 0 {
		delay += time.Duration(rand.Int63n(int64(rlc.config.DelayJitter)))
	}
	if delay <= 0 {
		return nil
	}
	return sleepCtx(ctx, delay)
}

// allow 令牌桶算法实现
func (l *Limiter) allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(l.lastUpdate).Seconds()
	l.tokens = minFloat(float64(l.burst), l.tokens+elapsed*l.rate)
	l.lastUpdate = now

	if l.tokens >= 1 {
		l.tokens--
		return true
	}
	return false
}

// checkDistributedLimit 检查分布式滑动窗口
func (rlc *RateLimitController) checkDistributedLimit() error {
	if rlc.redisClient == nil {
		return nil
	}

	key := fmt.Sprintf("%s:requests", rlc.config.RedisKeyPrefix)

	now := time.Now().Unix()
	windowStart := now - int64(rlc.config.WindowSize.Seconds())

	// 清理过期的请求记录
	if err := rlc.redisClient.ZRemRangeByScore(key, 0, float64(windowStart)); err != nil {
		return err
	}

	// 添加当前请求记录
	if err := rlc.redisClient.ZAdd(key, float64(now), fmt.Sprintf("%d", time.Now().UnixNano())); err != nil {
		return err
	}

	// 获取当前窗口的请求数
	count, err := rlc.redisClient.ZCount(key, float64(windowStart), float64(now))
	if err != nil {
		return err
	}

	if count > rlc.config.WindowLimit {
		return fmt.Errorf("分布式限流: 超过窗口限制 %d", rlc.config.WindowLimit)
	}

	return nil
}

// recordRequest 记录请求
func (rlc *RateLimitController) recordRequest(throttled bool) {
	rlc.metrics.mu.Lock()
	defer rlc.metrics.mu.Unlock()

	rlc.metrics.TotalRequests++
	if throttled {
		rlc.metrics.ThrottledRequests++
	}
}

// GetMetrics 获取限流指标快照
func (rlc *RateLimitController) GetMetrics() (total, throttled int64) {
	rlc.metrics.mu.Lock()
	defer rlc.metrics.mu.Unlock()
	return rlc.metrics.TotalRequests, rlc.metrics.ThrottledRequests
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

// minFloat 返回两个float64中的较小值
func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
