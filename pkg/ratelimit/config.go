package ratelimit

import "time"

// Config 限流控制器配置
type Config struct {
	RedisKeyPrefix string        // Redis键前缀
	Rate           float64       // 每秒允许的请求数
	Burst          int           // 突发请求数
	DelayBase      time.Duration // 礼貌延迟基础值
	DelayJitter    time.Duration // 礼貌延迟随机抖动上限
	WindowSize     time.Duration // 分布式滑动窗口大小
	WindowLimit    int           // 窗口内请求上限
}
