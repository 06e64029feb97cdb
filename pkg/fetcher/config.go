package fetcher

import "time"

// Config 请求器配置
type Config struct {
	Concurrency   int           // 并发许可数，全局同时在途的请求上限
	Timeout       time.Duration // 单次尝试的总超时
	MaxAttempts   int           // 单页最大尝试次数，用尽后返回failed
	BackoffBase   time.Duration // 重试退避基础值
	BackoffFactor float64       // 重试退避增长因子，必须大于1
	WaitSelector  string        // 渲染模式下等待的选择器
}

// 可重试的HTTP状态码
var retryableStatus = map[int]bool{
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}
