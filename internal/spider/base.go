package spider

import (
	"context"
	"time"
)

// Spider 定义爬虫接口
// 所有具体的爬虫实现都需要满足这个接口
type Spider interface {
	// Init 初始化爬虫
	// 在爬虫开始工作前执行，用于加载状态和准备资源
	Init() error

	// Run 运行爬虫主流程
	// ctx: 用于控制爬虫生命周期的上下文，取消后爬虫尽快收尾
	Run(ctx context.Context) error

	// Cleanup 清理资源
	// 在爬虫工作结束后执行，用于关闭文件和连接
	Cleanup() error
}

// BaseSpider 提供基础爬虫实现
// 包含所有爬虫通用的属性和方法
type BaseSpider struct {
	Name        string        // 爬虫名称，用于标识和日志
	Description string        // 爬虫描述，说明爬虫的用途
	Timeout     time.Duration // 爬虫总超时时间，为0时不限制
}

// Init 基础初始化实现
// 可被具体爬虫重写以添加自定义初始化逻辑
func (s *BaseSpider) Init() error {
	return nil
}

// Run 基础运行实现
// 可被具体爬虫重写以实现实际的爬取逻辑
func (s *BaseSpider) Run(ctx context.Context) error {
	return nil
}

// Cleanup 基础清理实现
// 可被具体爬虫重写以添加自定义清理逻辑
func (s *BaseSpider) Cleanup() error {
	return nil
}

// Execute 按顺序执行初始化、运行和清理工作
// 超时设置生效时会包装上下文
func Execute(ctx context.Context, s Spider, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := s.Init(); err != nil {
		return err
	}

	runErr := s.Run(ctx)

	// 清理始终执行，运行错误优先返回
	if err := s.Cleanup(); err != nil && runErr == nil {
		return err
	}
	return runErr
}
