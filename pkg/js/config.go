package js

import "time"

// Config JS渲染控制器配置
type Config struct {
	PoolSize    int           // 浏览器实例池大小
	PageTimeout time.Duration // 页面加载超时时间
	UserAgent   string        // 渲染请求使用的UA
}

// RenderOptions 渲染选项
type RenderOptions struct {
	WaitSelector string // 渲染完成的标志选择器，为空时只等待body
}

// RenderResult 渲染结果
type RenderResult struct {
	HTML     string        // 页面HTML内容
	LoadTime time.Duration // 页面加载耗时
}
