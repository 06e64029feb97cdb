// Package queue 提供生产者到消费者的有界FIFO交接队列
// 单生产者单消费者，按推入顺序交付，保证页序
package queue

import (
	"context"
	"sync"
	"time"
)

// 结果单元类型
const (
	KindData  = "data"  // 本页解析出了记录
	KindSkip  = "skip"  // 本页抓取失败或不存在，跳过
	KindError = "error" // 本页解析出错
	KindDone  = "done"  // 结束哨兵，消费者收到后退出
)

// PageResult 一页的处理结果
type PageResult struct {
	Page      int         // 页码，从1开始
	Kind      string      // 结果类型
	Data      interface{} // KindData时为记录列表
	Err       string      // KindError时的诊断信息
	EmittedAt time.Time   // 推入队列的时间
}

// QueueMetrics 队列监控指标
type QueueMetrics struct {
	Pushed  int64      // 已推入的单元数
	Popped  int64      // 已取出的单元数
	MaxWait float64    // 单次推入的最长阻塞秒数
	mu      sync.Mutex // 指标更新锁
}

// ResultQueue 结果队列控制器
type ResultQueue struct {
	ch      chan *PageResult // 有界通道，容量决定背压点
	metrics *QueueMetrics    // 队列监控指标
}

// NewResultQueue 创建新的结果队列
func NewResultQueue(config Config) *ResultQueue {
	capacity := config.Capacity
	if capacity < 1 {
		capacity = 1
	}

	return &ResultQueue{
		ch:      make(chan *PageResult, capacity),
		metrics: &QueueMetrics{},
	}
}

// Push 将结果推入队列，队列满时阻塞
// 上下文取消时返回错误，单元被丢弃
func (q *ResultQueue) Push(ctx context.Context, result *PageResult) error {
	result.EmittedAt = time.Now()
	start := time.Now()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case q.ch <- result:
	}

	q.metrics.mu.Lock()
	q.metrics.Pushed++
	if wait := time.Since(start).Seconds(); wait > q.metrics.MaxWait {
		q.metrics.MaxWait = wait
	}
	q.metrics.mu.Unlock()
	return nil
}

// PushDone 推入结束哨兵
// 哨兵必须送达，即使上下文已取消，否则消费者无法退出
func (q *ResultQueue) PushDone() {
	q.ch <- &PageResult{Kind: KindDone, EmittedAt: time.Now()}

	q.metrics.mu.Lock()
	q.metrics.Pushed++
	q.metrics.mu.Unlock()
}

// Pop 取出下一个结果，队列空时阻塞
func (q *ResultQueue) Pop() *PageResult {
	result := <-q.ch

	q.metrics.mu.Lock()
	q.metrics.Popped++
	q.metrics.mu.Unlock()
	return result
}

// GetMetrics 获取队列指标快照
func (q *ResultQueue) GetMetrics() (pushed, popped int64) {
	q.metrics.mu.Lock()
	defer q.metrics.mu.Unlock()
	return q.metrics.Pushed, q.metrics.Popped
}
